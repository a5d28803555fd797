package tiger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadLog_RecordLoaded(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runID := uuid.New()
	srid := 4269
	mock.ExpectExec("INSERT INTO tiger_meta.load_log").
		WithArgs(runID, "places", "tl_2024_12_place.shp", "tiger_places", "append", &srid,
			int64(931), StatusLoaded, (*string)(nil), 1500).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewLoadLog(mock).Record(context.Background(), runID, FileResult{
		Dataset:    "places",
		File:       "tl_2024_12_place.shp",
		Table:      "tiger_places",
		Mode:       ModeAppend,
		SourceSRID: 4269,
		Records:    931,
		Duration:   1500 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadLog_RecordMissing(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runID := uuid.New()
	msg := "tiger: file not found"
	mock.ExpectExec("INSERT INTO tiger_meta.load_log").
		WithArgs(runID, "states", "tl_2024_us_state.shp", "tiger_states", "replace", (*int)(nil),
			int64(0), StatusMissing, &msg, 0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewLoadLog(mock).Record(context.Background(), runID, FileResult{
		Dataset: "states",
		File:    "tl_2024_us_state.shp",
		Table:   "tiger_states",
		Missing: true,
		Err:     errors.New(msg),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadLog_RecordError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO tiger_meta.load_log").WillReturnError(fmt.Errorf(`relation "tiger_meta.load_log" does not exist`))

	err = NewLoadLog(mock).Record(context.Background(), uuid.New(), FileResult{File: "a.shp"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record load of a.shp")
}

func TestLoadLog_Latest(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	runID := uuid.New()
	srid := 4269
	failure := "tiger: open shapefile"
	now := time.Now()
	mock.ExpectQuery("SELECT DISTINCT ON \\(table_name, file_name\\)").
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "dataset", "file_name", "table_name", "mode", "source_srid",
			"records", "status", "error", "duration_ms", "loaded_at",
		}).
			AddRow(runID, "counties", "tl_2024_us_county.shp", "tiger_counties", "replace", &srid,
				int64(3235), StatusLoaded, (*string)(nil), 8200, now).
			AddRow(runID, "states", "tl_2024_us_state.shp", "tiger_states", "replace", (*int)(nil),
				int64(0), StatusFailed, &failure, 12, now))

	entries, err := NewLoadLog(mock).Latest(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "tiger_counties", entries[0].TableName)
	assert.Equal(t, 4269, *entries[0].SourceSRID)
	assert.Nil(t, entries[0].Error)
	assert.Equal(t, StatusFailed, entries[1].Status)
	assert.Equal(t, failure, *entries[1].Error)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFileResult_Status(t *testing.T) {
	assert.Equal(t, StatusLoaded, FileResult{}.Status())
	assert.Equal(t, StatusFailed, FileResult{Err: errors.New("x")}.Status())
	assert.Equal(t, StatusMissing, FileResult{Missing: true, Err: errors.New("x")}.Status())
}
