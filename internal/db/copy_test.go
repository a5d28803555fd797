package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFrom_EmptyRows(t *testing.T) {
	n, err := CopyFrom(context.TODO(), nil, pgx.Identifier{"test_table"}, []string{"a", "b"}, nil, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFrom_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"public", "test_table"}, []string{"a", "b"}).WillReturnResult(3)

	rows := [][]any{{1, "x"}, {2, "y"}, {3, "z"}}
	n, err := CopyFrom(context.Background(), mock, pgx.Identifier{"public", "test_table"}, []string{"a", "b"}, rows, 0)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_BatchSplitting(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// 5 rows with batch size 2 = 3 COPY calls (2+2+1).
	mock.ExpectCopyFrom(pgx.Identifier{"t"}, []string{"id"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"t"}, []string{"id"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"t"}, []string{"id"}).WillReturnResult(1)

	rows := [][]any{{1}, {2}, {3}, {4}, {5}}
	n, err := CopyFrom(context.Background(), mock, pgx.Identifier{"t"}, []string{"id"}, rows, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFrom_ErrorReportsPartialCount(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"t"}, []string{"id"}).WillReturnResult(2)
	mock.ExpectCopyFrom(pgx.Identifier{"t"}, []string{"id"}).WillReturnError(fmt.Errorf("copy failed"))

	rows := [][]any{{1}, {2}, {3}}
	n, err := CopyFrom(context.Background(), mock, pgx.Identifier{"t"}, []string{"id"}, rows, 2)
	require.Error(t, err)
	assert.Equal(t, int64(2), n)
	assert.Contains(t, err.Error(), `COPY INTO "t" (batch 2-3)`)
	assert.NoError(t, mock.ExpectationsWereMet())
}
