package tiger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/tigerload/internal/db"
)

// Load log statuses.
const (
	StatusLoaded  = "loaded"
	StatusFailed  = "failed"
	StatusMissing = "missing"
)

// Recorder persists the outcome of each file attempt.
type Recorder interface {
	Record(ctx context.Context, runID uuid.UUID, res FileResult) error
}

// LogEntry is a row from tiger_meta.load_log.
type LogEntry struct {
	RunID      uuid.UUID
	Dataset    string
	FileName   string
	TableName  string
	Mode       string
	SourceSRID *int
	Records    int64
	Status     string
	Error      *string
	DurationMs int
	LoadedAt   time.Time
}

// LoadLog provides read/write access to the tiger_meta.load_log table.
type LoadLog struct {
	pool db.Pool
}

// NewLoadLog creates a LoadLog backed by the given connection pool.
func NewLoadLog(pool db.Pool) *LoadLog {
	return &LoadLog{pool: pool}
}

// Record inserts one file attempt.
func (l *LoadLog) Record(ctx context.Context, runID uuid.UUID, res FileResult) error {
	var srid *int
	if res.SourceSRID != 0 {
		s := res.SourceSRID
		srid = &s
	}
	var errText *string
	if res.Err != nil {
		e := res.Err.Error()
		errText = &e
	}

	_, err := l.pool.Exec(ctx, `
		INSERT INTO tiger_meta.load_log
			(run_id, dataset, file_name, table_name, mode, source_srid, records, status, error, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		runID, res.Dataset, res.File, res.Table, res.Mode.String(), srid,
		res.Records, res.Status(), errText, int(res.Duration.Milliseconds()),
	)
	if err != nil {
		return eris.Wrapf(err, "tiger: record load of %s", res.File)
	}
	return nil
}

// Latest returns the most recent attempt for every file, ordered by table
// and file name.
func (l *LoadLog) Latest(ctx context.Context) ([]LogEntry, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT DISTINCT ON (table_name, file_name)
			run_id, dataset, file_name, table_name, mode, source_srid,
			records, status, error, duration_ms, loaded_at
		FROM tiger_meta.load_log
		ORDER BY table_name, file_name, loaded_at DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: query load log")
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.RunID, &e.Dataset, &e.FileName, &e.TableName, &e.Mode, &e.SourceSRID,
			&e.Records, &e.Status, &e.Error, &e.DurationMs, &e.LoadedAt); err != nil {
			return nil, eris.Wrap(err, "tiger: scan load log row")
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
