package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// DefaultBatchSize is the number of rows sent per COPY when the caller does
// not choose one.
const DefaultBatchSize = 50000

// CopyFrom bulk-inserts rows into a table using PostgreSQL COPY protocol,
// splitting them into batches of batchSize rows (0 = DefaultBatchSize).
// Returns the number of rows copied before any error.
func CopyFrom(ctx context.Context, ex Execer, table pgx.Identifier, columns []string, rows [][]any, batchSize int) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	name := table.Sanitize()
	log := zap.L().With(
		zap.String("component", "db.copy"),
		zap.String("table", name),
		zap.Int("total_rows", len(rows)),
	)

	var total int64
	for i := 0; i < len(rows); i += batchSize {
		end := min(i+batchSize, len(rows))

		n, err := ex.CopyFrom(ctx, table, columns, pgx.CopyFromRows(rows[i:end]))
		if err != nil {
			return total, eris.Wrapf(err, "db: COPY INTO %s (batch %d-%d)", name, i, end)
		}
		total += n

		log.Debug("batch copied",
			zap.Int("batch_start", i),
			zap.Int("batch_end", end),
			zap.Int64("batch_rows", n),
		)
	}

	return total, nil
}
