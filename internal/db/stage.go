package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
)

// StageConfig describes a staged insert: rows are COPYed into a temporary
// table and then moved into the target with per-column SELECT expressions.
type StageConfig struct {
	Target    pgx.Identifier    // destination table, e.g. {"public", "tiger_places"}
	Stage     string            // temp table name
	Columns   []string          // columns in row order
	Types     []string          // SQL type per column for the temp table
	Transform map[string]string // column -> SQL expression over the staged column; nil = copy as-is
	BatchSize int
}

// StageAndInsert performs a staged insert inside an open transaction:
//  1. Creates a temp table (ON COMMIT DROP) with the given column types
//  2. COPY rows into the temp table
//  3. INSERT INTO target SELECT <exprs> FROM temp
//
// The caller owns the transaction. Returns the number of rows inserted.
func StageAndInsert(ctx context.Context, tx Execer, cfg StageConfig, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	if len(cfg.Columns) == 0 {
		return 0, eris.New("db: stage: no columns specified")
	}
	if len(cfg.Columns) != len(cfg.Types) {
		return 0, eris.Errorf("db: stage: %d columns but %d types", len(cfg.Columns), len(cfg.Types))
	}

	stage := pgx.Identifier{cfg.Stage}.Sanitize()

	defs := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		defs[i] = fmt.Sprintf("%s %s", pgx.Identifier{c}.Sanitize(), cfg.Types[i])
	}
	createSQL := fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP", stage, strings.Join(defs, ", "))
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return 0, eris.Wrapf(err, "db: stage: create temp table for %s", cfg.Target.Sanitize())
	}

	if _, err := CopyFrom(ctx, tx, pgx.Identifier{cfg.Stage}, cfg.Columns, rows, cfg.BatchSize); err != nil {
		return 0, eris.Wrapf(err, "db: stage: COPY into temp table for %s", cfg.Target.Sanitize())
	}

	exprs := make([]string, len(cfg.Columns))
	for i, c := range cfg.Columns {
		if expr, ok := cfg.Transform[c]; ok {
			exprs[i] = expr
			continue
		}
		exprs[i] = pgx.Identifier{c}.Sanitize()
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) SELECT %s FROM %s",
		cfg.Target.Sanitize(),
		QuoteAndJoin(cfg.Columns),
		strings.Join(exprs, ", "),
		stage,
	)
	tag, err := tx.Exec(ctx, insertSQL)
	if err != nil {
		return 0, eris.Wrapf(err, "db: stage: INSERT SELECT into %s", cfg.Target.Sanitize())
	}

	return tag.RowsAffected(), nil
}

// QuoteAndJoin quotes each column name and joins with commas.
func QuoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
