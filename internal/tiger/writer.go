package tiger

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/tigerload/internal/db"
)

// WriteMode selects how a layer lands in its table.
type WriteMode int

// Write modes.
const (
	ModeReplace WriteMode = iota // drop and recreate the table
	ModeAppend                   // create if missing, then add rows
)

func (m WriteMode) String() string {
	if m == ModeAppend {
		return "append"
	}
	return "replace"
}

// Target names the table a layer is written to.
type Target struct {
	Schema     string
	Table      string
	GeoIDField string // indexed when the layer has it; may be empty
}

// Ident returns the schema-qualified identifier.
func (t Target) Ident() pgx.Identifier {
	if t.Schema == "" {
		return pgx.Identifier{t.Table}
	}
	return pgx.Identifier{t.Schema, t.Table}
}

// TableWriter writes a normalized layer to a table and returns the number of
// rows written.
type TableWriter interface {
	Write(ctx context.Context, layer *Layer, proj Projection, target Target, mode WriteMode) (int64, error)
}

// stageTable is the temp table reprojected layers are staged in.
const stageTable = "_tiger_stage"

// PostGISWriter writes layers into PostGIS tables with a
// geometry(Geometry, 4326) column. Each write is one transaction.
type PostGISWriter struct {
	pool      db.Pool
	batchSize int
}

// NewPostGISWriter creates a writer. batchSize 0 uses db.DefaultBatchSize.
func NewPostGISWriter(pool db.Pool, batchSize int) *PostGISWriter {
	return &PostGISWriter{pool: pool, batchSize: batchSize}
}

// Write replaces or appends layer into target. Layers that need
// reprojection are staged and moved with ST_Transform.
func (w *PostGISWriter) Write(ctx context.Context, layer *Layer, proj Projection, target Target, mode WriteMode) (int64, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrapf(err, "tiger: begin write to %s", target.Ident().Sanitize())
	}

	n, err := w.write(ctx, tx, layer, proj, target, mode)
	if err != nil {
		_ = tx.Rollback(ctx)
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrapf(err, "tiger: commit write to %s", target.Ident().Sanitize())
	}
	return n, nil
}

func (w *PostGISWriter) write(ctx context.Context, tx pgx.Tx, layer *Layer, proj Projection, target Target, mode WriteMode) (int64, error) {
	log := zap.L().With(
		zap.String("component", "tiger.writer"),
		zap.String("table", target.Ident().Sanitize()),
		zap.Stringer("mode", mode),
	)

	if err := ensureTable(ctx, tx, layer, target, mode); err != nil {
		return 0, err
	}

	rows, err := layerRows(layer, proj.SourceSRID)
	if err != nil {
		return 0, err
	}

	columns := make([]string, 0, len(layer.Columns)+1)
	for _, c := range layer.Columns {
		columns = append(columns, c.Name)
	}
	columns = append(columns, geometryColumn)

	var n int64
	if proj.Transform {
		types := make([]string, 0, len(columns))
		for _, c := range layer.Columns {
			types = append(types, string(c.Type))
		}
		types = append(types, "geometry")

		n, err = db.StageAndInsert(ctx, tx, db.StageConfig{
			Target:    target.Ident(),
			Stage:     stageTable,
			Columns:   columns,
			Types:     types,
			Transform: map[string]string{geometryColumn: transformExpr(proj, WGS84)},
			BatchSize: w.batchSize,
		}, rows)
	} else {
		n, err = db.CopyFrom(ctx, tx, target.Ident(), columns, rows, w.batchSize)
	}
	if err != nil {
		return 0, err
	}

	if err := createIndexes(ctx, tx, layer, target); err != nil {
		return 0, err
	}

	log.Debug("layer written",
		zap.Int64("rows", n),
		zap.Int("source_srid", proj.SourceSRID),
		zap.Bool("reprojected", proj.Transform),
	)
	return n, nil
}

// ensureTable creates the target table for a write. Replace drops any
// existing table first; append creates it when missing and adds any
// attribute columns the table lacks.
func ensureTable(ctx context.Context, tx pgx.Tx, layer *Layer, target Target, mode WriteMode) error {
	table := target.Ident().Sanitize()

	if mode == ModeReplace {
		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
			return eris.Wrapf(err, "tiger: drop %s", table)
		}
		if _, err := tx.Exec(ctx, createTableSQL(layer, target, false)); err != nil {
			return eris.Wrapf(err, "tiger: create %s", table)
		}
		return nil
	}

	if _, err := tx.Exec(ctx, createTableSQL(layer, target, true)); err != nil {
		return eris.Wrapf(err, "tiger: create %s", table)
	}
	if len(layer.Columns) == 0 {
		return nil
	}

	adds := make([]string, len(layer.Columns))
	for i, c := range layer.Columns {
		adds[i] = fmt.Sprintf("ADD COLUMN IF NOT EXISTS %s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type)
	}
	alterSQL := fmt.Sprintf("ALTER TABLE %s %s", table, strings.Join(adds, ", "))
	if _, err := tx.Exec(ctx, alterSQL); err != nil {
		return eris.Wrapf(err, "tiger: add columns to %s", table)
	}
	return nil
}

func createTableSQL(layer *Layer, target Target, ifNotExists bool) string {
	defs := make([]string, 0, len(layer.Columns)+1)
	for _, c := range layer.Columns {
		defs = append(defs, fmt.Sprintf("%s %s", pgx.Identifier{c.Name}.Sanitize(), c.Type))
	}
	defs = append(defs, fmt.Sprintf("%s geometry(Geometry, %d)", pgx.Identifier{geometryColumn}.Sanitize(), WGS84))

	verb := "CREATE TABLE"
	if ifNotExists {
		verb = "CREATE TABLE IF NOT EXISTS"
	}
	return fmt.Sprintf("%s %s (%s)", verb, target.Ident().Sanitize(), strings.Join(defs, ", "))
}

// createIndexes adds a GiST index on the geometry and a btree index on the
// GEOID column when the layer carries one.
func createIndexes(ctx context.Context, tx pgx.Tx, layer *Layer, target Target) error {
	table := target.Ident().Sanitize()

	gistName := pgx.Identifier{target.Table + "_geometry_idx"}.Sanitize()
	gistSQL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIST (%s)",
		gistName, table, pgx.Identifier{geometryColumn}.Sanitize())
	if _, err := tx.Exec(ctx, gistSQL); err != nil {
		return eris.Wrapf(err, "tiger: create GIST index on %s", table)
	}

	if target.GeoIDField == "" {
		return nil
	}
	idx := layer.ColumnIndex(target.GeoIDField)
	if idx < 0 {
		return nil
	}

	col := layer.Columns[idx].Name
	idxName := pgx.Identifier{fmt.Sprintf("%s_%s_idx", target.Table, col)}.Sanitize()
	idxSQL := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)",
		idxName, table, pgx.Identifier{col}.Sanitize())
	if _, err := tx.Exec(ctx, idxSQL); err != nil {
		return eris.Wrapf(err, "tiger: create %s index on %s", col, table)
	}
	return nil
}

// transformExpr reprojects the staged geometry to srid. A source known only
// by WKT uses the ST_Transform(geometry, from_proj, to_srid) form.
func transformExpr(proj Projection, srid int) string {
	col := pgx.Identifier{geometryColumn}.Sanitize()
	if proj.SourceWKT != "" {
		return fmt.Sprintf("ST_Transform(%s, %s, %d)", col, quoteLiteral(proj.SourceWKT), srid)
	}
	return fmt.Sprintf("ST_Transform(%s, %d)", col, srid)
}

// quoteLiteral renders s as a standard SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// layerRows builds COPY rows: attribute values followed by EWKB geometry
// tagged with srid.
func layerRows(layer *Layer, srid int) ([][]any, error) {
	rows := make([][]any, len(layer.Records))
	for i, rec := range layer.Records {
		row := make([]any, 0, len(layer.Columns)+1)
		row = append(row, rec.Values...)
		for len(row) < len(layer.Columns) {
			row = append(row, nil)
		}

		wkb, err := EncodeEWKB(rec.Geom, srid)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: record %d", i)
		}
		if wkb == nil {
			row = append(row, nil)
		} else {
			row = append(row, wkb)
		}
		rows[i] = row
	}
	return rows, nil
}
