package tiger

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-geom"
)

// WGS84 is the SRID every loaded geometry is stored in.
const WGS84 = 4326

// Format identifies the on-disk encoding of a dataset file.
type Format string

// Supported source formats.
const (
	FormatShapefile Format = "Shapefile"
	FormatGeoJSON   Format = "GeoJSON"
)

// ColumnType is the SQL type an attribute column is created with.
type ColumnType string

// Attribute column types.
const (
	TypeText    ColumnType = "TEXT"
	TypeBigint  ColumnType = "BIGINT"
	TypeDouble  ColumnType = "DOUBLE PRECISION"
	TypeDate    ColumnType = "DATE"
	TypeBoolean ColumnType = "BOOLEAN"
	TypeJSONB   ColumnType = "JSONB"
)

// Column is one attribute column of a Layer.
type Column struct {
	Name string
	Type ColumnType
}

// Record is one feature: attribute values aligned with Layer.Columns and an
// optional geometry.
type Record struct {
	Values []any
	Geom   geom.T
}

// Layer is an in-memory geographic dataset read from a single file.
type Layer struct {
	Source  string
	Format  Format
	Columns []Column
	Records []Record
	SRID    int    // 0 = the source declared no CRS, unless CRSWKT is set
	CRSWKT  string // projected CRS with no EPSG code; SRID is 0
}

// Len returns the number of records.
func (l *Layer) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Records)
}

// ColumnIndex returns the index of a column by case-insensitive name, or -1.
func (l *Layer) ColumnIndex(name string) int {
	for i, c := range l.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// geometryColumn is the name of the geometry column in every target table.
const geometryColumn = "geometry"

// columnNames normalizes raw attribute names: lower-cased, trimmed, unique,
// and never colliding with the geometry column.
func columnNames(raw []string) []string {
	used := make(map[string]bool, len(raw))
	out := make([]string, len(raw))
	for i, r := range raw {
		name := strings.ToLower(strings.TrimSpace(strings.TrimRight(r, "\x00")))
		if name == "" {
			name = fmt.Sprintf("field_%d", i+1)
		}
		if name == geometryColumn {
			name = geometryColumn + "_attr"
		}
		candidate := name
		for n := 1; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// ReadFile reads a resolved dataset file with the reader for its format.
// A file without a format is dispatched on its extension.
func ReadFile(f ResolvedFile, fallbackSRID int) (*Layer, error) {
	format := f.Format
	if format == "" {
		format = FormatForPath(f.Path)
	}
	if format == FormatGeoJSON {
		return ReadGeoJSON(f.Path, fallbackSRID)
	}
	return ReadShapefile(f.Path, fallbackSRID)
}
