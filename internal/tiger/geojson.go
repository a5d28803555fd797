package tiger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"
)

// geojsonCRS is the legacy (pre-RFC 7946) crs member.
type geojsonCRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
		Code any    `json:"code"` // number or numeric string
	} `json:"properties"`
}

type rawFeature struct {
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties json.RawMessage `json:"properties"`
}

// propertyRecord keeps one feature's properties in source key order.
type propertyRecord struct {
	keys   []string
	values map[string]any
}

// ReadGeoJSON reads a GeoJSON FeatureCollection, Feature or bare geometry
// into a Layer. Features are decoded one at a time from the stream.
func ReadGeoJSON(path string, fallbackSRID int) (*Layer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open GeoJSON %s", filepath.Base(path))
	}
	defer f.Close() //nolint:errcheck

	dec := json.NewDecoder(bufio.NewReaderSize(f, 1<<20))
	dec.UseNumber()

	if err := expectDelim(dec, '{'); err != nil {
		return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s", filepath.Base(path))
	}

	var (
		docType string
		crs     *geojsonCRS
		geoms   []geom.T
		props   []propertyRecord
		rest    = map[string]json.RawMessage{}
	)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s", filepath.Base(path))
		}
		key, _ := tok.(string)

		switch key {
		case "type":
			if err := dec.Decode(&docType); err != nil {
				return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s type", filepath.Base(path))
			}
		case "crs":
			if err := dec.Decode(&crs); err != nil {
				return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s crs", filepath.Base(path))
			}
		case "features":
			if err := expectDelim(dec, '['); err != nil {
				return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s features", filepath.Base(path))
			}
			for dec.More() {
				var rf rawFeature
				if err := dec.Decode(&rf); err != nil {
					return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s feature %d", filepath.Base(path), len(geoms))
				}
				g, p, err := decodeFeature(rf)
				if err != nil {
					return nil, eris.Wrapf(err, "tiger: GeoJSON %s feature %d", filepath.Base(path), len(geoms))
				}
				geoms = append(geoms, g)
				props = append(props, p)
			}
			if err := expectDelim(dec, ']'); err != nil {
				return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s features", filepath.Base(path))
			}
		default:
			var raw json.RawMessage
			if err := dec.Decode(&raw); err != nil {
				return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s member %q", filepath.Base(path), key)
			}
			rest[key] = raw
		}
	}
	if err := expectDelim(dec, '}'); err != nil {
		return nil, eris.Wrapf(err, "tiger: parse GeoJSON %s", filepath.Base(path))
	}

	switch docType {
	case "FeatureCollection":
	case "Feature":
		g, p, err := decodeFeature(rawFeature{Type: docType, Geometry: rest["geometry"], Properties: rest["properties"]})
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: GeoJSON %s", filepath.Base(path))
		}
		geoms = append(geoms, g)
		props = append(props, p)
	case "":
		return nil, eris.Errorf("tiger: GeoJSON %s has no type member", filepath.Base(path))
	default:
		rest["type"], _ = json.Marshal(docType)
		body, err := json.Marshal(rest)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: GeoJSON %s", filepath.Base(path))
		}
		g, err := decodeGeometry(body)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: GeoJSON %s", filepath.Base(path))
		}
		geoms = append(geoms, g)
		props = append(props, propertyRecord{})
	}

	srid, err := geojsonSRID(crs, fallbackSRID, path)
	if err != nil {
		return nil, err
	}

	columns, records := typeProperties(props)
	for i := range records {
		records[i].Geom = geoms[i]
	}

	return &Layer{
		Source:  path,
		Format:  FormatGeoJSON,
		Columns: columns,
		Records: records,
		SRID:    srid,
	}, nil
}

func decodeFeature(rf rawFeature) (geom.T, propertyRecord, error) {
	if rf.Type != "" && rf.Type != "Feature" {
		return nil, propertyRecord{}, eris.Errorf("unexpected member type %q in features", rf.Type)
	}
	g, err := decodeGeometry(rf.Geometry)
	if err != nil {
		return nil, propertyRecord{}, err
	}
	p, err := decodeProperties(rf.Properties)
	if err != nil {
		return nil, propertyRecord{}, err
	}
	return g, p, nil
}

// decodeGeometry decodes a GeoJSON geometry object, flattened to XY.
// null decodes to nil.
func decodeGeometry(raw json.RawMessage) (geom.T, error) {
	if len(bytes.TrimSpace(raw)) == 0 || string(bytes.TrimSpace(raw)) == "null" {
		return nil, nil
	}
	var g geom.T
	if err := geojson.Unmarshal(raw, &g); err != nil {
		return nil, eris.Wrap(err, "decode geometry")
	}
	return force2D(g)
}

// decodeProperties decodes a properties object keeping key order.
func decodeProperties(raw json.RawMessage) (propertyRecord, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return propertyRecord{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := expectDelim(dec, '{'); err != nil {
		return propertyRecord{}, eris.Wrap(err, "decode properties")
	}

	rec := propertyRecord{values: map[string]any{}}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return propertyRecord{}, eris.Wrap(err, "decode properties")
		}
		key, _ := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return propertyRecord{}, eris.Wrapf(err, "decode property %q", key)
		}
		if _, dup := rec.values[key]; !dup {
			rec.keys = append(rec.keys, key)
		}
		rec.values[key] = v
	}
	return rec, nil
}

type valueKind uint8

const (
	kindInt valueKind = 1 << iota
	kindFloat
	kindString
	kindBool
	kindComplex
)

func kindOf(v any) valueKind {
	switch t := v.(type) {
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return kindInt
		}
		return kindFloat
	case string:
		return kindString
	case bool:
		return kindBool
	case map[string]any, []any:
		return kindComplex
	default:
		return 0
	}
}

// typeProperties infers one column per property key (first-seen order) and
// converts every feature's values to that column's type.
func typeProperties(props []propertyRecord) ([]Column, []Record) {
	var keys []string
	index := map[string]int{}
	for _, p := range props {
		for _, k := range p.keys {
			if _, ok := index[k]; !ok {
				index[k] = len(keys)
				keys = append(keys, k)
			}
		}
	}

	kinds := make([]valueKind, len(keys))
	for _, p := range props {
		for k, v := range p.values {
			kinds[index[k]] |= kindOf(v)
		}
	}

	names := columnNames(keys)
	columns := make([]Column, len(keys))
	for i, k := range kinds {
		columns[i] = Column{Name: names[i], Type: columnTypeFor(k)}
	}

	records := make([]Record, len(props))
	for r, p := range props {
		values := make([]any, len(keys))
		for k, v := range p.values {
			i := index[k]
			values[i] = convertProperty(v, columns[i].Type)
		}
		records[r] = Record{Values: values}
	}
	return columns, records
}

func columnTypeFor(k valueKind) ColumnType {
	switch k {
	case kindInt:
		return TypeBigint
	case kindInt | kindFloat, kindFloat:
		return TypeDouble
	case kindBool:
		return TypeBoolean
	case kindComplex:
		return TypeJSONB
	default:
		return TypeText
	}
}

func convertProperty(v any, t ColumnType) any {
	if v == nil {
		return nil
	}
	switch t {
	case TypeBigint:
		n, _ := v.(json.Number).Int64()
		return n
	case TypeDouble:
		f, _ := v.(json.Number).Float64()
		return f
	case TypeBoolean, TypeJSONB:
		return v
	}

	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return nil
		}
		return string(b)
	}
}

// geojsonSRID resolves the legacy crs member. No crs means the RFC 7946
// default and is reported as undeclared (0).
func geojsonSRID(crs *geojsonCRS, fallback int, path string) (int, error) {
	if crs == nil {
		return 0, nil
	}
	if strings.EqualFold(crs.Type, "EPSG") {
		if code, ok := crsCode(crs.Properties.Code); ok {
			return code, nil
		}
	}
	if srid, ok := ParseCRSName(crs.Properties.Name); ok {
		return srid, nil
	}

	zap.L().Warn("tiger: unrecognised GeoJSON crs, assuming fallback SRID",
		zap.String("file", filepath.Base(path)),
		zap.String("crs", crs.Properties.Name),
		zap.Int("fallback_srid", fallback),
	)
	return fallback, nil
}

// crsCode reads the legacy EPSG crs code, which writers emit as either a
// number or a string.
func crsCode(v any) (int, bool) {
	var s string
	switch c := v.(type) {
	case json.Number:
		s = c.String()
	case string:
		s = strings.TrimSpace(c)
	case float64:
		s = strconv.FormatFloat(c, 'f', -1, 64)
	default:
		return 0, false
	}
	code, err := strconv.Atoi(s)
	if err != nil || code <= 0 {
		return 0, false
	}
	return code, true
}

// ParseCRSName parses OGC CRS names such as "EPSG:4269",
// "urn:ogc:def:crs:EPSG::4269" and "urn:ogc:def:crs:OGC:1.3:CRS84".
func ParseCRSName(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, false
	}
	upper := strings.ToUpper(name)
	if strings.HasSuffix(upper, "CRS84") {
		return WGS84, true
	}
	if !strings.Contains(upper, "EPSG") {
		return 0, false
	}
	code := name[strings.LastIndex(name, ":")+1:]
	srid, err := strconv.Atoi(code)
	if err != nil || srid <= 0 {
		return 0, false
	}
	return srid, true
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return eris.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}
