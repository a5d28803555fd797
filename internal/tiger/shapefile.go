package tiger

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ReadShapefile reads a shapefile and its .dbf/.prj/.cpg companions into a
// Layer. A .prj that cannot be recognised resolves to fallbackSRID.
func ReadShapefile(shpPath string, fallbackSRID int) (*Layer, error) {
	srid, wkt, err := shapefileSRID(shpPath, fallbackSRID)
	if err != nil {
		return nil, err
	}

	if err := checkShapefile(shpPath); err != nil {
		return nil, err
	}

	reader, err := shp.Open(shpPath)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: open shapefile %s", filepath.Base(shpPath))
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	raw := make([]string, len(fields))
	for i, f := range fields {
		raw[i] = f.String()
	}
	names := columnNames(raw)

	columns := make([]Column, len(fields))
	for i, f := range fields {
		columns[i] = Column{Name: names[i], Type: dbfColumnType(f)}
	}

	dec := dbfDecoder(shpPath)
	layer := &Layer{
		Source:  shpPath,
		Format:  FormatShapefile,
		Columns: columns,
		SRID:    srid,
		CRSWKT:  wkt,
	}

	var badShapes int
	for reader.Next() {
		n, shape := reader.Shape()

		values := make([]any, len(fields))
		for i := range fields {
			values[i] = parseDBFValue(reader.ReadAttribute(n, i), columns[i].Type, dec)
		}

		g, convErr := ShapeToGeom(shape)
		if convErr != nil {
			badShapes++
			g = nil
		}

		layer.Records = append(layer.Records, Record{Values: values, Geom: g})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "tiger: read shapefile %s", filepath.Base(shpPath))
	}

	if badShapes > 0 {
		zap.L().Warn("tiger: unsupported shapes written as NULL geometry",
			zap.String("file", filepath.Base(shpPath)),
			zap.Int("count", badShapes),
		)
	}

	return layer, nil
}

// shapefileFileCode is the big-endian magic number that opens every .shp.
const shapefileFileCode = 9994

const (
	shpHeaderLen       = 100
	shpRecordHeaderLen = 8
	shpMultiHeaderLen  = 44 // shape type, bbox, part and point counts
)

// checkShapefile walks the .shp header and every record header and rejects
// files whose declared part or point counts overrun their record. go-shp
// allocates from those counts without checking them.
func checkShapefile(shpPath string) error {
	name := filepath.Base(shpPath)

	f, err := os.Open(shpPath)
	if err != nil {
		return eris.Wrapf(err, "tiger: open shapefile %s", name)
	}
	defer f.Close() //nolint:errcheck

	info, err := f.Stat()
	if err != nil {
		return eris.Wrapf(err, "tiger: stat shapefile %s", name)
	}
	size := info.Size()

	r := bufio.NewReaderSize(f, 1<<16)

	var header [shpHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return eris.Wrapf(err, "tiger: %s: truncated shapefile header", name)
	}
	if code := binary.BigEndian.Uint32(header[0:4]); code != shapefileFileCode {
		return eris.Errorf("tiger: %s: not a shapefile (file code %d)", name, code)
	}

	// go-shp reads records up to the physical end of file, not the header's
	// declared length, so the walk does too.
	offset := int64(shpHeaderLen)
	var content [shpMultiHeaderLen]byte
	for n := 1; offset < size; n++ {
		if offset+shpRecordHeaderLen > size {
			return eris.Errorf("tiger: %s: record %d: truncated record header", name, n)
		}
		var rh [shpRecordHeaderLen]byte
		if _, err := io.ReadFull(r, rh[:]); err != nil {
			return eris.Wrapf(err, "tiger: %s: record %d", name, n)
		}
		length := int64(binary.BigEndian.Uint32(rh[4:8])) * 2
		if length < 4 || offset+shpRecordHeaderLen+length > size {
			return eris.Errorf("tiger: %s: record %d: content length %d overruns file", name, n, length)
		}

		head := content[:min(length, shpMultiHeaderLen)]
		if _, err := io.ReadFull(r, head); err != nil {
			return eris.Wrapf(err, "tiger: %s: record %d", name, n)
		}
		if err := checkRecordCounts(head, length); err != nil {
			return eris.Wrapf(err, "tiger: %s: record %d", name, n)
		}
		if _, err := r.Discard(int(length - int64(len(head)))); err != nil {
			return eris.Wrapf(err, "tiger: %s: record %d", name, n)
		}
		offset += shpRecordHeaderLen + length
	}
	return nil
}

// checkRecordCounts verifies that the part and point arrays a record
// declares fit in its content length.
func checkRecordCounts(head []byte, length int64) error {
	shapeType := shp.ShapeType(int32(binary.LittleEndian.Uint32(head[0:4])))

	var need int64
	switch shapeType {
	case shp.NULL:
		return nil
	case shp.POINT, shp.POINTM, shp.POINTZ:
		need = 20
	case shp.MULTIPOINT, shp.MULTIPOINTM, shp.MULTIPOINTZ:
		if len(head) < 40 {
			return eris.Errorf("short %d byte multipoint record", length)
		}
		points := int64(int32(binary.LittleEndian.Uint32(head[36:40])))
		if points < 0 {
			return eris.Errorf("negative point count %d", points)
		}
		need = 40 + 16*points
	case shp.POLYLINE, shp.POLYLINEM, shp.POLYLINEZ,
		shp.POLYGON, shp.POLYGONM, shp.POLYGONZ, shp.MULTIPATCH:
		if len(head) < shpMultiHeaderLen {
			return eris.Errorf("short %d byte record", length)
		}
		parts := int64(int32(binary.LittleEndian.Uint32(head[36:40])))
		points := int64(int32(binary.LittleEndian.Uint32(head[40:44])))
		if parts < 0 || points < 0 {
			return eris.Errorf("negative part or point count (%d parts, %d points)", parts, points)
		}
		need = shpMultiHeaderLen + 4*parts + 16*points
		if shapeType == shp.MULTIPATCH {
			need += 4 * parts
		}
	default:
		return eris.Errorf("unknown shape type %d", shapeType)
	}

	if need > length {
		return eris.Errorf("declared geometry needs %d bytes but record holds %d", need, length)
	}
	return nil
}

// dbfColumnType maps a DBF field descriptor to a column type.
func dbfColumnType(f shp.Field) ColumnType {
	switch f.Fieldtype {
	case 'N':
		if f.Precision == 0 && f.Size <= 18 {
			return TypeBigint
		}
		return TypeDouble
	case 'F', 'O':
		return TypeDouble
	case 'D':
		return TypeDate
	case 'L':
		return TypeBoolean
	default:
		return TypeText
	}
}

// parseDBFValue converts a raw DBF attribute. Blank or unparseable values
// are NULL.
func parseDBFValue(raw string, t ColumnType, dec *encoding.Decoder) any {
	val := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if val == "" {
		return nil
	}

	switch t {
	case TypeBigint:
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return nil
		}
		return n
	case TypeDouble:
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil
		}
		return f
	case TypeDate:
		d, err := time.Parse("20060102", val)
		if err != nil {
			return nil
		}
		return d
	case TypeBoolean:
		switch val {
		case "T", "t", "Y", "y":
			return true
		case "F", "f", "N", "n":
			return false
		default:
			return nil
		}
	default:
		return decodeText(val, dec)
	}
}

// decodeText returns val as UTF-8. dec is the code page declared by the
// .cpg; without one, invalid UTF-8 is read as Windows-1252.
func decodeText(val string, dec *encoding.Decoder) string {
	if dec == nil {
		if utf8.ValidString(val) {
			return val
		}
		dec = charmap.Windows1252.NewDecoder()
	}
	out, err := dec.String(val)
	if err != nil {
		return strings.ToValidUTF8(val, "")
	}
	return out
}

// dbfDecoder returns a decoder for the code page named in the .cpg file, or
// nil for UTF-8 and unknown pages.
func dbfDecoder(shpPath string) *encoding.Decoder {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))
	data, err := os.ReadFile(base + ".cpg")
	if err != nil {
		return nil
	}

	switch strings.ToUpper(strings.TrimSpace(string(data))) {
	case "ISO-8859-1", "ISO8859-1", "88591", "LATIN1":
		return charmap.ISO8859_1.NewDecoder()
	case "1252", "CP1252", "WINDOWS-1252", "ANSI 1252":
		return charmap.Windows1252.NewDecoder()
	default:
		return nil
	}
}
