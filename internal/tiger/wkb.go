package tiger

import (
	"math"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// EncodeEWKB encodes a geometry as little-endian EWKB tagged with srid.
// Returns nil, nil for a nil geometry so the column is written as NULL.
func EncodeEWKB(g geom.T, srid int) ([]byte, error) {
	if g == nil {
		return nil, nil
	}

	g, err := withSRID(g, srid)
	if err != nil {
		return nil, err
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "tiger: encode EWKB")
	}
	return data, nil
}

// withSRID tags a geometry with an SRID in place.
func withSRID(g geom.T, srid int) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return t.SetSRID(srid), nil
	case *geom.MultiPoint:
		return t.SetSRID(srid), nil
	case *geom.LineString:
		return t.SetSRID(srid), nil
	case *geom.MultiLineString:
		return t.SetSRID(srid), nil
	case *geom.Polygon:
		return t.SetSRID(srid), nil
	case *geom.MultiPolygon:
		return t.SetSRID(srid), nil
	case *geom.GeometryCollection:
		return t.SetSRID(srid), nil
	default:
		return nil, eris.Errorf("tiger: unsupported geometry type %T", g)
	}
}

// ShapeToGeom converts a go-shp shape to a go-geom geometry. Z and M values
// are dropped. Returns nil, nil for null or empty shapes.
func ShapeToGeom(shape shp.Shape) (geom.T, error) {
	switch s := shape.(type) {
	case nil, *shp.Null:
		return nil, nil

	case *shp.Point:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointZ:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil
	case *shp.PointM:
		return geom.NewPointFlat(geom.XY, []float64{s.X, s.Y}), nil

	case *shp.MultiPoint:
		return multiPoint(s.Points), nil
	case *shp.MultiPointZ:
		return multiPoint(s.Points), nil
	case *shp.MultiPointM:
		return multiPoint(s.Points), nil

	case *shp.PolyLine:
		return multiLineString(s.Parts, s.Points), nil
	case *shp.PolyLineZ:
		return multiLineString(s.Parts, s.Points), nil
	case *shp.PolyLineM:
		return multiLineString(s.Parts, s.Points), nil

	case *shp.Polygon:
		return multiPolygon(s.Parts, s.Points), nil
	case *shp.PolygonZ:
		return multiPolygon(s.Parts, s.Points), nil
	case *shp.PolygonM:
		return multiPolygon(s.Parts, s.Points), nil

	default:
		return nil, eris.Errorf("tiger: unsupported shape type %T", shape)
	}
}

func multiPoint(points []shp.Point) geom.T {
	if len(points) == 0 {
		return nil
	}
	return geom.NewMultiPointFlat(geom.XY, flatPoints(points))
}

// multiLineString converts shapefile parts to a geom.MultiLineString.
func multiLineString(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	mls := geom.NewMultiLineString(geom.XY)
	for i, part := range splitParts(parts, points) {
		if len(part) < 2 {
			continue
		}
		if err := mls.Push(geom.NewLineStringFlat(geom.XY, flatPoints(part))); err != nil {
			zap.L().Debug("tiger: skipping malformed linestring part", zap.Int("part", i), zap.Error(err))
		}
	}

	if mls.NumLineStrings() == 0 {
		return nil
	}
	return mls
}

// multiPolygon converts shapefile rings to a geom.MultiPolygon. Shapefiles
// store outer rings clockwise and holes counter-clockwise; a hole belongs
// to the smallest outer ring that contains it. Holes outside every outer
// ring become polygons of their own.
func multiPolygon(parts []int32, points []shp.Point) geom.T {
	if len(parts) == 0 || len(points) == 0 {
		return nil
	}

	var shells, holes [][]shp.Point
	for i, ring := range splitParts(parts, points) {
		if len(ring) < 4 {
			zap.L().Debug("tiger: skipping degenerate ring", zap.Int("part", i), zap.Int("points", len(ring)))
			continue
		}
		if signedArea(ring) > 0 {
			holes = append(holes, ring)
		} else {
			shells = append(shells, ring)
		}
	}
	if len(shells) == 0 {
		shells, holes = holes, nil
	}

	var (
		polys     []*geom.Polygon
		polyRings [][]shp.Point
	)
	addPolygon := func(ring []shp.Point) {
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(geom.NewLinearRingFlat(geom.XY, flatPoints(ring))); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon ring", zap.Error(err))
			return
		}
		polys = append(polys, poly)
		polyRings = append(polyRings, ring)
	}
	for _, ring := range shells {
		addPolygon(ring)
	}

	shellCount := len(polys)
	for _, hole := range holes {
		j := containingShell(polyRings[:shellCount], hole)
		if j < 0 {
			addPolygon(hole)
			continue
		}
		if err := polys[j].Push(geom.NewLinearRingFlat(geom.XY, flatPoints(hole))); err != nil {
			zap.L().Debug("tiger: skipping malformed hole", zap.Error(err))
		}
	}

	if len(polys) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY)
	for i, p := range polys {
		if err := mp.Push(p); err != nil {
			zap.L().Debug("tiger: skipping malformed polygon part", zap.Int("part", i), zap.Error(err))
		}
	}
	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// containingShell returns the index of the smallest shell that contains the
// first vertex of hole, or -1.
func containingShell(shells [][]shp.Point, hole []shp.Point) int {
	p := geom.Coord{hole[0].X, hole[0].Y}
	best, bestArea := -1, 0.0
	for i, shell := range shells {
		if !xy.IsPointInRing(geom.XY, p, flatPoints(shell)) {
			continue
		}
		area := math.Abs(signedArea(shell))
		if best < 0 || area < bestArea {
			best, bestArea = i, area
		}
	}
	return best
}

// splitParts slices points into the parts delimited by the part offsets.
func splitParts(parts []int32, points []shp.Point) [][]shp.Point {
	out := make([][]shp.Point, 0, len(parts))
	for i, start := range parts {
		end := int32(len(points))
		if i+1 < len(parts) {
			end = parts[i+1]
		}
		if start < 0 || start > end || int(end) > len(points) {
			continue
		}
		out = append(out, points[start:end])
	}
	return out
}

// signedArea is the shoelace area of a ring: positive when counter-clockwise.
func signedArea(ring []shp.Point) float64 {
	var sum float64
	for i := 0; i < len(ring)-1; i++ {
		sum += ring[i].X*ring[i+1].Y - ring[i+1].X*ring[i].Y
	}
	return sum / 2
}

func flatPoints(points []shp.Point) []float64 {
	flat := make([]float64, 0, len(points)*2)
	for _, p := range points {
		flat = append(flat, p.X, p.Y)
	}
	return flat
}

// force2D drops Z and M ordinates so geometries fit a 2D geometry column.
func force2D(g geom.T) (geom.T, error) {
	if g == nil || g.Layout() == geom.XY {
		return g, nil
	}

	if gc, ok := g.(*geom.GeometryCollection); ok {
		out := geom.NewGeometryCollection()
		for _, child := range gc.Geoms() {
			flat, err := force2D(child)
			if err != nil {
				return nil, err
			}
			if err := out.Push(flat); err != nil {
				return nil, eris.Wrap(err, "tiger: flatten geometry collection")
			}
		}
		return out.SetSRID(gc.SRID()), nil
	}

	stride := g.Stride()
	src := g.FlatCoords()
	flat := make([]float64, 0, len(src)/stride*2)
	for i := 0; i+1 < len(src); i += stride {
		flat = append(flat, src[i], src[i+1])
	}
	rescale := func(ends []int) []int {
		out := make([]int, len(ends))
		for i, e := range ends {
			out[i] = e / stride * 2
		}
		return out
	}

	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(geom.XY, flat).SetSRID(t.SRID()), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(geom.XY, flat).SetSRID(t.SRID()), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(geom.XY, flat).SetSRID(t.SRID()), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(geom.XY, flat, rescale(t.Ends())).SetSRID(t.SRID()), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(geom.XY, flat, rescale(t.Ends())).SetSRID(t.SRID()), nil
	case *geom.MultiPolygon:
		endss := make([][]int, len(t.Endss()))
		for i, ends := range t.Endss() {
			endss[i] = rescale(ends)
		}
		return geom.NewMultiPolygonFlat(geom.XY, flat, endss).SetSRID(t.SRID()), nil
	default:
		return nil, eris.Errorf("tiger: unsupported geometry type %T", g)
	}
}
