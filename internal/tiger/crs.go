package tiger

// Projection describes how a layer's geometries reach WGS84.
type Projection struct {
	SourceSRID int    // SRID the geometries are encoded with
	Transform  bool   // reproject to WGS84 while writing
	Assumed    bool   // the source declared no CRS and WGS84 was assumed
	SourceWKT  string // source CRS as WKT when it has no EPSG code
}

// Normalize applies the CRS policy to a layer. A layer without a declared
// CRS is assumed to be WGS84; any other CRS is reprojected; WGS84 is left
// unchanged.
func Normalize(l *Layer) Projection {
	if l.SRID == 0 && l.CRSWKT != "" {
		return Projection{Transform: true, SourceWKT: l.CRSWKT}
	}

	switch l.SRID {
	case 0:
		l.SRID = WGS84
		return Projection{SourceSRID: WGS84, Assumed: true}
	case WGS84:
		return Projection{SourceSRID: WGS84}
	default:
		return Projection{SourceSRID: l.SRID, Transform: true}
	}
}
