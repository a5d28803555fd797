package tiger

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// authorityRe matches WKT1 AUTHORITY["EPSG","4269"] and WKT2 ID["EPSG",4269].
var authorityRe = regexp.MustCompile(`^(?:AUTHORITY|ID)\s*[\[(]\s*"EPSG"\s*,\s*"?(\d+)"?`)

// datumNames maps geographic CRS and datum names to EPSG codes. TIGER .prj
// files carry no AUTHORITY clause, only these names. NAD entries come first
// since NAD WKT may carry a TOWGS84 clause.
var datumNames = []struct {
	needles []string
	srid    int
}{
	{[]string{"NORTH_AMERICAN_1983", "NORTH_AMERICAN_DATUM_1983", "NORTH AMERICAN DATUM 1983", "NAD83", "NAD_1983"}, 4269},
	{[]string{"NORTH_AMERICAN_1927", "NORTH_AMERICAN_DATUM_1927", "NORTH AMERICAN DATUM 1927", "NAD27", "NAD_1927"}, 4267},
	{[]string{"WGS_1984", "WGS 84", "WGS84", "WORLD_GEODETIC_SYSTEM_1984", "WORLD GEODETIC SYSTEM 1984"}, 4326},
}

// crsNameRe captures the quoted name of a geographic CRS or datum node.
var crsNameRe = regexp.MustCompile(`(?:GEOGCS|GEOGCRS|GEODCRS|DATUM)\s*[\[(]\s*"([^"]*)"`)

// projNameRe captures the quoted name of a projected CRS root node.
var projNameRe = regexp.MustCompile(`^PROJ(?:CS|CRS)\s*[\[(]\s*"([^"]*)"`)

// ParseSRID detects the EPSG code of a WKT coordinate reference system.
// ok is false when the CRS is not recognised.
func ParseSRID(wkt string) (srid int, ok bool) {
	wkt = strings.TrimSpace(wkt)
	if wkt == "" {
		return 0, false
	}

	if code, found := rootAuthority(wkt); found {
		return code, true
	}

	upper := strings.ToUpper(wkt)
	switch {
	case strings.HasPrefix(upper, "GEOGCS"), strings.HasPrefix(upper, "GEOGCRS"), strings.HasPrefix(upper, "GEODCRS"):
		return geographicSRID(upper)
	case IsProjectedWKT(upper):
		name := ""
		if m := projNameRe.FindStringSubmatch(upper); m != nil {
			name = m[1]
		}
		for _, needle := range []string{"WEB_MERCATOR", "PSEUDO-MERCATOR", "PSEUDO_MERCATOR", "PSEUDO MERCATOR"} {
			if strings.Contains(name, needle) {
				return 3857, true
			}
		}
	}

	return 0, false
}

// geographicSRID matches the GEOGCS and DATUM names of an upper-cased
// geographic WKT against datumNames.
func geographicSRID(upper string) (int, bool) {
	var names []string
	for _, m := range crsNameRe.FindAllStringSubmatch(upper, -1) {
		names = append(names, m[1])
	}

	for _, d := range datumNames {
		for _, name := range names {
			for _, needle := range d.needles {
				if strings.Contains(name, needle) {
					return d.srid, true
				}
			}
		}
	}
	return 0, false
}

// IsProjectedWKT reports whether wkt describes a projected CRS.
func IsProjectedWKT(wkt string) bool {
	upper := strings.ToUpper(strings.TrimSpace(wkt))
	return strings.HasPrefix(upper, "PROJCS") || strings.HasPrefix(upper, "PROJCRS")
}

// rootAuthority finds an EPSG authority clause that belongs to the root CRS
// node, ignoring the ones nested in its datum or base CRS.
func rootAuthority(wkt string) (int, bool) {
	depth := 0
	inQuote := false
	for i := 0; i < len(wkt); i++ {
		c := wkt[i]
		switch {
		case c == '"':
			inQuote = !inQuote
		case inQuote:
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			depth--
		case depth == 1 && (c == 'A' || c == 'I'):
			m := authorityRe.FindStringSubmatch(wkt[i:])
			if m == nil {
				continue
			}
			code, err := strconv.Atoi(m[1])
			if err != nil {
				return 0, false
			}
			return code, true
		}
	}
	return 0, false
}

// shapefileSRID reads the .prj next to shpPath. It returns 0 when there is
// no .prj. A projected CRS without an EPSG code returns 0 and its WKT, which
// the writer hands to PostGIS as the source projection. Any other
// unrecognised .prj resolves to fallback.
func shapefileSRID(shpPath string, fallback int) (srid int, wkt string, err error) {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))

	var data []byte
	for _, ext := range []string{".prj", ".PRJ"} {
		data, err = os.ReadFile(base + ext)
		if err == nil {
			break
		}
	}
	if err != nil {
		if os.IsNotExist(err) {
			return 0, "", nil
		}
		return 0, "", eris.Wrapf(err, "tiger: read projection for %s", filepath.Base(shpPath))
	}

	text := strings.TrimSpace(string(data))
	srid, ok := ParseSRID(text)
	if ok {
		return srid, "", nil
	}

	if IsProjectedWKT(text) {
		zap.L().Warn("tiger: projected CRS has no EPSG code, reprojecting from WKT",
			zap.String("file", filepath.Base(shpPath)),
		)
		return 0, text, nil
	}

	zap.L().Warn("tiger: unrecognised projection, assuming fallback SRID",
		zap.String("file", filepath.Base(shpPath)),
		zap.Int("fallback_srid", fallback),
	)
	return fallback, "", nil
}
