package tiger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/require"
)

const (
	prjNAD83  = `GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137,298.257222101]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`
	prjUTM15N = `PROJCS["NAD_1983_UTM_Zone_15N",GEOGCS["GCS_North_American_1983",DATUM["D_North_American_1983",SPHEROID["GRS_1980",6378137.0,298.257222101]],PRIMEM["Greenwich",0.0],UNIT["Degree",0.0174532925199433]],PROJECTION["Transverse_Mercator"],PARAMETER["False_Easting",500000.0],PARAMETER["False_Northing",0.0],PARAMETER["Central_Meridian",-93.0],PARAMETER["Scale_Factor",0.9996],PARAMETER["Latitude_Of_Origin",0.0],UNIT["Meter",1.0]]`
	prjWGS84  = `GEOGCS["GCS_WGS_1984",DATUM["D_WGS_1984",SPHEROID["WGS_1984",6378137,298.257223563]],PRIMEM["Greenwich",0],UNIT["Degree",0.017453292519943295]]`
)

// fixtureFeature is one polygon feature of a test shapefile.
type fixtureFeature struct {
	GEOID string
	Name  string
	ALand int
	X, Y  float64 // lower-left corner of a unit square
}

// writeShapefile writes a polygon shapefile with GEOID/NAME/ALAND fields
// and returns the .shp path. An empty prj writes no .prj file.
func writeShapefile(t *testing.T, dir, name, prj string, features []fixtureFeature) string {
	t.Helper()

	path := filepath.Join(dir, name)
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)

	require.NoError(t, w.SetFields([]shp.Field{
		shp.StringField("GEOID", 10),
		shp.StringField("NAME", 40),
		shp.NumberField("ALAND", 14),
	}))

	for _, f := range features {
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
			{X: f.X, Y: f.Y},
			{X: f.X, Y: f.Y + 1},
			{X: f.X + 1, Y: f.Y + 1},
			{X: f.X + 1, Y: f.Y},
			{X: f.X, Y: f.Y},
		}}))
		row := int(w.Write(&poly))
		require.NoError(t, w.WriteAttribute(row, 0, f.GEOID))
		require.NoError(t, w.WriteAttribute(row, 1, f.Name))
		require.NoError(t, w.WriteAttribute(row, 2, f.ALand))
	}
	w.Close()

	// go-shp's writer names the attribute file "<base>dbf".
	base := strings.TrimSuffix(path, ".shp")
	if _, err := os.Stat(base + "dbf"); err == nil {
		require.NoError(t, os.Rename(base+"dbf", base+".dbf"))
	}
	require.FileExists(t, base+".dbf")

	if prj != "" {
		require.NoError(t, os.WriteFile(base+".prj", []byte(prj), 0o644))
	}
	return path
}

// writeFile writes content to dir/name and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const twoFeatureGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"GEOID": "01", "NAME": "Alabama", "ALAND": 131185042550},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]}},
    {"type": "Feature", "properties": {"GEOID": "02", "NAME": "Alaska", "ALAND": 1478942847588},
     "geometry": {"type": "MultiPolygon", "coordinates": [[[[5,5],[6,5],[6,6],[5,6],[5,5]]]]}}
  ]
}`
