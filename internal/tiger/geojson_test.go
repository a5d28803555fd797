package tiger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
)

func TestReadGeoJSON_FeatureCollection(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tl_2024_us_state.geojson", twoFeatureGeoJSON)

	layer, err := ReadGeoJSON(path, 4269)
	require.NoError(t, err)

	assert.Equal(t, FormatGeoJSON, layer.Format)
	assert.Equal(t, 0, layer.SRID, "no crs member")
	assert.Equal(t, 2, layer.Len())
	assert.Equal(t, []Column{
		{Name: "geoid", Type: TypeText},
		{Name: "name", Type: TypeText},
		{Name: "aland", Type: TypeBigint},
	}, layer.Columns)
	assert.Equal(t, []any{"02", "Alaska", int64(1478942847588)}, layer.Records[1].Values)

	_, ok := layer.Records[0].Geom.(*geom.Polygon)
	assert.True(t, ok)
	_, ok = layer.Records[1].Geom.(*geom.MultiPolygon)
	assert.True(t, ok)
}

func TestReadGeoJSON_CRS(t *testing.T) {
	tests := []struct {
		name string
		crs  string
		want int
	}{
		{"urn epsg", `{"type":"name","properties":{"name":"urn:ogc:def:crs:EPSG::4269"}}`, 4269},
		{"short epsg", `{"type":"name","properties":{"name":"EPSG:3857"}}`, 3857},
		{"crs84", `{"type":"name","properties":{"name":"urn:ogc:def:crs:OGC:1.3:CRS84"}}`, 4326},
		{"legacy epsg type", `{"type":"EPSG","properties":{"code":26917}}`, 26917},
		{"legacy epsg string code", `{"type":"EPSG","properties":{"code":"4269"}}`, 4269},
		{"legacy epsg bad code uses fallback", `{"type":"EPSG","properties":{"code":"nad"}}`, 4267},
		{"unknown uses fallback", `{"type":"name","properties":{"name":"local"}}`, 4267},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `{"type":"FeatureCollection","crs":` + tt.crs + `,"features":[]}`
			path := writeFile(t, t.TempDir(), "a.geojson", doc)

			layer, err := ReadGeoJSON(path, 4267)
			require.NoError(t, err)
			assert.Equal(t, tt.want, layer.SRID)
			assert.Equal(t, 0, layer.Len())
		})
	}
}

func TestReadGeoJSON_CRSAfterFeatures(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","properties":null,"geometry":{"type":"Point","coordinates":[1,2]}}],` +
		`"crs":{"type":"name","properties":{"name":"EPSG:4269"}}}`
	path := writeFile(t, t.TempDir(), "a.geojson", doc)

	layer, err := ReadGeoJSON(path, 0)
	require.NoError(t, err)
	assert.Equal(t, 4269, layer.SRID)
	assert.Empty(t, layer.Columns)
	assert.Equal(t, 1, layer.Len())
}

func TestReadGeoJSON_SingleFeature(t *testing.T) {
	doc := `{"type":"Feature","properties":{"GEOID":"12"},"geometry":{"type":"Point","coordinates":[-81.5,27.8,12]}}`
	path := writeFile(t, t.TempDir(), "a.geojson", doc)

	layer, err := ReadGeoJSON(path, 0)
	require.NoError(t, err)
	require.Equal(t, 1, layer.Len())
	assert.Equal(t, []any{"12"}, layer.Records[0].Values)
	assert.Equal(t, geom.XY, layer.Records[0].Geom.Layout(), "z dropped")
}

func TestReadGeoJSON_BareGeometry(t *testing.T) {
	doc := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`
	path := writeFile(t, t.TempDir(), "a.geojson", doc)

	layer, err := ReadGeoJSON(path, 0)
	require.NoError(t, err)
	require.Equal(t, 1, layer.Len())
	assert.Empty(t, layer.Columns)
	_, ok := layer.Records[0].Geom.(*geom.Polygon)
	assert.True(t, ok)
}

func TestReadGeoJSON_PropertyTyping(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
		{"type":"Feature","geometry":null,"properties":{"n":1,"f":1,"b":true,"o":{"k":1},"m":"x","geometry":"attr"}},
		{"type":"Feature","geometry":null,"properties":{"n":2,"f":2.5,"b":false,"o":[1,2],"m":3}},
		{"type":"Feature","geometry":null,"properties":{"n":null}}
	]}`
	path := writeFile(t, t.TempDir(), "a.geojson", doc)

	layer, err := ReadGeoJSON(path, 0)
	require.NoError(t, err)

	assert.Equal(t, []Column{
		{Name: "n", Type: TypeBigint},
		{Name: "f", Type: TypeDouble},
		{Name: "b", Type: TypeBoolean},
		{Name: "o", Type: TypeJSONB},
		{Name: "m", Type: TypeText},
		{Name: "geometry_attr", Type: TypeText},
	}, layer.Columns)

	assert.Equal(t, []any{int64(2), 2.5, false, []any{json.Number("1"), json.Number("2")}, "3", nil}, layer.Records[1].Values)
	assert.Equal(t, []any{nil, nil, nil, nil, nil, nil}, layer.Records[2].Values)
	assert.Nil(t, layer.Records[0].Geom)
}

func TestReadGeoJSON_Malformed(t *testing.T) {
	tests := map[string]string{
		"truncated":     `{"type":"FeatureCollection","features":[{"type":"Feature"`,
		"not an object": `[1,2,3]`,
		"no type":       `{"features":[]}`,
		"bad geometry":  `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":{"type":"Blob","coordinates":[]}}]}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "a.geojson", doc)
			_, err := ReadGeoJSON(path, 0)
			assert.Error(t, err)
		})
	}
}

func TestParseCRSName(t *testing.T) {
	srid, ok := ParseCRSName("EPSG:4326")
	assert.True(t, ok)
	assert.Equal(t, 4326, srid)

	_, ok = ParseCRSName("urn:ogc:def:crs:EPSG::abc")
	assert.False(t, ok)

	_, ok = ParseCRSName("")
	assert.False(t, ok)
}
