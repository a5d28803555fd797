package tiger

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ResolvedFile is a dataset file found on disk.
type ResolvedFile struct {
	Path     string
	Format   Format
	Fallback bool // GeoJSON used because the shapefile was absent
}

// Name returns the base file name.
func (f ResolvedFile) Name() string {
	return filepath.Base(f.Path)
}

// ResolveNational locates a national dataset file in dir. The shapefile is
// preferred; a same-named .geojson is the fallback. ok is false when
// neither exists.
func ResolveNational(dir string, d Dataset, year int) (ResolvedFile, bool) {
	shpPath := filepath.Join(dir, d.FileName(year))
	if fileExists(shpPath) {
		return ResolvedFile{Path: shpPath, Format: FormatForPath(shpPath)}, true
	}

	geojsonPath := strings.TrimSuffix(shpPath, ".shp") + ".geojson"
	if fileExists(geojsonPath) {
		return ResolvedFile{Path: geojsonPath, Format: FormatForPath(geojsonPath), Fallback: true}, true
	}

	return ResolvedFile{}, false
}

// ResolveMulti locates every per-state file of a multi-file dataset, sorted
// by name. Shapefiles are used when any match; otherwise GeoJSON files.
func ResolveMulti(dir string, d Dataset, year int) ([]ResolvedFile, error) {
	pattern := filepath.Join(dir, d.FileName(year))

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "tiger: glob %s", pattern)
	}
	fallback := false

	if len(matches) == 0 {
		geojsonPattern := strings.TrimSuffix(pattern, ".shp") + ".geojson"
		matches, err = filepath.Glob(geojsonPattern)
		if err != nil {
			return nil, eris.Wrapf(err, "tiger: glob %s", geojsonPattern)
		}
		fallback = true
	}

	sort.Strings(matches)
	files := make([]ResolvedFile, 0, len(matches))
	for _, m := range matches {
		if !fileExists(m) {
			continue
		}
		files = append(files, ResolvedFile{Path: m, Format: FormatForPath(m), Fallback: fallback})
	}
	return files, nil
}

// FormatForPath infers the file format from its extension.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".geojson", ".json":
		return FormatGeoJSON
	default:
		return FormatShapefile
	}
}

// MissingCompanions lists the shapefile companion files (SHX index, DBF
// attributes) that are not present next to shpPath.
func MissingCompanions(shpPath string) []string {
	base := strings.TrimSuffix(shpPath, filepath.Ext(shpPath))

	var missing []string
	for _, ext := range []string{"shx", "dbf"} {
		if fileExists(base+"."+ext) || fileExists(base+"."+strings.ToUpper(ext)) {
			continue
		}
		missing = append(missing, strings.ToUpper(ext))
	}
	return missing
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
