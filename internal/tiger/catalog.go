// Package tiger loads Census TIGER/Line boundary files (shapefiles or
// GeoJSON) into PostGIS tables with WGS84 geometry.
package tiger

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Dataset describes one category of TIGER boundaries and the table it lands in.
type Dataset struct {
	Name       string // e.g., "states"
	Product    string // Census product directory, e.g., "STATE"
	File       string // file stem for national files, e.g., "state" → tl_2024_us_state
	Table      string // target table, e.g., "tiger_states"
	GeoIDField string // attribute holding the GEOID, indexed after load
	Multi      bool   // true = one file per state, merged into a single table
}

// Datasets lists the boundary categories in load order. The multi-file
// places dataset is loaded last.
var Datasets = []Dataset{
	{Name: "states", Product: "STATE", File: "state", Table: "tiger_states", GeoIDField: "GEOID"},
	{Name: "counties", Product: "COUNTY", File: "county", Table: "tiger_counties", GeoIDField: "GEOID"},
	{Name: "cbsa", Product: "CBSA", File: "cbsa", Table: "tiger_cbsa", GeoIDField: "GEOID"},
	{Name: "zcta", Product: "ZCTA520", File: "zcta520", Table: "tiger_zcta", GeoIDField: "GEOID20"},
	{Name: "places", Product: "PLACE", File: "place", Table: "tiger_places", GeoIDField: "GEOID", Multi: true},
}

// FileName returns the shapefile name for a national dataset, or the glob
// pattern for a multi-file dataset.
func (d Dataset) FileName(year int) string {
	if d.Multi {
		return fmt.Sprintf("tl_%d_*_%s.shp", year, d.File)
	}
	return fmt.Sprintf("tl_%d_us_%s.shp", year, d.File)
}

// StateFileName returns the per-state file name of a multi-file dataset.
func (d Dataset) StateFileName(year int, fips string) string {
	return fmt.Sprintf("tl_%d_%s_%s.shp", year, fips, d.File)
}

// CensusBaseURL is the root of the Census Bureau TIGER/Line download tree.
const CensusBaseURL = "https://www2.census.gov/geo/tiger"

// ZipName returns the download archive name. National datasets use
// tl_{year}_us_{file}.zip; per-state use tl_{year}_{fips}_{file}.zip.
func (d Dataset) ZipName(year int, stateFIPS string) string {
	if !d.Multi {
		return fmt.Sprintf("tl_%d_us_%s.zip", year, d.File)
	}
	return fmt.Sprintf("tl_%d_%s_%s.zip", year, stateFIPS, d.File)
}

// DownloadURL builds the Census Bureau download URL for a dataset ZIP.
func (d Dataset) DownloadURL(year int, stateFIPS string) string {
	return d.downloadURL(CensusBaseURL, year, stateFIPS)
}

func (d Dataset) downloadURL(base string, year int, stateFIPS string) string {
	return fmt.Sprintf("%s/TIGER%d/%s/%s", strings.TrimSuffix(base, "/"), year, d.Product, d.ZipName(year, stateFIPS))
}

// DatasetByName looks up a dataset by name (case-insensitive).
func DatasetByName(name string) (Dataset, bool) {
	for _, d := range Datasets {
		if strings.EqualFold(d.Name, name) {
			return d, true
		}
	}
	return Dataset{}, false
}

// SelectDatasets returns the named datasets in catalog order, or the full
// catalog when names is empty.
func SelectDatasets(names []string) ([]Dataset, error) {
	if len(names) == 0 {
		return Datasets, nil
	}

	want := make(map[string]bool, len(names))
	for _, n := range names {
		d, ok := DatasetByName(strings.TrimSpace(n))
		if !ok {
			return nil, eris.Errorf("tiger: unknown dataset %q", n)
		}
		want[d.Name] = true
	}

	var out []Dataset
	for _, d := range Datasets {
		if want[d.Name] {
			out = append(out, d)
		}
	}
	return out, nil
}

// FIPSCodes maps state abbreviation to 2-digit FIPS code for all 50 states,
// DC and Puerto Rico.
var FIPSCodes = map[string]string{
	"AL": "01", "AK": "02", "AZ": "04", "AR": "05", "CA": "06",
	"CO": "08", "CT": "09", "DE": "10", "DC": "11", "FL": "12",
	"GA": "13", "HI": "15", "ID": "16", "IL": "17", "IN": "18",
	"IA": "19", "KS": "20", "KY": "21", "LA": "22", "ME": "23",
	"MD": "24", "MA": "25", "MI": "26", "MN": "27", "MS": "28",
	"MO": "29", "MT": "30", "NE": "31", "NV": "32", "NH": "33",
	"NJ": "34", "NM": "35", "NY": "36", "NC": "37", "ND": "38",
	"OH": "39", "OK": "40", "OR": "41", "PA": "42", "RI": "44",
	"SC": "45", "SD": "46", "TN": "47", "TX": "48", "UT": "49",
	"VT": "50", "VA": "51", "WA": "53", "WV": "54", "WI": "55",
	"WY": "56", "PR": "72",
}

// abbrByFIPS is a reverse lookup from FIPS code to state abbreviation.
var abbrByFIPS map[string]string

func init() {
	abbrByFIPS = make(map[string]string, len(FIPSCodes))
	for abbr, fips := range FIPSCodes {
		abbrByFIPS[fips] = abbr
	}
}

// AbbrFromFIPS returns the state abbreviation for a FIPS code.
func AbbrFromFIPS(fips string) (string, bool) {
	abbr, ok := abbrByFIPS[fips]
	return abbr, ok
}

// AllStateFIPS returns a sorted list of all state FIPS codes.
func AllStateFIPS() []string {
	codes := make([]string, 0, len(FIPSCodes))
	for _, fips := range FIPSCodes {
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes
}

// StateFIPS resolves state abbreviations to sorted FIPS codes. An empty list
// means every state.
func StateFIPS(abbrs []string) ([]string, error) {
	if len(abbrs) == 0 {
		return AllStateFIPS(), nil
	}
	codes := make([]string, 0, len(abbrs))
	for _, a := range abbrs {
		fips, ok := FIPSCodes[strings.ToUpper(strings.TrimSpace(a))]
		if !ok {
			return nil, eris.Errorf("tiger: unknown state %q", a)
		}
		codes = append(codes, fips)
	}
	sort.Strings(codes)
	return codes, nil
}

// stateFromFileName extracts the state abbreviation from a per-state TIGER
// file name such as tl_2024_12_place.shp. Returns "" when it cannot.
func stateFromFileName(name string) string {
	parts := strings.Split(name, "_")
	if len(parts) < 4 || parts[0] != "tl" {
		return ""
	}
	abbr, _ := AbbrFromFIPS(parts[2])
	return abbr
}
