package tiger

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type zipServer struct {
	mu    sync.Mutex
	paths []string
	zip   []byte
	fail  bool
}

func (s *zipServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.paths = append(s.paths, r.URL.Path)
	s.mu.Unlock()
	if s.fail {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	_, _ = w.Write(s.zip)
}

func (s *zipServer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.paths...)
	sort.Strings(out)
	return out
}

func mustDataset(t *testing.T, name string) Dataset {
	t.Helper()
	d, ok := DatasetByName(name)
	require.True(t, ok, name)
	return d
}

func TestFetch_NationalAndPerState(t *testing.T) {
	zs := &zipServer{zip: createTestZIP(t, map[string]string{
		"tl_2024_us_state.shp": "shp",
		"tl_2024_us_state.dbf": "dbf",
	})}
	srv := httptest.NewServer(zs)
	defer srv.Close()

	dir := t.TempDir()
	results, err := Fetch(context.Background(), FetchOptions{
		Dir:        dir,
		Year:       2024,
		Datasets:   []Dataset{mustDataset(t, "states"), mustDataset(t, "places")},
		States:     []string{"11", "72"},
		RatePerSec: 1000,
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	assert.Equal(t, []string{
		"/TIGER2024/PLACE/tl_2024_11_place.zip",
		"/TIGER2024/PLACE/tl_2024_72_place.zip",
		"/TIGER2024/STATE/tl_2024_us_state.zip",
	}, zs.requested())

	assert.FileExists(t, filepath.Join(dir, "tl_2024_us_state.zip"))
	assert.FileExists(t, filepath.Join(dir, "tl_2024_us_state.shp"))
	assert.FileExists(t, filepath.Join(dir, "tl_2024_us_state.dbf"))
}

func TestFetch_SkipsExistingZip(t *testing.T) {
	zipContent := createTestZIP(t, map[string]string{"tl_2024_us_state.shp": "shp"})
	zs := &zipServer{zip: zipContent}
	srv := httptest.NewServer(zs)
	defer srv.Close()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tl_2024_us_state.zip"), zipContent, 0o644))

	results, err := Fetch(context.Background(), FetchOptions{
		Dir:        dir,
		Datasets:   []Dataset{mustDataset(t, "states")},
		RatePerSec: 1000,
		BaseURL:    srv.URL,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, []string{"tl_2024_us_state.shp"}, results[0].Extracted)
	assert.Empty(t, zs.requested())
}

func TestFetch_ServerError(t *testing.T) {
	zs := &zipServer{fail: true}
	srv := httptest.NewServer(zs)
	defer srv.Close()

	dir := t.TempDir()
	_, err := Fetch(context.Background(), FetchOptions{
		Dir:        dir,
		Datasets:   []Dataset{mustDataset(t, "states")},
		RatePerSec: 1000,
		BaseURL:    srv.URL,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.NoFileExists(t, filepath.Join(dir, "tl_2024_us_state.zip"))
}

func TestFetch_ContextCanceled(t *testing.T) {
	zs := &zipServer{zip: createTestZIP(t, map[string]string{"a.shp": "shp"})}
	srv := httptest.NewServer(zs)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Fetch(ctx, FetchOptions{
		Dir:      t.TempDir(),
		Datasets: []Dataset{mustDataset(t, "states")},
		BaseURL:  srv.URL,
	})
	assert.Error(t, err)
}

func TestExtractZIP_Flattens(t *testing.T) {
	files := map[string]string{
		"nested/dir/file1.txt": "content1",
		"file2.shp":            "shapefile content",
	}
	zipContent := createTestZIP(t, files)

	zipPath := filepath.Join(t.TempDir(), "test.zip")
	require.NoError(t, os.WriteFile(zipPath, zipContent, 0o644))

	extractDir := t.TempDir()
	names, err := extractZIP(zipPath, extractDir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"file1.txt", "file2.shp"}, names)

	for name, expectedContent := range files {
		data, readErr := os.ReadFile(filepath.Join(extractDir, filepath.Base(name)))
		require.NoError(t, readErr)
		assert.Equal(t, expectedContent, string(data))
	}
}

func TestExtractZIP_NotAZip(t *testing.T) {
	zipPath := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("not a zip"), 0o644))

	_, err := extractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "open zip"))
}

// createTestZIP creates a ZIP file in memory with the given files.
func createTestZIP(t *testing.T, files map[string]string) []byte {
	t.Helper()

	tmpFile := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(tmpFile)
	require.NoError(t, err)

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, createErr := w.Create(name)
		require.NoError(t, createErr)
		_, writeErr := fw.Write([]byte(content))
		require.NoError(t, writeErr)
	}
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(tmpFile)
	require.NoError(t, err)
	return data
}
