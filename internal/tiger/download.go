package tiger

import (
	"archive/zip"
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// FetchOptions configures a download run.
type FetchOptions struct {
	Dir         string    // destination directory for ZIPs and extracted files
	Year        int       // TIGER/Line vintage
	Datasets    []Dataset // empty = full catalog
	States      []string  // FIPS codes for multi-file datasets; empty = all
	Concurrency int       // parallel downloads (default 3)
	RatePerSec  float64   // request rate limit (default 2)
	BaseURL     string    // default CensusBaseURL
	Client      *http.Client
}

// FetchResult reports one archive.
type FetchResult struct {
	URL       string
	ZipPath   string
	Skipped   bool // archive already on disk
	Extracted []string
}

// Fetch downloads every archive the load flow expects into opts.Dir and
// extracts the entries flat next to them. Archives already present are not
// downloaded again. The first failure cancels the remaining downloads.
func Fetch(ctx context.Context, opts FetchOptions) ([]FetchResult, error) {
	if opts.Year == 0 {
		opts.Year = 2024
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if len(opts.Datasets) == 0 {
		opts.Datasets = Datasets
	}
	if len(opts.States) == 0 {
		opts.States = AllStateFIPS()
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 3
	}
	if opts.RatePerSec <= 0 {
		opts.RatePerSec = 2
	}
	if opts.BaseURL == "" {
		opts.BaseURL = CensusBaseURL
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: 10 * time.Minute}
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, eris.Wrap(err, "tiger: create dest dir")
	}

	var urls []string
	for _, d := range opts.Datasets {
		if !d.Multi {
			urls = append(urls, d.downloadURL(opts.BaseURL, opts.Year, ""))
			continue
		}
		for _, fips := range opts.States {
			urls = append(urls, d.downloadURL(opts.BaseURL, opts.Year, fips))
		}
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RatePerSec), 1)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	var mu sync.Mutex
	results := make([]FetchResult, 0, len(urls))
	for _, u := range urls {
		g.Go(func() error {
			res, err := fetchOne(gctx, opts, limiter, u)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func fetchOne(ctx context.Context, opts FetchOptions, limiter *rate.Limiter, url string) (FetchResult, error) {
	log := zap.L().With(
		zap.String("component", "tiger.download"),
		zap.String("url", url),
	)

	zipName := url[strings.LastIndex(url, "/")+1:]
	res := FetchResult{URL: url, ZipPath: filepath.Join(opts.Dir, zipName)}

	if info, err := os.Stat(res.ZipPath); err == nil && info.Size() > 0 {
		log.Debug("zip already exists, skipping download", zap.String("path", res.ZipPath))
		res.Skipped = true
	} else {
		if err := limiter.Wait(ctx); err != nil {
			return res, eris.Wrap(err, "tiger: rate limit wait")
		}
		log.Info("downloading TIGER archive")
		if err := downloadFile(ctx, opts.Client, url, res.ZipPath); err != nil {
			return res, eris.Wrapf(err, "tiger: download %s", zipName)
		}
	}

	names, err := extractZIP(res.ZipPath, opts.Dir)
	if err != nil {
		return res, eris.Wrapf(err, "tiger: extract %s", zipName)
	}
	res.Extracted = names
	return res, nil
}

// downloadFile writes the body of url to dest. A partial file is removed on
// failure so that the next run retries it.
func downloadFile(ctx context.Context, client *http.Client, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return eris.Wrap(err, "build request")
	}

	resp, err := client.Do(req)
	if err != nil {
		return eris.Wrap(err, "download")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("download returned status %d", resp.StatusCode)
	}

	f, err := os.Create(dest)
	if err != nil {
		return eris.Wrap(err, "create file")
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(dest)
		return eris.Wrap(err, "write file")
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return eris.Wrap(err, "close file")
	}
	return nil
}

// extractZIP extracts the file entries of a ZIP archive into destDir,
// dropping any directory structure. Returns the extracted base names.
func extractZIP(zipPath, destDir string) ([]string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	var names []string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		if name == "." || name == ".." || name == string(filepath.Separator) {
			continue
		}
		if err := extractEntry(f, filepath.Join(destDir, name)); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

func extractEntry(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "create %s", destPath)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "extract %s", f.Name)
	}
	return out.Close()
}
