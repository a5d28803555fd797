package tiger

import (
	"os"
	"path/filepath"
)

// recordingReporter captures reporter events for assertions.
type recordingReporter struct {
	NopReporter
	datasets   map[string]int
	fallbacks  []string
	notFound   []string
	failed     []string
	loaded     []string
	companions map[string][]string
}

func (r *recordingReporter) DatasetStart(d Dataset, files int) {
	if r.datasets == nil {
		r.datasets = map[string]int{}
	}
	r.datasets[d.Name] = files
}

func (r *recordingReporter) Fallback(f ResolvedFile) { r.fallbacks = append(r.fallbacks, f.Name()) }

func (r *recordingReporter) NotFound(name string) { r.notFound = append(r.notFound, name) }

func (r *recordingReporter) Loaded(res FileResult) { r.loaded = append(r.loaded, res.File) }

func (r *recordingReporter) Failed(res FileResult) { r.failed = append(r.failed, res.File) }

func (r *recordingReporter) MissingCompanions(f ResolvedFile, missing []string) {
	if r.companions == nil {
		r.companions = map[string][]string{}
	}
	r.companions[f.Name()] = missing
}

func removeFile(dir, name string) error {
	return os.Remove(filepath.Join(dir, name))
}
