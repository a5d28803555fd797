package tiger

import (
	"context"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Options configures a load run.
type Options struct {
	Dir          string    // directory holding the TIGER files
	Year         int       // TIGER/Line vintage (default 2024)
	Datasets     []Dataset // empty = full catalog
	Schema       string    // target schema (default "public")
	FallbackSRID int       // SRID for unrecognised projections (default 4269)
	DryRun       bool      // read and normalize only
}

// FileResult is the outcome of one file attempt.
type FileResult struct {
	Dataset     string
	File        string
	Table       string
	Format      Format
	Mode        WriteMode
	SourceSRID  int
	Transformed bool
	Missing     bool
	Records     int64
	Duration    time.Duration
	Err         error
}

// Status returns the load log status of the result.
func (r FileResult) Status() string {
	switch {
	case r.Missing:
		return StatusMissing
	case r.Err != nil:
		return StatusFailed
	default:
		return StatusLoaded
	}
}

// Summary totals a load run.
type Summary struct {
	RunID   uuid.UUID
	Loaded  int
	Failed  int
	Records int64
	Results []FileResult
}

func (s *Summary) add(res FileResult) {
	s.Results = append(s.Results, res)
	if res.Err != nil {
		s.Failed++
		return
	}
	s.Loaded++
	s.Records += res.Records
}

// Loader runs the sequential load loop: resolve each expected file, read it,
// normalize its CRS and write it. Per-file failures are counted, never
// returned.
type Loader struct {
	Writer   TableWriter // required unless Options.DryRun
	Recorder Recorder    // optional load log
	Reporter Reporter    // optional progress output
	Options  Options
}

// Run loads every dataset in order and returns the totals. The error is
// non-nil only for invalid options or when ctx is canceled, in which case
// the partial summary is returned too.
func (l *Loader) Run(ctx context.Context) (*Summary, error) {
	opts := l.Options
	if opts.Year == 0 {
		opts.Year = 2024
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Schema == "" {
		opts.Schema = "public"
	}
	if opts.FallbackSRID == 0 {
		opts.FallbackSRID = 4269
	}
	if len(opts.Datasets) == 0 {
		opts.Datasets = Datasets
	}
	if l.Writer == nil && !opts.DryRun {
		return nil, eris.New("tiger: loader has no writer")
	}
	if l.Reporter == nil {
		l.Reporter = NopReporter{}
	}

	summary := &Summary{RunID: uuid.New()}
	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.String("run_id", summary.RunID.String()),
		zap.Int("year", opts.Year),
		zap.String("dir", opts.Dir),
	)
	log.Info("load started", zap.Int("datasets", len(opts.Datasets)), zap.Bool("dry_run", opts.DryRun))

	for _, d := range opts.Datasets {
		if err := ctx.Err(); err != nil {
			return summary, eris.Wrap(err, "tiger: load interrupted")
		}
		if d.Multi {
			l.loadMulti(ctx, opts, d, summary)
		} else {
			l.loadNational(ctx, opts, d, summary)
		}
	}

	if err := ctx.Err(); err != nil {
		return summary, eris.Wrap(err, "tiger: load interrupted")
	}

	log.Info("load complete",
		zap.Int("loaded", summary.Loaded),
		zap.Int("failed", summary.Failed),
		zap.Int64("records", summary.Records),
	)
	return summary, nil
}

func (l *Loader) loadNational(ctx context.Context, opts Options, d Dataset, s *Summary) {
	f, ok := ResolveNational(opts.Dir, d, opts.Year)
	if !ok {
		name := d.FileName(opts.Year)
		l.Reporter.NotFound(name)
		res := FileResult{
			Dataset: d.Name,
			File:    name,
			Table:   d.Table,
			Missing: true,
			Err:     eris.Errorf("tiger: file not found: %s (tried .shp and .geojson)", name),
		}
		zap.L().Warn("tiger: dataset file not found", zap.String("dataset", d.Name), zap.String("file", name))
		s.add(res)
		l.record(ctx, s.RunID, res)
		return
	}

	l.Reporter.DatasetStart(d, 1)
	if f.Fallback {
		l.Reporter.Fallback(f)
	}
	l.loadFile(ctx, opts, d, f, ModeReplace, s)
}

// loadMulti merges every per-state file of d into one table. The first
// file that loads replaces the table; the rest append to it.
func (l *Loader) loadMulti(ctx context.Context, opts Options, d Dataset, s *Summary) {
	files, err := ResolveMulti(opts.Dir, d, opts.Year)
	if err != nil {
		res := FileResult{Dataset: d.Name, File: d.FileName(opts.Year), Table: d.Table, Err: err}
		l.Reporter.Failed(res)
		s.add(res)
		l.record(ctx, s.RunID, res)
		return
	}

	l.Reporter.DatasetStart(d, len(files))
	if len(files) == 0 {
		zap.L().Info("tiger: no files for dataset", zap.String("dataset", d.Name), zap.String("pattern", d.FileName(opts.Year)))
		return
	}

	mode := ModeReplace
	for _, f := range files {
		if ctx.Err() != nil {
			return
		}
		if l.loadFile(ctx, opts, d, f, mode, s).Err == nil {
			mode = ModeAppend
		}
	}
}

func (l *Loader) loadFile(ctx context.Context, opts Options, d Dataset, f ResolvedFile, mode WriteMode, s *Summary) FileResult {
	start := time.Now()
	log := zap.L().With(
		zap.String("component", "tiger.loader"),
		zap.String("dataset", d.Name),
		zap.String("file", f.Name()),
		zap.Stringer("mode", mode),
	)

	res := FileResult{
		Dataset: d.Name,
		File:    f.Name(),
		Table:   d.Table,
		Format:  f.Format,
		Mode:    mode,
	}
	if st := stateFromFileName(filepath.Base(f.Path)); st != "" && d.Multi {
		log = log.With(zap.String("state", st))
	}

	l.Reporter.Loading(f, d.Table, mode)

	if f.Format == FormatShapefile {
		if missing := MissingCompanions(f.Path); len(missing) > 0 {
			l.Reporter.MissingCompanions(f, missing)
			log.Warn("shapefile companion files missing", zap.Strings("missing", missing))
		}
	}

	layer, err := ReadFile(f, opts.FallbackSRID)
	if err == nil {
		proj := Normalize(layer)
		res.SourceSRID = proj.SourceSRID
		res.Transformed = proj.Transform

		if opts.DryRun {
			res.Records = int64(layer.Len())
		} else {
			target := Target{Schema: opts.Schema, Table: d.Table, GeoIDField: d.GeoIDField}
			res.Records, err = l.Writer.Write(ctx, layer, proj, target, mode)
		}
	}
	res.Duration = time.Since(start)
	res.Err = err

	if err != nil {
		log.Error("file load failed", zap.Error(err))
		l.Reporter.Failed(res)
	} else {
		log.Info("file loaded",
			zap.Int64("records", res.Records),
			zap.Int("source_srid", res.SourceSRID),
			zap.Bool("reprojected", res.Transformed),
			zap.Duration("duration", res.Duration),
		)
		l.Reporter.Loaded(res)
	}

	s.add(res)
	l.record(ctx, s.RunID, res)
	return res
}

func (l *Loader) record(ctx context.Context, runID uuid.UUID, res FileResult) {
	if l.Recorder == nil || l.Options.DryRun {
		return
	}
	if err := l.Recorder.Record(ctx, runID, res); err != nil {
		zap.L().Warn("tiger: failed to record load", zap.String("file", res.File), zap.Error(err))
	}
}
