package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tigerload/internal/config"
	"github.com/sells-group/tigerload/internal/tiger"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load TIGER boundary files from a directory into PostGIS",
	Long: `Loads the national states, counties, CBSA and ZCTA files and every per-state
places file found in the data directory. Shapefiles are preferred; a
same-named .geojson is used when the shapefile is absent. Geometries are
stored as SRID 4326; other CRSs are reprojected by PostGIS during the load.

Failed or missing files are counted and reported; the command still exits 0.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := buildLoadOptions(cmd, cfg)
		if err != nil {
			return err
		}
		noLog, _ := cmd.Flags().GetBool("no-log")
		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize == 0 {
			batchSize = cfg.Tiger.BatchSize
		}

		rep := newConsoleReporter(os.Stdout)
		rep.banner("Load TIGER boundaries to PostGIS")

		loader := &tiger.Loader{Reporter: rep, Options: opts}

		if !opts.DryRun {
			pool, err := connectPool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			if !noLog {
				if err := tiger.Migrate(ctx, pool); err != nil {
					return eris.Wrap(err, "tigerload: migrate")
				}
				loader.Recorder = tiger.NewLoadLog(pool)
			}
			loader.Writer = tiger.NewPostGISWriter(pool, batchSize)
		}

		zap.L().Info("starting TIGER boundary load",
			zap.String("dir", opts.Dir),
			zap.Int("year", opts.Year),
			zap.String("schema", opts.Schema),
			zap.Int("datasets", len(opts.Datasets)),
			zap.Bool("dry_run", opts.DryRun),
		)

		summary, err := loader.Run(ctx)
		if summary != nil {
			rep.Summary(summary)
		}
		if err != nil {
			return eris.Wrap(err, "tigerload: load")
		}
		return nil
	},
}

func init() {
	loadCmd.Flags().String("dir", "", "directory holding the TIGER files (default: tiger.data_dir)")
	loadCmd.Flags().Int("year", 0, "TIGER/Line year (default: from config or 2024)")
	loadCmd.Flags().String("only", "", "comma-separated datasets to load: states,counties,cbsa,zcta,places")
	loadCmd.Flags().String("schema", "", "target schema (default: database.schema)")
	loadCmd.Flags().Int("batch-size", 0, "rows per COPY batch (default: tiger.batch_size)")
	loadCmd.Flags().Int("fallback-srid", 0, "SRID for unrecognised .prj files (default: tiger.fallback_srid)")
	loadCmd.Flags().Bool("dry-run", false, "read and validate files without touching the database")
	loadCmd.Flags().Bool("no-log", false, "skip migrations and the tiger_meta.load_log history")
	rootCmd.AddCommand(loadCmd)
}

// buildLoadOptions merges command flags over the config.
func buildLoadOptions(cmd *cobra.Command, c *config.Config) (tiger.Options, error) {
	dir, _ := cmd.Flags().GetString("dir")
	year, _ := cmd.Flags().GetInt("year")
	only, _ := cmd.Flags().GetString("only")
	schema, _ := cmd.Flags().GetString("schema")
	fallback, _ := cmd.Flags().GetInt("fallback-srid")
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	opts := tiger.Options{
		Dir:          firstNonEmpty(dir, c.Tiger.DataDir),
		Year:         firstNonZero(year, c.Tiger.Year),
		Schema:       firstNonEmpty(schema, c.Database.Schema),
		FallbackSRID: firstNonZero(fallback, c.Tiger.FallbackSRID),
		DryRun:       dryRun,
	}

	names := c.Tiger.Datasets
	if only != "" {
		names = splitAndTrim(only)
	}
	datasets, err := tiger.SelectDatasets(names)
	if err != nil {
		return opts, err
	}
	opts.Datasets = datasets
	return opts, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(vals ...int) int {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

// splitAndTrim splits a comma-separated string and drops blanks.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
