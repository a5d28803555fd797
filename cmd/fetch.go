package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tigerload/internal/tiger"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Download the TIGER archives that load expects",
	Long: `Downloads national and per-state TIGER/Line ZIP archives from the Census
Bureau into the data directory and extracts them there. Archives already on
disk are reused.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		opts, err := buildLoadOptions(cmd, cfg)
		if err != nil {
			return err
		}

		statesStr, _ := cmd.Flags().GetString("states")
		abbrs := cfg.Tiger.States
		if statesStr != "" {
			abbrs = splitAndTrim(statesStr)
		}
		states, err := tiger.StateFIPS(abbrs)
		if err != nil {
			return err
		}

		concurrency, _ := cmd.Flags().GetInt("concurrency")
		results, err := tiger.Fetch(ctx, tiger.FetchOptions{
			Dir:         opts.Dir,
			Year:        opts.Year,
			Datasets:    opts.Datasets,
			States:      states,
			Concurrency: firstNonZero(concurrency, cfg.Tiger.Concurrency),
			RatePerSec:  cfg.Tiger.RatePerSec,
		})

		var fetched, skipped int
		for _, r := range results {
			if r.Skipped {
				skipped++
			} else {
				fetched++
			}
		}
		fmt.Printf("Downloaded %d archive(s), reused %d into %s\n", fetched, skipped, opts.Dir)

		if err != nil {
			return eris.Wrap(err, "tigerload: fetch")
		}
		return nil
	},
}

func init() {
	fetchCmd.Flags().String("dir", "", "destination directory (default: tiger.data_dir)")
	fetchCmd.Flags().Int("year", 0, "TIGER/Line year (default: from config or 2024)")
	fetchCmd.Flags().String("only", "", "comma-separated datasets to fetch")
	fetchCmd.Flags().String("states", "", "comma-separated state abbreviations for places (default: all 50 + DC + PR)")
	fetchCmd.Flags().Int("concurrency", 0, "parallel downloads (default: from config or 3)")
	rootCmd.AddCommand(fetchCmd)
}
