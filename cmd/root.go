package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tigerload/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "tigerload",
	Short: "Bulk-load Census TIGER boundaries into PostGIS",
	Long: `Loads Census TIGER/Line boundary files (states, counties, CBSAs, ZCTAs and
per-state places) from shapefiles or GeoJSON into PostGIS tables with WGS84
geometry. Files that fail are counted and the run continues.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
