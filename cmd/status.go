package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/tigerload/internal/tiger"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest load result for every file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		pool, err := connectPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		entries, err := tiger.NewLoadLog(pool).Latest(ctx)
		if err != nil {
			return eris.Wrap(err, "tigerload: get status")
		}
		printStatus(os.Stdout, entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// printStatus displays load log entries as a table.
func printStatus(w io.Writer, entries []tiger.LogEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "No TIGER data loaded yet")
		return
	}

	_, _ = fmt.Fprintf(w, "%-16s %-30s %-8s %-8s %6s %10s %10s %s\n",
		"Table", "File", "Mode", "Status", "SRID", "Records", "Duration", "Loaded At")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 110))

	for _, e := range entries {
		srid := "-"
		if e.SourceSRID != nil {
			srid = fmt.Sprintf("%d", *e.SourceSRID)
		}
		_, _ = fmt.Fprintf(w, "%-16s %-30s %-8s %-8s %6s %10d %8dms %s\n",
			e.TableName, e.FileName, e.Mode, e.Status, srid,
			e.Records, e.DurationMs, e.LoadedAt.Format("2006-01-02 15:04"))
		if e.Error != nil {
			_, _ = fmt.Fprintf(w, "    %s\n", errStyle.Render(*e.Error))
		}
	}
}
