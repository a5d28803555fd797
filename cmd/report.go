package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sells-group/tigerload/internal/tiger"
)

var (
	colorSuccess = lipgloss.Color("34")
	colorWarning = lipgloss.Color("214")
	colorError   = lipgloss.Color("196")
	colorMuted   = lipgloss.Color("245")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	okStyle      = lipgloss.NewStyle().Foreground(colorSuccess)
	warnStyle    = lipgloss.NewStyle().Foreground(colorWarning)
	errStyle     = lipgloss.NewStyle().Foreground(colorError)
	mutedStyle   = lipgloss.NewStyle().Foreground(colorMuted)
	sectionStyle = lipgloss.NewStyle().Bold(true)
)

const ruleWidth = 60

// consoleReporter prints load progress for a human at the terminal.
type consoleReporter struct {
	out io.Writer
}

func newConsoleReporter(out io.Writer) *consoleReporter {
	return &consoleReporter{out: out}
}

func (r *consoleReporter) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(r.out, format, args...)
}

// banner prints a title between two rules.
func (r *consoleReporter) banner(title string) {
	rule := strings.Repeat("=", ruleWidth)
	r.printf("%s\n  %s\n%s\n\n", rule, titleStyle.Render(title), rule)
}

func (r *consoleReporter) DatasetStart(d tiger.Dataset, files int) {
	if !d.Multi {
		return
	}
	r.printf("\n%s\n", sectionStyle.Render(fmt.Sprintf("Loading %s (this may take a while)...", d.Name)))
	if files == 0 {
		r.printf("  %s\n", mutedStyle.Render("No "+d.Name+" files found"))
		return
	}
	r.printf("  Found %d %s files\n", files, d.Name)
}

func (r *consoleReporter) Loading(f tiger.ResolvedFile, table string, mode tiger.WriteMode) {
	verb := "Loading"
	if mode == tiger.ModeAppend {
		verb = "Appending"
	}
	r.printf("%s %s: %s → %s...\n", verb, f.Format, f.Name(), table)
}

func (r *consoleReporter) Fallback(f tiger.ResolvedFile) {
	r.printf("  %s\n", mutedStyle.Render("Shapefile not found, trying GeoJSON: "+f.Name()))
}

func (r *consoleReporter) MissingCompanions(_ tiger.ResolvedFile, missing []string) {
	r.printf("  %s\n", warnStyle.Render("⚠ Warning: Missing shapefile component files: "+strings.Join(missing, ", ")))
	r.printf("     %s\n", mutedStyle.Render("Shapefiles require .shp, .shx, and .dbf files in the same directory."))
}

func (r *consoleReporter) NotFound(name string) {
	r.printf("  %s\n", warnStyle.Render(fmt.Sprintf("⚠ File not found: %s (tried .shp and .geojson)", name)))
}

func (r *consoleReporter) Loaded(res tiger.FileResult) {
	msg := fmt.Sprintf("✓ Loaded %d records", res.Records)
	if res.Transformed {
		msg += fmt.Sprintf(" (reprojected from EPSG:%d)", res.SourceSRID)
	}
	r.printf("  %s\n", okStyle.Render(msg))
}

func (r *consoleReporter) Failed(res tiger.FileResult) {
	r.printf("  %s\n", errStyle.Render(fmt.Sprintf("✗ Error: %v", res.Err)))
}

// Summary prints the closing totals.
func (r *consoleReporter) Summary(s *tiger.Summary) {
	r.printf("\n")
	r.banner("Summary")
	r.printf("%s\n", okStyle.Render(fmt.Sprintf("✓ Loaded: %d file(s)", s.Loaded)))
	if s.Failed > 0 {
		r.printf("%s\n", errStyle.Render(fmt.Sprintf("✗ Failed: %d file(s)", s.Failed)))
	}
	r.printf("\nNext: Run SQL to update GEOID fields and extract names\n\n")
}
