package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ccollicutt/bindlog/pkg/stats"
)

// TextFormatter formats reports as human-readable text.
type TextFormatter struct {
	opts FormatOptions
}

// NewTextFormatter creates a new text formatter with the given options.
func NewTextFormatter(opts FormatOptions) *TextFormatter {
	return &TextFormatter{opts: opts}
}

// Name returns the format name.
func (f *TextFormatter) Name() string {
	return "text"
}

// Format renders the report as text.
func (f *TextFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	if f.opts.Quiet {
		return f.formatQuiet(report, w)
	}
	return f.formatFull(report, w)
}

func (f *TextFormatter) formatQuiet(report *Report, w io.Writer) error {
	_, err := fmt.Fprintf(w, "bindlog: %s\n", summaryLine(report))
	return err
}

func summaryLine(report *Report) string {
	return fmt.Sprintf("%d lines, %d stored, %d skipped, %d failed",
		report.Summary.LinesProcessed,
		report.Summary.Stored,
		report.Summary.Skipped,
		report.Summary.Failed)
}

func (f *TextFormatter) formatFull(report *Report, w io.Writer) error {
	// Header
	fmt.Fprintln(w, "=== BIND Query Log Ingestion Report ===")
	fmt.Fprintln(w)

	if len(report.Metadata.Sources) > 0 {
		fmt.Fprintf(w, "Source: %s\n", strings.Join(report.Metadata.Sources, ", "))
	}
	switch {
	case report.Metadata.DryRun:
		fmt.Fprintln(w, "Storage: none (dry run)")
	case report.Metadata.Storage != "":
		fmt.Fprintf(w, "Storage: %s\n", report.Metadata.Storage)
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "  Records stored: %d\n", report.Summary.Stored)
	fmt.Fprintf(w, "  Lines skipped:  %d\n", report.Summary.Skipped)
	fmt.Fprintf(w, "  Store failures: %d\n", report.Summary.Failed)
	fmt.Fprintln(w)

	if report.Summary.Failed > 0 {
		f.formatFailures(report, w)
	}

	if report.Stats != nil {
		f.formatStats(report.Stats, w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %s\n", summaryLine(report))

	if f.opts.Verbose {
		fmt.Fprintf(w, "Lines processed: %d\n", report.Summary.LinesProcessed)
		fmt.Fprintf(w, "Duration: %s\n", report.Metadata.Duration.Round(1e6))
	}

	return nil
}

func (f *TextFormatter) formatFailures(report *Report, w io.Writer) {
	if !f.opts.Verbose {
		fmt.Fprintf(w, "%d record(s) could not be stored (use --verbose for details)\n", report.Summary.Failed)
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintln(w, "[FAILURES]")
	for _, failure := range report.Failures {
		fmt.Fprintf(w, "  - line %d: %s %s from %s: %s\n",
			failure.Line, failure.Query, failure.QType, failure.Client, failure.Error)
	}
	if hidden := report.Summary.Failed - len(report.Failures); hidden > 0 {
		fmt.Fprintf(w, "  ... and %d more\n", hidden)
	}
	fmt.Fprintln(w)
}

func (f *TextFormatter) formatStats(s *stats.Report, w io.Writer) {
	formatCounts(w, "TOP CLIENTS", s.TopClients)
	formatCounts(w, "TOP QUERIES", s.TopQueries)
	formatCounts(w, "QUERY TYPES", s.Types)
	formatCounts(w, "SERVERS", s.Servers)
	if f.opts.Verbose {
		formatCounts(w, "UNKNOWN TYPES", s.UnknownTypes)
	}
}

func formatCounts(w io.Writer, title string, counts []stats.Count) {
	if len(counts) == 0 {
		return
	}

	width := 0
	for _, c := range counts {
		if len(c.Key) > width {
			width = len(c.Key)
		}
	}

	fmt.Fprintf(w, "[%s]\n", title)
	for _, c := range counts {
		fmt.Fprintf(w, "  %-*s %d\n", width, c.Key, c.Count)
	}
	fmt.Fprintln(w)
}
