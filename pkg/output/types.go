// Package output provides formatting and output generation for ingestion results.
package output

import (
	"time"

	"github.com/ccollicutt/bindlog/pkg/analyzer"
	"github.com/ccollicutt/bindlog/pkg/stats"
)

// Report is the complete ingestion output.
type Report struct {
	// Summary provides aggregate counts.
	Summary Summary `json:"summary"`

	// Failures lists records the store refused.
	Failures []Failure `json:"failures,omitempty"`

	// Stats holds query statistics when they were collected.
	Stats *stats.Report `json:"stats,omitempty"`

	// Metadata provides context about the run.
	Metadata Metadata `json:"metadata"`
}

// Summary provides aggregate counts.
type Summary struct {
	// LinesProcessed is the number of log lines read.
	LinesProcessed int `json:"lines_processed"`

	// Parsed is the number of lines that produced a record.
	Parsed int `json:"parsed"`

	// Stored is the number of records written to storage.
	Stored int `json:"stored"`

	// Skipped is the number of lines that were not query log entries.
	Skipped int `json:"skipped"`

	// Failed is the number of records storage refused.
	Failed int `json:"failed"`
}

// Failure is a record that could not be stored.
type Failure struct {
	Line   int    `json:"line"`
	Client string `json:"client"`
	Query  string `json:"query"`
	QType  string `json:"q_type"`
	Error  string `json:"error"`
}

// Metadata provides context about the ingestion run.
type Metadata struct {
	// ConfigFile is the path to the configuration file used.
	ConfigFile string `json:"config_file,omitempty"`

	// Sources lists the log files that were read.
	Sources []string `json:"sources"`

	// Storage names the storage driver records were written to.
	Storage string `json:"storage,omitempty"`

	// DryRun is set when records were parsed but not persisted.
	DryRun bool `json:"dry_run,omitempty"`

	// AnalyzedAt is when the run finished.
	AnalyzedAt time.Time `json:"analyzed_at"`

	// Duration is how long the run took.
	Duration time.Duration `json:"duration"`
}

// NewReport creates a Report from a processing summary.
func NewReport(summary *analyzer.Summary, configFile string) *Report {
	report := &Report{
		Summary: Summary{
			LinesProcessed: summary.Lines,
			Parsed:         summary.Parsed,
			Stored:         summary.Stored,
			Skipped:        summary.Skipped,
			Failed:         summary.Failed,
		},
		Metadata: Metadata{
			ConfigFile: configFile,
			AnalyzedAt: summary.EndTime,
			Duration:   summary.EndTime.Sub(summary.StartTime),
		},
	}

	if summary.Source != "" {
		report.Metadata.Sources = []string{summary.Source}
	}

	for _, f := range summary.Failures {
		failure := Failure{
			Line:   f.LineNum,
			Client: f.Record.Client,
			Query:  f.Record.Query,
			QType:  f.Record.QType,
		}
		if f.Err != nil {
			failure.Error = f.Err.Error()
		}
		report.Failures = append(report.Failures, failure)
	}

	return report
}

// HasIssues returns true if any line was skipped or any record failed to store.
func (r *Report) HasIssues() bool {
	return r.Summary.Skipped > 0 || r.Summary.Failed > 0
}
