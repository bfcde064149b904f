package output

import (
	"context"
	"encoding/json"
	"io"
)

// JSONFormatter formats reports as JSON.
type JSONFormatter struct {
	opts FormatOptions
}

// NewJSONFormatter creates a new JSON formatter with the given options.
func NewJSONFormatter(opts FormatOptions) *JSONFormatter {
	return &JSONFormatter{opts: opts}
}

// Name returns the format name.
func (f *JSONFormatter) Name() string {
	return "json"
}

// quietReport is the single-line form written in quiet mode.
type quietReport struct {
	Summary Summary  `json:"summary"`
	Sources []string `json:"sources"`
	Storage string   `json:"storage,omitempty"`
	Clean   bool     `json:"clean"`
}

// Format renders the report as JSON. Quiet mode writes one compact line
// with the counts, the sources and whether the run was clean.
func (f *JSONFormatter) Format(ctx context.Context, report *Report, w io.Writer) error {
	encoder := json.NewEncoder(w)

	if f.opts.Quiet {
		return encoder.Encode(quietReport{
			Summary: report.Summary,
			Sources: report.Metadata.Sources,
			Storage: report.Metadata.Storage,
			Clean:   !report.HasIssues(),
		})
	}

	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
