package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/bindlog/pkg/config"
	"github.com/ccollicutt/bindlog/pkg/detector"
	"github.com/ccollicutt/bindlog/pkg/parser"
)

// DetectOptions holds command-line options for the detect command.
type DetectOptions struct {
	Output      string
	SampleSize  int
	ShowAll     bool
	WriteConfig string
}

// NewDetectCommand creates the detect command.
func NewDetectCommand() *cobra.Command {
	opts := &DetectOptions{}

	cmd := &cobra.Command{
		Use:   "detect <logfile>",
		Short: "Detect which BIND query log layout a file uses",
		Long: `Sample a log file and report which query log layout it uses.

BIND 9.9 and later echo the query name in parentheses after the client
address; older releases do not. Both are ingested, but a file mixing
layouts or full of unparsable lines usually points at the wrong log.

Optionally generates a starter config file with --write-config.

Example:
  bindlog detect /var/log/named/query.log
  bindlog detect --sample 500 /var/log/named/query.log
  bindlog detect -w bindlog.yaml /var/log/named/query.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDetect(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 100, "Number of lines to sample")
	cmd.Flags().BoolVar(&opts.ShowAll, "all", false, "Show every layout found, not just the best match")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runDetect(cmd *cobra.Command, args []string, opts *DetectOptions) error {
	logFile := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	// Check file exists
	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	// Decorated lines are recognized here so the starter config can enable them.
	d := detector.New(
		detector.WithSampleSize(opts.SampleSize),
		detector.WithParser(parser.NewParser(parser.WithExtendedSyntax(true))),
	)

	result, err := d.DetectFromFile(ctx, logFile)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}

	// Write config file if requested
	if opts.WriteConfig != "" {
		if err := writeStarterConfig(w, result, logFile, opts.WriteConfig); err != nil {
			return err
		}
	}

	switch opts.Output {
	case "json":
		return outputDetectJSON(w, result, logFile, opts)
	case "text", "":
		return outputDetectText(w, result, logFile, opts)
	default:
		return fmt.Errorf("unknown output format %q (use text or json)", opts.Output)
	}
}

func outputDetectText(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	fmt.Fprintln(w, "=== Query Log Layout Detection ===")
	fmt.Fprintln(w)
	fmt.Fprintf(w, "File: %s\n", logFile)
	fmt.Fprintf(w, "Lines sampled: %d\n", result.SampledLines)
	fmt.Fprintf(w, "Query lines: %d\n", result.ParsedLines)
	if result.Decorated > 0 {
		fmt.Fprintf(w, "Decorated lines: %d (needs extended_syntax: true)\n", result.Decorated)
	}
	fmt.Fprintln(w)

	if !result.HasMatch() {
		fmt.Fprintln(w, "No query log lines found.")
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tip: make sure this is the file named's querylog channel writes to,")
		fmt.Fprintln(w, "with print-time enabled.")
		formatRejected(w, result)
		return nil
	}

	best := result.BestMatch()
	fmt.Fprintf(w, "Detected Layout: %s (BIND %s)\n", best.Format.Name, best.Format.Releases)
	fmt.Fprintf(w, "Confidence: %.1f%% (%d/%d lines matched)\n",
		best.Confidence*100, best.MatchCount, result.SampledLines)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Sample match:\n  %s\n", best.SampleLine)
	fmt.Fprintf(w, "Parsed as: %s client=%s query=%s type=%s server=%s\n",
		best.Sample.Timestamp.Format("2006-01-02 15:04:05 MST"),
		best.Sample.Client, best.Sample.Query, best.Sample.QType, best.Sample.Server)
	fmt.Fprintf(w, "Time range: %s to %s\n",
		result.FirstSeen.Format(time.DateTime), result.LastSeen.Format(time.DateTime))
	fmt.Fprintln(w)

	if result.Mixed() {
		fmt.Fprintln(w, "WARNING: The sample mixes query log layouts.")
		fmt.Fprintln(w, "This is expected across a BIND upgrade; otherwise check the file is a single query log.")
		fmt.Fprintln(w)
	}

	if opts.ShowAll && len(result.Matches) > 1 {
		fmt.Fprintln(w, "--- Other layouts detected ---")
		for i, m := range result.Matches[1:] {
			fmt.Fprintf(w, "%d. %s (%.1f%% of lines)\n", i+2, m.Format.Name, m.Confidence*100)
			fmt.Fprintf(w, "   %s\n", m.SampleLine)
		}
		fmt.Fprintln(w)
	}

	formatRejected(w, result)
	return nil
}

func formatRejected(w io.Writer, result *detector.DetectionResult) {
	if len(result.Rejected) == 0 {
		return
	}
	fmt.Fprintf(w, "--- Unparsed lines (%d of %d sampled) ---\n",
		result.SampledLines-result.ParsedLines, result.SampledLines)
	for _, r := range result.Rejected {
		fmt.Fprintf(w, "  line %d (%s): %s\n", r.LineNum, r.Reason, truncate(r.Line, 80))
	}
	fmt.Fprintln(w)
}

// JSONMatch represents a layout match in JSON output.
type JSONMatch struct {
	Name       string  `json:"name"`
	Variant    string  `json:"variant"`
	Releases   string  `json:"releases"`
	Confidence float64 `json:"confidence"`
	MatchCount int     `json:"match_count"`
	SampleLine string  `json:"sample_line"`
}

// JSONOutput represents the full JSON output.
type JSONOutput struct {
	File         string                  `json:"file"`
	Matches      []JSONMatch             `json:"matches"`
	SampledLines int                     `json:"sampled_lines"`
	ParsedLines  int                     `json:"parsed_lines"`
	Decorated    int                     `json:"decorated_lines,omitempty"`
	Mixed        bool                    `json:"mixed,omitempty"`
	Rejected     []detector.RejectSample `json:"rejected,omitempty"`
}

func outputDetectJSON(w io.Writer, result *detector.DetectionResult, logFile string, opts *DetectOptions) error {
	out := JSONOutput{
		File:         logFile,
		SampledLines: result.SampledLines,
		ParsedLines:  result.ParsedLines,
		Decorated:    result.Decorated,
		Mixed:        result.Mixed(),
		Rejected:     result.Rejected,
		Matches:      make([]JSONMatch, 0),
	}

	matches := result.Matches
	if !opts.ShowAll && len(matches) > 1 {
		matches = matches[:1] // Only show best match
	}

	for _, m := range matches {
		out.Matches = append(out.Matches, JSONMatch{
			Name:       m.Format.Name,
			Variant:    string(m.Format.Variant),
			Releases:   m.Format.Releases,
			Confidence: m.Confidence,
			MatchCount: m.MatchCount,
			SampleLine: m.SampleLine,
		})
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// writeStarterConfig generates a starter config file for the log file.
func writeStarterConfig(w io.Writer, result *detector.DetectionResult, logFile, configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if !result.HasMatch() {
		return fmt.Errorf("cannot generate config: no query log lines detected")
	}

	content, err := generateStarterConfig(logFile, result)
	if err != nil {
		return fmt.Errorf("generating config: %w", err)
	}

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n\n", configPath)
	return nil
}

// generateStarterConfig renders a YAML config for logFile using the default
// storage settings. Extended syntax is enabled when the sample had
// decorated lines.
func generateStarterConfig(logFile string, result *detector.DetectionResult) ([]byte, error) {
	match := result.BestMatch()
	// Get absolute path for log file if possible
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	cfg := config.DefaultConfig()
	cfg.Logfile = absLogFile
	cfg.ExtendedSyntax = result.Decorated > 0

	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, err
	}

	header := fmt.Sprintf(`# bindlog configuration
# Generated by: bindlog detect
# Detected layout: %s (%.0f%% confidence)
#
# Webhooks are optional:
# webhooks:
#   - name: ops
#     url: https://hooks.example.com/bindlog
#     token: ${BINDLOG_TOKEN}
#     trigger: on_issues

`, match.Format.Name, match.Confidence*100)

	return append([]byte(header), body...), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
