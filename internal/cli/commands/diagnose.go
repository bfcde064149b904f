package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/bindlog/pkg/config"
	"github.com/ccollicutt/bindlog/pkg/detector"
)

// DiagnoseOptions holds options for the diagnose command
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult represents the result of a single diagnostic check
type DiagnosticResult struct {
	Check    string
	Status   string // "ok", "warning", "error"
	Message  string
	Details  []string
	Suggests []string
}

// NewDiagnoseCommand creates the diagnose command
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Diagnose common configuration issues",
		Long: `Diagnose common configuration issues.

This command checks your configuration file for common problems:
- Config file syntax and structure
- Log file existence and accessibility
- Query log layout of the log file
- Storage location
- Webhook configuration (and reachability with --verbose)

Example:
  bindlog diagnose bindlog.yaml
  bindlog diagnose -v bindlog.yaml  # verbose output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return runDiagnose(ctx, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show detailed diagnostic output")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{}

	// 1. Check config file existence
	result := checkConfigExists(configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 2. Parse config file
	cfg, result := checkConfigParseable(ctx, configPath)
	results = append(results, result)
	if result.Status == "error" {
		printDiagnostics(w, results, opts)
		return nil
	}

	// 3. Check the log file and its layout
	logResult := checkLogfile(cfg)
	results = append(results, logResult)
	if logResult.Status == "ok" {
		results = append(results, checkLayout(ctx, cfg, opts))
	}

	// 4. Check storage
	results = append(results, checkStorage(cfg))

	// 5. Check webhooks configuration
	results = append(results, checkWebhooks(ctx, cfg, opts)...)

	printDiagnostics(w, results, opts)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Config File",
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		result.Status = "error"
		result.Message = fmt.Sprintf("Config file not found: %s", path)
		result.Suggests = []string{
			"Check the file path is correct",
			"Use 'bindlog detect <logfile> --write-config bindlog.yaml' to generate a starter config",
		}
		return result
	}
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access config file: %v", err)
		result.Suggests = []string{"Check file permissions"}
		return result
	}
	if info.IsDir() {
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
		return result
	}
	if info.Size() == 0 {
		result.Status = "error"
		result.Message = "Config file is empty"
		result.Suggests = []string{
			"Use 'bindlog detect <logfile> --write-config bindlog.yaml' to generate a starter config",
		}
		return result
	}

	result.Status = "ok"
	result.Message = fmt.Sprintf("Found: %s (%d bytes)", path, info.Size())
	return result
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	result := DiagnosticResult{
		Check: "Config Syntax",
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result.Status = "error"
		result.Message = fmt.Sprintf("Failed to parse config: %v", err)
		switch {
		case strings.Contains(err.Error(), "yaml"):
			result.Suggests = []string{
				"Check YAML syntax - ensure proper indentation (use spaces, not tabs)",
			}
		case strings.Contains(err.Error(), "toml"):
			result.Suggests = []string{
				"Check TOML syntax - strings must be quoted",
			}
		}
		return nil, result
	}

	result.Status = "ok"
	result.Message = "Config file parsed successfully"
	result.Details = []string{
		fmt.Sprintf("Timezone: %s", cfg.Location()),
		fmt.Sprintf("Log level: %s", cfg.LogLevel),
		fmt.Sprintf("Webhooks: %d", len(cfg.Webhooks)),
	}
	return cfg, result
}

func checkLogfile(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Log File",
	}

	if cfg.Logfile == "" {
		result.Status = "warning"
		result.Message = "No logfile configured"
		result.Suggests = []string{
			"Pass the log file on the command line, or",
			"Add 'logfile: /var/log/named/query.log' to your config",
		}
		return result
	}

	result.Check = fmt.Sprintf("Log File: %s", cfg.Logfile)

	info, err := os.Stat(cfg.Logfile)
	switch {
	case os.IsNotExist(err):
		result.Status = "error"
		result.Message = "File does not exist"
		result.Suggests = []string{
			"Check the querylog channel in named.conf for the file path",
			"Enable query logging with 'rndc querylog on'",
		}
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Cannot access file: %v", err)
		result.Suggests = []string{"Check file permissions"}
	case info.IsDir():
		result.Status = "error"
		result.Message = "Path is a directory, not a file"
	case info.Size() == 0:
		result.Status = "warning"
		result.Message = "File is empty (0 bytes)"
	default:
		result.Status = "ok"
		result.Message = fmt.Sprintf("File exists (%d bytes)", info.Size())
	}

	return result
}

func checkLayout(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) DiagnosticResult {
	result := DiagnosticResult{
		Check: "Query Log Layout",
	}

	d := detector.New(detector.WithSampleSize(20), detector.WithParser(newParser(cfg)))
	det, err := d.DetectFromFile(ctx, cfg.Logfile)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot read file: %v", err)
		return result
	}

	for _, r := range det.Rejected {
		result.Details = append(result.Details, fmt.Sprintf("line %d (%s): %s", r.LineNum, r.Reason, truncate(r.Line, 80)))
	}

	switch {
	case !det.HasMatch():
		result.Status = "error"
		result.Message = "No query log lines found in sample"
		result.Suggests = []string{
			"Make sure print-time is enabled on the querylog channel",
			"Check this is the query log rather than the general named log",
		}
	case det.ParsedLines < det.SampledLines/2:
		result.Status = "warning"
		result.Message = fmt.Sprintf("Only %d/%d sample lines are query log entries", det.ParsedLines, det.SampledLines)
	case det.Mixed():
		result.Status = "warning"
		result.Message = "Sample mixes query log layouts"
	default:
		best := det.BestMatch()
		result.Status = "ok"
		result.Message = fmt.Sprintf("%s (%d/%d sample lines)", best.Format.Name, det.ParsedLines, det.SampledLines)
		if opts.Verbose {
			result.Details = append([]string{
				"Sample match:",
				truncate(best.SampleLine, 80),
				fmt.Sprintf("Time range: %s to %s",
					det.FirstSeen.Format(time.DateTime+" MST"), det.LastSeen.Format(time.DateTime+" MST")),
			}, result.Details...)
		}
	}

	return result
}

func checkStorage(cfg *config.Config) DiagnosticResult {
	result := DiagnosticResult{
		Check:  "Storage",
		Status: "ok",
	}

	sc := cfg.Storage
	switch sc.Driver {
	case config.StorageDriverMemory:
		result.Status = "warning"
		result.Message = "memory driver keeps records only for the duration of a run"
		return result
	case config.StorageDriverJSONL:
		if sc.Path == "" || sc.Path == "-" {
			result.Message = "jsonl records written to stdout"
			return result
		}
	}

	dir := filepath.Dir(sc.Path)
	info, err := os.Stat(dir)
	switch {
	case err != nil:
		result.Status = "error"
		result.Message = fmt.Sprintf("Directory for %s is not accessible: %v", sc.Path, err)
		result.Suggests = []string{"Create the directory or change storage.path"}
	case !info.IsDir():
		result.Status = "error"
		result.Message = fmt.Sprintf("%s is not a directory", dir)
	default:
		result.Message = describeStorage(sc)
	}

	return result
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	fmt.Fprintln(w, "=== bindlog Configuration Diagnostics ===")
	fmt.Fprintln(w)

	okCount := 0
	warnCount := 0
	errCount := 0

	for _, r := range results {
		// Status icon
		var icon string
		switch r.Status {
		case "ok":
			icon = "PASS"
			okCount++
		case "warning":
			icon = "WARN"
			warnCount++
		case "error":
			icon = "FAIL"
			errCount++
		}

		fmt.Fprintf(w, "[%s] %s\n", icon, r.Check)
		fmt.Fprintf(w, "    %s\n", r.Message)

		if opts.Verbose || r.Status != "ok" {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}

		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}

		fmt.Fprintln(w)
	}

	// Summary
	fmt.Fprintln(w, "---")
	fmt.Fprintf(w, "Summary: %d passed, %d warnings, %d errors\n", okCount, warnCount, errCount)

	if errCount > 0 {
		fmt.Fprintln(w, "\nFix the errors above before ingesting.")
	} else if warnCount > 0 {
		fmt.Fprintln(w, "\nConfiguration is usable but has warnings.")
	} else {
		fmt.Fprintln(w, "\nConfiguration looks good!")
	}
}

// checkWebhooks reports each configured webhook. Config loading already
// rejects invalid URLs and triggers, so only soft problems remain.
func checkWebhooks(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	results := []DiagnosticResult{}

	if len(cfg.Webhooks) == 0 {
		// Webhooks are optional, just note they're not configured
		if opts.Verbose {
			results = append(results, DiagnosticResult{
				Check:   "Webhooks",
				Status:  "ok",
				Message: "No webhooks configured (optional)",
			})
		}
		return results
	}

	for _, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}

		result := DiagnosticResult{
			Check:   fmt.Sprintf("Webhook: %s", name),
			Status:  "ok",
			Message: fmt.Sprintf("Trigger: %s", wh.Trigger),
		}

		switch {
		case wh.Trigger == config.WebhookTriggerNever:
			result.Status = "warning"
			result.Message = "Trigger is 'never'; this webhook is disabled"
		case wh.Token == "" && strings.HasPrefix(wh.URL, "http://"):
			result.Details = append(result.Details, "Plain HTTP without a token")
		}

		if opts.Verbose {
			result.Details = append(result.Details,
				fmt.Sprintf("URL: %s", wh.URL),
				fmt.Sprintf("Timeout: %s", wh.Timeout),
			)
			if wh.Token != "" {
				result.Details = append(result.Details, "Token: configured")
			}
		}

		results = append(results, result)
	}

	// Optionally test webhook connectivity
	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			name := wh.Name
			if name == "" {
				name = wh.URL
			}

			result := checkWebhookConnectivity(ctx, wh)
			result.Check = fmt.Sprintf("Webhook Connectivity: %s", name)
			results = append(results, result)
		}
	}

	return results
}

func checkWebhookConnectivity(ctx context.Context, wh config.WebhookConfig) DiagnosticResult {
	result := DiagnosticResult{}

	// Just do a HEAD request to check if the endpoint is reachable
	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wh.URL, nil)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot create request: %v", err)
		return result
	}

	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Cannot connect: %v", err)
		result.Suggests = []string{
			"Check if the webhook URL is correct",
			"Verify network connectivity",
		}
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		result.Status = "ok"
		result.Message = fmt.Sprintf("Reachable (status %d)", resp.StatusCode)
	} else {
		result.Status = "warning"
		result.Message = fmt.Sprintf("Reachable but returned status %d", resp.StatusCode)
		result.Suggests = []string{
			"The endpoint may require POST method (will work during actual webhook send)",
			"Check authentication if using a token",
		}
	}

	return result
}
