package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/bindlog/pkg/analyzer"
	"github.com/ccollicutt/bindlog/pkg/config"
	"github.com/ccollicutt/bindlog/pkg/output"
	"github.com/ccollicutt/bindlog/pkg/parser"
	"github.com/ccollicutt/bindlog/pkg/stats"
	"github.com/ccollicutt/bindlog/pkg/storage"
	"github.com/ccollicutt/bindlog/pkg/webhook"
)

// DefaultTop is how many entries each statistics table shows.
const DefaultTop = 10

// IngestOptions holds command-line options for the ingest command.
type IngestOptions struct {
	ConfigFile string
	Output     string
	Verbose    bool
	Quiet      bool
	DryRun     bool
	Stats      bool
	Top        int

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand() *cobra.Command {
	opts := &IngestOptions{}

	cmd := &cobra.Command{
		Use:   "ingest [logfile]",
		Short: "Parse a BIND query log and store its records",
		Long: `Parse a BIND query log and store one record per query line.

The log file is taken from the argument, the logfile setting in the config
file, or the BINDLOG_LOGFILE environment variable, in that order. Glob
patterns are expanded and each matching file is ingested in turn.

Lines that are not query log entries are skipped. Records the storage
backend refuses are counted as failures and do not stop the run.

Exit codes:
  0 - Every line parsed and stored
  1 - Lines skipped or records failed to store
  2 - Configuration or runtime error`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	// Flags
	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show store failures and timing details")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Parse without storing records")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "Report top clients, queries and record types")
	cmd.Flags().IntVar(&opts.Top, "top", DefaultTop, "Number of entries per statistics table")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts *IngestOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := loadConfig(ctx, opts.ConfigFile)
	if err != nil {
		return err
	}

	logfile, err := resolveLogfile(args, cfg)
	if err != nil {
		return err
	}

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
	})
	if err != nil {
		return err
	}

	files, err := parser.ExpandGlobs([]string{logfile})
	if err != nil {
		return fmt.Errorf("expanding log file: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("log file not found: %s", logfile)
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	a, err := newAnalyzer(cfg, logger)
	if err != nil {
		return err
	}

	summary, collector, err := ingestFiles(ctx, a, cfg, files, opts)
	if err != nil {
		return err
	}

	report := output.NewReport(summary, opts.ConfigFile)
	report.Metadata.Sources = files
	report.Metadata.DryRun = opts.DryRun
	if !opts.DryRun {
		report.Metadata.Storage = describeStorage(cfg.Storage)
	}
	if collector != nil {
		report.Stats = collector.Report(opts.Top)
	}

	if err := formatter.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Send webhooks (errors reported but don't fail the run)
	sendWebhooks(ctx, cmd.ErrOrStderr(), collectWebhooks(cfg, opts), report)

	if report.HasIssues() {
		ExitCode = 1
	}

	return nil
}

// ingestFiles binds and runs each file in turn, storing into the configured
// backend. The store is closed before the report is written.
func ingestFiles(ctx context.Context, a *analyzer.LogAnalyzer, cfg *config.Config, files []string, opts *IngestOptions) (summary *analyzer.Summary, collector *stats.Collector, err error) {
	var sink analyzer.Sink

	if opts.DryRun {
		sink = analyzer.SinkFunc(func(context.Context, parser.QueryRecord) error { return nil })
	} else {
		store, openErr := storage.Open(ctx, cfg.Storage)
		if openErr != nil {
			return nil, nil, fmt.Errorf("opening storage: %w", openErr)
		}
		defer func() {
			if cerr := store.Close(); cerr != nil && err == nil {
				err = fmt.Errorf("closing storage: %w", cerr)
			}
		}()
		sink = store
	}

	if opts.Stats {
		collector = stats.NewCollector(sink)
		sink = collector
	}

	summary = &analyzer.Summary{}
	for _, file := range files {
		if err := a.SetSource(file); err != nil {
			return nil, nil, fmt.Errorf("selecting log file: %w", err)
		}

		s, err := a.Run(ctx, sink)
		if err != nil {
			return nil, nil, fmt.Errorf("ingesting %s: %w", file, err)
		}
		summary.Add(s)
	}

	return summary, collector, nil
}

// sendWebhooks sends the report to all configured webhooks.
// Errors are written to w but don't fail the run.
func sendWebhooks(ctx context.Context, w io.Writer, hooks []config.WebhookConfig, report *output.Report) {
	if len(hooks) == 0 {
		return
	}

	for _, r := range webhook.NewClient().Notify(ctx, hooks, report) {
		if r.Response.Success() {
			fmt.Fprintf(w, "Webhook %s: sent (%d, %s)\n", r.Name, r.Response.StatusCode, r.Response.Duration)
		} else {
			fmt.Fprintf(w, "Webhook %s: failed (%v)\n", r.Name, r.Response.Error)
		}
	}
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *IngestOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)

	// Add config file webhooks
	webhooks = append(webhooks, cfg.Webhooks...)

	// Add CLI webhook if specified
	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
