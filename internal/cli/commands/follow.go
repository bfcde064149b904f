package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/bindlog/pkg/analyzer"
	"github.com/ccollicutt/bindlog/pkg/follow"
	"github.com/ccollicutt/bindlog/pkg/output"
	"github.com/ccollicutt/bindlog/pkg/storage"
)

// FollowOptions holds command-line options for the follow command.
type FollowOptions struct {
	ConfigFile string
	FromStart  bool
}

// NewFollowCommand creates the follow command.
func NewFollowCommand() *cobra.Command {
	opts := &FollowOptions{}

	cmd := &cobra.Command{
		Use:   "follow [logfile]",
		Short: "Continuously ingest lines appended to a query log",
		Long: `Watch a BIND query log and store records as new lines are written.

Only lines appended after startup are ingested unless --from-start is given.
Truncated and rotated files are picked up from their beginning. Stop with
Ctrl-C; a summary of the session is printed on exit.

Example:
  bindlog follow /var/log/named/query.log
  bindlog follow -c bindlog.yaml --from-start`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFollow(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "", "Configuration file (YAML or TOML)")
	cmd.Flags().BoolVar(&opts.FromStart, "from-start", false, "Ingest the existing file contents before following")

	return cmd
}

func runFollow(cmd *cobra.Command, args []string, opts *FollowOptions) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, opts.ConfigFile)
	if err != nil {
		return err
	}

	logfile, err := resolveLogfile(args, cfg)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())

	a, err := newAnalyzer(cfg, logger, analyzer.WithSource(logfile))
	if err != nil {
		return err
	}

	store, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing storage: %w", cerr)
		}
	}()

	f, err := follow.New(a, store,
		follow.WithLogger(logger),
		follow.FromStart(opts.FromStart),
		follow.WithBatchHandler(func(s *analyzer.Summary) {
			if !s.Clean() {
				logger.Warn().Int("skipped", s.Skipped).Int("failed", s.Failed).Msg("batch had issues")
			}
		}),
	)
	if err != nil {
		return fmt.Errorf("creating follower: %w", err)
	}

	logger.Info().Str("source", logfile).Str("storage", describeStorage(cfg.Storage)).Msg("following log file")

	summary, err := f.Run(ctx)
	if err != nil {
		return fmt.Errorf("following %s: %w", logfile, err)
	}

	report := output.NewReport(summary, opts.ConfigFile)
	report.Metadata.Sources = []string{logfile}
	report.Metadata.Storage = describeStorage(cfg.Storage)

	quiet := output.NewTextFormatter(output.FormatOptions{Quiet: true})
	if err := quiet.Format(ctx, report, cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	if report.HasIssues() {
		ExitCode = 1
	}
	return nil
}
