package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/bindlog/pkg/config"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a bindlog configuration file without ingesting anything.

Checks:
  - YAML or TOML syntax
  - Timezone and log level
  - Storage driver and path
  - Webhook URLs and triggers
  - Log file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Validating %s...\n", configPath)

	// Load and validate config
	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Report what we found
	fmt.Fprintf(w, "\nConfiguration valid!\n")
	fmt.Fprintf(w, "  Log file:  %s\n", orNone(cfg.Logfile))
	fmt.Fprintf(w, "  Timezone:  %s\n", cfg.Location())
	fmt.Fprintf(w, "  Log level: %s (%s)\n", cfg.LogLevel, cfg.LogFormat)
	fmt.Fprintf(w, "  Storage:   %s\n", describeStorage(cfg.Storage))
	fmt.Fprintf(w, "  Webhooks:  %d\n", len(cfg.Webhooks))

	for i, wh := range cfg.Webhooks {
		name := wh.Name
		if name == "" {
			name = wh.URL
		}
		fmt.Fprintf(w, "    %d. %s [%s]\n", i+1, name, wh.Trigger)
	}

	// Check the log file exists (warning only)
	if cfg.Logfile != "" {
		if info, err := os.Stat(cfg.Logfile); err != nil {
			fmt.Fprintf(w, "\nWarning: log file not accessible: %v\n", err)
		} else if !info.Mode().IsRegular() {
			fmt.Fprintf(w, "\nWarning: log file is not a regular file: %s\n", cfg.Logfile)
		}
	}

	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
