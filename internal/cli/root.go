// Package cli provides the command-line interface for bindlog.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/bindlog/internal/cli/commands"
	"github.com/ccollicutt/bindlog/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	return run(context.Background(), os.Args[1:])
}

func run(ctx context.Context, args []string) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)

	potentialCommand := ""
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		potentialCommand = args[0]
	}

	// Unknown first argument: try a plugin before cobra reports an error
	if potentialCommand != "" && !isBuiltinCommand(rootCmd, potentialCommand) {
		if pluginPath, err := plugins.FindPlugin(potentialCommand); err == nil {
			return plugins.Execute(ctx, pluginPath, args[1:])
		}
	}

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if potentialCommand != "" && !isBuiltinCommand(rootCmd, potentialCommand) {
			_, _ = fmt.Fprintln(os.Stderr, plugins.FormatNotFoundError(potentialCommand))
			return 2
		}
		// Print error to stderr (SilenceErrors prevents Cobra from doing this)
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2 // Configuration or runtime error
	}
	return commands.ExitCode
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	// Also check for special commands like help and completion
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bindlog",
		Short: "Parse BIND query logs into structured records",
		Long: `bindlog parses BIND (named) query logs and stores one record per query:
timestamp, client address, query name, record type and server address.

Both query log layouts are understood:
  - BIND 9.9 and later, which echo the query name after the client
  - Older releases without the echoed name

Records go to SQLite (default), JSON Lines or memory, per the storage
section of the config file.

PLUGINS:
  bindlog supports plugins for extended functionality. Plugins are standalone
  binaries named bindlog-<command> that are automatically discovered and invoked.

  Plugin locations (searched in order):
    1. $BINDLOG_PLUGIN_DIR
    2. Same directory as the bindlog binary
    3. ~/.bindlog/plugins/
    4. Anywhere in PATH` + installedPlugins(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add subcommands
	rootCmd.AddCommand(commands.NewIngestCommand())
	rootCmd.AddCommand(commands.NewFollowCommand())
	rootCmd.AddCommand(commands.NewDetectCommand())
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}

func installedPlugins() string {
	names := plugins.List()
	if len(names) == 0 {
		return ""
	}
	return "\n\n  Installed plugins:\n    " + strings.Join(names, "\n    ")
}
