package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ccollicutt/bindlog/pkg/analyzer"
	"github.com/ccollicutt/bindlog/pkg/config"
	"github.com/ccollicutt/bindlog/pkg/logging"
	"github.com/ccollicutt/bindlog/pkg/parser"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// errNoLogfile is returned when neither the command line nor the
// configuration names a log file.
var errNoLogfile = errors.New("no log file given (pass one as an argument, set logfile in the config or " + config.EnvLogfile + ")")

// loadConfig reads the config file when one is given and otherwise builds
// the configuration from defaults and the environment.
func loadConfig(ctx context.Context, path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.FromEnvironment(ctx)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// resolveLogfile prefers the command line argument over the config.
func resolveLogfile(args []string, cfg *config.Config) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Logfile != "" {
		return cfg.Logfile, nil
	}
	return "", errNoLogfile
}

func newLogger(cfg *config.Config, w io.Writer) zerolog.Logger {
	if strings.EqualFold(cfg.LogFormat, "json") {
		return logging.JSON(cfg.LogLevel, w)
	}
	return logging.New(cfg.LogLevel, w)
}

// newParser builds a parser for the configured zone and line syntax.
func newParser(cfg *config.Config) *parser.Parser {
	return parser.NewParser(
		parser.WithLocation(cfg.Location()),
		parser.WithExtendedSyntax(cfg.ExtendedSyntax),
	)
}

// newAnalyzer builds an analyzer parsing timestamps in the configured zone.
func newAnalyzer(cfg *config.Config, logger zerolog.Logger, opts ...analyzer.Option) (*analyzer.LogAnalyzer, error) {
	base := []analyzer.Option{
		analyzer.WithParser(newParser(cfg)),
		analyzer.WithLogger(logger),
	}
	a, err := analyzer.New(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("creating analyzer: %w", err)
	}
	return a, nil
}

// describeStorage names the configured sink for reports.
func describeStorage(sc config.StorageConfig) string {
	switch {
	case sc.Driver == config.StorageDriverMemory:
		return string(sc.Driver)
	case sc.Driver == config.StorageDriverJSONL && (sc.Path == "" || sc.Path == "-"):
		return "jsonl (stdout)"
	default:
		return fmt.Sprintf("%s (%s)", sc.Driver, sc.Path)
	}
}
