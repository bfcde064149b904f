package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a configuration file. Files ending in .toml are
// decoded as TOML, anything else as YAML.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(path, data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// FromEnvironment returns the default configuration with environment
// overrides applied, for runs without a config file.
func FromEnvironment(_ context.Context) (*Config, error) {
	cfg := DefaultConfig()
	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		_, err := toml.Decode(string(data), cfg)
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks a configuration for errors and fills derived fields.
func Validate(cfg *Config) error {
	if err := validateTimezone(cfg); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}

	if err := validateLogLevel(cfg.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}

	if err := validateLogFormat(cfg.LogFormat); err != nil {
		return fmt.Errorf("log_format: %w", err)
	}

	if err := validateStorage(&cfg.Storage); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	// Webhooks are optional, but validate if present
	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateTimezone(cfg *Config) error {
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("unknown zone %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc
	return nil
}

func validateLogLevel(level string) error {
	switch strings.ToLower(level) {
	case "", "trace", "debug", "info", "warn", "error", "disabled":
		return nil
	default:
		return fmt.Errorf("invalid level %q (must be trace, debug, info, warn, error, or disabled)", level)
	}
}

func validateLogFormat(format string) error {
	switch strings.ToLower(format) {
	case "", "text", "json":
		return nil
	default:
		return fmt.Errorf("invalid format %q (must be text or json)", format)
	}
}

func validateStorage(sc *StorageConfig) error {
	if sc.Driver == "" {
		sc.Driver = StorageDriverSQLite
	}

	switch sc.Driver {
	case StorageDriverSQLite:
		if sc.Path == "" {
			return errors.New("path is required for the sqlite driver")
		}
	case StorageDriverJSONL, StorageDriverMemory:
		// Path optional
	default:
		return fmt.Errorf("invalid driver %q (must be sqlite, jsonl, or memory)", sc.Driver)
	}

	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
			// Valid
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}
