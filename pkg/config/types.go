// Package config provides configuration loading and validation for bindlog.
package config

import (
	"time"
)

// Config is the root configuration structure loaded from YAML or TOML.
type Config struct {
	// Logfile is the BIND query log to ingest. It may be overridden on the
	// command line.
	Logfile string `yaml:"logfile" toml:"logfile"`

	// Timezone is the IANA zone log timestamps are written in.
	// "Local" (default) uses the host zone.
	Timezone string `yaml:"timezone,omitempty" toml:"timezone"`

	// LogLevel is the minimum level of diagnostic logging.
	LogLevel string `yaml:"log_level,omitempty" toml:"log_level"`

	// LogFormat is "text" (default) for console lines or "json" for one
	// JSON object per diagnostic entry.
	LogFormat string `yaml:"log_format,omitempty" toml:"log_format"`

	// ExtendedSyntax also accepts query lines decorated with a
	// "<category>: <severity>:" prefix or a "@0x..." client object.
	ExtendedSyntax bool `yaml:"extended_syntax,omitempty" toml:"extended_syntax"`

	Storage  StorageConfig   `yaml:"storage" toml:"storage"`
	Webhooks []WebhookConfig `yaml:"webhooks,omitempty" toml:"webhooks"`

	// location is the loaded Timezone (populated during validation).
	location *time.Location
}

// Location returns the time zone log timestamps are interpreted in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// StorageDriver selects where parsed records are written.
type StorageDriver string

const (
	StorageDriverSQLite StorageDriver = "sqlite"
	StorageDriverJSONL  StorageDriver = "jsonl"
	StorageDriverMemory StorageDriver = "memory"
)

// StorageConfig defines the record sink.
type StorageConfig struct {
	Driver StorageDriver `yaml:"driver" toml:"driver"`

	// Path is the SQLite database file or the JSONL output file
	// ("-" for stdout). Unused by the memory driver.
	Path string `yaml:"path,omitempty" toml:"path"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when lines were skipped or records failed (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every ingestion run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending ingestion reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty" toml:"name"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url" toml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty" toml:"token"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty" toml:"trigger"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty" toml:"timeout"`
}
