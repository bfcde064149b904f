package config

import (
	"os"
	"time"
)

// Default values for configuration.
const (
	DefaultWebhookTimeout = 10 * time.Second
	DefaultDatabasePath   = "bindlog.db"
	DefaultTimezone       = "Local"
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "text"
)

// Environment variable names.
const (
	EnvLogfile   = "BINDLOG_LOGFILE"
	EnvDBPath    = "BINDLOG_DB_PATH"
	EnvLogLevel  = "BINDLOG_LOG_LEVEL"
	EnvLogFormat = "BINDLOG_LOG_FORMAT"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Timezone:  DefaultTimezone,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Storage: StorageConfig{
			Driver: StorageDriverSQLite,
			Path:   DefaultDatabasePath,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if logfile := os.Getenv(EnvLogfile); logfile != "" {
		c.Logfile = logfile
	}
	if path := os.Getenv(EnvDBPath); path != "" {
		c.Storage.Path = path
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		c.LogLevel = level
	}
	if format := os.Getenv(EnvLogFormat); format != "" {
		c.LogFormat = format
	}
}
