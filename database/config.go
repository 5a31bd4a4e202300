package database

import (
	"fmt"
	"time"

	"github.com/kbukum/imgprep/errors"
)

// Config holds the catalog database configuration. The driver is SQLite;
// DSN is a file path or a SQLite URI such as "file::memory:?cache=shared".
type Config struct {
	// DSN is the SQLite database path.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	// MaxOpenConns sets the maximum number of open connections.
	MaxOpenConns int `yaml:"max_open_conns" mapstructure:"max_open_conns"`

	// MaxIdleConns sets the maximum number of idle connections.
	MaxIdleConns int `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`

	// ConnMaxLifetime is the maximum time a connection may be reused (e.g. "1h").
	ConnMaxLifetime string `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`

	// MaxRetries is the number of connection attempts before giving up.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// SlowQueryThreshold is the duration above which queries are logged as
	// slow (e.g. "200ms").
	SlowQueryThreshold string `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`

	// LogLevel is the GORM log level: silent, error, warn or info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "imgprep.db"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = 1
	}
	if c.ConnMaxLifetime == "" {
		c.ConnMaxLifetime = "1h"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.SlowQueryThreshold == "" {
		c.SlowQueryThreshold = "200ms"
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return errors.InvalidInput("database.dsn", "is required")
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.InvalidInput("database.max_idle_conns",
			fmt.Sprintf("must be <= max_open_conns (%d > %d)", c.MaxIdleConns, c.MaxOpenConns))
	}
	if _, err := time.ParseDuration(c.ConnMaxLifetime); err != nil {
		return errors.InvalidInput("database.conn_max_lifetime", fmt.Sprintf("invalid duration %q", c.ConnMaxLifetime))
	}
	if _, err := time.ParseDuration(c.SlowQueryThreshold); err != nil {
		return errors.InvalidInput("database.slow_query_threshold", fmt.Sprintf("invalid duration %q", c.SlowQueryThreshold))
	}
	switch c.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		return errors.InvalidInput("database.log_level", fmt.Sprintf("unknown level %q", c.LogLevel))
	}
	return nil
}
