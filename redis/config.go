package redis

import (
	"fmt"
	"time"

	"github.com/kbukum/imgprep/errors"
)

// DefaultKeyPrefix namespaces every key the dedup set writes.
const DefaultKeyPrefix = "imgprep"

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string `yaml:"addr" mapstructure:"addr"`

	// Password is the Redis server password.
	Password string `yaml:"password" mapstructure:"password"`

	// DB is the Redis database number.
	DB int `yaml:"db" mapstructure:"db"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `yaml:"pool_size" mapstructure:"pool_size"`

	// MaxRetries is the maximum number of retries before giving up.
	MaxRetries int `yaml:"max_retries" mapstructure:"max_retries"`

	// DialTimeout is the timeout for establishing new connections (e.g. "5s").
	DialTimeout string `yaml:"dial_timeout" mapstructure:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads (e.g. "3s").
	ReadTimeout string `yaml:"read_timeout" mapstructure:"read_timeout"`

	// WriteTimeout is the timeout for socket writes (e.g. "3s").
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout"`

	// KeyPrefix is prepended to set keys, followed by a colon.
	KeyPrefix string `yaml:"key_prefix" mapstructure:"key_prefix"`

	// TTL expires a seen-set after the last write (e.g. "24h"). Empty keeps
	// it forever.
	TTL string `yaml:"ttl" mapstructure:"ttl"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = DefaultKeyPrefix
	}
}

// Validate checks that the durations parse.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.InvalidInput("redis.addr", "is required")
	}
	for name, v := range map[string]string{
		"dial_timeout":  c.DialTimeout,
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return errors.InvalidInput("redis."+name, fmt.Sprintf("invalid duration %q", v))
		}
	}
	if c.TTL != "" {
		if _, err := time.ParseDuration(c.TTL); err != nil {
			return errors.InvalidInput("redis.ttl", fmt.Sprintf("invalid duration %q", c.TTL))
		}
	}
	return nil
}

func (c *Config) ttl() time.Duration {
	d, _ := time.ParseDuration(c.TTL)
	return d
}
