package kafka

import (
	"fmt"
	"time"

	"github.com/kbukum/imgprep/errors"
)

// DefaultTopic receives run events when Config.Topic is unset.
const DefaultTopic = "imgprep.runs"

// Config holds the broker connection and producer settings for run events.
type Config struct {
	// Enabled turns event publishing on.
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Brokers is the list of Kafka broker addresses.
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`

	// Topic receives run events.
	Topic string `yaml:"topic" mapstructure:"topic"`

	// TLS
	EnableTLS     bool   `yaml:"enable_tls" mapstructure:"enable_tls"`
	TLSSkipVerify bool   `yaml:"tls_skip_verify" mapstructure:"tls_skip_verify"`
	TLSCAFile     string `yaml:"tls_ca_file" mapstructure:"tls_ca_file"`
	TLSCertFile   string `yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile    string `yaml:"tls_key_file" mapstructure:"tls_key_file"`

	// SASL
	EnableSASL    bool   `yaml:"enable_sasl" mapstructure:"enable_sasl"`
	SASLMechanism string `yaml:"sasl_mechanism" mapstructure:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `yaml:"username" mapstructure:"username"`
	Password      string `yaml:"password" mapstructure:"password"`

	// Producer settings
	Compression  string `yaml:"compression" mapstructure:"compression"` // none, gzip, snappy, lz4, zstd
	Retries      int    `yaml:"retries" mapstructure:"retries"`
	BatchSize    int    `yaml:"batch_size" mapstructure:"batch_size"`
	BatchTimeout string `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	WriteTimeout string `yaml:"write_timeout" mapstructure:"write_timeout"`
	RequiredAcks int    `yaml:"required_acks" mapstructure:"required_acks"`

	// Connection settings
	IdleTimeout string `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MetadataTTL string `yaml:"metadata_ttl" mapstructure:"metadata_ttl"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Topic == "" {
		c.Topic = DefaultTopic
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 1
	}
	if c.BatchTimeout == "" {
		c.BatchTimeout = "10ms"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "10s"
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.IdleTimeout == "" {
		c.IdleTimeout = "30s"
	}
	if c.MetadataTTL == "" {
		c.MetadataTTL = "6s"
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks that required fields are present and parseable. A
// disabled config is always valid.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return errors.InvalidInput("events.brokers", "is required")
	}
	if c.Topic == "" {
		return errors.InvalidInput("events.topic", "is required")
	}
	for _, d := range []struct {
		name, val string
	}{
		{"batch_timeout", c.BatchTimeout},
		{"write_timeout", c.WriteTimeout},
		{"idle_timeout", c.IdleTimeout},
		{"metadata_ttl", c.MetadataTTL},
	} {
		if _, err := time.ParseDuration(d.val); err != nil {
			return errors.InvalidInput("events."+d.name, fmt.Sprintf("invalid duration %q", d.val))
		}
	}
	switch c.Compression {
	case "none", "gzip", "snappy", "lz4", "zstd":
	default:
		return errors.InvalidInput("events.compression", fmt.Sprintf("unknown codec %q", c.Compression))
	}
	if c.EnableSASL {
		switch c.SASLMechanism {
		case "PLAIN", "SCRAM-SHA-256", "SCRAM-SHA-512":
		default:
			return errors.InvalidInput("events.sasl_mechanism", fmt.Sprintf("unsupported mechanism %q", c.SASLMechanism))
		}
		if c.Username == "" {
			return errors.InvalidInput("events.username", "is required with SASL")
		}
	}
	if c.Retries <= 0 {
		return errors.InvalidInput("events.retries", "must be > 0")
	}
	if c.BatchSize <= 0 {
		return errors.InvalidInput("events.batch_size", "must be > 0")
	}
	return nil
}

// ParseDuration parses a duration string, returning zero on empty input.
func ParseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
