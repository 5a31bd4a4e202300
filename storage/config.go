package storage

import (
	"errors"
	"fmt"
)

// Provider constants for supported storage backends.
const (
	ProviderLocal  = "local"
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

// Default configuration values.
const (
	DefaultProvider = ProviderLocal
	DefaultBasePath = "dataset"
	DefaultRegion   = "us-east-1"
)

// Config holds storage configuration.
type Config struct {
	// Provider selects the storage backend: "local", "s3" or "memory".
	Provider string `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=local s3 memory"`

	// BasePath is the root directory for local storage.
	BasePath string `yaml:"base_path" mapstructure:"base_path"`

	// Bucket is the S3 bucket name.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`

	// Region is the AWS region for S3.
	Region string `yaml:"region" mapstructure:"region"`

	// Endpoint is a custom S3-compatible endpoint (e.g. MinIO).
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`

	// AccessKey is the AWS access key ID.
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`

	// SecretKey is the AWS secret access key.
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`

	// ForcePathStyle forces path-style URLs instead of virtual-hosted-style.
	ForcePathStyle bool `yaml:"force_path_style" mapstructure:"force_path_style"`
}

// ApplyDefaults fills in zero-valued fields with sensible defaults.
func (c *Config) ApplyDefaults() {
	if c.Provider == "" {
		c.Provider = DefaultProvider
	}
	if c.Provider == ProviderLocal && c.BasePath == "" {
		c.BasePath = DefaultBasePath
	}
	if c.Provider == ProviderS3 && c.Region == "" {
		c.Region = DefaultRegion
	}
}

// Validate checks that the configuration is valid for the selected provider.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderLocal:
		if c.BasePath == "" {
			return errors.New("storage: base_path is required for local provider")
		}
	case ProviderS3:
		var errs []error
		if c.Bucket == "" {
			errs = append(errs, errors.New("storage: bucket is required for s3 provider"))
		}
		if c.Region == "" {
			errs = append(errs, errors.New("storage: region is required for s3 provider"))
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			errs = append(errs, errors.New("storage: access_key and secret_key must be set together"))
		}
		if len(errs) > 0 {
			return fmt.Errorf("storage: invalid s3 config: %w", errors.Join(errs...))
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("storage: unsupported provider %q", c.Provider)
	}
	return nil
}
