package config

import (
	"fmt"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

// Environments accepted by ServiceConfig.
var Environments = []string{"development", "staging", "production"}

// ServiceConfig holds the fields every imgprep entry point shares. Embed it
// in a larger config struct:
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Split SplitConfig    `yaml:"split" mapstructure:"split"`
//	}
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`
}

// GetServiceConfig returns the embedded ServiceConfig.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}

// ApplyDefaults fills in the environment and logging defaults. Embedding
// structs call it first from their own ApplyDefaults.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "imgprep"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Debug && c.Logging.Level == "" {
		c.Logging.Level = "debug"
	}
	if c.Logging.ServiceName == "" {
		c.Logging.ServiceName = c.Name
	}
	c.Logging.ApplyDefaults()
}

// Validate checks the environment and logging settings.
func (c *ServiceConfig) Validate() error {
	found := false
	for _, v := range Environments {
		if c.Environment == v {
			found = true
			break
		}
	}
	if !found {
		return errors.InvalidInput("environment",
			fmt.Sprintf("must be one of %v (got: %s)", Environments, c.Environment))
	}
	if err := c.Logging.Validate(); err != nil {
		return errors.InvalidInput("logging", err.Error())
	}
	return nil
}
