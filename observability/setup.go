package observability

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Config is the telemetry section of a run configuration.
type Config struct {
	Enabled    bool          `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure   bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate float64       `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
	Interval   time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// ShutdownFunc flushes and stops the providers installed by Setup.
type ShutdownFunc func(ctx context.Context) error

// Setup installs tracer and meter providers when cfg.Enabled is set.
// When disabled it returns a no-op shutdown and leaves the global no-op
// providers in place.
func Setup(ctx context.Context, cfg Config, serviceName, serviceVersion string) (ShutdownFunc, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}
	cfg.ApplyDefaults()

	tp, err := InitTracer(ctx, TracerConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		SampleRate:     cfg.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("tracer: %w", err)
	}

	mp, err := InitMeter(ctx, &MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		Interval:       cfg.Interval,
	})
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("meter: %w", err)
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
