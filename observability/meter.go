package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/kbukum/imgprep/logger"
)

// MeterConfig configures the OpenTelemetry meter provider.
type MeterConfig struct {
	// ServiceName is the name of the service.
	ServiceName string
	// ServiceVersion is the version of the service.
	ServiceVersion string
	// Endpoint is the OTLP HTTP endpoint host:port (e.g., "localhost:4318").
	Endpoint string
	// Insecure allows insecure connections (for development).
	Insecure bool
	// Interval is the metric export interval.
	Interval time.Duration
}

// DefaultMeterConfig returns sensible defaults for local runs.
func DefaultMeterConfig(serviceName string) MeterConfig {
	return MeterConfig{
		ServiceName:    serviceName,
		ServiceVersion: "dev",
		Endpoint:       "localhost:4318",
		Insecure:       true,
		Interval:       15 * time.Second,
	}
}

// InitMeter initializes the OpenTelemetry meter provider.
// Returns a MeterProvider that should be shut down on exit.
func InitMeter(ctx context.Context, config *MeterConfig) (*sdkmetric.MeterProvider, error) {
	opts := []otlpmetrichttp.Option{
		otlpmetrichttp.WithEndpoint(config.Endpoint),
	}
	if config.Insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}

	exporter, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating metric exporter: %w", err)
	}

	res, err := newResource(config.ServiceName, config.ServiceVersion)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	readerOpts := []sdkmetric.PeriodicReaderOption{}
	if config.Interval > 0 {
		readerOpts = append(readerOpts, sdkmetric.WithInterval(config.Interval))
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, readerOpts...)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logger.Info("meter initialized", logger.Fields(
		"service", config.ServiceName,
		"endpoint", config.Endpoint,
		"interval", config.Interval.String(),
	))

	return mp, nil
}

// Meter returns a named meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// StageMetrics holds the instruments recorded for every pipeline stage.
type StageMetrics struct {
	elementsTotal metric.Int64Counter
	stageDuration metric.Float64Histogram
	stageTotal    metric.Int64Counter
	errorTotal    metric.Int64Counter
}

// NewStageMetrics creates stage instruments on the given meter.
func NewStageMetrics(meter metric.Meter) (*StageMetrics, error) {
	elementsTotal, err := meter.Int64Counter("pipeline.elements",
		metric.WithDescription("Elements produced by a stage"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.elements counter: %w", err)
	}

	stageDuration, err := meter.Float64Histogram("pipeline.stage.duration",
		metric.WithDescription("Time from first pull to exhaustion of a stage"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.stage.duration histogram: %w", err)
	}

	stageTotal, err := meter.Int64Counter("pipeline.stage.executions",
		metric.WithDescription("Completed stage executions by status"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.stage.executions counter: %w", err)
	}

	errorTotal, err := meter.Int64Counter("pipeline.errors",
		metric.WithDescription("Stage failures by error code"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating pipeline.errors counter: %w", err)
	}

	return &StageMetrics{
		elementsTotal: elementsTotal,
		stageDuration: stageDuration,
		stageTotal:    stageTotal,
		errorTotal:    errorTotal,
	}, nil
}

// RecordStage records one finished stage execution.
func (m *StageMetrics) RecordStage(ctx context.Context, stage, kind, status string, elements int64, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("kind", kind),
	)
	m.elementsTotal.Add(ctx, elements, attrs)
	m.stageDuration.Record(ctx, duration.Seconds(), attrs)
	m.stageTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("kind", kind),
		attribute.String("status", status),
	))
}

// RecordError records a stage failure by error code.
func (m *StageMetrics) RecordError(ctx context.Context, code, stage string) {
	m.errorTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("code", code),
		attribute.String("stage", stage),
	))
}
