// Package observability provides OpenTelemetry tracing and metrics for
// pipeline runs.
//
// Telemetry is off unless Setup is called with Enabled set; until then the
// global no-op providers make every span and instrument free.
//
//	shutdown, err := observability.Setup(ctx, cfg.Telemetry, "imgprep", version.Version)
//	defer shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "pipeline.Map#2")
//	defer span.End()
//
//	metrics, err := observability.NewStageMetrics(observability.Meter("imgprep"))
//	metrics.RecordStage(ctx, "Map#2", "Map", "ok", 42, duration)
package observability
