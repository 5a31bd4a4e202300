package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/observability"
)

// Hook is called with each stage right before its iterator is handed out.
type Hook func(ctx context.Context, s Stage)

// Builder owns the stage id counter and the profiling collaborators shared
// by every stage it creates. A Builder is not safe for concurrent use.
type Builder struct {
	lastID  int
	runID   string
	log     *logger.Logger
	metrics *observability.StageMetrics
	hooks   []Hook
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the logger used by the profiling hook.
func WithLogger(l *logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.log = l
		}
	}
}

// WithMetrics records per-stage metrics on m.
func WithMetrics(m *observability.StageMetrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) Option {
	return func(b *Builder) {
		if id != "" {
			b.runID = id
		}
	}
}

// WithHook adds a hook invoked on every stage execution.
func WithHook(h Hook) Option {
	return func(b *Builder) {
		if h != nil {
			b.hooks = append(b.hooks, h)
		}
	}
}

// NewBuilder creates a builder whose first stage gets id 1.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		runID: uuid.NewString(),
		log:   logger.Get("pipeline"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RunID identifies this pipeline in logs and spans.
func (b *Builder) RunID() string { return b.runID }

// Stages returns how many stages the builder has created.
func (b *Builder) Stages() int { return b.lastID }

func (b *Builder) nextID() int {
	b.lastID++
	return b.lastID
}

// instrument runs the profiling hook for s and wraps it so the stage's
// lifetime is traced, logged and measured.
func (b *Builder) instrument(ctx context.Context, s Stage, it Iterator[*dataset.Element]) Iterator[*dataset.Element] {
	fields := logger.Fields(
		logger.FieldStage, s.Name(),
		logger.FieldStageID, s.ID(),
	)
	if up := s.Upstream(); up != nil {
		fields[logger.FieldUpstream] = up.Name()
	}
	log := b.log.WithContext(logger.ContextWithRunID(ctx, b.runID))
	log.Debug("executing stage", fields)

	for _, h := range b.hooks {
		h(ctx, s)
	}
	return &profiledIter{b: b, stage: s, inner: it, log: log}
}

// profiledIter counts what a stage yields. Its span starts on the first
// pull and ends when the stage is exhausted, fails or is closed.
type profiledIter struct {
	b     *Builder
	stage Stage
	inner Iterator[*dataset.Element]
	log   *logger.Logger

	span     trace.Span
	start    time.Time
	count    int64
	started  bool
	finished bool
}

func (it *profiledIter) Next(ctx context.Context) (*dataset.Element, bool, error) {
	if it.finished {
		return nil, false, nil
	}
	if err := ctx.Err(); err != nil {
		it.finish(ctx, err)
		return nil, false, err
	}
	if !it.started {
		it.started = true
		it.start = time.Now()
		_, it.span = observability.StartSpan(ctx, it.stage.Name())
		observability.SetAttribute(it.span, observability.AttrStage, it.stage.Name())
		observability.SetAttribute(it.span, observability.AttrKind, string(it.stage.Kind()))
		observability.SetAttribute(it.span, observability.AttrRunID, it.b.runID)
	}

	e, ok, err := it.inner.Next(trace.ContextWithSpan(ctx, it.span))
	if err != nil {
		it.finish(ctx, err)
		return nil, false, err
	}
	if !ok {
		it.finish(ctx, nil)
		return nil, false, nil
	}
	it.count++
	return e, true, nil
}

func (it *profiledIter) Close() error {
	it.finish(context.Background(), nil)
	return it.inner.Close()
}

func (it *profiledIter) finish(ctx context.Context, err error) {
	if it.finished {
		return
	}
	it.finished = true
	if !it.started {
		return
	}

	elapsed := time.Since(it.start)
	status := "ok"
	fields := logger.Fields(
		logger.FieldStage, it.stage.Name(),
		logger.FieldElements, it.count,
		logger.FieldDuration, elapsed.Milliseconds(),
	)
	observability.SetAttribute(it.span, observability.AttrElements, it.count)

	if err != nil {
		status = "error"
		observability.SetAttribute(it.span, observability.AttrStatus, status)
		it.span.RecordError(err)
		it.log.Error("stage failed", logger.MergeWithError(fields, err))
		if it.b.metrics != nil {
			code := string(errors.ErrCodeInternal)
			if appErr, ok := errors.AsAppError(err); ok {
				code = string(appErr.Code)
			}
			it.b.metrics.RecordError(ctx, code, it.stage.Name())
		}
	} else {
		it.log.Debug("stage completed", fields)
	}

	if it.b.metrics != nil {
		it.b.metrics.RecordStage(ctx, it.stage.Name(), string(it.stage.Kind()), status, it.count, elapsed)
	}
	it.span.End()
}
