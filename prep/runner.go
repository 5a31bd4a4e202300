package prep

import (
	"context"
	stderrors "errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kbukum/imgprep/catalog"
	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/imgio"
	"github.com/kbukum/imgprep/kafka"
	"github.com/kbukum/imgprep/kafka/producer"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/observability"
	"github.com/kbukum/imgprep/pipeline"
	"github.com/kbukum/imgprep/redis"
	"github.com/kbukum/imgprep/storage"
	"github.com/kbukum/imgprep/transform"

	// Storage providers selectable from config.
	_ "github.com/kbukum/imgprep/storage/local"
	_ "github.com/kbukum/imgprep/storage/memory"
	_ "github.com/kbukum/imgprep/storage/s3"
)

// ManifestFile is the per-branch manifest object name.
const ManifestFile = "manifest.yaml"

// RunRecorder stores finished runs.
type RunRecorder interface {
	RecordRun(ctx context.Context, run *catalog.Run) error
}

// EventPublisher announces finished runs.
type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Runner executes prep runs for one Config. A Runner is not safe for
// concurrent use.
type Runner struct {
	cfg       Config
	log       *logger.Logger
	source    storage.Storage
	output    storage.Storage
	seen      transform.SeenSet
	manifest  *imgio.Manifest
	recorder  RunRecorder
	publisher EventPublisher
	metrics   *observability.StageMetrics
	closers   []func() error

	loaded int
}

// Option configures a Runner. Injected collaborators take precedence over
// the ones the config would open.
type Option func(*Runner)

// WithLogger sets the runner logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Runner) { r.log = l }
}

// WithSourceStore reads input objects from s.
func WithSourceStore(s storage.Storage) Option {
	return func(r *Runner) { r.source = s }
}

// WithOutputStore writes the split to s.
func WithOutputStore(s storage.Storage) Option {
	return func(r *Runner) { r.output = s }
}

// WithSeenSet backs the dedup transform with s.
func WithSeenSet(s transform.SeenSet) Option {
	return func(r *Runner) { r.seen = s }
}

// WithRecorder records finished runs on rec.
func WithRecorder(rec RunRecorder) Option {
	return func(r *Runner) { r.recorder = rec }
}

// WithPublisher announces finished runs on p.
func WithPublisher(p EventPublisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithMetrics records per-stage metrics on m.
func WithMetrics(m *observability.StageMetrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// NewRunner validates cfg and opens the collaborators it names: stores, the
// Redis dedup set, the catalog and the event producer. Close releases them.
func NewRunner(ctx context.Context, cfg Config, opts ...Option) (*Runner, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Get("prep")
	}
	if err := r.open(ctx); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func (r *Runner) open(ctx context.Context) error {
	var err error
	if r.source == nil && r.cfg.Source.Storage != nil {
		if r.source, err = storage.New(ctx, *r.cfg.Source.Storage, r.log); err != nil {
			return err
		}
	}
	if r.output == nil {
		if r.output, err = storage.New(ctx, r.cfg.Output.Storage, r.log); err != nil {
			return err
		}
	}
	if r.cfg.Source.Manifest != "" {
		if r.manifest, err = imgio.ReadManifest(r.cfg.Source.Manifest); err != nil {
			return err
		}
	}
	if r.recorder == nil && r.cfg.Catalog.Enabled {
		c, err := catalog.Open(ctx, r.cfg.Catalog.Database, r.log.WithComponent("catalog"))
		if err != nil {
			return err
		}
		r.recorder = c
		r.closers = append(r.closers, c.Close)
	}
	if r.publisher == nil && r.cfg.Events.Enabled {
		p, err := producer.NewProducer(r.cfg.Events, r.log)
		if err != nil {
			return err
		}
		pub := producer.NewPublisher(p, r.log)
		r.publisher = pub
		r.closers = append(r.closers, pub.Close)
	}
	return nil
}

// seenSetFor returns the dedup set for a run. Redis sets are opened per run
// so an unnamed namespace scopes to the run id.
func (r *Runner) seenSetFor(ctx context.Context, runID string) (transform.SeenSet, func() error, error) {
	if r.seen != nil || !r.cfg.UsesDedup() {
		return r.seen, func() error { return nil }, nil
	}
	if r.cfg.Dedup.Backend != DedupRedis {
		return transform.NewMemorySeen(), func() error { return nil }, nil
	}
	client, err := redis.New(r.cfg.Dedup.Redis, r.log)
	if err != nil {
		return nil, nil, err
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, nil, err
	}
	name := r.cfg.Dedup.Namespace
	if name == "" {
		name = runID
	}
	return redis.NewSeenSet(client, name), client.Close, nil
}

// Close releases everything NewRunner opened.
func (r *Runner) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	r.closers = nil
	return stderrors.Join(errs...)
}

// Config returns the validated configuration.
func (r *Runner) Config() Config { return r.cfg }

// Run loads, transforms and splits the dataset once, writing each branch
// under <prefix>/<branch name>/ in the output store. The run is recorded in
// the catalog and announced as an event whether or not it succeeds.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	b := pipeline.NewBuilder(
		pipeline.WithLogger(r.log.WithComponent("pipeline")),
		pipeline.WithMetrics(r.metrics),
	)
	res := newResult(b.RunID(), r.cfg)
	ctx = logger.ContextWithRunID(ctx, res.RunID)
	log := r.log.WithContext(ctx)

	ctx, span := observability.StartSpan(ctx, "prep.run")
	defer span.End()
	observability.SetAttribute(span, observability.AttrRunID, res.RunID)

	err := r.run(ctx, b, res)
	res.FinishedAt = time.Now().UTC()
	if err != nil {
		res.Err = err
		observability.SetSpanError(ctx, err)
		log.Error("run failed", logger.MergeWithError(logger.Fields(
			logger.FieldElements, res.Routed,
		), err))
	} else {
		log.Info("run finished", logger.Fields(
			"loaded", res.Loaded,
			logger.FieldElements, res.Routed,
			logger.FieldDuration, res.Duration().Milliseconds(),
		))
	}

	if recErr := r.record(ctx, res); recErr != nil {
		if err == nil {
			return res, recErr
		}
		log.Warn("run not recorded", logger.MergeWithError(nil, recErr))
	}
	r.announce(ctx, log, res)
	return res, err
}

func (r *Runner) run(ctx context.Context, b *pipeline.Builder, res *Result) error {
	r.loaded = 0
	defer func() { res.Loaded = r.loaded }()

	seen, closeSeen, err := r.seenSetFor(ctx, res.RunID)
	if err != nil {
		return err
	}
	defer closeSeen()
	prev := r.seen
	r.seen = seen
	defer func() { r.seen = prev }()

	if r.cfg.Output.Clean {
		if err := r.clean(ctx); err != nil {
			return err
		}
	}

	d, err := r.Build(b)
	if err != nil {
		return err
	}

	manifests := make([]*imgio.Manifest, len(res.Branches))
	used := make([]map[string]bool, len(res.Branches))
	for i := range manifests {
		manifests[i] = &imgio.Manifest{Images: map[string]imgio.Entry{}}
		used[i] = map[string]bool{}
	}

	out := r.cfg.Output
	err = pipeline.Route(ctx, d, func(ctx context.Context, branch int, e *dataset.Element) error {
		name := uniqueName(used[branch], imgio.ObjectName(e, out.Format))
		key := path.Join(res.Branches[branch].Prefix, name)
		if err := imgio.Put(ctx, r.output, key, e.Buffer(), imgio.ResolveFormat(e, out.Format), out.Quality); err != nil {
			return err
		}
		manifests[branch].Add(name, e)
		res.Branches[branch].Count++
		res.Routed++
		return nil
	})
	if err != nil {
		return err
	}

	if out.Manifest {
		for i, m := range manifests {
			key := path.Join(res.Branches[i].Prefix, ManifestFile)
			if err := imgio.WriteManifest(ctx, r.output, key, m); err != nil {
				return err
			}
		}
	}
	for _, br := range res.Branches {
		r.log.Debug("branch written", logger.Fields(
			logger.FieldBranch, br.Name,
			logger.FieldElements, br.Count,
			logger.FieldPath, br.Prefix,
		))
	}
	return nil
}

// uniqueName returns name, or name with a numeric suffix when an earlier
// element of the branch already took it.
func uniqueName(used map[string]bool, name string) string {
	candidate := name
	ext := path.Ext(name)
	for i := 1; used[candidate]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", strings.TrimSuffix(name, ext), i, ext)
	}
	used[candidate] = true
	return candidate
}

// clean deletes every object under the output prefix.
func (r *Runner) clean(ctx context.Context) error {
	prefix := strings.Trim(r.cfg.Output.Prefix, "/")
	if prefix == "" {
		return errors.Usage("clean", "output prefix is empty")
	}
	prefix += "/"
	objs, err := r.output.List(ctx, prefix)
	if err != nil {
		return err
	}
	for _, o := range objs {
		if err := r.output.Delete(ctx, o.Path); err != nil {
			return err
		}
	}
	if len(objs) > 0 {
		r.log.Debug("output cleaned", logger.Fields(logger.FieldPath, r.cfg.Output.Prefix, "objects", len(objs)))
	}
	return nil
}

func (r *Runner) record(ctx context.Context, res *Result) error {
	if r.recorder == nil {
		return nil
	}
	return r.recorder.RecordRun(ctx, res.CatalogRun())
}

// announce publishes the run event. Publishing is best effort: a broker
// failure is logged and does not fail the run.
func (r *Runner) announce(ctx context.Context, log *logger.Logger, res *Result) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, res.Event()); err != nil {
		log.Warn("run event not published", logger.MergeWithError(nil, err))
	}
}

// Inspect loads and annotates the source without transforming or writing
// anything, and returns the collection with its statistics.
func (r *Runner) Inspect(ctx context.Context) (*dataset.Collection, dataset.Stats, error) {
	b := pipeline.NewBuilder(pipeline.WithLogger(r.log.WithComponent("pipeline")))
	src, err := r.buildSource(b)
	if err != nil {
		return nil, dataset.Stats{}, err
	}
	c, err := pipeline.Collect(ctx, src)
	if err != nil {
		return nil, dataset.Stats{}, err
	}
	return c, dataset.ComputeStats(c), nil
}

var (
	_ RunRecorder    = (*catalog.Catalog)(nil)
	_ EventPublisher = (*producer.KafkaPublisher)(nil)
)
