package prep

import (
	"context"
	"fmt"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/imgio"
	"github.com/kbukum/imgprep/pipeline"
	"github.com/kbukum/imgprep/transform"
)

// Build assembles source, transform chain and dispatch on b. Nothing is
// read until the dispatch is driven.
func (r *Runner) Build(b *pipeline.Builder) (*pipeline.DispatchStage, error) {
	last, err := r.buildSource(b)
	if err != nil {
		return nil, err
	}
	for i, t := range r.cfg.Transforms {
		next, err := r.transformStage(b, t)
		if err != nil {
			return nil, fmt.Errorf("transforms[%d]: %w", i, err)
		}
		if err := pipeline.Attach(next, last); err != nil {
			return nil, err
		}
		last = next
	}

	d, err := pipeline.NewDispatch(b, r.cfg.Split.Percentages...)
	if err != nil {
		return nil, err
	}
	return d.Attach(last), nil
}

// buildSource returns the loader followed by the annotation and tally
// stages every run starts with.
func (r *Runner) buildSource(b *pipeline.Builder) (pipeline.Stage, error) {
	src := r.cfg.Source
	var last pipeline.Stage
	if r.source != nil {
		last = pipeline.NewSource(b, imgio.LoadStore, imgio.StoreParams{
			Store:        r.source,
			Prefix:       src.Prefix,
			Extensions:   src.Extensions,
			LabelFromDir: src.LabelFromDir,
		})
	} else {
		last = pipeline.NewSource(b, imgio.LoadDir, imgio.LoadParams{
			Dir:          src.Dir,
			Extensions:   src.Extensions,
			Recursive:    src.Recursive,
			LabelFromDir: src.LabelFromDir,
		})
	}

	if r.manifest != nil {
		last = pipeline.NewMap(b, transform.Annotate, transform.AnnotateParams{Manifest: r.manifest}).Attach(last)
	}
	return pipeline.NewMap(b, r.tally, pipeline.NoParams{}).Attach(last), nil
}

// tally counts loaded elements and passes them through.
func (r *Runner) tally(_ context.Context, e *dataset.Element, _ pipeline.NoParams) (pipeline.Iterator[*dataset.Element], error) {
	r.loaded++
	return pipeline.Of(e), nil
}

func (r *Runner) transformStage(b *pipeline.Builder, t TransformConfig) (pipeline.Stage, error) {
	switch t.Type {
	case TransformResize:
		return pipeline.NewMap(b, transform.Resize, transform.ResizeParams{
			Width: t.Width, Height: t.Height, Interpolation: t.Interpolation,
		}), nil
	case TransformGrayscale:
		return pipeline.NewMap(b, transform.Grayscale, pipeline.NoParams{}), nil
	case TransformFlip:
		return pipeline.NewMap(b, transform.FlipHorizontal, transform.FlipParams{
			KeepOriginal: t.KeepOriginal, Suffix: t.Suffix,
		}), nil
	case TransformMinSize:
		return pipeline.NewMap(b, transform.MinSize, transform.MinSizeParams{Width: t.Width, Height: t.Height}), nil
	case TransformRequireLabel:
		return pipeline.NewMap(b, transform.RequireLabel, transform.LabeledParams{Labels: t.Labels}), nil
	case TransformNormalize:
		return pipeline.NewCollectionMap(b, transform.Normalize, transform.NormalizeParams{
			TargetMean: t.TargetMean, TargetStdDev: t.TargetStdDev,
		}), nil
	case TransformShuffle:
		return pipeline.NewCollectionMap(b, transform.Shuffle, transform.ShuffleParams{Seed: t.Seed}), nil
	case TransformDedup:
		return pipeline.NewMap(b, transform.Dedup, transform.DedupParams{Seen: r.seen}), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", t.Type)
	}
}
