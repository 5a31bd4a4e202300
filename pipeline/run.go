package pipeline

import (
	"context"

	"github.com/kbukum/imgprep/dataset"
)

// Run executes s and drains its output, discarding every element. Use it
// when only side effects such as writing files matter.
func Run(ctx context.Context, s Stage) error {
	it, err := s.Execute(ctx)
	if err != nil {
		return err
	}
	return Drain(ctx, it, func(context.Context, *dataset.Element) error { return nil })
}

// Collect executes s and gathers its output into a collection.
func Collect(ctx context.Context, s Stage) (*dataset.Collection, error) {
	it, err := s.Execute(ctx)
	if err != nil {
		return nil, err
	}
	elems, err := CollectAll(ctx, it)
	if err != nil {
		return nil, err
	}
	return dataset.NewCollection(elems...), nil
}

// Partition routes the upstream of d once and returns one collection per
// branch.
func Partition(ctx context.Context, d *DispatchStage) ([]*dataset.Collection, error) {
	out := make([]*dataset.Collection, d.Branches())
	for i := range out {
		out[i] = dataset.NewCollection()
	}
	err := Route(ctx, d, func(_ context.Context, branch int, e *dataset.Element) error {
		out[branch].Append(e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Route drives d's stream once and calls sink for every routed element.
func Route(ctx context.Context, d *DispatchStage, sink func(ctx context.Context, branch int, e *dataset.Element) error) error {
	it, err := d.Stream(ctx)
	if err != nil {
		return err
	}
	return Drain(ctx, it, func(ctx context.Context, r Routed) error {
		if r.Kind != Value {
			return nil
		}
		return sink(ctx, r.Branch, r.Element)
	})
}
