package pipeline

import (
	"context"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
)

// MapFunc turns one element into zero or more elements.
type MapFunc[P any] func(ctx context.Context, e *dataset.Element, params P) (Iterator[*dataset.Element], error)

// CollectionFunc transforms the whole upstream output at once.
type CollectionFunc[P any] func(ctx context.Context, c *dataset.Collection, params P) (Iterator[*dataset.Element], error)

// MapStage applies a transformation to its upstream. In per-element mode it
// is a streaming flat-map; in whole-collection mode it materializes the
// upstream before calling the transformation once.
type MapStage[P any] struct {
	node
	fn              MapFunc[P]
	collFn          CollectionFunc[P]
	wholeCollection bool
	params          P
}

// NewMap creates a per-element map stage. All outputs of one input are
// yielded before the next input is pulled.
func NewMap[P any](b *Builder, fn MapFunc[P], params P) *MapStage[P] {
	return &MapStage[P]{node: newNode(b, KindMap), fn: fn, params: params}
}

// NewCollectionMap creates a whole-collection map stage for transformations
// that need global context, such as normalization.
func NewCollectionMap[P any](b *Builder, fn CollectionFunc[P], params P) *MapStage[P] {
	return &MapStage[P]{node: newNode(b, KindMap), collFn: fn, wholeCollection: true, params: params}
}

// WholeCollection reports the stage mode.
func (m *MapStage[P]) WholeCollection() bool { return m.wholeCollection }

// Params returns the bound params.
func (m *MapStage[P]) Params() P { return m.params }

// Attach sets up as the upstream and returns m. A failure is returned by
// Execute.
func (m *MapStage[P]) Attach(up Stage) *MapStage[P] {
	_ = m.link(m, up)
	return m
}

func (m *MapStage[P]) setUpstream(up Stage) error { return m.link(m, up) }

// Execute validates the chain and returns a lazy iterator over the mapped
// elements.
func (m *MapStage[P]) Execute(ctx context.Context) (Iterator[*dataset.Element], error) {
	up, err := m.requireUpstream()
	if err != nil {
		return nil, err
	}
	if err := m.expectElements(up); err != nil {
		return nil, err
	}
	if (m.wholeCollection && m.collFn == nil) || (!m.wholeCollection && m.fn == nil) {
		return nil, errors.Configuration(m.name, "transformation")
	}
	if err := checkParams(m.name, m.params); err != nil {
		return nil, err
	}

	src, err := up.Execute(ctx)
	if err != nil {
		return nil, err
	}

	var it Iterator[*dataset.Element]
	if m.wholeCollection {
		it = &wholeIter[P]{source: src, fn: m.collFn, params: m.params}
	} else {
		fn, params, name, upName := m.fn, m.params, m.name, up.Name()
		it = FlatMap(src, func(ctx context.Context, e *dataset.Element) (Iterator[*dataset.Element], error) {
			if e == nil {
				return nil, errors.TypeMismatch(name, upName, "*dataset.Element", "nil")
			}
			return fn(ctx, e, params)
		})
	}
	return m.b.instrument(ctx, m, it), nil
}

// wholeIter drains its source into a collection on the first pull.
type wholeIter[P any] struct {
	source Iterator[*dataset.Element]
	fn     CollectionFunc[P]
	params P
	out    Iterator[*dataset.Element]
	done   bool
}

func (it *wholeIter[P]) Next(ctx context.Context) (*dataset.Element, bool, error) {
	if it.done {
		return nil, false, nil
	}
	if it.out == nil {
		elems, err := CollectAll(ctx, it.source)
		if err != nil {
			it.done = true
			return nil, false, err
		}
		out, err := it.fn(ctx, dataset.NewCollection(elems...), it.params)
		if err != nil {
			it.done = true
			return nil, false, err
		}
		if out == nil {
			out = Empty[*dataset.Element]()
		}
		it.out = out
	}
	e, ok, err := it.out.Next(ctx)
	if err != nil || !ok {
		it.done = true
	}
	return e, ok, err
}

func (it *wholeIter[P]) Close() error {
	if it.out != nil {
		return it.out.Close()
	}
	return it.source.Close()
}
