package pipeline

import (
	"context"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
)

// SourceFunc produces the initial element sequence from its params.
type SourceFunc[P any] func(ctx context.Context, params P) (Iterator[*dataset.Element], error)

// SourceStage is the root of a chain. It has no upstream.
type SourceStage[P any] struct {
	node
	fn     SourceFunc[P]
	params P
}

// NewSource binds fn and params into a source stage. fn is not called until
// the first element is pulled.
func NewSource[P any](b *Builder, fn SourceFunc[P], params P) *SourceStage[P] {
	return &SourceStage[P]{node: newNode(b, KindSource), fn: fn, params: params}
}

// Params returns the bound params.
func (s *SourceStage[P]) Params() P { return s.params }

// Attach always fails: sources are roots. The usage error is returned by
// Execute.
func (s *SourceStage[P]) Attach(up Stage) *SourceStage[P] {
	_ = s.setUpstream(up)
	return s
}

func (s *SourceStage[P]) setUpstream(Stage) error {
	err := errors.Usage(s.name, "a source stage does not accept an upstream")
	if s.err == nil {
		s.err = err
	}
	return err
}

// Execute returns a lazy iterator over the source's elements.
func (s *SourceStage[P]) Execute(ctx context.Context) (Iterator[*dataset.Element], error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.fn == nil {
		return nil, errors.Configuration(s.name, "transformation")
	}
	if err := checkParams(s.name, s.params); err != nil {
		return nil, err
	}

	fn, params := s.fn, s.params
	it := deferred(func(ctx context.Context) (Iterator[*dataset.Element], error) {
		src, err := fn(ctx, params)
		if err != nil {
			return nil, err
		}
		if src == nil {
			return Empty[*dataset.Element](), nil
		}
		return src, nil
	})
	return s.b.instrument(ctx, s, it), nil
}
