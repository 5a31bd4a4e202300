package pipeline

import (
	"context"

	"github.com/kbukum/imgprep/dataset"
)

// Iterator provides pull-based sequential access to a finite stream of values.
// Iterators are single-use: once exhausted they are not restartable.
type Iterator[T any] interface {
	// Next returns the next value. Returns (zero, false, nil) when exhausted.
	Next(ctx context.Context) (T, bool, error)
	// Close releases any resources held by the iterator.
	Close() error
}

// --- Constructors ---

// FromSlice creates an iterator over a slice of values.
func FromSlice[T any](items []T) Iterator[T] {
	return &sliceIter[T]{items: items}
}

// Of creates an iterator over its arguments.
func Of[T any](items ...T) Iterator[T] {
	return &sliceIter[T]{items: items}
}

// Empty returns an exhausted iterator. Per-element transforms return it to
// drop an element.
func Empty[T any]() Iterator[T] {
	return &sliceIter[T]{}
}

// FromCollection iterates over a collection through its own cursor.
func FromCollection(c *dataset.Collection) Iterator[*dataset.Element] {
	return &cursorIter{cur: c.Cursor()}
}

// FromFunc creates an iterator from a next function and an optional closer.
func FromFunc[T any](next func(ctx context.Context) (T, bool, error), closer func() error) Iterator[T] {
	return &funcIter[T]{next: next, closer: closer}
}

// --- Terminals ---

// Drain pulls every value from iter and sends each to sink, then closes iter.
func Drain[T any](ctx context.Context, iter Iterator[T], sink func(context.Context, T) error) error {
	defer iter.Close()
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := sink(ctx, val); err != nil {
			return err
		}
	}
}

// CollectAll pulls every value from iter into a slice, then closes iter.
// On error the values pulled so far are returned with it.
func CollectAll[T any](ctx context.Context, iter Iterator[T]) ([]T, error) {
	defer iter.Close()
	var result []T
	for {
		val, ok, err := iter.Next(ctx)
		if err != nil {
			return result, err
		}
		if !ok {
			return result, nil
		}
		result = append(result, val)
	}
}

// --- Internal iterators ---

type sliceIter[T any] struct {
	items []T
	index int
}

func (it *sliceIter[T]) Next(_ context.Context) (T, bool, error) {
	if it.index >= len(it.items) {
		var zero T
		return zero, false, nil
	}
	val := it.items[it.index]
	it.index++
	return val, true, nil
}

func (it *sliceIter[T]) Close() error { return nil }

type cursorIter struct {
	cur *dataset.Cursor
}

func (it *cursorIter) Next(_ context.Context) (*dataset.Element, bool, error) {
	e, ok := it.cur.Next()
	return e, ok, nil
}

func (it *cursorIter) Close() error { return nil }

type funcIter[T any] struct {
	next   func(ctx context.Context) (T, bool, error)
	closer func() error
	done   bool
}

func (it *funcIter[T]) Next(ctx context.Context) (T, bool, error) {
	if it.done {
		var zero T
		return zero, false, nil
	}
	val, ok, err := it.next(ctx)
	if err != nil || !ok {
		it.done = true
	}
	return val, ok, err
}

func (it *funcIter[T]) Close() error {
	it.done = true
	if it.closer != nil {
		return it.closer()
	}
	return nil
}

// lazyIter defers opening its source until the first pull, so building and
// executing a chain performs no I/O.
type lazyIter[T any] struct {
	open   func(ctx context.Context) (Iterator[T], error)
	source Iterator[T]
	failed bool
}

func deferred[T any](open func(ctx context.Context) (Iterator[T], error)) Iterator[T] {
	return &lazyIter[T]{open: open}
}

func (it *lazyIter[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if it.failed {
		return zero, false, nil
	}
	if it.source == nil {
		src, err := it.open(ctx)
		if err != nil {
			it.failed = true
			return zero, false, err
		}
		it.source = src
	}
	return it.source.Next(ctx)
}

func (it *lazyIter[T]) Close() error {
	if it.source != nil {
		return it.source.Close()
	}
	return nil
}
