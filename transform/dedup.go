package transform

import (
	"context"
	"sync"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/pipeline"
)

// SeenSet remembers fingerprints. Add reports whether key was new.
type SeenSet interface {
	Add(ctx context.Context, key string) (bool, error)
}

// MemorySeen is a process-local SeenSet.
type MemorySeen struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemorySeen creates an empty set.
func NewMemorySeen() *MemorySeen {
	return &MemorySeen{keys: make(map[string]struct{})}
}

// Add implements SeenSet.
func (s *MemorySeen) Add(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

// Len returns the number of distinct keys.
func (s *MemorySeen) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// DedupParams configures Dedup.
type DedupParams struct {
	Seen SeenSet `validate:"required"`
}

// Dedup drops elements whose pixels were already seen, keeping the first
// occurrence.
func Dedup(ctx context.Context, e *dataset.Element, p DedupParams) (pipeline.Iterator[*dataset.Element], error) {
	first, err := p.Seen.Add(ctx, e.Buffer().Fingerprint())
	if err != nil {
		return nil, err
	}
	if !first {
		return pipeline.Empty[*dataset.Element](), nil
	}
	return pipeline.Of(e), nil
}
