// Package memory provides an in-process storage backend for tests and dry
// runs.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderMemory, func(context.Context, storage.Config, *logger.Logger) (storage.Storage, error) {
		return New(), nil
	})
}

// memFile holds a stored object's data and metadata.
type memFile struct {
	data        []byte
	contentType string
	modTime     time.Time
}

// Storage is a storage.Storage backed by a map. It is safe for concurrent use.
type Storage struct {
	mu    sync.RWMutex
	files map[string]*memFile
}

// New creates an empty in-memory store.
func New() *Storage {
	return &Storage{files: make(map[string]*memFile)}
}

// Len returns the number of stored objects.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Bytes returns a copy of the object at p.
func (s *Storage) Bytes(p string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[clean(p)]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), f.data...), true
}

func (s *Storage) Upload(_ context.Context, p string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return errors.IO("read upload data", p, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[clean(p)] = &memFile{
		data:        data,
		contentType: mime.TypeByExtension(path.Ext(p)),
		modTime:     time.Now(),
	}
	return nil
}

func (s *Storage) Download(_ context.Context, p string) (io.ReadCloser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[clean(p)]
	if !ok {
		return nil, errors.NotFound("object", p)
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func (s *Storage) Delete(_ context.Context, p string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.files, clean(p))
	return nil
}

func (s *Storage) Exists(_ context.Context, p string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.files[clean(p)]
	return ok, nil
}

func (s *Storage) URL(_ context.Context, p string) (string, error) {
	return fmt.Sprintf("mem://%s", clean(p)), nil
}

func (s *Storage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefix = strings.TrimPrefix(prefix, "/")
	result := []storage.FileInfo{}
	for p, f := range s.files {
		if strings.HasPrefix(p, prefix) {
			result = append(result, storage.FileInfo{
				Path:         p,
				Size:         int64(len(f.data)),
				LastModified: f.modTime,
				ContentType:  f.contentType,
			})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Path < result[j].Path })
	return result, nil
}

func clean(p string) string {
	return strings.TrimPrefix(path.Clean("/"+p), "/")
}

var _ storage.Storage = (*Storage)(nil)
