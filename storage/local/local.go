package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
	"github.com/kbukum/imgprep/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderLocal, func(_ context.Context, cfg storage.Config, _ *logger.Logger) (storage.Storage, error) {
		return NewStorage(cfg.BasePath)
	})
}

// Storage implements storage.Storage using the local filesystem.
type Storage struct {
	basePath string
}

// NewStorage creates a new local filesystem storage.
func NewStorage(basePath string) (*Storage, error) {
	abs, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve base path: %w", err)
	}
	if err := os.MkdirAll(abs, 0o750); err != nil {
		return nil, errors.IO("create directory", abs, err)
	}
	return &Storage{basePath: abs}, nil
}

// BasePath returns the absolute root directory.
func (s *Storage) BasePath() string { return s.basePath }

// fullPath maps a key to a file under the base path. Cleaning the key as an
// absolute path keeps ".." segments from escaping the root.
func (s *Storage) fullPath(path string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(filepath.Clean("/"+path)))
}

// Upload writes data from reader to a local file.
func (s *Storage) Upload(_ context.Context, path string, reader io.Reader) error {
	fullPath := s.fullPath(path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return errors.IO("create directory", filepath.Dir(fullPath), err)
	}

	f, err := os.Create(fullPath)
	if err != nil {
		return errors.IO("create file", fullPath, err)
	}

	if _, err := io.Copy(f, reader); err != nil {
		_ = f.Close()
		return errors.IO("write file", fullPath, err)
	}
	if err := f.Close(); err != nil {
		return errors.IO("close file", fullPath, err)
	}
	return nil
}

// Download returns a reader for the local file at the given path.
func (s *Storage) Download(_ context.Context, path string) (io.ReadCloser, error) {
	fullPath := s.fullPath(path)
	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFound("object", path).WithCause(err)
		}
		return nil, errors.IO("open file", fullPath, err)
	}
	return f, nil
}

// Delete removes a local file. Returns nil if the file does not exist.
func (s *Storage) Delete(_ context.Context, path string) error {
	fullPath := s.fullPath(path)
	if err := os.Remove(fullPath); err != nil && !os.IsNotExist(err) {
		return errors.IO("delete file", fullPath, err)
	}
	return nil
}

// Exists checks whether a local file exists.
func (s *Storage) Exists(_ context.Context, path string) (bool, error) {
	fullPath := s.fullPath(path)
	_, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.IO("stat file", fullPath, err)
	}
	return true, nil
}

// URL returns a file:// URL for the local file.
func (s *Storage) URL(_ context.Context, path string) (string, error) {
	u := &url.URL{Scheme: "file", Path: filepath.ToSlash(s.fullPath(path))}
	return u.String(), nil
}

// List returns metadata for all files whose relative path starts with prefix.
func (s *Storage) List(_ context.Context, prefix string) ([]storage.FileInfo, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	root := s.basePath
	if dir := filepath.Dir(filepath.FromSlash(prefix)); prefix != "" && dir != "." {
		root = filepath.Join(s.basePath, dir)
	}

	files := []storage.FileInfo{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !strings.HasPrefix(rel, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		ct := mime.TypeByExtension(filepath.Ext(path))
		if ct == "" {
			ct = "application/octet-stream"
		}
		files = append(files, storage.FileInfo{
			Path:         rel,
			Size:         info.Size(),
			LastModified: info.ModTime(),
			ContentType:  ct,
		})
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return []storage.FileInfo{}, nil
		}
		return nil, errors.IO("list files", root, err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].Path < files[j].Path
	})
	return files, nil
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
