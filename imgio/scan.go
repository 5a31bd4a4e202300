package imgio

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbukum/imgprep/errors"
)

// DefaultExtensions is used when no extensions are given.
var DefaultExtensions = []string{".jpg"}

// PathIterator lazily walks a directory and yields the paths of files with
// a recognized extension in lexical order. Subdirectories are descended
// only when the iterator is recursive, in lexical order at the point they
// are listed.
type PathIterator struct {
	root      string
	exts      map[string]struct{}
	recursive bool

	opened  bool
	done    bool
	pending []string
}

// ScanDir returns an iterator over the image paths in dir. Extensions are
// matched case-insensitively and may be given with or without the dot.
// Nothing is read until the first call to Next.
func ScanDir(dir string, exts []string, recursive bool) *PathIterator {
	return &PathIterator{root: dir, exts: extSet(exts), recursive: recursive}
}

// Next returns the next matching path. An unreadable directory is an IO
// error.
func (it *PathIterator) Next(ctx context.Context) (string, bool, error) {
	if it.done {
		return "", false, nil
	}
	if !it.opened {
		it.opened = true
		info, err := os.Stat(it.root)
		if err != nil {
			it.done = true
			return "", false, errors.IO("scan", it.root, err)
		}
		if !info.IsDir() {
			it.done = true
			return "", false, errors.IO("scan", it.root, errors.InvalidInput("dir", "not a directory"))
		}
		if err := it.expand(it.root); err != nil {
			it.done = true
			return "", false, err
		}
	}

	for len(it.pending) > 0 {
		if err := ctx.Err(); err != nil {
			it.done = true
			return "", false, err
		}
		p := it.pending[0]
		it.pending = it.pending[1:]
		if strings.HasSuffix(p, string(filepath.Separator)) {
			if err := it.expand(strings.TrimSuffix(p, string(filepath.Separator))); err != nil {
				it.done = true
				return "", false, err
			}
			continue
		}
		return p, true, nil
	}
	it.done = true
	return "", false, nil
}

// expand lists dir and puts its matches in front of the remaining paths so
// the walk stays depth-first. Directories are queued with a trailing
// separator.
func (it *PathIterator) expand(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.IO("read directory", dir, err)
	}
	found := make([]string, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if it.recursive {
				found = append(found, p+string(filepath.Separator))
			}
			continue
		}
		if it.Match(e.Name()) {
			found = append(found, p)
		}
	}
	it.pending = append(found, it.pending...)
	return nil
}

// Match reports whether name has one of the iterator's extensions.
func (it *PathIterator) Match(name string) bool {
	_, ok := it.exts[strings.ToLower(filepath.Ext(name))]
	return ok
}

// Close stops the walk.
func (it *PathIterator) Close() error {
	it.done = true
	it.pending = nil
	return nil
}

func extSet(exts []string) map[string]struct{} {
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}
