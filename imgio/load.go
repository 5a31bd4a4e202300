package imgio

import (
	"context"
	"io"
	"path"
	"path/filepath"
	"strings"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/pipeline"
	"github.com/kbukum/imgprep/storage"
)

// LoadParams configures LoadDir.
type LoadParams struct {
	// Dir is the directory to read.
	Dir string `validate:"required"`
	// Extensions selects files by extension; empty means DefaultExtensions.
	Extensions []string
	// Recursive descends into subdirectories.
	Recursive bool
	// LabelFromDir labels each element with its parent directory name, for
	// class-per-folder layouts.
	LabelFromDir bool
	// Codec decodes files; nil means FileCodec.
	Codec Codec
}

// LoadDir is a pipeline source yielding one element per image file in
// p.Dir. Files are decoded one at a time as the chain pulls them.
func LoadDir(_ context.Context, p LoadParams) (pipeline.Iterator[*dataset.Element], error) {
	var codec Codec = FileCodec{}
	if p.Codec != nil {
		codec = p.Codec
	}
	paths := ScanDir(p.Dir, p.Extensions, p.Recursive)
	return pipeline.Map[string, *dataset.Element](paths, func(_ context.Context, file string) (*dataset.Element, error) {
		e, err := dataset.FromFile(file, codec)
		if err != nil {
			return nil, err
		}
		if p.LabelFromDir {
			e = e.WithLabel(filepath.Base(filepath.Dir(file)))
		}
		return e, nil
	}), nil
}

// StoreParams configures LoadStore.
type StoreParams struct {
	Store        storage.Storage `validate:"required"`
	Prefix       string
	Extensions   []string
	LabelFromDir bool
}

// LoadStore is a pipeline source yielding one element per image object under
// p.Prefix. Objects are listed on the first pull and downloaded lazily.
func LoadStore(_ context.Context, p StoreParams) (pipeline.Iterator[*dataset.Element], error) {
	exts := extSet(p.Extensions)
	var keys []string
	listed := false
	i := 0

	next := func(ctx context.Context) (*dataset.Element, bool, error) {
		if !listed {
			listed = true
			infos, err := p.Store.List(ctx, p.Prefix)
			if err != nil {
				return nil, false, err
			}
			for _, fi := range infos {
				if _, ok := exts[strings.ToLower(path.Ext(fi.Path))]; ok {
					keys = append(keys, fi.Path)
				}
			}
		}
		if i >= len(keys) {
			return nil, false, nil
		}
		key := keys[i]
		i++
		e, err := Fetch(ctx, p.Store, key)
		if err != nil {
			return nil, false, err
		}
		if p.LabelFromDir {
			e = e.WithLabel(path.Base(path.Dir(key)))
		}
		return e, true, nil
	}
	return pipeline.FromFunc(next, nil), nil
}

// Fetch downloads and decodes one object. The element's source is the key.
func Fetch(ctx context.Context, store storage.Storage, key string) (*dataset.Element, error) {
	rc, err := store.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.IO("download", key, err)
	}
	buf, err := DecodeBytes(data)
	if err != nil {
		return nil, errors.IO("decode", key, err)
	}
	return dataset.NewElement(buf, key, ""), nil
}
