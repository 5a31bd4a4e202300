package imgio

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/storage"
)

// Entry is the annotation of one image.
type Entry struct {
	Label string                `yaml:"label,omitempty"`
	Boxes []dataset.BoundingBox `yaml:"boxes,omitempty"`
}

// Manifest maps image file names to their annotations:
//
//	images:
//	  cat-001.jpg:
//	    label: cat
//	    boxes:
//	      - {xmin: 4, ymin: 2, xmax: 30, ymax: 28, label: face}
type Manifest struct {
	Images map[string]Entry `yaml:"images"`
}

// ReadManifest loads a manifest file.
func ReadManifest(file string) (*Manifest, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.IO("read manifest", file, err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, errors.IO("parse manifest", file, err)
	}
	return m, nil
}

// ParseManifest decodes a YAML manifest and validates every box.
func ParseManifest(data []byte) (*Manifest, error) {
	m := &Manifest{}
	if err := yaml.Unmarshal(data, m); err != nil {
		return nil, err
	}
	if m.Images == nil {
		m.Images = make(map[string]Entry)
	}
	for name, entry := range m.Images {
		for _, b := range entry.Boxes {
			if err := b.Validate(); err != nil {
				if appErr, ok := errors.AsAppError(err); ok {
					return nil, appErr.WithDetail("image", name)
				}
				return nil, err
			}
		}
	}
	return m, nil
}

// Write encodes m as YAML with image names sorted.
func (m *Manifest) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(m); err != nil {
		return err
	}
	return enc.Close()
}

// Lookup finds the entry for source, first by the exact key and then by the
// base name.
func (m *Manifest) Lookup(source string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	if e, ok := m.Images[source]; ok {
		return e, true
	}
	e, ok := m.Images[baseName(source)]
	return e, ok
}

// Apply returns e annotated from the manifest. Boxes in the manifest are
// appended after any the element already has; the label is only set when
// the manifest has one.
func (m *Manifest) Apply(e *dataset.Element) *dataset.Element {
	entry, ok := m.Lookup(e.Source())
	if !ok {
		return e
	}
	out := e
	if entry.Label != "" {
		out = out.WithLabel(entry.Label)
	}
	if len(entry.Boxes) > 0 {
		out = out.WithBoxes(append(out.Boxes(), entry.Boxes...))
	}
	return out
}

// Add records the annotation of e under name.
func (m *Manifest) Add(name string, e *dataset.Element) {
	if m.Images == nil {
		m.Images = make(map[string]Entry)
	}
	m.Images[name] = Entry{Label: e.Label(), Boxes: e.Boxes()}
}

// Names returns the image names in lexical order.
func (m *Manifest) Names() []string {
	names := make([]string, 0, len(m.Images))
	for n := range m.Images {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ManifestFromCollection builds a manifest keyed by the base name of each
// element's source. Elements without a source are skipped.
func ManifestFromCollection(c *dataset.Collection) *Manifest {
	m := &Manifest{Images: make(map[string]Entry, c.Len())}
	for _, e := range c.All() {
		if e.Source() == "" {
			continue
		}
		m.Add(baseName(e.Source()), e)
	}
	return m
}

// WriteManifest uploads m to key in store.
func WriteManifest(ctx context.Context, store storage.Storage, key string, m *Manifest) error {
	var buf bytes.Buffer
	if err := m.Write(&buf); err != nil {
		return errors.IO("encode manifest", key, err)
	}
	return store.Upload(ctx, key, &buf)
}

func baseName(source string) string {
	return path.Base(filepath.ToSlash(strings.TrimSpace(source)))
}
