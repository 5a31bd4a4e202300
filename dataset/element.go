package dataset

import (
	"fmt"
	"image"

	"github.com/kbukum/imgprep/errors"
)

// Decoder turns a file into a pixel buffer. imgio.FileCodec is the
// production implementation.
type Decoder interface {
	Decode(path string) (*Buffer, error)
}

// Element is one image with its source identifier, optional label and
// ordered bounding boxes.
type Element struct {
	buf    *Buffer
	source string
	label  string
	boxes  []BoundingBox
}

// FromFile decodes path with dec. Decode failures are returned as IO errors.
func FromFile(path string, dec Decoder) (*Element, error) {
	buf, err := dec.Decode(path)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeIO) {
			return nil, err
		}
		return nil, errors.IO("decode", path, err)
	}
	return &Element{buf: buf, source: path}, nil
}

// FromImage copies the pixels of img into a new element with no source.
func FromImage(img image.Image) *Element {
	return &Element{buf: BufferFromImage(img)}
}

// FromBuffer deep-copies buf into a new element with no source. A nil buf
// is INVALID_INPUT.
func FromBuffer(buf *Buffer) (*Element, error) {
	if buf == nil {
		return nil, errors.InvalidInput("buffer", "is nil")
	}
	owned, err := NewBuffer(buf.height, buf.width, buf.channels, buf.pix)
	if err != nil {
		return nil, err
	}
	return &Element{buf: owned}, nil
}

// NewElement builds an element around an already-built buffer. Buffers are
// immutable, so sharing buf with other elements cannot leak mutations.
func NewElement(buf *Buffer, source, label string) *Element {
	return &Element{buf: buf, source: source, label: label}
}

// Derive returns a new element that keeps the source, label and boxes of e
// but holds buf as its pixels. Transforms use it to produce their output.
func (e *Element) Derive(buf *Buffer) *Element {
	return &Element{buf: buf, source: e.source, label: e.label, boxes: e.Boxes()}
}

// WithLabel returns a copy of e carrying label.
func (e *Element) WithLabel(label string) *Element {
	return &Element{buf: e.buf, source: e.source, label: label, boxes: e.Boxes()}
}

// WithSource returns a copy of e identified by source. Augmentations use it
// so derived images do not collide with their original on save.
func (e *Element) WithSource(source string) *Element {
	return &Element{buf: e.buf, source: source, label: e.label, boxes: e.Boxes()}
}

// WithBoxes returns a copy of e whose annotations are replaced by boxes.
func (e *Element) WithBoxes(boxes []BoundingBox) *Element {
	cp := make([]BoundingBox, len(boxes))
	copy(cp, boxes)
	return &Element{buf: e.buf, source: e.source, label: e.label, boxes: cp}
}

// AddBox appends a bounding box to the element's annotations.
func (e *Element) AddBox(b BoundingBox) error {
	if err := b.Validate(); err != nil {
		return err
	}
	e.boxes = append(e.boxes, b)
	return nil
}

// Buffer returns the element's pixels.
func (e *Element) Buffer() *Buffer { return e.buf }

// Source returns the file the element was loaded from, or "" for in-memory images.
func (e *Element) Source() string { return e.source }

// Label returns the classification tag, or "" when unlabeled.
func (e *Element) Label() string { return e.label }

// HasLabel reports whether the element carries a classification tag.
func (e *Element) HasLabel() bool { return e.label != "" }

// Boxes returns a copy of the annotations in insertion order.
func (e *Element) Boxes() []BoundingBox {
	if len(e.boxes) == 0 {
		return nil
	}
	out := make([]BoundingBox, len(e.boxes))
	copy(out, e.boxes)
	return out
}

// Height is derived from the pixel buffer.
func (e *Element) Height() int { return e.buf.height }

// Width is derived from the pixel buffer.
func (e *Element) Width() int { return e.buf.width }

// Channels is derived from the pixel buffer.
func (e *Element) Channels() int { return e.buf.channels }

func (e *Element) String() string {
	if e.source != "" {
		return e.source
	}
	return fmt.Sprintf("<in-memory %dx%dx%d>", e.buf.width, e.buf.height, e.buf.channels)
}
