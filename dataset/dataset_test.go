package dataset

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/imgprep/errors"
)

func solid(t *testing.T, h, w, c int, v uint8) *Buffer {
	t.Helper()
	pix := make([]uint8, h*w*c)
	for i := range pix {
		pix[i] = v
	}
	buf, err := NewBuffer(h, w, c, pix)
	if err != nil {
		t.Fatalf("NewBuffer: %v", err)
	}
	return buf
}

func named(t *testing.T, names ...string) []*Element {
	t.Helper()
	out := make([]*Element, len(names))
	for i, n := range names {
		out[i] = NewElement(solid(t, 2, 2, 1, 0), n, "")
	}
	return out
}

func sources(elems []*Element) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.Source()
	}
	return out
}

func TestNewBuffer_CopiesInput(t *testing.T) {
	pix := []uint8{1, 2, 3, 4}
	buf, err := NewBuffer(2, 2, 1, pix)
	if err != nil {
		t.Fatal(err)
	}
	pix[0] = 99
	if buf.At(0, 0, 0) != 1 {
		t.Error("buffer must not alias its input slice")
	}
	out := buf.Pix()
	out[1] = 99
	if buf.At(0, 1, 0) != 2 {
		t.Error("Pix must return a copy")
	}
}

func TestNewBuffer_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		h, w, c int
		n       int
	}{
		{"zero height", 0, 2, 3, 0},
		{"bad channels", 2, 2, 2, 8},
		{"short pix", 2, 2, 3, 11},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewBuffer(tc.h, tc.w, tc.c, make([]uint8, tc.n))
			if !errors.HasCode(err, errors.ErrCodeInvalidInput) {
				t.Errorf("expected INVALID_INPUT, got %v", err)
			}
		})
	}
}

func TestBufferFromImage_RGB(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	buf := BufferFromImage(img)
	h, w, c := buf.Shape()
	if h != 2 || w != 3 || c != ChannelsRGB {
		t.Fatalf("expected shape (2,3,3), got %s", buf)
	}
	if buf.At(1, 2, 0) != 10 || buf.At(1, 2, 1) != 20 || buf.At(1, 2, 2) != 30 {
		t.Errorf("unexpected pixel (%d,%d,%d)", buf.At(1, 2, 0), buf.At(1, 2, 1), buf.At(1, 2, 2))
	}
}

func TestBufferFromImage_GrayStaysSingleChannel(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 4, 4))
	img.SetGray(1, 1, color.Gray{Y: 200})
	buf := BufferFromImage(img)
	if buf.Channels() != ChannelsGray {
		t.Fatalf("expected 1 channel, got %d", buf.Channels())
	}
	if buf.At(1, 1, 0) != 200 {
		t.Errorf("expected 200, got %d", buf.At(1, 1, 0))
	}
}

func TestBuffer_ImageRoundTrip(t *testing.T) {
	buf, _ := NewBuffer(1, 2, 3, []uint8{1, 2, 3, 4, 5, 6})
	back := BufferFromImage(buf.Image())
	if !buf.Equal(back) {
		t.Errorf("expected %v, got %v", buf.Pix(), back.Pix())
	}
}

func fromBuffer(t *testing.T, buf *Buffer) *Element {
	t.Helper()
	e, err := FromBuffer(buf)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestElement_DerivedDimensions(t *testing.T) {
	e := fromBuffer(t, solid(t, 4, 7, 3, 1))
	if e.Height() != 4 || e.Width() != 7 || e.Channels() != 3 {
		t.Errorf("expected 4x7x3, got %dx%dx%d", e.Height(), e.Width(), e.Channels())
	}
	if e.Source() != "" {
		t.Errorf("in-memory element should have no source, got %q", e.Source())
	}
	if !strings.HasPrefix(e.String(), "<in-memory") {
		t.Errorf("unexpected String %q", e.String())
	}
}

func TestFromBuffer_DeepCopies(t *testing.T) {
	buf := solid(t, 2, 2, 1, 5)
	e := fromBuffer(t, buf)
	if e.Buffer() == buf {
		t.Error("FromBuffer must not alias the caller's buffer")
	}
	if !e.Buffer().Equal(buf) {
		t.Error("FromBuffer must preserve pixel values")
	}
}

func TestFromBuffer_Nil(t *testing.T) {
	e, err := FromBuffer(nil)
	if e != nil || !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("FromBuffer(nil) = %v, %v; want INVALID_INPUT", e, err)
	}
}

type fakeDecoder struct {
	buf *Buffer
	err error
}

func (f fakeDecoder) Decode(string) (*Buffer, error) { return f.buf, f.err }

func TestFromFile(t *testing.T) {
	e, err := FromFile("a.png", fakeDecoder{buf: solid(t, 3, 3, 3, 0)})
	if err != nil {
		t.Fatal(err)
	}
	if e.Source() != "a.png" || e.String() != "a.png" {
		t.Errorf("expected source a.png, got %q", e.Source())
	}

	_, err = FromFile("b.png", fakeDecoder{err: fmt.Errorf("corrupt")})
	if !errors.HasCode(err, errors.ErrCodeIO) {
		t.Errorf("expected IO error, got %v", err)
	}
}

func TestElement_Boxes(t *testing.T) {
	e := fromBuffer(t, solid(t, 10, 10, 1, 0))
	b1, _ := NewBoundingBox(0, 0, 5, 5, "cat")
	b2, _ := NewBoundingBox(5, 5, 9, 9, "dog")
	if err := e.AddBox(b1); err != nil {
		t.Fatal(err)
	}
	if err := e.AddBox(b2); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]BoundingBox{b1, b2}, e.Boxes()); diff != "" {
		t.Errorf("boxes mismatch (-want +got):\n%s", diff)
	}

	boxes := e.Boxes()
	boxes[0].Label = "mutated"
	if e.Boxes()[0].Label != "cat" {
		t.Error("Boxes must return a copy")
	}

	if err := e.AddBox(BoundingBox{XMin: math.NaN()}); err == nil {
		t.Error("expected non-finite box to be rejected")
	}
}

func TestElement_DeriveKeepsMetadata(t *testing.T) {
	e := NewElement(solid(t, 4, 4, 3, 0), "x.jpg", "cat")
	b, _ := NewBoundingBox(1, 1, 2, 2, "eye")
	_ = e.AddBox(b)

	d := e.Derive(solid(t, 2, 2, 3, 9))
	if d.Source() != "x.jpg" || d.Label() != "cat" || len(d.Boxes()) != 1 {
		t.Errorf("derived element lost metadata: %q %q %v", d.Source(), d.Label(), d.Boxes())
	}
	if d.Width() != 2 {
		t.Errorf("expected new buffer, got width %d", d.Width())
	}
	_ = d.AddBox(b)
	if len(e.Boxes()) != 1 {
		t.Error("appending to a derived element must not affect the original")
	}
}

func TestElement_WithSource(t *testing.T) {
	e := NewElement(solid(t, 2, 2, 1, 0), "a.jpg", "cat")
	f := e.WithSource("a_flip.jpg")
	if f.Source() != "a_flip.jpg" || f.Label() != "cat" || e.Source() != "a.jpg" {
		t.Errorf("WithSource: got %q/%q, original %q", f.Source(), f.Label(), e.Source())
	}
}

func TestBuffer_Fingerprint(t *testing.T) {
	a := solid(t, 2, 3, 1, 7)
	if a.Fingerprint() != solid(t, 2, 3, 1, 7).Fingerprint() {
		t.Error("equal buffers hash differently")
	}
	if a.Fingerprint() == solid(t, 3, 2, 1, 7).Fingerprint() {
		t.Error("shape is not part of the fingerprint")
	}
	if a.Fingerprint() == solid(t, 2, 3, 1, 8).Fingerprint() {
		t.Error("samples are not part of the fingerprint")
	}
	if len(a.Fingerprint()) != 16 {
		t.Errorf("fingerprint %q is not 16 hex digits", a.Fingerprint())
	}
}

func TestBoundingBox_Transforms(t *testing.T) {
	b := BoundingBox{XMin: 1, YMin: 2, XMax: 3, YMax: 6, Label: "x"}
	if got := b.Scale(2, 0.5); got != (BoundingBox{XMin: 2, YMin: 1, XMax: 6, YMax: 3, Label: "x"}) {
		t.Errorf("Scale: got %v", got)
	}
	if got := b.MirrorX(10); got != (BoundingBox{XMin: 7, YMin: 2, XMax: 9, YMax: 6, Label: "x"}) {
		t.Errorf("MirrorX: got %v", got)
	}
	if b.Width() != 2 || b.Height() != 4 {
		t.Errorf("unexpected size %vx%v", b.Width(), b.Height())
	}
}

func TestCollection_IndexingAndSlicing(t *testing.T) {
	c := NewCollection(named(t, "a", "b", "c", "d")...)
	if c.Len() != 4 {
		t.Fatalf("expected 4, got %d", c.Len())
	}
	if c.At(1).Source() != "b" || c.At(-1).Source() != "d" {
		t.Errorf("unexpected At results %s %s", c.At(1), c.At(-1))
	}
	if _, ok := c.Get(4); ok {
		t.Error("Get(4) should be out of range")
	}

	s := c.Slice(1, 3)
	if diff := cmp.Diff([]string{"b", "c"}, sources(s.Elements())); diff != "" {
		t.Errorf("slice mismatch (-want +got):\n%s", diff)
	}
	if s.At(0) != c.At(1) {
		t.Error("slices share elements by reference")
	}

	repl := named(t, "z")[0]
	c.Set(0, repl)
	if c.At(0) != repl {
		t.Error("Set should replace in place")
	}
	if s.At(0).Source() != "b" {
		t.Error("Set on the original must not change a slice's ordering")
	}

	c.Clear()
	if c.Len() != 0 {
		t.Error("expected empty collection after Clear")
	}
}

func TestCollection_IndependentCursors(t *testing.T) {
	c := NewCollection(named(t, "a", "b", "c")...)
	outer := c.Cursor()
	var pairs []string
	for {
		o, ok := outer.Next()
		if !ok {
			break
		}
		inner := c.Cursor()
		for {
			i, ok := inner.Next()
			if !ok {
				break
			}
			pairs = append(pairs, o.Source()+i.Source())
		}
	}
	if len(pairs) != 9 {
		t.Errorf("nested traversal should visit 9 pairs, got %d: %v", len(pairs), pairs)
	}
}

func TestCursor_RemainingAndReset(t *testing.T) {
	c := NewCollection(named(t, "a", "b")...)
	cur := c.Cursor()
	cur.Next()
	if cur.Remaining() != 1 {
		t.Errorf("expected 1 remaining, got %d", cur.Remaining())
	}
	c.Append(named(t, "c")...)
	if cur.Remaining() != 2 {
		t.Errorf("appended elements are visible to live cursors, got %d", cur.Remaining())
	}
	cur.Reset()
	e, _ := cur.Next()
	if e.Source() != "a" {
		t.Errorf("expected a after reset, got %s", e)
	}
}

func TestCollection_All(t *testing.T) {
	c := NewCollection(named(t, "a", "b", "c")...)
	var got []string
	for i, e := range c.All() {
		got = append(got, fmt.Sprintf("%d:%s", i, e))
		if i == 1 {
			break
		}
	}
	if diff := cmp.Diff([]string{"0:a", "1:b"}, got); diff != "" {
		t.Errorf("All mismatch (-want +got):\n%s", diff)
	}
}

func TestCollection_StringShort(t *testing.T) {
	c := NewCollection(named(t, "a", "b")...)
	if got := c.String(); got != "[0] a\n[1] b\n" {
		t.Errorf("unexpected listing %q", got)
	}
}

func TestCollection_StringElidesMiddle(t *testing.T) {
	names := make([]string, 25)
	for i := range names {
		names[i] = fmt.Sprintf("img%02d", i)
	}
	c := NewCollection(named(t, names...)...)
	lines := strings.Split(strings.TrimSuffix(c.String(), "\n"), "\n")
	if len(lines) != 21 {
		t.Fatalf("expected 10 + separator + 10 lines, got %d", len(lines))
	}
	if lines[0] != "[0] img00" || lines[9] != "[9] img09" {
		t.Errorf("unexpected head %q .. %q", lines[0], lines[9])
	}
	if lines[10] != "......" {
		t.Errorf("expected separator, got %q", lines[10])
	}
	if lines[11] != "[15] img15" || lines[20] != "[24] img24" {
		t.Errorf("unexpected tail %q .. %q", lines[11], lines[20])
	}

	c.SetMaxPrintLines(0)
	if c.String() != "" {
		t.Error("max print lines 0 renders nothing")
	}
	if c.Summary() != "Collection contains 25 images" {
		t.Errorf("unexpected summary %q", c.Summary())
	}
}

func TestComputeStats(t *testing.T) {
	a := NewElement(solid(t, 10, 20, 3, 0), "a", "cat")
	b := NewElement(solid(t, 30, 40, 3, 0), "b", "dog")
	c := NewElement(solid(t, 20, 30, 3, 0), "c", "cat")
	box, _ := NewBoundingBox(0, 0, 1, 1, "eye")
	_ = a.AddBox(box)

	s := ComputeStats(NewCollection(a, b, c))
	if s.Count != 3 || s.Labeled != 3 || s.Boxes != 1 {
		t.Errorf("unexpected counts %+v", s)
	}
	if s.MeanWidth != 30 || s.MeanHeight != 20 {
		t.Errorf("expected mean 30x20, got %vx%v", s.MeanWidth, s.MeanHeight)
	}
	if s.StdWidth != 10 {
		t.Errorf("expected sample std 10, got %v", s.StdWidth)
	}
	if diff := cmp.Diff(map[string]int{"cat": 2, "dog": 1}, s.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestComputeStats_SingleAndEmpty(t *testing.T) {
	if s := ComputeStats(NewCollection()); s.Count != 0 {
		t.Errorf("expected empty stats, got %+v", s)
	}
	s := ComputeStats(NewCollection(fromBuffer(t, solid(t, 5, 6, 1, 0))))
	if s.StdWidth != 0 || s.MeanWidth != 6 {
		t.Errorf("single element stats: %+v", s)
	}
}
