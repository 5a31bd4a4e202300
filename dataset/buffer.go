package dataset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"

	"github.com/cespare/xxhash/v2"

	"github.com/kbukum/imgprep/errors"
)

// Supported channel layouts.
const (
	ChannelsGray = 1
	ChannelsRGB  = 3
	ChannelsRGBA = 4
)

// Buffer is an immutable height × width × channels array of 8-bit samples
// stored row-major with interleaved channels.
type Buffer struct {
	height   int
	width    int
	channels int
	pix      []uint8
}

// NewBuffer copies pix into a new Buffer of the given shape.
func NewBuffer(height, width, channels int, pix []uint8) (*Buffer, error) {
	if height <= 0 || width <= 0 {
		return nil, errors.InvalidInput("shape", fmt.Sprintf("dimensions must be positive (got %dx%d)", height, width))
	}
	switch channels {
	case ChannelsGray, ChannelsRGB, ChannelsRGBA:
	default:
		return nil, errors.InvalidInput("channels", fmt.Sprintf("unsupported channel count %d", channels))
	}
	if len(pix) != height*width*channels {
		return nil, errors.InvalidInput("pix", fmt.Sprintf("expected %d samples for shape (%d,%d,%d), got %d",
			height*width*channels, height, width, channels, len(pix)))
	}
	owned := make([]uint8, len(pix))
	copy(owned, pix)
	return &Buffer{height: height, width: width, channels: channels, pix: owned}, nil
}

// BufferFromImage copies img into a Buffer in canonical channel order:
// grayscale sources become 1-channel buffers, everything else becomes RGB.
func BufferFromImage(img image.Image) *Buffer {
	b := img.Bounds()
	h, w := b.Dy(), b.Dx()

	switch img.(type) {
	case *image.Gray, *image.Gray16:
		pix := make([]uint8, 0, h*w)
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				g := color.GrayModel.Convert(img.At(x, y)).(color.Gray)
				pix = append(pix, g.Y)
			}
		}
		return &Buffer{height: h, width: w, channels: ChannelsGray, pix: pix}
	}

	pix := make([]uint8, 0, h*w*ChannelsRGB)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			pix = append(pix, c.R, c.G, c.B)
		}
	}
	return &Buffer{height: h, width: w, channels: ChannelsRGB, pix: pix}
}

// Height returns the number of rows.
func (b *Buffer) Height() int { return b.height }

// Width returns the number of columns.
func (b *Buffer) Width() int { return b.width }

// Channels returns the number of samples per pixel.
func (b *Buffer) Channels() int { return b.channels }

// Shape returns (height, width, channels).
func (b *Buffer) Shape() (int, int, int) { return b.height, b.width, b.channels }

// At returns the sample at row y, column x, channel c.
func (b *Buffer) At(y, x, c int) uint8 {
	return b.pix[(y*b.width+x)*b.channels+c]
}

// Pix returns a copy of the raw samples.
func (b *Buffer) Pix() []uint8 {
	out := make([]uint8, len(b.pix))
	copy(out, b.pix)
	return out
}

// Len returns the number of samples.
func (b *Buffer) Len() int { return len(b.pix) }

// Equal reports whether both buffers have the same shape and samples.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	return b.height == o.height && b.width == o.width && b.channels == o.channels &&
		bytes.Equal(b.pix, o.pix)
}

// Fingerprint hashes the shape and samples. Equal buffers have equal
// fingerprints.
func (b *Buffer) Fingerprint() string {
	h := xxhash.New()
	var hdr [12]byte
	binary.LittleEndian.PutUint32(hdr[0:], uint32(b.height))
	binary.LittleEndian.PutUint32(hdr[4:], uint32(b.width))
	binary.LittleEndian.PutUint32(hdr[8:], uint32(b.channels))
	_, _ = h.Write(hdr[:])
	_, _ = h.Write(b.pix)
	return fmt.Sprintf("%016x", h.Sum64())
}

// Image renders the buffer as an image.Image (Gray or NRGBA).
func (b *Buffer) Image() image.Image {
	rect := image.Rect(0, 0, b.width, b.height)
	if b.channels == ChannelsGray {
		img := image.NewGray(rect)
		copy(img.Pix, b.pix)
		return img
	}
	img := image.NewNRGBA(rect)
	for i, j := 0, 0; i < len(b.pix); i, j = i+b.channels, j+4 {
		img.Pix[j] = b.pix[i]
		img.Pix[j+1] = b.pix[i+1]
		img.Pix[j+2] = b.pix[i+2]
		if b.channels == ChannelsRGBA {
			img.Pix[j+3] = b.pix[i+3]
		} else {
			img.Pix[j+3] = 0xff
		}
	}
	return img
}

func (b *Buffer) String() string {
	return fmt.Sprintf("(%d,%d,%d)", b.height, b.width, b.channels)
}
