package transform

import (
	"context"
	"image"

	"golang.org/x/image/draw"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/pipeline"
)

// Interpolation kernels for Resize.
const (
	InterpNearest    = "nearest"
	InterpBilinear   = "bilinear"
	InterpCatmullRom = "catmullrom"
)

// ResizeParams sets the output size. Interpolation defaults to CatmullRom.
type ResizeParams struct {
	Width         int    `yaml:"width" validate:"gt=0"`
	Height        int    `yaml:"height" validate:"gt=0"`
	Interpolation string `yaml:"interpolation" validate:"omitempty,oneof=nearest bilinear catmullrom"`
}

func (p ResizeParams) scaler() draw.Scaler {
	switch p.Interpolation {
	case InterpNearest:
		return draw.NearestNeighbor
	case InterpBilinear:
		return draw.BiLinear
	default:
		return draw.CatmullRom
	}
}

// Resize scales e to p.Width × p.Height. Bounding boxes are scaled with the
// image; channel count is preserved for gray and RGB inputs.
func Resize(_ context.Context, e *dataset.Element, p ResizeParams) (pipeline.Iterator[*dataset.Element], error) {
	if e.Width() == p.Width && e.Height() == p.Height {
		return pipeline.Of(e), nil
	}

	src := e.Buffer().Image()
	rect := image.Rect(0, 0, p.Width, p.Height)
	var dst draw.Image
	if e.Channels() == dataset.ChannelsGray {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewNRGBA(rect)
	}
	p.scaler().Scale(dst, rect, src, src.Bounds(), draw.Src, nil)

	out := e.Derive(dataset.BufferFromImage(dst))
	if boxes := e.Boxes(); len(boxes) > 0 {
		sx := float64(p.Width) / float64(e.Width())
		sy := float64(p.Height) / float64(e.Height())
		scaled := make([]dataset.BoundingBox, len(boxes))
		for i, b := range boxes {
			scaled[i] = b.Scale(sx, sy)
		}
		out = out.WithBoxes(scaled)
	}
	return pipeline.Of(out), nil
}
