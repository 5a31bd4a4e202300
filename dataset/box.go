package dataset

import (
	"fmt"
	"math"

	"github.com/kbukum/imgprep/errors"
)

// BoundingBox is an axis-aligned, labeled region of an image in pixel
// coordinates. It is a value type; methods return new boxes.
type BoundingBox struct {
	XMin  float64 `yaml:"xmin" json:"xmin"`
	YMin  float64 `yaml:"ymin" json:"ymin"`
	XMax  float64 `yaml:"xmax" json:"xmax"`
	YMax  float64 `yaml:"ymax" json:"ymax"`
	Label string  `yaml:"label" json:"label"`
}

// NewBoundingBox builds a box, rejecting non-finite coordinates.
func NewBoundingBox(xmin, ymin, xmax, ymax float64, label string) (BoundingBox, error) {
	b := BoundingBox{XMin: xmin, YMin: ymin, XMax: xmax, YMax: ymax, Label: label}
	if err := b.Validate(); err != nil {
		return BoundingBox{}, err
	}
	return b, nil
}

// Validate checks that every coordinate is finite.
func (b BoundingBox) Validate() error {
	for _, v := range []float64{b.XMin, b.YMin, b.XMax, b.YMax} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.InvalidInput("bounding_box", fmt.Sprintf("non-finite coordinate in %s", b))
		}
	}
	return nil
}

// Width returns XMax - XMin.
func (b BoundingBox) Width() float64 { return b.XMax - b.XMin }

// Height returns YMax - YMin.
func (b BoundingBox) Height() float64 { return b.YMax - b.YMin }

// Scale multiplies x coordinates by sx and y coordinates by sy.
func (b BoundingBox) Scale(sx, sy float64) BoundingBox {
	return BoundingBox{
		XMin:  b.XMin * sx,
		YMin:  b.YMin * sy,
		XMax:  b.XMax * sx,
		YMax:  b.YMax * sy,
		Label: b.Label,
	}
}

// MirrorX mirrors the box around the vertical center line of an image of the
// given width.
func (b BoundingBox) MirrorX(imageWidth float64) BoundingBox {
	return BoundingBox{
		XMin:  imageWidth - b.XMax,
		YMin:  b.YMin,
		XMax:  imageWidth - b.XMin,
		YMax:  b.YMax,
		Label: b.Label,
	}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%s(%g,%g,%g,%g)", b.Label, b.XMin, b.YMin, b.XMax, b.YMax)
}
