package transform

import (
	"context"
	"path"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/pipeline"
)

// DefaultFlipSuffix marks the source of a flipped copy.
const DefaultFlipSuffix = "_flip"

// FlipParams configures FlipHorizontal.
type FlipParams struct {
	// KeepOriginal yields the input before its mirror image.
	KeepOriginal bool `yaml:"keep_original"`
	// Suffix is inserted before the source extension of the flipped copy.
	Suffix string `yaml:"suffix"`
}

// FlipHorizontal mirrors e left to right together with its boxes. With
// KeepOriginal it is an augmentation that doubles the set.
func FlipHorizontal(_ context.Context, e *dataset.Element, p FlipParams) (pipeline.Iterator[*dataset.Element], error) {
	buf := e.Buffer()
	h, w, c := buf.Shape()
	src := buf.Pix()
	pix := make([]uint8, len(src))
	for y := 0; y < h; y++ {
		row := y * w * c
		for x := 0; x < w; x++ {
			copy(pix[row+(w-1-x)*c:row+(w-x)*c], src[row+x*c:row+(x+1)*c])
		}
	}
	flipped, err := dataset.NewBuffer(h, w, c, pix)
	if err != nil {
		return nil, err
	}

	out := e.Derive(flipped)
	if boxes := e.Boxes(); len(boxes) > 0 {
		mirrored := make([]dataset.BoundingBox, len(boxes))
		for i, b := range boxes {
			mirrored[i] = b.MirrorX(float64(w))
		}
		out = out.WithBoxes(mirrored)
	}
	if e.Source() != "" {
		suffix := p.Suffix
		if suffix == "" {
			suffix = DefaultFlipSuffix
		}
		out = out.WithSource(withSuffix(e.Source(), suffix))
	}

	if p.KeepOriginal {
		return pipeline.Of(e, out), nil
	}
	return pipeline.Of(out), nil
}

func withSuffix(source, suffix string) string {
	ext := path.Ext(source)
	return source[:len(source)-len(ext)] + suffix + ext
}
