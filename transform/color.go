package transform

import (
	"context"
	"image/color"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/pipeline"
)

// Grayscale converts e to a single channel using the ITU-R BT.601 weights of
// color.GrayModel. Gray input passes through.
func Grayscale(_ context.Context, e *dataset.Element, _ pipeline.NoParams) (pipeline.Iterator[*dataset.Element], error) {
	if e.Channels() == dataset.ChannelsGray {
		return pipeline.Of(e), nil
	}
	buf := e.Buffer()
	h, w, c := buf.Shape()
	src := buf.Pix()
	pix := make([]uint8, h*w)
	for i := range pix {
		s := src[i*c : i*c+3]
		g := color.GrayModel.Convert(color.RGBA{R: s[0], G: s[1], B: s[2], A: 0xff}).(color.Gray)
		pix[i] = g.Y
	}
	out, err := dataset.NewBuffer(h, w, dataset.ChannelsGray, pix)
	if err != nil {
		return nil, err
	}
	return pipeline.Of(e.Derive(out)), nil
}
