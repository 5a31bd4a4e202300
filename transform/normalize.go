package transform

import (
	"context"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/pipeline"
)

// NormalizeParams sets the per-channel target distribution.
type NormalizeParams struct {
	TargetMean   float64 `yaml:"target_mean" validate:"gte=0,lte=255"`
	TargetStdDev float64 `yaml:"target_stddev" validate:"gt=0"`
}

// Normalize shifts and scales every channel so that, across the whole
// collection, its samples have the target mean and standard deviation.
// Statistics are kept separately per channel layout. A channel with no
// spread is only shifted. Results are rounded and clamped to 0..255.
func Normalize(_ context.Context, c *dataset.Collection, p NormalizeParams) (pipeline.Iterator[*dataset.Element], error) {
	type key struct{ channels, channel int }
	samples := make(map[key][]float64)
	for _, e := range c.All() {
		buf := e.Buffer()
		ch := buf.Channels()
		for i, v := range buf.Pix() {
			k := key{ch, i % ch}
			samples[k] = append(samples[k], float64(v))
		}
	}

	type moments struct{ mean, std float64 }
	stats := make(map[key]moments, len(samples))
	for k, xs := range samples {
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) < 2 || math.IsNaN(std) {
			std = 0
		}
		stats[k] = moments{mean, std}
	}

	out := make([]*dataset.Element, 0, c.Len())
	for _, e := range c.All() {
		buf := e.Buffer()
		h, w, ch := buf.Shape()
		pix := buf.Pix()
		for i, v := range pix {
			m := stats[key{ch, i % ch}]
			x := float64(v) - m.mean
			if m.std > 0 {
				x = x / m.std * p.TargetStdDev
			}
			pix[i] = clamp8(x + p.TargetMean)
		}
		nb, err := dataset.NewBuffer(h, w, ch, pix)
		if err != nil {
			return nil, err
		}
		out = append(out, e.Derive(nb))
	}
	return pipeline.FromSlice(out), nil
}

func clamp8(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

// ShuffleParams seeds Shuffle.
type ShuffleParams struct {
	Seed uint64 `yaml:"seed"`
}

// Shuffle reorders the whole collection with a PCG generator seeded from
// p.Seed, so a split that follows it is random but reproducible.
func Shuffle(_ context.Context, c *dataset.Collection, p ShuffleParams) (pipeline.Iterator[*dataset.Element], error) {
	elems := c.Elements()
	r := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9e3779b97f4a7c15))
	r.Shuffle(len(elems), func(i, j int) { elems[i], elems[j] = elems[j], elems[i] })
	return pipeline.FromSlice(elems), nil
}
