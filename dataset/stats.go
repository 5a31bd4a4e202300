package dataset

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Stats summarizes the shape and labeling of a collection.
type Stats struct {
	Count      int
	Labeled    int
	Boxes      int
	Labels     map[string]int
	MeanWidth  float64
	MeanHeight float64
	StdWidth   float64
	StdHeight  float64
}

// ComputeStats walks c once and summarizes it.
func ComputeStats(c *Collection) Stats {
	s := Stats{Count: c.Len(), Labels: make(map[string]int)}
	if s.Count == 0 {
		return s
	}

	widths := make([]float64, 0, s.Count)
	heights := make([]float64, 0, s.Count)
	for _, e := range c.All() {
		widths = append(widths, float64(e.Width()))
		heights = append(heights, float64(e.Height()))
		s.Boxes += len(e.boxes)
		if e.HasLabel() {
			s.Labeled++
			s.Labels[e.Label()]++
		}
	}

	s.MeanWidth, s.StdWidth = stat.MeanStdDev(widths, nil)
	s.MeanHeight, s.StdHeight = stat.MeanStdDev(heights, nil)
	if s.Count < 2 {
		s.StdWidth, s.StdHeight = 0, 0
	}
	return s
}

func (s Stats) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "images: %d (labeled %d, boxes %d)\n", s.Count, s.Labeled, s.Boxes)
	fmt.Fprintf(&sb, "width:  mean %.1f std %.1f\n", s.MeanWidth, s.StdWidth)
	fmt.Fprintf(&sb, "height: mean %.1f std %.1f\n", s.MeanHeight, s.StdHeight)
	labels := make([]string, 0, len(s.Labels))
	for l := range s.Labels {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Fprintf(&sb, "  %s: %d\n", l, s.Labels[l])
	}
	return sb.String()
}
