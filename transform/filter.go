package transform

import (
	"context"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/imgio"
	"github.com/kbukum/imgprep/pipeline"
)

// MinSizeParams sets the smallest accepted image.
type MinSizeParams struct {
	Width  int `yaml:"width" validate:"gte=0"`
	Height int `yaml:"height" validate:"gte=0"`
}

// MinSize drops elements narrower than p.Width or shorter than p.Height.
func MinSize(_ context.Context, e *dataset.Element, p MinSizeParams) (pipeline.Iterator[*dataset.Element], error) {
	if e.Width() < p.Width || e.Height() < p.Height {
		return pipeline.Empty[*dataset.Element](), nil
	}
	return pipeline.Of(e), nil
}

// LabeledParams configures RequireLabel.
type LabeledParams struct {
	// Labels restricts the accepted labels; empty accepts any label.
	Labels []string `yaml:"labels"`
}

// RequireLabel drops unlabeled elements and, when p.Labels is set, elements
// whose label is not listed.
func RequireLabel(_ context.Context, e *dataset.Element, p LabeledParams) (pipeline.Iterator[*dataset.Element], error) {
	if !e.HasLabel() {
		return pipeline.Empty[*dataset.Element](), nil
	}
	if len(p.Labels) == 0 {
		return pipeline.Of(e), nil
	}
	for _, l := range p.Labels {
		if l == e.Label() {
			return pipeline.Of(e), nil
		}
	}
	return pipeline.Empty[*dataset.Element](), nil
}

// AnnotateParams holds the manifest to annotate from.
type AnnotateParams struct {
	Manifest *imgio.Manifest `validate:"required"`
}

// Annotate labels e and appends its boxes from the manifest entry matching
// its source. Unlisted elements pass through unchanged.
func Annotate(_ context.Context, e *dataset.Element, p AnnotateParams) (pipeline.Iterator[*dataset.Element], error) {
	return pipeline.Of(p.Manifest.Apply(e)), nil
}
