package transform

import (
	"context"
	"path"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/imgio"
	"github.com/kbukum/imgprep/pipeline"
	"github.com/kbukum/imgprep/storage"
)

// SaveParams configures Save.
type SaveParams struct {
	Store storage.Storage `validate:"required"`
	// Prefix is prepended to every object name.
	Prefix string
	// Format selects the encoding; empty keeps the source format.
	Format string `validate:"omitempty,oneof=jpeg png gif bmp tiff"`
	// Quality is the JPEG quality; zero means the codec default.
	Quality int `validate:"gte=0,lte=100"`
}

// Save writes e to the store as Prefix/ObjectName and passes it on, so it
// can sit in the middle of a chain to checkpoint intermediate results.
func Save(ctx context.Context, e *dataset.Element, p SaveParams) (pipeline.Iterator[*dataset.Element], error) {
	key := path.Join(p.Prefix, imgio.ObjectName(e, p.Format))
	if err := imgio.Put(ctx, p.Store, key, e.Buffer(), imgio.ResolveFormat(e, p.Format), p.Quality); err != nil {
		return nil, err
	}
	return pipeline.Of(e), nil
}
