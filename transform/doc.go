// Package transform provides the image transformations used as pipeline
// map stages.
//
// Per-element transforms have the pipeline.MapFunc shape and are bound with
// pipeline.NewMap:
//
//	pipeline.NewMap(b, transform.Resize, transform.ResizeParams{Width: 32, Height: 32})
//
// Resize, Grayscale and FlipHorizontal produce new pixels; MinSize,
// RequireLabel and Dedup filter; Annotate attaches labels and boxes from a
// manifest; Save writes each element to a store and passes it on.
//
// Normalize and Shuffle need the whole set and have the
// pipeline.CollectionFunc shape, for pipeline.NewCollectionMap.
package transform
