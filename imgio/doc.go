// Package imgio reads and writes images for pipelines.
//
// FileCodec decodes JPEG, PNG, GIF, BMP, TIFF and WebP files into buffers in
// canonical channel order and encodes every format except WebP. LoadDir and
// LoadStore are pipeline sources over a directory or a storage prefix;
// ScanDir walks a directory lazily in lexical order. Manifest carries labels
// and bounding boxes in YAML next to the images.
package imgio
