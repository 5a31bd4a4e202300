package imgio

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
)

// Image formats understood by Encode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatGIF  = "gif"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// DefaultJPEGQuality is used when a FileCodec has no quality set.
const DefaultJPEGQuality = 90

var formatByExt = map[string]string{
	".jpg":  FormatJPEG,
	".jpeg": FormatJPEG,
	".png":  FormatPNG,
	".gif":  FormatGIF,
	".bmp":  FormatBMP,
	".tif":  FormatTIFF,
	".tiff": FormatTIFF,
}

// Codec reads and writes image files.
type Codec interface {
	Decode(path string) (*dataset.Buffer, error)
	Encode(path string, buf *dataset.Buffer) error
}

// FileCodec is the filesystem Codec. The encoding is chosen from the file
// extension.
type FileCodec struct {
	JPEGQuality int
}

var _ Codec = FileCodec{}
var _ dataset.Decoder = FileCodec{}

// Decode reads path into a buffer in canonical channel order.
func (c FileCodec) Decode(path string) (*dataset.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.IO("open", path, err)
	}
	defer f.Close()

	buf, err := DecodeFrom(f)
	if err != nil {
		return nil, errors.IO("decode", path, err)
	}
	return buf, nil
}

// Encode writes buf to path, creating parent directories.
func (c FileCodec) Encode(path string, buf *dataset.Buffer) error {
	format, err := FormatForPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return errors.IO("create directory", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.IO("create", path, err)
	}
	if err := EncodeTo(f, buf, format, c.JPEGQuality); err != nil {
		f.Close()
		return errors.IO("encode", path, err)
	}
	if err := f.Close(); err != nil {
		return errors.IO("close", path, err)
	}
	return nil
}

// DecodeFrom decodes any registered format from r.
func DecodeFrom(r io.Reader) (*dataset.Buffer, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	return dataset.BufferFromImage(img), nil
}

// DecodeBytes decodes an in-memory image.
func DecodeBytes(data []byte) (*dataset.Buffer, error) {
	return DecodeFrom(bytes.NewReader(data))
}

// EncodeTo writes buf to w in format. quality only applies to JPEG; zero
// selects DefaultJPEGQuality.
func EncodeTo(w io.Writer, buf *dataset.Buffer, format string, quality int) error {
	img := buf.Image()
	switch format {
	case FormatJPEG:
		if quality <= 0 {
			quality = DefaultJPEGQuality
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case FormatPNG:
		return png.Encode(w, img)
	case FormatGIF:
		return gif.Encode(w, img, nil)
	case FormatBMP:
		return bmp.Encode(w, img)
	case FormatTIFF:
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return errors.InvalidInput("format", fmt.Sprintf("unsupported output format %q", format))
	}
}

// FormatForPath maps a file extension to an output format.
func FormatForPath(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if f, ok := formatByExt[ext]; ok {
		return f, nil
	}
	return "", errors.InvalidInput("format", fmt.Sprintf("no encoder for extension %q", ext))
}

// ExtForFormat returns the canonical file extension for format.
func ExtForFormat(format string) string {
	switch format {
	case FormatJPEG:
		return ".jpg"
	case FormatTIFF:
		return ".tif"
	case "":
		return ""
	default:
		return "." + format
	}
}

// Formats lists the output formats.
func Formats() []string {
	return []string{FormatBMP, FormatGIF, FormatJPEG, FormatPNG, FormatTIFF}
}
