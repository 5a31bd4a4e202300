package imgio

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/storage"
)

// Put encodes buf in format and uploads it to key.
func Put(ctx context.Context, store storage.Storage, key string, buf *dataset.Buffer, format string, quality int) error {
	var b bytes.Buffer
	if err := EncodeTo(&b, buf, format, quality); err != nil {
		if errors.IsAppError(err) {
			return err
		}
		return errors.IO("encode", key, err)
	}
	return store.Upload(ctx, key, &b)
}

// ResolveFormat returns format, or the format implied by the element's
// source extension when format is empty. PNG is the fallback.
func ResolveFormat(e *dataset.Element, format string) string {
	if format != "" {
		return format
	}
	if f, err := FormatForPath(e.Source()); err == nil {
		return f
	}
	return FormatPNG
}

// ObjectName names the stored file of e: "[label/]base.ext", where base is
// the source file name without its extension, or "img-" plus the buffer
// fingerprint when the element has no source.
func ObjectName(e *dataset.Element, format string) string {
	base := ""
	if src := e.Source(); src != "" {
		base = baseName(src)
		base = strings.TrimSuffix(base, path.Ext(base))
	}
	if base == "" || base == "." || base == "/" {
		base = "img-" + e.Buffer().Fingerprint()
	}
	name := base + ExtForFormat(ResolveFormat(e, format))
	if e.HasLabel() {
		return path.Join(e.Label(), name)
	}
	return name
}
