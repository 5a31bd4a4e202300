package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/imgprep/errors"
)

func newStore(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestUploadDownload(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	if err := s.Upload(ctx, "train/a.png", strings.NewReader("data")); err != nil {
		t.Fatal(err)
	}
	rc, err := s.Download(ctx, "train/a.png")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "data" {
		t.Errorf("got %q", got)
	}
	if _, err := os.Stat(filepath.Join(s.BasePath(), "train", "a.png")); err != nil {
		t.Errorf("file not on disk: %v", err)
	}
}

func TestDownload_MissingIsNotFound(t *testing.T) {
	_, err := newStore(t).Download(context.Background(), "nope.png")
	if !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestPathsStayUnderBase(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	if err := s.Upload(ctx, "../../escape.txt", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "escape.txt"); !ok {
		t.Error("escaping key should be rooted under the base path")
	}
}

func TestExistsDelete(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	_ = s.Upload(ctx, "x.jpg", strings.NewReader("x"))

	if ok, err := s.Exists(ctx, "x.jpg"); !ok || err != nil {
		t.Fatalf("Exists = (%v, %v)", ok, err)
	}
	if err := s.Delete(ctx, "x.jpg"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.Exists(ctx, "x.jpg"); ok {
		t.Error("file still exists after Delete")
	}
	if err := s.Delete(ctx, "x.jpg"); err != nil {
		t.Errorf("deleting a missing file: %v", err)
	}
}

func TestList_PrefixAndOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	for _, p := range []string{"val/b.png", "train/b.png", "train/a.png", "test/c.png", "train/sub/d.png"} {
		if err := s.Upload(ctx, p, strings.NewReader(p)); err != nil {
			t.Fatal(err)
		}
	}

	files, err := s.List(ctx, "train/")
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, f := range files {
		got = append(got, f.Path)
	}
	if diff := cmp.Diff([]string{"train/a.png", "train/b.png", "train/sub/d.png"}, got); diff != "" {
		t.Errorf("list (-want +got):\n%s", diff)
	}
	if files[0].ContentType != "image/png" || files[0].Size != int64(len("train/a.png")) {
		t.Errorf("metadata = %+v", files[0])
	}

	all, _ := s.List(ctx, "")
	if len(all) != 5 {
		t.Errorf("listed %d files, want 5", len(all))
	}
	missing, err := s.List(ctx, "nothing/here")
	if err != nil || len(missing) != 0 {
		t.Errorf("missing prefix = (%v, %v)", missing, err)
	}
}

func TestURL(t *testing.T) {
	s := newStore(t)
	u, _ := s.URL(context.Background(), "a/b.png")
	if !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "/a/b.png") {
		t.Errorf("URL = %q", u)
	}
}
