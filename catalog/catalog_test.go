package catalog

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/imgprep/database"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/logger"
)

func openTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), database.Config{DSN: filepath.Join(t.TempDir(), "runs.db")}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func sampleRun(name string, started time.Time) *Run {
	return &Run{
		Name:        name,
		Source:      "testdata/images",
		Destination: "out",
		Loaded:      10,
		Routed:      10,
		StartedAt:   started,
		FinishedAt:  started.Add(2 * time.Second),
		Branches: []Branch{
			{Branch: 0, Name: "train", Percent: 0.7, Count: 7},
			{Branch: 1, Name: "val", Percent: 0.3, Count: 3},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	run := sampleRun("prep", start)
	if err := c.RecordRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	if run.ID == "" {
		t.Fatal("RecordRun must assign an id")
	}
	if run.Status != StatusSucceeded {
		t.Errorf("status = %q", run.Status)
	}

	got, err := c.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "prep" || got.Routed != 10 || got.Duration() != 2*time.Second {
		t.Errorf("run = %+v", got)
	}
	var counts []int
	for _, b := range got.Branches {
		counts = append(counts, b.Count)
	}
	if diff := cmp.Diff([]int{7, 3}, counts); diff != "" {
		t.Errorf("branch counts (-want +got):\n%s", diff)
	}
}

func TestRecordRun_KeepsGivenID(t *testing.T) {
	c := openTest(t)
	run := sampleRun("prep", time.Now().UTC())
	run.ID = "run-fixed"
	if err := c.RecordRun(context.Background(), run); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetRun(context.Background(), "run-fixed"); err != nil {
		t.Fatal(err)
	}
	dup := sampleRun("prep", time.Now().UTC())
	dup.ID = "run-fixed"
	if err := c.RecordRun(context.Background(), dup); err == nil {
		t.Fatal("duplicate run id must fail")
	}
}

func TestRecordRun_RequiresName(t *testing.T) {
	c := openTest(t)
	if err := c.RecordRun(context.Background(), &Run{}); !errors.HasCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("expected INVALID_INPUT, got %v", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	c := openTest(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"a", "b", "c"} {
		if err := c.RecordRun(ctx, sampleRun(name, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := c.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, r := range runs {
		names = append(names, r.Name)
		if len(r.Branches) != 2 {
			t.Errorf("run %s has %d branches", r.Name, len(r.Branches))
		}
	}
	if diff := cmp.Diff([]string{"c", "b"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	c := openTest(t)
	if _, err := c.GetRun(context.Background(), "nope"); !errors.HasCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestOpen_Reopen(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()
	c, err := Open(ctx, database.Config{DSN: dsn}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	if err := c.RecordRun(ctx, sampleRun("first", time.Now().UTC())); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(ctx, database.Config{DSN: dsn}, logger.Nop())
	if err != nil {
		t.Fatalf("reopen with applied migrations: %v", err)
	}
	defer c.Close()
	runs, err := c.ListRuns(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("runs = %d, want 1", len(runs))
	}
}
