package prep

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/kbukum/imgprep/catalog"
	"github.com/kbukum/imgprep/kafka"
)

// BranchResult is what one split branch received.
type BranchResult struct {
	Name    string
	Percent float64
	// Prefix is the key under which the branch was written.
	Prefix string
	Count  int
}

// Result summarizes a run.
type Result struct {
	RunID       string
	Name        string
	Source      string
	Destination string
	Loaded      int
	Routed      int
	Branches    []BranchResult
	StartedAt   time.Time
	FinishedAt  time.Time
	// Err is the error the run failed with, if any.
	Err error
}

func newResult(runID string, cfg Config) *Result {
	res := &Result{
		RunID:       runID,
		Name:        cfg.Name,
		Source:      describeSource(cfg.Source),
		Destination: describeOutput(cfg.Output),
		StartedAt:   time.Now().UTC(),
	}
	for i, pct := range cfg.Split.Percentages {
		res.Branches = append(res.Branches, BranchResult{
			Name:    cfg.Split.Names[i],
			Percent: pct,
			Prefix:  path.Join(cfg.Output.Prefix, cfg.Split.Names[i]),
		})
	}
	return res
}

func describeSource(s SourceConfig) string {
	if s.Storage != nil {
		return storeURI(s.Storage.Provider, s.Storage.Bucket, s.Storage.BasePath, s.Prefix)
	}
	return s.Dir
}

func describeOutput(o OutputConfig) string {
	return storeURI(o.Storage.Provider, o.Storage.Bucket, o.Storage.BasePath, o.Prefix)
}

func storeURI(provider, bucket, base, prefix string) string {
	root := base
	if provider == "s3" {
		root = bucket
	}
	return fmt.Sprintf("%s://%s", provider, strings.TrimSuffix(path.Join(root, prefix), "/"))
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// Counts returns the per-branch element counts in branch order.
func (r *Result) Counts() []int {
	out := make([]int, len(r.Branches))
	for i, b := range r.Branches {
		out[i] = b.Count
	}
	return out
}

// Status is catalog.StatusSucceeded or catalog.StatusFailed.
func (r *Result) Status() string {
	if r.Err != nil {
		return catalog.StatusFailed
	}
	return catalog.StatusSucceeded
}

// CatalogRun converts the result to its catalog row.
func (r *Result) CatalogRun() *catalog.Run {
	run := &catalog.Run{
		Name:        r.Name,
		Source:      r.Source,
		Destination: r.Destination,
		Loaded:      r.Loaded,
		Routed:      r.Routed,
		Status:      r.Status(),
		StartedAt:   r.StartedAt,
		FinishedAt:  r.FinishedAt,
	}
	run.ID = r.RunID
	if r.Err != nil {
		run.Error = r.Err.Error()
	}
	for i, b := range r.Branches {
		run.Branches = append(run.Branches, catalog.Branch{
			Branch: i, Name: b.Name, Percent: b.Percent, Count: b.Count,
		})
	}
	return run
}

// Event converts the result to the event announcing it.
func (r *Result) Event() kafka.Event {
	eventType := kafka.EventRunCompleted
	if r.Err != nil {
		eventType = kafka.EventRunFailed
	}
	branches := make(map[string]interface{}, len(r.Branches))
	for _, b := range r.Branches {
		branches[b.Name] = b.Count
	}
	data := map[string]interface{}{
		"name":        r.Name,
		"source":      r.Source,
		"destination": r.Destination,
		"loaded":      r.Loaded,
		"routed":      r.Routed,
		"branches":    branches,
		"duration_ms": r.Duration().Milliseconds(),
	}
	if r.Err != nil {
		data["error"] = r.Err.Error()
	}
	return kafka.NewEvent(eventType, r.Name, r.RunID, data)
}
