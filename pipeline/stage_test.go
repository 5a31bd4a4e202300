package pipeline

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
)

type sliceParams struct {
	Elems []*dataset.Element
}

// countingSource counts how often the source function runs and how many
// elements have been pulled from it.
type countingSource struct {
	calls  int
	pulled int
}

func (c *countingSource) fn(_ context.Context, p sliceParams) (Iterator[*dataset.Element], error) {
	c.calls++
	return Tap(FromSlice(p.Elems), func(context.Context, *dataset.Element) error {
		c.pulled++
		return nil
	}), nil
}

func identity(_ context.Context, e *dataset.Element, _ NoParams) (Iterator[*dataset.Element], error) {
	return Of(e), nil
}

func TestBuilder_AssignsMonotonicIDs(t *testing.T) {
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{})
	m := NewMap(b, identity, NoParams{})
	d, err := NewDispatch(b, 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}

	got := []string{src.Name(), m.Name(), d.Name()}
	if diff := cmp.Diff([]string{"Source#1", "Map#2", "Dispatch#3"}, got); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if b.Stages() != 3 {
		t.Errorf("Stages() = %d, want 3", b.Stages())
	}

	other := NewBuilder()
	if id := NewMap(other, identity, NoParams{}).ID(); id != 1 {
		t.Errorf("a second builder starts at 1, got %d", id)
	}
	if b.RunID() == "" || b.RunID() == other.RunID() {
		t.Errorf("run ids must be unique, got %q and %q", b.RunID(), other.RunID())
	}
}

func TestLaziness_NoWorkUntilPulled(t *testing.T) {
	b := NewBuilder()
	cs := &countingSource{}
	src := NewSource(b, cs.fn, sliceParams{Elems: elems(t, 5)})
	mapCalls := 0
	m := NewMap(b, func(ctx context.Context, e *dataset.Element, p NoParams) (Iterator[*dataset.Element], error) {
		mapCalls++
		return identity(ctx, e, p)
	}, NoParams{}).Attach(src)
	d, _ := NewDispatch(b, 0.5, 0.5)
	d.Attach(m)

	it, err := d.Branch(0).Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cs.calls != 0 || cs.pulled != 0 || mapCalls != 0 {
		t.Fatalf("work before first pull: source calls=%d pulled=%d map calls=%d", cs.calls, cs.pulled, mapCalls)
	}

	if _, ok, err := it.Next(context.Background()); !ok || err != nil {
		t.Fatalf("first pull = (%v, %v)", ok, err)
	}
	if cs.pulled != 1 || mapCalls != 1 {
		t.Errorf("after one pull: pulled=%d map calls=%d, want 1 and 1", cs.pulled, mapCalls)
	}
	_ = it.Close()
}

func TestMap_IdentityReproducesUpstream(t *testing.T) {
	in := elems(t, 17)
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{Elems: in})
	m := NewMap(b, identity, NoParams{}).Attach(src)

	out, err := Collect(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != len(in) {
		t.Fatalf("len = %d, want %d", out.Len(), len(in))
	}
	for i, e := range out.All() {
		if e != in[i] {
			t.Errorf("element %d differs: %s vs %s", i, e, in[i])
		}
	}
}

func TestMap_FlatMapFanOutAndFilter(t *testing.T) {
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{Elems: elems(t, 4)})
	m := NewMap(b, func(_ context.Context, e *dataset.Element, n int) (Iterator[*dataset.Element], error) {
		if e.Buffer().At(0, 0, 0)%2 == 1 {
			return Empty[*dataset.Element](), nil
		}
		out := make([]*dataset.Element, n)
		for i := range out {
			out[i] = e
		}
		return FromSlice(out), nil
	}, 2).Attach(src)

	out, err := Collect(context.Background(), m)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"img-000", "img-000", "img-002", "img-002"}
	if diff := cmp.Diff(want, sources(out.Elements())); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectionMap_SeesWholeUpstream(t *testing.T) {
	b := NewBuilder()
	cs := &countingSource{}
	src := NewSource(b, cs.fn, sliceParams{Elems: elems(t, 6)})
	seen := -1
	m := NewCollectionMap(b, func(_ context.Context, c *dataset.Collection, _ NoParams) (Iterator[*dataset.Element], error) {
		seen = c.Len()
		return FromSlice([]*dataset.Element{c.At(-1), c.At(0)}), nil
	}, NoParams{}).Attach(src)

	if !m.WholeCollection() {
		t.Fatal("expected whole-collection mode")
	}
	it, err := m.Execute(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	first, ok, err := it.Next(context.Background())
	if !ok || err != nil {
		t.Fatalf("first pull = (%v, %v)", ok, err)
	}
	if seen != 6 || cs.pulled != 6 {
		t.Errorf("collection size %d, upstream pulled %d; want 6 and 6", seen, cs.pulled)
	}
	if first.Source() != "img-005" {
		t.Errorf("first = %s, want img-005", first.Source())
	}
	rest, _ := CollectAll(context.Background(), it)
	if len(rest) != 1 || rest[0].Source() != "img-000" {
		t.Errorf("rest = %v", sources(rest))
	}
}

type resizeParams struct {
	Width  int `validate:"gt=0"`
	Height int `validate:"gt=0"`
}

type labelParams struct {
	Label string
}

func (p labelParams) Validate() error {
	if p.Label == "" {
		return stderrors.New("label is required")
	}
	return nil
}

func TestExecute_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{})

	tests := []struct {
		name    string
		stage   Stage
		missing string
	}{
		{"map without upstream", NewMap(b, identity, NoParams{}), "upstream"},
		{"dispatch without upstream", mustDispatch(t, b, 1), "upstream"},
		{"source without function", NewSource[sliceParams](b, nil, sliceParams{}), "transformation"},
		{"map without function", NewMap[NoParams](b, nil, NoParams{}).Attach(src), "transformation"},
		{"collection map without function", NewCollectionMap[NoParams](b, nil, NoParams{}).Attach(src), "transformation"},
		{"nil pointer params", NewMap(b, func(context.Context, *dataset.Element, *resizeParams) (Iterator[*dataset.Element], error) {
			return nil, nil
		}, nil).Attach(src), "params"},
		{"params failing struct tags", NewMap(b, func(context.Context, *dataset.Element, resizeParams) (Iterator[*dataset.Element], error) {
			return nil, nil
		}, resizeParams{Width: 0, Height: 4}).Attach(src), "valid params"},
		{"params failing Validate", NewMap(b, func(context.Context, *dataset.Element, labelParams) (Iterator[*dataset.Element], error) {
			return nil, nil
		}, labelParams{}).Attach(src), "valid params"},
		{"nil builder", NewMap(nil, identity, NoParams{}), "builder"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.stage.Execute(ctx)
			appErr, ok := errors.AsAppError(err)
			if !ok || appErr.Code != errors.ErrCodeConfiguration {
				t.Fatalf("expected CONFIGURATION error, got %v", err)
			}
			if appErr.Details["missing"] != tc.missing {
				t.Errorf("missing = %v, want %s", appErr.Details["missing"], tc.missing)
			}
		})
	}
}

func TestExecute_UpstreamErrorSurfacesFromDownstream(t *testing.T) {
	b := NewBuilder()
	orphan := NewMap(b, identity, NoParams{})
	m := NewMap(b, identity, NoParams{}).Attach(orphan)

	_, err := m.Execute(context.Background())
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeConfiguration {
		t.Fatalf("expected CONFIGURATION error, got %v", err)
	}
	if appErr.Details["stage"] != orphan.Name() {
		t.Errorf("error names %v, want %s", appErr.Details["stage"], orphan.Name())
	}
}

func TestAttach_UsageErrors(t *testing.T) {
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{})
	m1 := NewMap(b, identity, NoParams{})
	m2 := NewMap(b, identity, NoParams{})
	d := mustDispatch(t, b, 0.5, 0.5)

	tests := []struct {
		name string
		down Stage
		up   Stage
	}{
		{"source is a root", src, m1},
		{"nil upstream", m1, nil},
		{"self loop", m1, m1},
		{"branch is bound", d.Branch(0), src},
		{"foreign builder", m1, NewSource(NewBuilder(), (&countingSource{}).fn, sliceParams{})},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := Attach(tc.down, tc.up)
			if !errors.HasCode(err, errors.ErrCodeUsage) {
				t.Fatalf("expected USAGE error, got %v", err)
			}
		})
	}

	t.Run("cycle", func(t *testing.T) {
		b := NewBuilder()
		a := NewMap(b, identity, NoParams{})
		c := NewMap(b, identity, NoParams{}).Attach(a)
		if err := Attach(a, c); !errors.HasCode(err, errors.ErrCodeUsage) {
			t.Fatalf("expected USAGE error for cycle, got %v", err)
		}
	})

	t.Run("fluent attach on source fails at execute", func(t *testing.T) {
		_, err := src.Attach(m2).Execute(context.Background())
		if !errors.HasCode(err, errors.ErrCodeUsage) {
			t.Fatalf("expected USAGE error, got %v", err)
		}
	})
}

func TestMap_OnDispatchIsTypeMismatch(t *testing.T) {
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{Elems: elems(t, 2)})
	d := mustDispatch(t, b, 0.5, 0.5)
	d.Attach(src)
	m := NewMap(b, identity, NoParams{}).Attach(d)

	_, err := m.Execute(context.Background())
	appErr, ok := errors.AsAppError(err)
	if !ok || appErr.Code != errors.ErrCodeTypeMismatch {
		t.Fatalf("expected TYPE_MISMATCH, got %v", err)
	}
	if appErr.Details["stage"] != m.Name() || appErr.Details["upstream"] != d.Name() {
		t.Errorf("details = %v", appErr.Details)
	}

	// Attaching to a branch is the supported form.
	ok2 := NewMap(b, identity, NoParams{}).Attach(d.Branch(1))
	out, err := Collect(context.Background(), ok2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"img-001"}, sources(out.Elements())); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestSource_IOErrorPropagatesUnchanged(t *testing.T) {
	b := NewBuilder()
	src := NewSource(b, func(context.Context, NoParams) (Iterator[*dataset.Element], error) {
		return nil, errors.IO("read dir", "/missing", fs.ErrNotExist)
	}, NoParams{})
	m := NewMap(b, identity, NoParams{}).Attach(src)

	err := Run(context.Background(), m)
	if !errors.HasCode(err, errors.ErrCodeIO) {
		t.Fatalf("expected IO error, got %v", err)
	}
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Errorf("cause lost: %v", err)
	}
}

func TestMap_ErrorAbortsChain(t *testing.T) {
	b := NewBuilder()
	cs := &countingSource{}
	src := NewSource(b, cs.fn, sliceParams{Elems: elems(t, 10)})
	boom := stderrors.New("decode failed")
	m := NewMap(b, func(_ context.Context, e *dataset.Element, _ NoParams) (Iterator[*dataset.Element], error) {
		if e.Source() == "img-003" {
			return nil, boom
		}
		return Of(e), nil
	}, NoParams{}).Attach(src)

	if err := Run(context.Background(), m); !stderrors.Is(err, boom) {
		t.Fatalf("expected map error, got %v", err)
	}
	if cs.pulled != 4 {
		t.Errorf("upstream pulled %d elements after failure, want 4", cs.pulled)
	}
}

func TestExecute_CanceledContext(t *testing.T) {
	b := NewBuilder()
	src := NewSource(b, (&countingSource{}).fn, sliceParams{Elems: elems(t, 3)})
	ctx, cancel := context.WithCancel(context.Background())
	it, err := src.Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, _, err := it.Next(ctx); !stderrors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestHook_CalledOncePerStageExecution(t *testing.T) {
	var order []string
	b := NewBuilder(WithHook(func(_ context.Context, s Stage) {
		order = append(order, s.Name())
	}))
	src := NewSource(b, (&countingSource{}).fn, sliceParams{Elems: elems(t, 2)})
	m := NewMap(b, identity, NoParams{}).Attach(src)

	if err := Run(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	// The map validates its upstream before wrapping itself, so the source
	// is instrumented first.
	if diff := cmp.Diff([]string{"Source#1", "Map#2"}, order); diff != "" {
		t.Errorf("hook order (-want +got):\n%s", diff)
	}
}

func TestParams_Accessors(t *testing.T) {
	b := NewBuilder()
	p := sliceParams{Elems: elems(t, 1)}
	src := NewSource(b, (&countingSource{}).fn, p)
	if len(src.Params().Elems) != 1 {
		t.Error("source params not kept")
	}
	m := NewMap(b, func(context.Context, *dataset.Element, string) (Iterator[*dataset.Element], error) {
		return nil, nil
	}, "x")
	if m.Params() != "x" || m.WholeCollection() {
		t.Errorf("map params = %q, whole = %v", m.Params(), m.WholeCollection())
	}
	if m.Upstream() != nil || m.Kind() != KindMap {
		t.Errorf("unexpected upstream %v or kind %s", m.Upstream(), m.Kind())
	}
}

func mustDispatch(t *testing.T, b *Builder, pct ...float64) *DispatchStage {
	t.Helper()
	d, err := NewDispatch(b, pct...)
	if err != nil {
		t.Fatalf("NewDispatch(%v): %v", pct, err)
	}
	return d
}

func ExampleNewDispatch() {
	d, err := NewDispatch(NewBuilder(), 0.7, 0.2, 0.1)
	if err != nil {
		panic(err)
	}
	fmt.Println(d.Weights(), d.Boundaries(), d.Cycle())
	// Output: [7 2 1] [7 9 10] 10
}
