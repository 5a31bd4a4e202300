package pipeline

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/validation"
)

// percentScale converts fractions of 1.0 into whole percents.
const percentScale = 100

// percentTolerance absorbs float error when scaling, e.g. 0.07*100.
const percentTolerance = 1e-6

// ResultKind tags a Routed value.
type ResultKind int

const (
	// Value carries one element and the branch it belongs to.
	Value ResultKind = iota
	// EndOfBranch marks the end of a run of elements for Branch. The
	// schedule moves on to the next branch; the stream continues.
	EndOfBranch
	// EndOfStream marks upstream exhaustion. Every branch is finished.
	EndOfStream
)

func (k ResultKind) String() string {
	switch k {
	case Value:
		return "Value"
	case EndOfBranch:
		return "EndOfBranch"
	case EndOfStream:
		return "EndOfStream"
	default:
		return fmt.Sprintf("ResultKind(%d)", int(k))
	}
}

// Routed is one item of a dispatch stream.
type Routed struct {
	Kind    ResultKind
	Branch  int
	Element *dataset.Element
}

// DispatchStage splits its upstream into branches by fixed percentages,
// preserving order within each branch.
//
// The percentages are scaled to whole percents and reduced by their GCD:
// 0.7/0.2/0.1 becomes weights 7/2/1 with a cycle of 10 and cumulative
// boundaries 7/9/10. Element i goes to the first branch whose boundary
// exceeds i mod cycle, so each full cycle reproduces the exact split.
type DispatchStage struct {
	node
	percentages []float64
	weights     []int
	boundaries  []int
	cycle       int
	branches    map[int]*BranchStage
	shared      *pass
}

// NewDispatch validates percentages and builds a dispatch stage. The
// percentages must be whole percents, each greater than zero, summing to
// exactly 1.0.
func NewDispatch(b *Builder, percentages ...float64) (*DispatchStage, error) {
	weights, err := percentWeights(percentages)
	if err != nil {
		return nil, err
	}

	g := weights[0]
	for _, w := range weights[1:] {
		g = gcd(g, w)
	}
	boundaries := make([]int, len(weights))
	sum := 0
	for i := range weights {
		weights[i] /= g
		sum += weights[i]
		boundaries[i] = sum
	}

	pct := make([]float64, len(percentages))
	copy(pct, percentages)
	return &DispatchStage{
		node:        newNode(b, KindDispatch),
		percentages: pct,
		weights:     weights,
		boundaries:  boundaries,
		cycle:       sum,
		branches:    make(map[int]*BranchStage),
	}, nil
}

func percentWeights(percentages []float64) ([]int, error) {
	v := validation.New()
	v.NotEmpty("percentages", len(percentages))

	weights := make([]int, len(percentages))
	total := 0
	for i, p := range percentages {
		field := fmt.Sprintf("percentages[%d]", i)
		scaled := p * percentScale
		v.Finite(field, p)
		v.WholeNumber(field, scaled, percentTolerance)
		weights[i] = int(math.Round(scaled))
		v.Custom(weights[i] > 0, field, fmt.Sprintf("must be greater than zero (got %g)", p))
		total += weights[i]
	}
	if len(percentages) > 0 {
		v.Custom(total == percentScale, "percentages",
			fmt.Sprintf("must sum to 1.0 (got %g)", floats.Sum(percentages)))
	}
	if err := v.Validate(); err != nil {
		return nil, err
	}
	return weights, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Percentages returns the percentages the stage was built with.
func (d *DispatchStage) Percentages() []float64 {
	out := make([]float64, len(d.percentages))
	copy(out, d.percentages)
	return out
}

// Weights returns the GCD-reduced integer weights.
func (d *DispatchStage) Weights() []int {
	out := make([]int, len(d.weights))
	copy(out, d.weights)
	return out
}

// Boundaries returns the cumulative branch boundaries within one cycle.
// The last boundary equals Cycle.
func (d *DispatchStage) Boundaries() []int {
	out := make([]int, len(d.boundaries))
	copy(out, d.boundaries)
	return out
}

// Cycle returns the length of one repetition of the schedule.
func (d *DispatchStage) Cycle() int { return d.cycle }

// Branches returns the number of branches.
func (d *DispatchStage) Branches() int { return len(d.weights) }

// BranchOf returns the branch of the element at 0-based index i.
func (d *DispatchStage) BranchOf(i int) int {
	pos := i % d.cycle
	for b, bound := range d.boundaries {
		if pos < bound {
			return b
		}
	}
	return len(d.boundaries) - 1
}

// Attach sets up as the upstream and returns d. A failure is returned by
// Execute.
func (d *DispatchStage) Attach(up Stage) *DispatchStage {
	_ = d.link(d, up)
	return d
}

func (d *DispatchStage) setUpstream(up Stage) error { return d.link(d, up) }

func (d *DispatchStage) upstreamIter(ctx context.Context) (Iterator[*dataset.Element], error) {
	up, err := d.requireUpstream()
	if err != nil {
		return nil, err
	}
	if err := d.expectElements(up); err != nil {
		return nil, err
	}
	return up.Execute(ctx)
}

// Execute yields every upstream element in order, ignoring branches. It
// lets Run drive a dispatch as a terminal stage.
func (d *DispatchStage) Execute(ctx context.Context) (Iterator[*dataset.Element], error) {
	src, err := d.upstreamIter(ctx)
	if err != nil {
		return nil, err
	}
	return d.b.instrument(ctx, d, src), nil
}

// Stream routes the upstream in a single pass. Each element is tagged with
// its branch; EndOfBranch is emitted whenever the schedule leaves a branch,
// and EndOfStream once the upstream is exhausted.
func (d *DispatchStage) Stream(ctx context.Context) (Iterator[Routed], error) {
	src, err := d.Execute(ctx)
	if err != nil {
		return nil, err
	}
	return &routedIter{d: d, source: src}, nil
}

// Branch returns the stage that yields only branch i. The branch stages of
// one dispatch share a single pass over the upstream: elements routed to a
// branch that is not being read are queued until it is. Executing a branch
// again starts a new pass.
func (d *DispatchStage) Branch(i int) *BranchStage {
	if bs, ok := d.branches[i]; ok {
		return bs
	}
	bs := &BranchStage{node: newNode(d.b, KindBranch), dispatch: d, index: i}
	bs.up = d
	if i < 0 || i >= len(d.weights) {
		bs.err = errors.InvalidInput("branch",
			fmt.Sprintf("%s has %d branches, got index %d", d.name, len(d.weights), i)).
			WithDetail("stage", bs.name)
	}
	d.branches[i] = bs
	return bs
}

type routedIter struct {
	d       *DispatchStage
	source  Iterator[*dataset.Element]
	index   int
	last    int
	pending *Routed
	done    bool
}

func (it *routedIter) Next(ctx context.Context) (Routed, bool, error) {
	if it.pending != nil {
		r := *it.pending
		it.pending = nil
		return r, true, nil
	}
	if it.done {
		return Routed{}, false, nil
	}

	e, ok, err := it.source.Next(ctx)
	if err != nil {
		it.done = true
		return Routed{}, false, err
	}
	if !ok {
		it.done = true
		return Routed{Kind: EndOfStream, Branch: -1}, true, nil
	}

	branch := it.d.BranchOf(it.index)
	r := Routed{Kind: Value, Branch: branch, Element: e}
	changed := it.index > 0 && branch != it.last
	prev := it.last
	it.index++
	it.last = branch
	if changed {
		it.pending = &r
		return Routed{Kind: EndOfBranch, Branch: prev}, true, nil
	}
	return r, true, nil
}

func (it *routedIter) Close() error { return it.source.Close() }

// pass is one traversal of a dispatch's upstream shared by its branches.
// It owns the upstream iterator and closes it once the upstream is
// exhausted, or once every branch that joined has closed and no other
// branch can join.
type pass struct {
	d          *DispatchStage
	source     Iterator[*dataset.Element]
	index      int
	queues     [][]*dataset.Element
	joined     []bool
	left       []bool
	superseded bool
	done       bool
	released   bool
	err        error
}

func newPass(d *DispatchStage, src Iterator[*dataset.Element]) *pass {
	n := len(d.weights)
	return &pass{
		d:      d,
		source: src,
		queues: make([][]*dataset.Element, n),
		joined: make([]bool, n),
		left:   make([]bool, n),
	}
}

// join returns the pass branch reads from, starting a new one when there
// is none or when branch already read the current one.
func (d *DispatchStage) join(ctx context.Context, branch int) (*pass, error) {
	if d.shared == nil || d.shared.joined[branch] {
		src, err := d.upstreamIter(ctx)
		if err != nil {
			return nil, err
		}
		if prev := d.shared; prev != nil {
			prev.superseded = true
			_ = prev.releaseIfIdle()
		}
		d.shared = newPass(d, src)
	}
	d.shared.joined[branch] = true
	return d.shared, nil
}

func (p *pass) next(ctx context.Context, branch int) (*dataset.Element, bool, error) {
	for {
		if q := p.queues[branch]; len(q) > 0 {
			e := q[0]
			q[0] = nil
			p.queues[branch] = q[1:]
			return e, true, nil
		}
		if p.err != nil {
			return nil, false, p.err
		}
		if p.done {
			return nil, false, nil
		}

		e, ok, err := p.source.Next(ctx)
		if err != nil {
			p.err = err
			_ = p.release()
			return nil, false, err
		}
		if !ok {
			p.done = true
			if err := p.release(); err != nil {
				p.err = err
				return nil, false, err
			}
			return nil, false, nil
		}

		b := p.d.BranchOf(p.index)
		p.index++
		if b == branch {
			return e, true, nil
		}
		if !p.left[b] {
			p.queues[b] = append(p.queues[b], e)
		}
	}
}

// leave drops branch's queue. Elements routed to it afterwards are
// discarded.
func (p *pass) leave(branch int) error {
	p.left[branch] = true
	p.queues[branch] = nil
	return p.releaseIfIdle()
}

func (p *pass) releaseIfIdle() error {
	all := true
	for i := range p.joined {
		if p.joined[i] && !p.left[i] {
			return nil
		}
		all = all && p.joined[i]
	}
	if !all && !p.superseded {
		return nil
	}
	return p.release()
}

func (p *pass) release() error {
	if p.released {
		return nil
	}
	p.released = true
	return p.source.Close()
}

// BranchStage yields one branch of a dispatch.
type BranchStage struct {
	node
	dispatch *DispatchStage
	index    int
}

// Index returns the branch index within the dispatch.
func (s *BranchStage) Index() int { return s.index }

// Dispatch returns the owning dispatch stage.
func (s *BranchStage) Dispatch() *DispatchStage { return s.dispatch }

func (s *BranchStage) setUpstream(Stage) error {
	return errors.Usage(s.name, "a branch is bound to its dispatch and does not accept an upstream")
}

// Execute returns a lazy iterator over the elements routed to this branch.
func (s *BranchStage) Execute(ctx context.Context) (Iterator[*dataset.Element], error) {
	if s.err != nil {
		return nil, s.err
	}
	p, err := s.dispatch.join(ctx, s.index)
	if err != nil {
		return nil, err
	}
	it := &branchIter{pass: p, branch: s.index}
	return s.b.instrument(ctx, s, it), nil
}

type branchIter struct {
	pass   *pass
	branch int
	closed bool
}

func (it *branchIter) Next(ctx context.Context) (*dataset.Element, bool, error) {
	if it.closed {
		return nil, false, nil
	}
	return it.pass.next(ctx, it.branch)
}

func (it *branchIter) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.pass.leave(it.branch)
}
