package pipeline

import (
	"context"
	"fmt"
	"reflect"

	"github.com/kbukum/imgprep/dataset"
	"github.com/kbukum/imgprep/errors"
	"github.com/kbukum/imgprep/validation"
)

// Kind tags the stage type and prefixes stage names.
type Kind string

const (
	KindSource   Kind = "Source"
	KindMap      Kind = "Map"
	KindDispatch Kind = "Dispatch"
	KindBranch   Kind = "Branch"
)

// Stage is one node of a pipeline chain.
//
// Execute validates the stage and its upstream chain eagerly, then returns a
// lazy iterator. No element is produced, and no I/O happens, until the
// iterator is pulled.
type Stage interface {
	ID() int
	Name() string
	Kind() Kind
	Upstream() Stage
	Execute(ctx context.Context) (Iterator[*dataset.Element], error)
}

// NoParams is the params type for transformations that take none.
type NoParams = struct{}

// upstreamSetter is implemented by every stage so Attach can link them
// without knowing their concrete params type.
type upstreamSetter interface {
	setUpstream(up Stage) error
}

// Attach links down to up and reports a failure immediately. The fluent
// Attach methods on each stage defer the same failure to Execute.
func Attach(down, up Stage) error {
	s, ok := down.(upstreamSetter)
	if !ok {
		return errors.Usage(down.Name(), "stage does not accept an upstream")
	}
	return s.setUpstream(up)
}

// node holds the fields shared by every stage kind.
type node struct {
	id   int
	kind Kind
	name string
	b    *Builder
	up   Stage
	err  error
}

func newNode(b *Builder, kind Kind) node {
	if b == nil {
		name := string(kind) + "#0"
		return node{kind: kind, name: name, err: errors.Configuration(name, "builder")}
	}
	id := b.nextID()
	return node{id: id, kind: kind, name: fmt.Sprintf("%s#%d", kind, id), b: b}
}

// ID returns the builder-assigned stage id.
func (n *node) ID() int { return n.id }

// Name returns the stage name, "<Kind>#<id>".
func (n *node) Name() string { return n.name }

// Kind returns the stage kind.
func (n *node) Kind() Kind { return n.kind }

// Upstream returns the attached upstream stage or nil.
func (n *node) Upstream() Stage { return n.up }

// link validates and records up as the upstream of self. The error is kept
// so Execute can surface it when the fluent Attach form was used.
func (n *node) link(self, up Stage) error {
	err := n.checkLink(self, up)
	if err != nil {
		n.err = err
		return err
	}
	n.up = up
	return nil
}

func (n *node) checkLink(self, up Stage) error {
	if isNil(up) {
		return errors.Usage(n.name, "cannot attach a nil upstream")
	}
	if other := builderOf(up); other != nil && n.b != nil && other != n.b {
		return errors.Usage(n.name, fmt.Sprintf("upstream %s belongs to a different builder", up.Name()))
	}
	for s := up; !isNil(s); s = s.Upstream() {
		if s == self {
			return errors.Usage(n.name, fmt.Sprintf("attaching %s would create a cycle", up.Name()))
		}
	}
	return nil
}

// requireUpstream returns the upstream or a configuration error.
func (n *node) requireUpstream() (Stage, error) {
	if n.err != nil {
		return nil, n.err
	}
	if n.up == nil {
		return nil, errors.Configuration(n.name, "upstream")
	}
	return n.up, nil
}

// expectElements rejects upstreams that produce a branched stream.
func (n *node) expectElements(up Stage) error {
	if up.Kind() == KindDispatch {
		return errors.TypeMismatch(n.name, up.Name(), "element stream", "branched stream (select one with Branch)")
	}
	return nil
}

func builderOf(s Stage) *Builder {
	type owned interface{ builder() *Builder }
	if o, ok := s.(owned); ok {
		return o.builder()
	}
	return nil
}

func (n *node) builder() *Builder { return n.b }

// checkParams rejects nil params and runs struct-tag and Validate() checks.
func checkParams(stage string, params any) error {
	v := reflect.ValueOf(params)
	if !v.IsValid() {
		return errors.Configuration(stage, "params")
	}
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		if v.IsNil() {
			return errors.Configuration(stage, "params")
		}
	}

	if reflect.Indirect(v).Kind() == reflect.Struct {
		if err := validation.Validate(params); err != nil {
			return errors.Configuration(stage, "valid params").WithCause(err)
		}
	}
	if pv, ok := params.(interface{ Validate() error }); ok {
		if err := pv.Validate(); err != nil {
			return errors.Configuration(stage, "valid params").WithCause(err)
		}
	}
	return nil
}

func isNil(s Stage) bool {
	if s == nil {
		return true
	}
	v := reflect.ValueOf(s)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
