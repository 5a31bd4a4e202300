package dataset

import (
	"fmt"
	"iter"
	"strings"
)

// DefaultMaxPrintLines is the listing length above which String elides the
// middle of a collection.
const DefaultMaxPrintLines = 20

// Collection is an ordered, index-addressable sequence of elements.
// Elements are shared by reference; the collection owns only the ordering.
type Collection struct {
	items         []*Element
	maxPrintLines int
}

// NewCollection creates a collection holding elems in order.
func NewCollection(elems ...*Element) *Collection {
	items := make([]*Element, len(elems))
	copy(items, elems)
	return &Collection{items: items, maxPrintLines: DefaultMaxPrintLines}
}

// Len returns the number of elements.
func (c *Collection) Len() int { return len(c.items) }

// At returns the element at index i. Negative indexes count from the end.
// It panics when i is out of range, like a slice index.
func (c *Collection) At(i int) *Element {
	return c.items[c.index(i)]
}

// Get is the non-panicking form of At.
func (c *Collection) Get(i int) (*Element, bool) {
	if i < -len(c.items) || i >= len(c.items) {
		return nil, false
	}
	return c.items[c.index(i)], true
}

// Set replaces the element at index i in place.
func (c *Collection) Set(i int, e *Element) {
	c.items[c.index(i)] = e
}

// Append adds elements to the end of the collection.
func (c *Collection) Append(elems ...*Element) {
	c.items = append(c.items, elems...)
}

// Clear removes every element.
func (c *Collection) Clear() {
	c.items = nil
}

// Slice returns a new collection with elements [start, end). The elements
// are shared with c; the ordering is not.
func (c *Collection) Slice(start, end int) *Collection {
	out := NewCollection(c.items[start:end]...)
	out.maxPrintLines = c.maxPrintLines
	return out
}

// Elements returns a copy of the element ordering.
func (c *Collection) Elements() []*Element {
	out := make([]*Element, len(c.items))
	copy(out, c.items)
	return out
}

// Cursor returns a new independent cursor positioned before the first element.
func (c *Collection) Cursor() *Cursor {
	return &Cursor{coll: c}
}

// All iterates over index/element pairs.
func (c *Collection) All() iter.Seq2[int, *Element] {
	return func(yield func(int, *Element) bool) {
		cur := c.Cursor()
		for {
			i := cur.pos
			e, ok := cur.Next()
			if !ok || !yield(i, e) {
				return
			}
		}
	}
}

// SetMaxPrintLines changes the listing length used by String. Zero or a
// negative value makes String render nothing.
func (c *Collection) SetMaxPrintLines(n int) {
	c.maxPrintLines = n
}

// Summary returns a one-line description.
func (c *Collection) Summary() string {
	return fmt.Sprintf("Collection contains %d images", len(c.items))
}

// String lists the elements one per line. Collections longer than the
// max print lines show the first and last half with a "......" separator.
func (c *Collection) String() string {
	var sb strings.Builder
	l := len(c.items)
	switch {
	case l <= c.maxPrintLines:
		for i, e := range c.items {
			fmt.Fprintf(&sb, "[%d] %s\n", i, e)
		}
	case c.maxPrintLines > 0:
		h := c.maxPrintLines / 2
		for i, e := range c.items[:h] {
			fmt.Fprintf(&sb, "[%d] %s\n", i, e)
		}
		sb.WriteString("......\n")
		for i, e := range c.items[l-h:] {
			fmt.Fprintf(&sb, "[%d] %s\n", l-h+i, e)
		}
	}
	return sb.String()
}

func (c *Collection) index(i int) int {
	if i < 0 {
		return len(c.items) + i
	}
	return i
}

// Cursor walks a collection from front to back. Each cursor keeps its own
// position, so several cursors over one collection do not interfere.
// Elements appended during a walk are visited.
type Cursor struct {
	coll *Collection
	pos  int
}

// Next returns the next element, or false once the collection is exhausted.
func (c *Cursor) Next() (*Element, bool) {
	if c.pos >= len(c.coll.items) {
		return nil, false
	}
	e := c.coll.items[c.pos]
	c.pos++
	return e, true
}

// Remaining returns how many elements Next has yet to return.
func (c *Cursor) Remaining() int {
	if n := len(c.coll.items) - c.pos; n > 0 {
		return n
	}
	return 0
}

// Reset moves the cursor back to the first element.
func (c *Cursor) Reset() { c.pos = 0 }
