// Package dataset holds the data model that flows through an imgprep
// pipeline: pixel buffers, image elements with their labels and bounding
// boxes, and ordered collections of elements.
//
// A Buffer is immutable once built and an Element exclusively owns its
// buffer: every constructor copies pixel data. The only structural change an
// Element accepts after construction is appending bounding boxes.
//
// Collections hand out independent Cursors, so any number of traversals of
// the same collection may be in flight at once. (Earlier versions kept a
// single cursor on the collection itself, which allowed only one iteration at
// a time.) Collections are not safe for concurrent mutation.
package dataset
