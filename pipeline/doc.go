// Package pipeline chains lazily-evaluated stages over image elements.
//
// A chain is built from three stage kinds, all created through a Builder
// that assigns each stage a unique id and name ("Map#2"):
//
//   - SourceStage: the root; produces elements from its params.
//   - MapStage: a streaming flat-map, or a whole-collection transform.
//   - DispatchStage: splits its upstream into branches by percentages.
//
// Params are bound when a stage is built; nothing runs until the iterator
// returned by Execute is pulled. Execute checks the whole chain for missing
// upstreams, transformations and params before handing out an iterator, so
// assembly mistakes surface before any I/O happens.
//
//	b := pipeline.NewBuilder()
//	src := pipeline.NewSource(b, imgio.LoadDir, imgio.LoadParams{Dir: "raw", Extensions: []string{".jpg"}})
//	small := pipeline.NewMap(b, transform.Resize, transform.ResizeParams{Width: 32, Height: 32}).Attach(src)
//	split, err := pipeline.NewDispatch(b, 0.7, 0.2, 0.1)
//	split.Attach(small)
//	train, err := pipeline.Collect(ctx, split.Branch(0))
//
// The branches of one dispatch share a single pass over the chain above
// it, so stateful stages such as a dedup filter see every element once.
// Elements for a branch that is not being read are held in memory until it
// is; Stream, Partition and Route route the pass without that buffering.
//
// Execution is single-threaded and pull-driven. The iterators are not safe
// for concurrent use; a stalled transformation stalls the chain. The context
// is checked on every pull so a caller can abandon a run.
package pipeline
