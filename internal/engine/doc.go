// Package engine is a small columnar query engine.
//
// A [DataFrame] is an ordered set of equally long, immutable [Series].
// Queries are built from [Expr] values and run by an [Engine], which
// evaluates expressions in parallel on a [Pool]. Elementwise expressions are
// split into row chunks; expressions containing aggregations or batch host
// callbacks are evaluated over the whole column.
//
// Expressions created with [Map], [Apply], or formulas calling host(...)
// run logic on the host runtime. Every query therefore executes inside
// relay.Execute, and the goroutine calling Select or Agg must be the one
// owning the engine's host.
package engine
