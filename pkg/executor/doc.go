// Package executor provides a shared, bounded worker pool executing opaque
// task functions.
//
// # Overview
//
// The pool is the process-wide execution backend for concurrent callback
// dispatch: a fixed number of worker goroutines drain a bounded task channel.
// It is deliberately unaware of queries, cursors, and ordering; per-cursor
// FIFO is the dispatcher's responsibility (each cursor keeps at most one
// drain task in flight here at a time).
//
// Design points, shared with the rest of the driver:
//
//   - Non-blocking Submit with backpressure: a full queue returns ErrQueueFull
//     rather than blocking the caller. Dropped tasks signal overload.
//   - Context-aware lifecycle: workers receive the Start context and exit on
//     cancellation; Stop(timeout) drains the queue best-effort.
//   - Dual-tracking observability: atomic statistics are always on; Prometheus
//     metrics are opt-in through metric.MetricsRegistry.
//
// # Usage
//
//	pool := executor.NewPool(10, 1000)
//	if err := pool.Start(ctx); err != nil { ... }
//	defer pool.Stop(5 * time.Second)
//
//	err := pool.Submit(func() {
//	    // runs on a worker goroutine
//	})
//
// The pool is shared infrastructure: no single query owns it, and tasks must
// not assume exclusive use of its workers.
package executor
