// Package driver implements the asynchronous query engine client: it turns
// the remote engine's wire responses into typed callbacks delivered on a
// pluggable execution context, with change-feed subscriptions multiplexed
// over one persistent connection.
//
// # Architecture
//
// A Connection owns one transport and multiplexes concurrent queries over it
// using per-query tokens. Issuing a query registers a Cursor: the per-query
// state machine that consumes response frames, drives the partial/continue
// batch protocol, classifies change-feed rows, and guarantees its resources
// are released exactly once however the query terminates.
//
//	caller ── RunAsync ──> Connection ── frames ──> Cursor ── Dispatcher ──> Handler
//
// Handlers are capability sets: a struct of optional callback funcs. The
// engine probes each capability before invoking it and never fails when one
// is absent.
//
// Dispatchers decide where deliveries run. PoolDispatcher fans deliveries out
// to a shared bounded worker pool, keeping per-cursor FIFO order while
// different cursors run in parallel. LoopDispatcher serializes every delivery
// onto one cooperative loop goroutine.
//
// # Lifecycle guarantees
//
// A cursor transitions to closed exactly once, whether the query completed
// normally, was cancelled, hit a protocol error, faulted inside the handler,
// or lost its connection. After the transition no handler method runs for
// that cursor, and OnClose is delivered exactly once. Callers needing to
// distinguish the termination reason observe whether OnError fired first.
//
// # Streaming sessions
//
// Session is the integration surface for subscriber-style consumers: it
// tracks every cursor it opens in a StreamRegistry and tears all of them down
// best-effort when the session ends, forwarding change notifications to an
// outbound channel through an injected row materializer.
package driver
