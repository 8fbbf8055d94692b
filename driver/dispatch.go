package driver

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/pkg/executor"
)

// Dispatcher decides where and when a cursor's deliveries run. The engine
// never invokes a handler directly; every invocation goes through Schedule or
// ScheduleFinal.
//
// Schedule carries ordinary deliveries and is guarded: a cursor already
// closed at scheduling time is skipped. ScheduleFinal carries the terminal
// OnClose delivery and must run its task even for a closed cursor.
type Dispatcher interface {
	// Setup runs the query-establishment step in a context where failures
	// can still be surfaced synchronously to the caller
	Setup(establish func() error) error

	// Schedule queues one delivery for the cursor, preserving per-cursor
	// order against every other delivery scheduled for it
	Schedule(c *Cursor, fn func())

	// ScheduleFinal queues the terminal delivery for the cursor
	ScheduleFinal(c *Cursor, fn func())
}

// Executor is the slice of a worker pool the pool dispatcher needs
type Executor interface {
	Submit(task executor.Task) error
}

// PoolDispatcher fans deliveries out to a shared worker pool. Deliveries for
// one cursor stay in arrival order: each cursor keeps a serial queue and at
// most one of its tasks is in flight on the pool at a time, so independent
// cursors run in parallel without reordering any single stream.
type PoolDispatcher struct {
	exec   Executor
	logger *slog.Logger
}

// NewPoolDispatcher wraps a started worker pool. A nil logger falls back to
// the default.
func NewPoolDispatcher(exec Executor, logger *slog.Logger) *PoolDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PoolDispatcher{
		exec:   exec,
		logger: logger.With("component", "pool_dispatcher"),
	}
}

// Setup runs establish on the caller's goroutine so registration failures
// surface synchronously
func (d *PoolDispatcher) Setup(establish func() error) error {
	return establish()
}

// Schedule queues fn unless the cursor is already closed
func (d *PoolDispatcher) Schedule(c *Cursor, fn func()) {
	if c.closed.Load() {
		return
	}
	d.enqueue(c, fn)
}

// ScheduleFinal queues fn regardless of cursor state
func (d *PoolDispatcher) ScheduleFinal(c *Cursor, fn func()) {
	d.enqueue(c, fn)
}

func (d *PoolDispatcher) enqueue(c *Cursor, fn func()) {
	c.dispatchMu.Lock()
	c.pending = append(c.pending, fn)
	start := !c.draining
	if start {
		c.draining = true
	}
	c.dispatchMu.Unlock()

	if start {
		d.submitDrain(c)
	}
}

// submitDrain puts the cursor's single in-flight drain task on the pool.
// A rejected submit means the pool is saturated or stopped; the cursor's
// queued deliveries are unrecoverable, so it is force-stopped with OnClose
// delivered inline.
func (d *PoolDispatcher) submitDrain(c *Cursor) {
	err := d.exec.Submit(func() {
		d.runNext(c)
	})
	if err == nil {
		return
	}

	d.logger.Warn("delivery rejected by pool", "token", c.token, "error", err)
	c.dispatchMu.Lock()
	c.pending = nil
	c.draining = false
	c.dispatchMu.Unlock()
	c.forceStop()
}

// runNext executes the head of the cursor's serial queue, then resubmits
// itself while work remains
func (d *PoolDispatcher) runNext(c *Cursor) {
	c.dispatchMu.Lock()
	if len(c.pending) == 0 {
		c.draining = false
		c.dispatchMu.Unlock()
		return
	}
	fn := c.pending[0]
	c.pending = c.pending[1:]
	c.dispatchMu.Unlock()

	fn()

	c.dispatchMu.Lock()
	more := len(c.pending) > 0
	if !more {
		c.draining = false
	}
	c.dispatchMu.Unlock()

	if more {
		d.submitDrain(c)
	}
}

// loopTask pairs a queued delivery with its cursor so a shutdown drain can
// terminate stranded cursors
type loopTask struct {
	c  *Cursor
	fn func()
}

// defaultLoopQueueSize bounds deliveries queued on a loop
const defaultLoopQueueSize = 1024

// Loop is a cooperative dispatch context: one goroutine, owned by the
// caller, runs every delivery in enqueue order across all cursors bound to
// it. Callers that need deliveries on a specific goroutine run the loop
// there.
type Loop struct {
	logger *slog.Logger
	queue  chan loopTask

	mu      sync.Mutex
	running bool
}

// NewLoop creates a loop with the given queue capacity; zero or negative
// selects the default
func NewLoop(queueSize int, logger *slog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = defaultLoopQueueSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger: logger.With("component", "loop"),
		queue:  make(chan loopTask, queueSize),
	}
}

// Run executes queued deliveries on the calling goroutine until ctx is
// cancelled. On return the loop is stopped: deliveries still queued are
// drained by force-stopping their cursors so every bound cursor reaches its
// terminal state.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.WrapInvalid(errors.New("loop already running"), "Loop", "Run", "start loop")
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
		l.drain()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t := <-l.queue:
			t.fn()
		}
	}
}

// Running reports whether Run is currently executing
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// drain terminates every cursor with a delivery stranded in the queue
func (l *Loop) drain() {
	for {
		select {
		case t := <-l.queue:
			l.logger.Debug("draining stranded delivery", "token", t.c.Token())
			t.c.forceStop()
		default:
			return
		}
	}
}

// enqueue adds a task while the loop is running. Returns false when the loop
// is stopped or the queue is full.
func (l *Loop) enqueue(t loopTask) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return false
	}
	select {
	case l.queue <- t:
		return true
	default:
		return false
	}
}

// LoopDispatcher binds cursors to a Loop
type LoopDispatcher struct {
	loop *Loop
}

// NewLoopDispatcher wraps a loop. The loop does not have to be running yet;
// it must be running by the time a query is issued through this dispatcher.
func NewLoopDispatcher(loop *Loop) *LoopDispatcher {
	return &LoopDispatcher{loop: loop}
}

// Setup refuses to establish a query when the loop is not running, so the
// failure reaches the caller synchronously instead of stranding a cursor
func (d *LoopDispatcher) Setup(establish func() error) error {
	if !d.loop.Running() {
		return errors.WrapInvalid(errors.ErrLoopNotRunning, "LoopDispatcher", "Setup", "check loop")
	}
	return establish()
}

// Schedule queues fn on the loop; a stopped loop or full queue converts the
// delivery into a forced stop of the cursor
func (d *LoopDispatcher) Schedule(c *Cursor, fn func()) {
	if c.closed.Load() {
		return
	}
	if !d.loop.enqueue(loopTask{c: c, fn: fn}) {
		c.forceStop()
	}
}

// ScheduleFinal queues the terminal delivery; with the loop gone it runs
// inline so OnClose is never lost
func (d *LoopDispatcher) ScheduleFinal(c *Cursor, fn func()) {
	if !d.loop.enqueue(loopTask{c: c, fn: fn}) {
		fn()
	}
}
