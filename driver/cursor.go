package driver

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/metric"
	"github.com/c360/querystream/wire"
)

// Close reasons reported to metrics
const (
	closeReasonComplete   = "complete"
	closeReasonError      = "error"
	closeReasonCancelled  = "cancelled"
	closeReasonStopped    = "stopped"
	closeReasonDisconnect = "disconnect"
)

// Delivery outcomes reported to metrics
const (
	deliveryOK      = "ok"
	deliverySkipped = "skipped"
	deliveryFault   = "fault"
)

// Cursor is the per-query state machine. It consumes response frames from
// the connection's read path and produces handler invocations scheduled
// through its dispatcher. The closed flag transitions false to true exactly
// once; after that no handler method runs for this cursor and any in-flight
// scheduled delivery is a no-op.
type Cursor struct {
	token      int64
	opts       map[string]any
	handler    *Handler
	conn       *Connection
	dispatcher Dispatcher
	logger     *slog.Logger
	metrics    *metric.Metrics

	closed         atomic.Bool
	opened         atomic.Bool
	closeDelivered atomic.Bool

	// Serial delivery queue, drained one task at a time so per-cursor
	// delivery order matches frame arrival order even on a concurrent pool
	dispatchMu sync.Mutex
	pending    []func()
	draining   bool
}

// newCursor creates a cursor bound to its connection and dispatcher
func newCursor(token int64, opts map[string]any, handler *Handler, conn *Connection, dispatcher Dispatcher) *Cursor {
	return &Cursor{
		token:      token,
		opts:       opts,
		handler:    handler,
		conn:       conn,
		dispatcher: dispatcher,
		logger:     conn.logger.With("component", "cursor", "token", token),
		metrics:    conn.metrics,
	}
}

// Token returns the cursor's connection-unique query token
func (c *Cursor) Token() int64 {
	return c.token
}

// Closed reports whether the cursor has reached its terminal state
func (c *Cursor) Closed() bool {
	return c.closed.Load()
}

// Close cancels the query: the closed flag is set immediately, a stop frame
// is dispatched best-effort, and the single OnClose delivery is scheduled.
// Close is idempotent; later calls return nil without side effects. The
// returned error reports a stop-frame write failure only - the cursor is
// closed regardless.
func (c *Cursor) Close() error {
	if !c.transition(closeReasonCancelled) {
		return nil
	}

	err := c.conn.stopQuery(c.token)
	c.dispatcher.ScheduleFinal(c, c.deliverClose)
	if err != nil {
		return errors.Wrap(err, "Cursor", "Close", "dispatch stop")
	}
	return nil
}

// transition performs the single false-to-true closed transition. The winner
// unregisters the cursor and owns the OnClose delivery; everyone else gets
// false.
func (c *Cursor) transition(reason string) bool {
	if !c.closed.CompareAndSwap(false, true) {
		return false
	}
	c.conn.forgetCursor(c.token)
	c.metrics.RecordCursorClosed(reason)
	c.logger.Debug("cursor closed", "reason", reason)
	return true
}

// deliverClose invokes OnClose at most once, regardless of which termination
// path scheduled it
func (c *Cursor) deliverClose() {
	if c.closeDelivered.CompareAndSwap(false, true) {
		c.handler.callOnClose()
	}
}

// deliverOpen invokes OnOpen before the first delivered value
func (c *Cursor) deliverOpen() error {
	if c.opened.CompareAndSwap(false, true) {
		return c.handler.callOnOpen()
	}
	return nil
}

// forceStop converts the cursor to stopped: used when the handler reports
// Stopped() or the dispatch context is gone by execution time. OnClose is
// delivered inline on the calling goroutine since no dispatch context
// remains, and is delivered even when another path already closed the cursor
// but has its own terminal delivery stranded in a dead queue.
func (c *Cursor) forceStop() {
	if c.transition(closeReasonStopped) {
		if err := c.conn.stopQuery(c.token); err != nil {
			c.logger.Debug("stop frame not sent", "error", err)
		}
	}
	c.deliverClose()
}

// handleDisconnect is the nil-envelope path: the transport is gone, so the
// cursor closes without OnOpen or row delivery.
func (c *Cursor) handleDisconnect() {
	c.dispatcher.ScheduleFinal(c, func() {
		c.transition(closeReasonDisconnect)
		c.deliverClose()
	})
}

// handleResponse consumes one decoded response frame. Called from the
// connection's read path, which is single-threaded per connection but not
// synchronized with explicit-close callers.
func (c *Cursor) handleResponse(resp *wire.Response) {
	if c.closed.Load() {
		return
	}

	switch resp.Type {
	case wire.SuccessPartial:
		c.dispatcher.Schedule(c, c.wrap(func() error {
			return c.deliverPartial(resp)
		}))
	case wire.SuccessSequence:
		c.dispatcher.Schedule(c, c.wrap(func() error {
			return c.deliverSequence(resp)
		}))
	case wire.SuccessAtom:
		c.dispatcher.Schedule(c, c.wrap(func() error {
			return c.deliverAtom(resp)
		}))
	case wire.WaitComplete:
		c.dispatcher.Schedule(c, c.wrap(func() error {
			return c.deliverWaitComplete()
		}))
	default:
		// Error frames and unrecognized types both terminate the query
		c.dispatcher.Schedule(c, c.wrap(func() error {
			return resp.Error()
		}))
	}
}

// wrap builds a delivery task around work. The task rechecks the closed flag
// before touching the handler, polls the handler's stop signal, and converts
// any error or panic from work into the fault path: OnOpen if pending,
// OnError, close, OnClose. This guarantees a cursor can never get stuck
// short of its terminal state.
func (c *Cursor) wrap(work func() error) func() {
	return func() {
		start := time.Now()
		outcome := deliveryOK

		defer func() {
			if r := recover(); r != nil {
				outcome = deliveryFault
				c.fault(fmt.Errorf("handler panic: %v", r))
			}
			c.metrics.RecordDelivery(outcome, time.Since(start))
		}()

		if c.closed.Load() {
			outcome = deliverySkipped
			return
		}
		if c.handler.stopped() {
			outcome = deliverySkipped
			c.forceStop()
			return
		}

		if err := work(); err != nil {
			outcome = deliveryFault
			c.fault(err)
		}
	}
}

// fault delivers a failure to the handler and closes the cursor. Runs inside
// the dispatch context.
func (c *Cursor) fault(err error) {
	c.metrics.RecordHandlerFault()
	c.logger.Warn("delivery fault", "error", err)

	if c.closed.Load() {
		return
	}
	if openErr := c.deliverOpen(); openErr != nil {
		c.logger.Warn("on-open failed during fault delivery", "error", openErr)
	}
	c.handler.callOnError(err)
	if c.transition(closeReasonError) {
		c.deliverClose()
	}
}

// deliverPartial handles a continuation batch: open, request the next batch,
// deliver this batch's rows. The cursor stays in its streaming state.
func (c *Cursor) deliverPartial(resp *wire.Response) error {
	if err := c.deliverOpen(); err != nil {
		return err
	}

	// The next batch is requested only after this batch has been handed to
	// the dispatch queue, so the server cannot race ahead of client-side
	// delivery. A racing close or a dropped connection skips the continue.
	if !c.closed.Load() && c.conn.IsOpen() {
		if err := c.conn.continueQuery(c); err != nil {
			c.logger.Warn("continue not sent", "error", err)
		}
	}

	return c.deliverRows(resp)
}

// deliverSequence handles the final batch: open, rows, terminal close
func (c *Cursor) deliverSequence(resp *wire.Response) error {
	if err := c.deliverOpen(); err != nil {
		return err
	}
	if err := c.deliverRows(resp); err != nil {
		return err
	}
	if c.transition(closeReasonComplete) {
		c.deliverClose()
	}
	return nil
}

// deliverAtom handles a single-value result: arrays go to OnArray, scalars
// to OnAtom
func (c *Cursor) deliverAtom(resp *wire.Response) error {
	if err := c.deliverOpen(); err != nil {
		return err
	}

	value, isArray, err := resp.AtomValue()
	if err != nil {
		return err
	}

	if c.closed.Load() {
		return nil
	}
	if isArray {
		if c.handler.OnArray != nil {
			if err := c.handler.OnArray(value); err != nil {
				return err
			}
		}
	} else {
		if c.handler.OnAtom != nil {
			if err := c.handler.OnAtom(value); err != nil {
				return err
			}
		}
	}

	if c.transition(closeReasonComplete) {
		c.deliverClose()
	}
	return nil
}

// deliverWaitComplete handles the server's noreply-wait acknowledgement
func (c *Cursor) deliverWaitComplete() error {
	if err := c.deliverOpen(); err != nil {
		return err
	}
	if c.closed.Load() {
		return nil
	}
	if err := c.handler.callOnWaitComplete(); err != nil {
		return err
	}
	if c.transition(closeReasonComplete) {
		c.deliverClose()
	}
	return nil
}

// deliverRows classifies and delivers each row of a batch, rechecking the
// closed flag between rows so a racing close cuts delivery short
func (c *Cursor) deliverRows(resp *wire.Response) error {
	feed := resp.IsFeed()
	for _, row := range resp.Rows {
		if c.closed.Load() {
			return nil
		}
		if feed {
			if err := c.deliverChange(row); err != nil {
				return err
			}
		} else if c.handler.OnStreamValue != nil {
			if err := c.handler.OnStreamValue(row); err != nil {
				return err
			}
		}
	}
	return nil
}

// deliverChange classifies a feed row by key presence and routes it to the
// first matching capability. A rule whose capability is absent falls through
// to the next applicable rule and ultimately to OnUnhandledChange; with that
// absent too, the row is dropped. Unmatched shapes reaching the unhandled
// path is deliberate forward compatibility with new server row kinds.
func (c *Cursor) deliverChange(row json.RawMessage) error {
	ch := wire.ParseChange(row)
	h := c.handler

	switch {
	case ch.HasOld && ch.HasNew && h.OnChange != nil:
		return h.OnChange(ch.OldValue, ch.NewValue)
	case ch.HasNew && !ch.HasOld && h.OnInitial != nil:
		return h.OnInitial(ch.NewValue)
	case ch.HasOld && !ch.HasNew && h.OnUninitial != nil:
		return h.OnUninitial(ch.OldValue)
	case ch.HasError && !ch.HasOld && !ch.HasNew && h.OnChangeError != nil:
		return h.OnChangeError(errors.NewProtocolError(errors.RuntimeError, ch.ErrMessage, nil))
	case ch.HasState && h.OnState != nil:
		return h.OnState(ch.State)
	default:
		if h.OnUnhandledChange != nil {
			return h.OnUnhandledChange(row)
		}
		return nil
	}
}
