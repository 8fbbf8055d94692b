package driver

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/c360/querystream/config"
	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/metric"
	"github.com/c360/querystream/pkg/retry"
	"github.com/c360/querystream/pkg/tlsutil"
	"github.com/c360/querystream/transport"
	"github.com/c360/querystream/wire"
)

// Connection multiplexes concurrent queries over one transport. Each query
// gets a connection-unique token; inbound frames are routed to the cursor
// registered under their token, from a single read goroutine per transport.
//
// When auto-reconnect is enabled, a failed write while starting a NEW query
// redials under the reconnect policy. Continue and stop frames never
// reconnect: their tokens are meaningless to a fresh server session, so
// their cursors terminate through the disconnect path instead.
type Connection struct {
	logger     *slog.Logger
	metrics    *metric.Metrics
	dial       transport.Dialer
	clientName string

	reconnect       bool
	reconnectPolicy retry.Policy
	limiter         *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	tokenCounter atomic.Int64

	mu      sync.RWMutex
	tr      transport.Transport
	cursors map[int64]*Cursor
	closed  bool

	// writeMu serializes frame writes and transport replacement during
	// reconnect
	writeMu sync.Mutex
}

// Connect dials through the given dialer and starts the read loop
func Connect(dial transport.Dialer, opts ...Option) (*Connection, error) {
	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	c := &Connection{
		logger:          slog.Default(),
		metrics:         metric.NewMetrics(),
		dial:            dial,
		reconnect:       true,
		reconnectPolicy: retry.Single(),
		ctx:             ctx,
		cancel:          cancel,
		group:           group,
		cursors:         make(map[int64]*Cursor),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			cancel()
			return nil, err
		}
	}
	if c.clientName == "" {
		c.clientName = defaultClientName()
	}
	c.logger = c.logger.With("component", "connection", "client", c.clientName)

	tr, err := dial()
	if err != nil {
		cancel()
		return nil, errors.WrapTransient(err, "Connection", "Connect", "dial transport")
	}
	c.startTransport(tr)
	c.logger.Info("connected")
	return c, nil
}

// ConnectTCP is a convenience wrapper around Connect with a TCP dialer
func ConnectTCP(addr string, timeout time.Duration, opts ...Option) (*Connection, error) {
	return Connect(transport.TCPDialer(addr, timeout), opts...)
}

// ConnectWithConfig builds the dialer and connection options from a loaded
// configuration. Explicit opts are applied last and win over the config.
func ConnectWithConfig(cfg *config.Config, opts ...Option) (*Connection, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Connection", "ConnectWithConfig", "check config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tlsConf, err := tlsutil.Load(cfg.TLS)
	if err != nil {
		return nil, err
	}

	var dial transport.Dialer
	switch cfg.Transport {
	case config.TransportWebSocket:
		dial = transport.WebSocketDialerTLS(cfg.Address, cfg.ConnectTimeout, tlsConf)
	case config.TransportNATS:
		dial = transport.NATSDialer(cfg.Address, cfg.NATS.SubjectPrefix, cfg.ConnectTimeout)
	default:
		dial = transport.TCPDialerTLS(cfg.Address, cfg.ConnectTimeout, tlsConf)
	}

	all := make([]Option, 0, len(opts)+3)
	if cfg.Reconnect.Enabled {
		all = append(all, WithAutoReconnect(cfg.RetryPolicy()))
	} else {
		all = append(all, WithoutReconnect())
	}
	if cfg.WriteRate.EventsPerSec > 0 {
		all = append(all, WithWriteRateLimit(cfg.WriteRate.EventsPerSec, cfg.WriteRate.Burst))
	}
	if cfg.ClientName != "" {
		all = append(all, WithClientName(cfg.ClientName))
	}
	all = append(all, opts...)

	return Connect(dial, all...)
}

// startTransport installs tr as the active transport and spawns its read
// loop
func (c *Connection) startTransport(tr transport.Transport) {
	c.mu.Lock()
	c.tr = tr
	c.mu.Unlock()

	c.metrics.RecordConnected(true)
	c.group.Go(func() error {
		c.readLoop(tr)
		return nil
	})
}

// readLoop routes inbound frames until the transport fails or is closed
func (c *Connection) readLoop(tr transport.Transport) {
	for {
		frame, err := tr.ReadFrame()
		if err != nil {
			c.logger.Debug("read loop exiting", "error", err)
			c.dropTransport(tr)
			return
		}
		c.route(frame)
	}
}

// route delivers one frame to the cursor registered under its token. Frames
// for unknown tokens are dropped: the cursor closed while the server's
// response was in flight.
func (c *Connection) route(frame *wire.Frame) {
	c.mu.RLock()
	cursor, ok := c.cursors[frame.Token]
	c.mu.RUnlock()

	if !ok {
		c.logger.Debug("frame for unknown token dropped", "token", frame.Token)
		c.metrics.RecordFrameDropped()
		return
	}

	resp, err := wire.DecodeResponse(frame.Payload)
	if err != nil {
		c.logger.Warn("undecodable response payload", "token", frame.Token, "error", err)
		cursor.dispatcher.Schedule(cursor, cursor.wrap(func() error {
			return err
		}))
		return
	}

	c.metrics.RecordFrameReceived(resp.Type.String())
	cursor.handleResponse(resp)
}

// dropTransport retires tr if it is still the active transport. Cursors
// registered at that moment lost their server session with it; they are
// terminated through the disconnect path on a separate goroutine so no
// caller-held lock is ever above a user callback.
func (c *Connection) dropTransport(tr transport.Transport) {
	c.mu.Lock()
	if c.tr != tr {
		c.mu.Unlock()
		return
	}
	c.tr = nil
	orphans := make([]*Cursor, 0, len(c.cursors))
	for _, cursor := range c.cursors {
		orphans = append(orphans, cursor)
	}
	wasClosed := c.closed
	c.mu.Unlock()

	c.metrics.RecordConnected(false)
	_ = tr.Close()

	if len(orphans) == 0 {
		return
	}
	if !wasClosed {
		c.logger.Warn("transport lost, terminating cursors", "cursors", len(orphans))
	}
	go func() {
		for _, cursor := range orphans {
			cursor.handleDisconnect()
		}
	}()
}

// IsOpen reports whether the connection has a live transport
func (c *Connection) IsOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed && c.tr != nil
}

// Close shuts the connection down: the transport closes, the read loop
// terminates every registered cursor through the disconnect path, and
// further queries are refused. Close is idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	tr := c.tr
	c.mu.Unlock()

	if tr != nil {
		_ = tr.Close()
	}
	c.cancel()
	err := c.group.Wait()
	c.metrics.RecordConnected(false)
	c.logger.Info("connection closed")
	if err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "Connection", "Close", "stop read loop")
	}
	return nil
}

// RunAsync starts a query and registers handler for its results. The query
// body is any JSON-marshalable query expression. Deliveries run through the
// dispatcher; establishment failures surface synchronously and invoke no
// callbacks.
func (c *Connection) RunAsync(query any, opts map[string]any, handler *Handler, dispatcher Dispatcher) (*Cursor, error) {
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrNilHandler, "Connection", "RunAsync", "check handler")
	}
	if dispatcher == nil {
		return nil, errors.WrapInvalid(errors.ErrNilDispatcher, "Connection", "RunAsync", "check dispatcher")
	}
	if err := wire.ValidateOptions(opts); err != nil {
		return nil, err
	}

	// Options are copied so later caller mutation cannot affect the query,
	// and state markers are requested whenever the handler consumes them
	sendOpts := make(map[string]any, len(opts)+1)
	for k, v := range opts {
		sendOpts[k] = v
	}
	if handler.wantsStates() {
		sendOpts[wire.IncludeStatesKey] = true
	}

	payload, err := wire.EncodeQuery(wire.Start, query, sendOpts)
	if err != nil {
		return nil, err
	}

	token := c.tokenCounter.Add(1)
	cursor := newCursor(token, sendOpts, handler, c, dispatcher)

	if err := dispatcher.Setup(func() error {
		return c.startQuery(cursor, payload, wire.Start)
	}); err != nil {
		return nil, err
	}
	return cursor, nil
}

// NoreplyWaitAsync asks the server to flush outstanding noreply writes; the
// handler's OnWaitComplete fires when the server acknowledges
func (c *Connection) NoreplyWaitAsync(handler *Handler, dispatcher Dispatcher) (*Cursor, error) {
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrNilHandler, "Connection", "NoreplyWaitAsync", "check handler")
	}
	if dispatcher == nil {
		return nil, errors.WrapInvalid(errors.ErrNilDispatcher, "Connection", "NoreplyWaitAsync", "check dispatcher")
	}

	payload, err := wire.EncodeQuery(wire.NoreplyWait, nil, nil)
	if err != nil {
		return nil, err
	}

	token := c.tokenCounter.Add(1)
	cursor := newCursor(token, nil, handler, c, dispatcher)

	if err := dispatcher.Setup(func() error {
		return c.startQuery(cursor, payload, wire.NoreplyWait)
	}); err != nil {
		return nil, err
	}
	return cursor, nil
}

// continueQuery requests the next batch for a streaming cursor
func (c *Connection) continueQuery(cursor *Cursor) error {
	payload, err := wire.EncodeQuery(wire.Continue, nil, nil)
	if err != nil {
		return err
	}
	return c.writeExisting(cursor.token, payload, wire.Continue)
}

// stopQuery tells the server to cancel a query and release its resources
func (c *Connection) stopQuery(token int64) error {
	payload, err := wire.EncodeQuery(wire.Stop, nil, nil)
	if err != nil {
		return err
	}
	return c.writeExisting(token, payload, wire.Stop)
}

// registerCursor adds the cursor to the routing table. Registration
// precedes the start-frame write so the read loop cannot receive a response
// for a token it does not know.
func (c *Connection) registerCursor(cursor *Cursor) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.WrapInvalid(errors.ErrConnectionClosed, "Connection", "registerCursor", "check connection")
	}
	c.cursors[cursor.token] = cursor
	return nil
}

// forgetCursor removes a token from the routing table; later frames for it
// are dropped
func (c *Connection) forgetCursor(token int64) {
	c.mu.Lock()
	delete(c.cursors, token)
	c.mu.Unlock()
}

// startQuery registers the cursor and writes its start frame. When
// auto-reconnect is enabled, a missing transport or a failed write redials
// under the reconnect policy and tries the write once more on the fresh
// transport. On failure the cursor is left unregistered and no callback has
// run, so the caller sees the error synchronously.
func (c *Connection) startQuery(cursor *Cursor, payload []byte, qt wire.QueryType) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.waitLimiter(); err != nil {
		return err
	}
	frame := &wire.Frame{Token: cursor.token, Payload: payload}

	tr := c.currentTransport()
	if tr != nil {
		if err := c.registerCursor(cursor); err != nil {
			return err
		}
		err := tr.WriteFrame(frame)
		if err == nil {
			c.metrics.RecordQuerySent(qt.String())
			c.metrics.RecordCursorOpened()
			return nil
		}
		c.metrics.RecordWriteError()
		c.logger.Warn("start frame write failed", "token", cursor.token, "error", err)
		c.forgetCursor(cursor.token)
		c.dropTransport(tr)
		if !c.reconnect {
			return errors.WrapTransient(err, "Connection", "startQuery", "write start frame")
		}
	} else if !c.reconnect {
		return errors.WrapTransient(errors.ErrNotConnected, "Connection", "startQuery", "check transport")
	}

	if err := c.redial(); err != nil {
		return err
	}
	tr = c.currentTransport()
	if tr == nil {
		return errors.WrapTransient(errors.ErrNotConnected, "Connection", "startQuery", "check transport after redial")
	}
	if err := c.registerCursor(cursor); err != nil {
		return err
	}
	if err := tr.WriteFrame(frame); err != nil {
		c.metrics.RecordWriteError()
		c.forgetCursor(cursor.token)
		c.dropTransport(tr)
		return errors.WrapTransient(err, "Connection", "startQuery", "write start frame after redial")
	}
	c.metrics.RecordQuerySent(qt.String())
	c.metrics.RecordCursorOpened()
	return nil
}

// writeExisting sends a continue or stop frame for a cursor that already has
// a server session. These tokens mean nothing to a fresh session, so this
// path never reconnects.
func (c *Connection) writeExisting(token int64, payload []byte, qt wire.QueryType) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.waitLimiter(); err != nil {
		return err
	}

	tr := c.currentTransport()
	if tr == nil {
		return errors.WrapTransient(errors.ErrNotConnected, "Connection", "writeExisting", "check transport")
	}
	if err := tr.WriteFrame(&wire.Frame{Token: token, Payload: payload}); err != nil {
		c.metrics.RecordWriteError()
		c.logger.Warn("frame write failed", "token", token, "type", qt.String(), "error", err)
		c.dropTransport(tr)
		return errors.WrapTransient(err, "Connection", "writeExisting", "write frame")
	}
	c.metrics.RecordQuerySent(qt.String())
	return nil
}

// waitLimiter blocks under the optional write rate limit. Called with
// writeMu held.
func (c *Connection) waitLimiter() error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(c.ctx); err != nil {
		return errors.Wrap(err, "Connection", "waitLimiter", "await rate limit")
	}
	return nil
}

// currentTransport snapshots the active transport
func (c *Connection) currentTransport() transport.Transport {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil
	}
	return c.tr
}

// redial establishes a replacement transport under the reconnect policy.
// Called with writeMu held.
func (c *Connection) redial() error {
	err := retry.Do(c.ctx, c.reconnectPolicy, func() error {
		c.metrics.RecordReconnect()
		tr, dialErr := c.dial()
		if dialErr != nil {
			c.logger.Warn("reconnect attempt failed", "error", dialErr)
			return dialErr
		}
		c.startTransport(tr)
		c.logger.Info("reconnected")
		return nil
	})
	if err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %w", errors.ErrReconnectFailed, err),
			"Connection", "redial", "re-establish transport")
	}
	return nil
}
