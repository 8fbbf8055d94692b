package driver

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c360/querystream/transport"
	"github.com/c360/querystream/wire"
)

// fakeTransport is an in-memory transport the tests drive directly: frames
// pushed to in are read by the connection, frames the connection writes are
// captured for inspection.
type fakeTransport struct {
	in     chan *wire.Frame
	closed chan struct{}
	once   sync.Once

	mu         sync.Mutex
	written    []*wire.Frame
	failWrites bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan *wire.Frame, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadFrame() (*wire.Frame, error) {
	select {
	case <-f.closed:
		return nil, io.EOF
	case frame := <-f.in:
		return frame, nil
	}
}

func (f *fakeTransport) WriteFrame(frame *wire.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrites {
		return fmt.Errorf("write failed")
	}
	f.written = append(f.written, frame)
	return nil
}

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) setFailWrites(fail bool) {
	f.mu.Lock()
	f.failWrites = fail
	f.mu.Unlock()
}

// writtenFrames snapshots every frame the connection has written
func (f *fakeTransport) writtenFrames() []*wire.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*wire.Frame, len(f.written))
	copy(out, f.written)
	return out
}

// sentQueryTypes decodes the leading query type tag of each written frame
func (f *fakeTransport) sentQueryTypes() []wire.QueryType {
	var types []wire.QueryType
	for _, frame := range f.writtenFrames() {
		var raw []json.RawMessage
		if err := json.Unmarshal(frame.Payload, &raw); err != nil || len(raw) == 0 {
			continue
		}
		var qt int
		if err := json.Unmarshal(raw[0], &qt); err != nil {
			continue
		}
		types = append(types, wire.QueryType(qt))
	}
	return types
}

// push delivers a response frame for the given token into the read loop
func (f *fakeTransport) push(t *testing.T, token int64, resp *wire.Response) {
	t.Helper()
	payload, err := json.Marshal(resp)
	require.NoError(t, err)
	select {
	case f.in <- &wire.Frame{Token: token, Payload: payload}:
	case <-time.After(time.Second):
		t.Fatal("fake transport inbox full")
	}
}

func rows(values ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = json.RawMessage(v)
	}
	return out
}

// testLogger discards everything
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestConn connects over a fresh fake transport with reconnect disabled
func newTestConn(t *testing.T, opts ...Option) (*Connection, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	all := append([]Option{WithLogger(testLogger()), WithoutReconnect()}, opts...)
	conn, err := Connect(func() (transport.Transport, error) { return ft, nil }, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn, ft
}

// syncDispatcher runs deliveries inline on the scheduling goroutine. Used by
// tests that want deterministic interleaving with the read loop.
type syncDispatcher struct{}

func (syncDispatcher) Setup(establish func() error) error { return establish() }

func (syncDispatcher) Schedule(c *Cursor, fn func()) {
	if !c.Closed() {
		fn()
	}
}

func (syncDispatcher) ScheduleFinal(_ *Cursor, fn func()) { fn() }

// recorder captures callback invocations in order
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []error
	closed chan struct{}
}

func newRecorder() *recorder {
	return &recorder{closed: make(chan struct{})}
}

func (r *recorder) add(event string) {
	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	copy(out, r.events)
	return out
}

func (r *recorder) errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]error, len(r.errs))
	copy(out, r.errs)
	return out
}

func (r *recorder) waitClosed(t *testing.T) {
	t.Helper()
	select {
	case <-r.closed:
	case <-time.After(2 * time.Second):
		t.Fatalf("cursor never delivered OnClose; events: %v", r.snapshot())
	}
}

// handler returns a Handler wired to record every capability
func (r *recorder) handler() *Handler {
	return &Handler{
		OnOpen: func() error {
			r.add("open")
			return nil
		},
		OnClose: func() {
			r.add("close")
			close(r.closed)
		},
		OnStreamValue: func(row json.RawMessage) error {
			r.add("value:" + string(row))
			return nil
		},
		OnArray: func(value json.RawMessage) error {
			r.add("array:" + string(value))
			return nil
		},
		OnAtom: func(value json.RawMessage) error {
			r.add("atom:" + string(value))
			return nil
		},
		OnWaitComplete: func() error {
			r.add("wait_complete")
			return nil
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errs = append(r.errs, err)
			r.mu.Unlock()
			r.add("error")
		},
		OnChange: func(oldVal, newVal json.RawMessage) error {
			r.add(fmt.Sprintf("change:%s->%s", oldVal, newVal))
			return nil
		},
		OnInitial: func(newVal json.RawMessage) error {
			r.add("initial:" + string(newVal))
			return nil
		},
		OnUninitial: func(oldVal json.RawMessage) error {
			r.add("uninitial:" + string(oldVal))
			return nil
		},
		OnChangeError: func(err error) error {
			r.add("change_error:" + err.Error())
			return nil
		},
		OnState: func(state string) error {
			r.add("state:" + state)
			return nil
		},
		OnUnhandledChange: func(row json.RawMessage) error {
			r.add("unhandled:" + string(row))
			return nil
		},
	}
}
