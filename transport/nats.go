package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/wire"
)

// natsTransport carries one NATS message per frame over a subject pair. The
// client publishes query frames to <prefix>.query.<session> and receives
// response frames on <prefix>.response.<session>, where session is unique per
// transport so concurrent clients never share an inbox.
type natsTransport struct {
	nc      *nats.Conn
	ownConn bool
	sub     *nats.Subscription
	inbox   chan *nats.Msg
	done    chan struct{}
	subject string

	closeMu sync.Mutex
	closed  bool
}

// natsInboxDepth bounds buffered inbound frames per transport
const natsInboxDepth = 256

// DialNATS connects to the query engine through a NATS server. The prefix
// names the engine's service subjects.
func DialNATS(url, prefix string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	nc, err := nats.Connect(url, nats.Timeout(timeout), nats.Name("querystream"))
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSTransport", "DialNATS", "connect "+url)
	}
	t, err := NewNATSTransport(nc, prefix)
	if err != nil {
		nc.Close()
		return nil, err
	}
	t.(*natsTransport).ownConn = true
	return t, nil
}

// NATSDialer returns a Dialer for the given server URL and subject prefix
func NATSDialer(url, prefix string, timeout time.Duration) Dialer {
	return func() (Transport, error) {
		return DialNATS(url, prefix, timeout)
	}
}

// NewNATSTransport wraps an existing NATS connection. The connection is not
// closed when the transport closes.
func NewNATSTransport(nc *nats.Conn, prefix string) (Transport, error) {
	if prefix == "" {
		prefix = "querystream"
	}
	session := uuid.NewString()

	inbox := make(chan *nats.Msg, natsInboxDepth)
	sub, err := nc.ChanSubscribe(fmt.Sprintf("%s.response.%s", prefix, session), inbox)
	if err != nil {
		return nil, errors.WrapTransient(err, "NATSTransport", "NewNATSTransport", "subscribe response subject")
	}

	return &natsTransport{
		nc:      nc,
		sub:     sub,
		inbox:   inbox,
		done:    make(chan struct{}),
		subject: fmt.Sprintf("%s.query.%s", prefix, session),
	}, nil
}

// ReadFrame blocks until a response message arrives or the transport closes
func (t *natsTransport) ReadFrame() (*wire.Frame, error) {
	select {
	case <-t.done:
		return nil, io.EOF
	case msg, ok := <-t.inbox:
		if !ok {
			return nil, io.EOF
		}
		return wire.DecodeFrame(msg.Data)
	}
}

// WriteFrame publishes one frame to the query subject
func (t *natsTransport) WriteFrame(f *wire.Frame) error {
	if !t.nc.IsConnected() {
		return errors.WrapTransient(errors.ErrNotConnected, "NATSTransport", "WriteFrame", "check connection")
	}
	if err := t.nc.Publish(t.subject, wire.EncodeFrame(f)); err != nil {
		return errors.WrapTransient(err, "NATSTransport", "WriteFrame", "publish frame")
	}
	return nil
}

// Close unsubscribes and unblocks any pending ReadFrame
func (t *natsTransport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	err := t.sub.Unsubscribe()
	close(t.done)
	if t.ownConn {
		t.nc.Close()
	}
	return err
}
