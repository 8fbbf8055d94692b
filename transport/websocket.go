package transport

import (
	"crypto/tls"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/wire"
)

// wsTransport carries one binary message per frame
type wsTransport struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// DialWebSocket connects to the query engine over a WebSocket endpoint
// (ws:// or wss:// URL)
func DialWebSocket(url string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "WSTransport", "DialWebSocket", "dial "+url)
	}
	return &wsTransport{conn: conn}, nil
}

// WebSocketDialer returns a Dialer for the given URL
func WebSocketDialer(url string, timeout time.Duration) Dialer {
	return func() (Transport, error) {
		return DialWebSocket(url, timeout)
	}
}

// DialWebSocketTLS connects to a wss:// endpoint with an explicit TLS
// configuration. A nil tlsConf uses the default verification.
func DialWebSocketTLS(url string, timeout time.Duration, tlsConf *tls.Config) (Transport, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
		TLSClientConfig:  tlsConf,
	}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return nil, errors.WrapTransient(err, "WSTransport", "DialWebSocketTLS", "dial "+url)
	}
	return &wsTransport{conn: conn}, nil
}

// WebSocketDialerTLS returns a Dialer for the given URL and TLS
// configuration
func WebSocketDialerTLS(url string, timeout time.Duration, tlsConf *tls.Config) Dialer {
	return func() (Transport, error) {
		return DialWebSocketTLS(url, timeout, tlsConf)
	}
}

// ReadFrame reads the next binary message and decodes it as one frame.
// Non-binary messages are skipped.
func (t *wsTransport) ReadFrame() (*wire.Frame, error) {
	for {
		msgType, data, err := t.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, errors.WrapTransient(err, "WSTransport", "ReadFrame", "read message")
		}
		if msgType != websocket.BinaryMessage {
			continue
		}
		return wire.DecodeFrame(data)
	}
}

// WriteFrame writes one frame as a binary message
func (t *wsTransport) WriteFrame(f *wire.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := t.conn.WriteMessage(websocket.BinaryMessage, wire.EncodeFrame(f)); err != nil {
		return errors.WrapTransient(err, "WSTransport", "WriteFrame", "write message")
	}
	return nil
}

// Close sends a close frame best-effort and tears down the connection
func (t *wsTransport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	t.writeMu.Lock()
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	t.writeMu.Unlock()

	return t.conn.Close()
}
