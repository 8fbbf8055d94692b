package transport

import (
	"bufio"
	"crypto/tls"
	"net"
	"sync"
	"time"

	"github.com/c360/querystream/errors"
	"github.com/c360/querystream/wire"
)

// tcpTransport frames directly onto a TCP stream
type tcpTransport struct {
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool
}

// DialTCP connects to the query engine over TCP
func DialTCP(addr string, timeout time.Duration) (Transport, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, errors.WrapTransient(err, "TCPTransport", "DialTCP", "dial "+addr)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		// Small query frames should not wait for coalescing
		_ = tc.SetNoDelay(true)
	}
	return &tcpTransport{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}, nil
}

// TCPDialer returns a Dialer for the given address
func TCPDialer(addr string, timeout time.Duration) Dialer {
	return func() (Transport, error) {
		return DialTCP(addr, timeout)
	}
}

// DialTCPTLS connects over TCP with a TLS handshake. A nil tlsConf falls
// back to plain TCP.
func DialTCPTLS(addr string, timeout time.Duration, tlsConf *tls.Config) (Transport, error) {
	if tlsConf == nil {
		return DialTCP(addr, timeout)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{Timeout: timeout}
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConf)
	if err != nil {
		return nil, errors.WrapTransient(err, "TCPTransport", "DialTCPTLS", "dial "+addr)
	}
	return &tcpTransport{
		conn: conn,
		br:   bufio.NewReader(conn),
		bw:   bufio.NewWriter(conn),
	}, nil
}

// TCPDialerTLS returns a Dialer for the given address and TLS configuration
func TCPDialerTLS(addr string, timeout time.Duration, tlsConf *tls.Config) Dialer {
	return func() (Transport, error) {
		return DialTCPTLS(addr, timeout, tlsConf)
	}
}

// ReadFrame reads the next frame from the stream
func (t *tcpTransport) ReadFrame() (*wire.Frame, error) {
	return wire.ReadFrame(t.br)
}

// WriteFrame writes one frame and flushes it
func (t *tcpTransport) WriteFrame(f *wire.Frame) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := wire.WriteFrame(t.bw, f); err != nil {
		return err
	}
	if err := t.bw.Flush(); err != nil {
		return errors.WrapTransient(err, "TCPTransport", "WriteFrame", "flush")
	}
	return nil
}

// Close tears down the connection; concurrent ReadFrame calls unblock with an
// error
func (t *tcpTransport) Close() error {
	t.closeMu.Lock()
	defer t.closeMu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
