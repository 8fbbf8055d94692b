package transport

import (
	"github.com/c360/querystream/wire"
)

// Transport is a full-duplex carrier of token-addressed frames. ReadFrame
// blocks until a frame arrives, the transport closes (io.EOF), or an error
// occurs. Implementations must support one concurrent reader and one
// concurrent writer.
type Transport interface {
	ReadFrame() (*wire.Frame, error)
	WriteFrame(*wire.Frame) error
	Close() error
}

// Dialer establishes a fresh Transport. The driver invokes it on initial
// connect and again on every reconnect attempt.
type Dialer func() (Transport, error)
