// Package transport provides the byte-level connections the driver speaks
// over.
//
// # Overview
//
// The driver core depends only on the Transport interface: a full-duplex
// carrier of token-addressed frames. Three implementations are provided:
//
//   - TCP: frames are written directly to the stream with the standard
//     12-byte header (see package wire)
//   - WebSocket: one binary message per frame, using gorilla/websocket
//   - NATS: one message per frame over a subject pair, for deployments that
//     reach the query engine through a NATS fabric
//
// All implementations are safe for one concurrent reader plus one concurrent
// writer, which matches the driver's usage: a single read-loop goroutine and
// mutex-serialized writes.
//
// # Reconnection
//
// Transports are single-use: once the underlying connection drops, the value
// is dead. The driver holds a Dialer and establishes a fresh Transport when
// reconnecting.
package transport
