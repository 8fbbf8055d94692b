// Package errors provides standardized error handling patterns for the
// querystream driver.
//
// # Overview
//
// The errors package implements a three-class error classification system:
// Transient (temporary, retryable), Invalid (bad input, non-retryable), and
// Fatal (unrecoverable, stop processing).
//
// This classification enables intelligent error handling throughout the
// driver, allowing components to make informed decisions about retries and
// failure recovery without hardcoded error string matching.
//
// # Error Classification
//
// Errors are automatically classified based on their type or content:
//
//   - Transient: network timeouts, connection loss, dispatch backpressure (retry recommended)
//   - Invalid: malformed query options, bad configuration, compile errors (do not retry)
//   - Fatal: connection permanently closed, reconnect exhausted (stop processing)
//
// The classification system integrates with Go's standard error handling,
// supporting errors.Is(), errors.As(), and error wrapping chains.
//
// # Quick Start
//
// Use standard error variables for known conditions:
//
//	if !conn.IsOpen() {
//	    return errors.ErrConnectionClosed
//	}
//
// Wrap errors with context for debugging:
//
//	if err := transport.WriteFrame(frame); err != nil {
//	    return errors.WrapTransient(err, "Connection", "dispatch", "write frame")
//	}
//
// Check classification for retry logic:
//
//	if errors.IsTransient(err) {
//	    // safe to retry
//	}
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// This format enables consistent log parsing and debugging across the driver.
// The Wrap family of functions applies this pattern while preserving error
// classification through the chain:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // retryable
//	errors.WrapInvalid(err, "Component", "Method", "action")    // validation
//	errors.WrapFatal(err, "Component", "Method", "action")      // unrecoverable
//
// # Protocol Errors
//
// Error-type response frames from the remote engine materialize as
// *ProtocolError values carrying the server's message, the error kind
// (client, compile, runtime), and an optional backtrace. Protocol errors are
// delivered to the owning handler's OnError capability; they are never
// propagated back into the connection's read path, so one query's failure
// cannot affect other queries sharing the connection.
package errors
