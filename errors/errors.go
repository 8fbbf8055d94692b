// Package errors provides standardized error handling for the querystream
// driver. It includes error classification, standard error variables, the
// ProtocolError type materialized from server error frames, and helper
// functions for consistent error wrapping across the driver.
package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorTransient represents temporary errors that may be retried
	ErrorTransient ErrorClass = iota
	// ErrorInvalid represents errors due to invalid input or configuration
	ErrorInvalid
	// ErrorFatal represents unrecoverable errors that should stop processing
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorTransient:
		return "transient"
	case ErrorInvalid:
		return "invalid"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Standard error variables for common conditions
var (
	// Connection errors
	ErrConnectionClosed = errors.New("connection closed")
	ErrNotConnected     = errors.New("not connected")
	ErrConnectionLost   = errors.New("connection lost")
	ErrReconnectFailed  = errors.New("reconnect failed")

	// Query issuance errors
	ErrInvalidOption = errors.New("invalid query option")
	ErrNilHandler    = errors.New("handler must not be nil")
	ErrNilDispatcher = errors.New("dispatcher must not be nil")

	// Cursor lifecycle errors
	ErrCursorClosed = errors.New("cursor already closed")

	// Dispatch errors
	ErrLoopNotRunning = errors.New("event loop not running")
	ErrQueueFull      = errors.New("dispatch queue full")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingConfig = errors.New("missing required configuration")
)

// ClassifiedError wraps an error with its classification
type ClassifiedError struct {
	Class     ErrorClass
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// ProtocolErrorKind identifies the server-side origin of a protocol error
type ProtocolErrorKind int

const (
	// ClientError indicates the server rejected a malformed client request
	ClientError ProtocolErrorKind = iota
	// CompileError indicates the query failed to compile on the server
	CompileError
	// RuntimeError indicates the query failed while executing on the server
	RuntimeError
)

// String returns the string representation of ProtocolErrorKind
func (k ProtocolErrorKind) String() string {
	switch k {
	case ClientError:
		return "client"
	case CompileError:
		return "compile"
	case RuntimeError:
		return "runtime"
	default:
		return "unknown"
	}
}

// ProtocolError is a structured error materialized from an error-type response
// frame. It carries the server's message and, when provided, a backtrace into
// the offending query term.
type ProtocolError struct {
	Kind      ProtocolErrorKind
	Message   string
	Backtrace []byte
}

// Error implements the error interface
func (pe *ProtocolError) Error() string {
	return fmt.Sprintf("%s error: %s", pe.Kind, pe.Message)
}

// NewProtocolError creates a ProtocolError with the given kind and message
func NewProtocolError(kind ProtocolErrorKind, message string, backtrace []byte) *ProtocolError {
	return &ProtocolError{Kind: kind, Message: message, Backtrace: backtrace}
}

// IsProtocolError reports whether err is (or wraps) a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsTransient checks if an error is transient and should be retried
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Check for classified error
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorTransient
	}

	// Check for known transient errors
	if errors.Is(err, ErrConnectionLost) ||
		errors.Is(err, ErrNotConnected) ||
		errors.Is(err, ErrQueueFull) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled) {
		return true
	}

	// Check error message for common transient patterns
	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"connection reset",
		"temporary",
		"unavailable",
		"busy",
	}

	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// IsInvalid checks if an error is due to invalid input
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}

	// Check for classified error
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}

	// Check for known invalid errors
	if errors.Is(err, ErrInvalidOption) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingConfig) ||
		errors.Is(err, ErrNilHandler) ||
		errors.Is(err, ErrNilDispatcher) {
		return true
	}

	// Compile and client protocol errors are caller mistakes
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Kind == CompileError || pe.Kind == ClientError
	}

	return false
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	// Check for classified error
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}

	return errors.Is(err, ErrConnectionClosed) ||
		errors.Is(err, ErrReconnectFailed)
}

// Classify returns the error class for an error
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorTransient // Default for nil
	}

	if IsInvalid(err) {
		return ErrorInvalid
	}
	if IsFatal(err) {
		return ErrorFatal
	}

	// Default to transient for unknown errors to allow retry
	return ErrorTransient
}

// newClassified creates a new classified error
// This is an internal helper - use WrapTransient(), WrapFatal(), or WrapInvalid() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapTransient wraps an error as transient with context
func WrapTransient(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorTransient, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// Is reports whether any error in err's tree matches target.
// Re-exported so callers don't need to import both error packages.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
// Re-exported so callers don't need to import both error packages.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
// Re-exported so callers don't need to import both error packages.
func New(text string) error {
	return errors.New(text)
}
