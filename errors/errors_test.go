package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestErrorClass_String(t *testing.T) {
	tests := []struct {
		class    ErrorClass
		expected string
	}{
		{ErrorTransient, "transient"},
		{ErrorInvalid, "invalid"},
		{ErrorFatal, "fatal"},
		{ErrorClass(999), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			result := test.class.String()
			if result != test.expected {
				t.Errorf("expected %s, got %s", test.expected, result)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection lost", ErrConnectionLost, true},
		{"not connected", ErrNotConnected, true},
		{"queue full", ErrQueueFull, true},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"context canceled", context.Canceled, true},
		{"invalid option", ErrInvalidOption, false},
		{"connection closed", ErrConnectionClosed, false},
		{"timeout in message", fmt.Errorf("operation timeout occurred"), true},
		{"reset in message", fmt.Errorf("read: connection reset by peer"), true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, true},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsTransient(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsInvalid(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"invalid option", ErrInvalidOption, true},
		{"invalid config", ErrInvalidConfig, true},
		{"missing config", ErrMissingConfig, true},
		{"nil handler", ErrNilHandler, true},
		{"connection lost", ErrConnectionLost, false},
		{"compile protocol error", NewProtocolError(CompileError, "bad term", nil), true},
		{"client protocol error", NewProtocolError(ClientError, "bad request", nil), true},
		{"runtime protocol error", NewProtocolError(RuntimeError, "boom", nil), false},
		{"classified invalid", &ClassifiedError{Class: ErrorInvalid, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsInvalid(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"connection closed", ErrConnectionClosed, true},
		{"reconnect failed", ErrReconnectFailed, true},
		{"connection lost", ErrConnectionLost, false},
		{"invalid option", ErrInvalidOption, false},
		{"classified fatal", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, true},
		{"classified transient", &ClassifiedError{Class: ErrorTransient, Err: fmt.Errorf("test")}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := IsFatal(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected ErrorClass
	}{
		{"nil error", nil, ErrorTransient},
		{"connection lost", ErrConnectionLost, ErrorTransient},
		{"invalid option", ErrInvalidOption, ErrorInvalid},
		{"connection closed", ErrConnectionClosed, ErrorFatal},
		{"unknown error", fmt.Errorf("unknown error"), ErrorTransient},
		{"classified error", &ClassifiedError{Class: ErrorFatal, Err: fmt.Errorf("test")}, ErrorFatal},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Classify(test.err)
			if result != test.expected {
				t.Errorf("expected %v, got %v for error: %v", test.expected, result, test.err)
			}
		})
	}
}

func TestClassifiedError(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	ce := newClassified(ErrorTransient, baseErr, "testComponent", "testOperation", "custom message")

	if ce.Class != ErrorTransient {
		t.Errorf("expected ErrorTransient, got %v", ce.Class)
	}

	if ce.Component != "testComponent" {
		t.Errorf("expected testComponent, got %s", ce.Component)
	}

	if ce.Operation != "testOperation" {
		t.Errorf("expected testOperation, got %s", ce.Operation)
	}

	if ce.Error() != "custom message" {
		t.Errorf("expected 'custom message', got %s", ce.Error())
	}

	if !errors.Is(ce, baseErr) {
		t.Error("classified error should unwrap to base error")
	}
}

func TestClassifiedError_NoMessage(t *testing.T) {
	baseErr := fmt.Errorf("base error")
	ce := newClassified(ErrorTransient, baseErr, "testComponent", "testOperation", "")

	if ce.Error() != "base error" {
		t.Errorf("expected 'base error', got %s", ce.Error())
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(fmt.Errorf("original error"), "Connection", "dispatch", "write frame")
	expected := "Connection.dispatch: write frame failed: original error"
	if err.Error() != expected {
		t.Errorf("expected %q, got %q", expected, err.Error())
	}

	if Wrap(nil, "Connection", "dispatch", "write frame") != nil {
		t.Error("wrapping nil should return nil")
	}
}

func TestWrapClassified(t *testing.T) {
	base := fmt.Errorf("boom")

	if !IsTransient(WrapTransient(base, "C", "M", "a")) {
		t.Error("WrapTransient should classify as transient")
	}
	if !IsInvalid(WrapInvalid(base, "C", "M", "a")) {
		t.Error("WrapInvalid should classify as invalid")
	}
	if !IsFatal(WrapFatal(base, "C", "M", "a")) {
		t.Error("WrapFatal should classify as fatal")
	}

	// Wrapping preserves the chain
	wrapped := WrapInvalid(ErrInvalidOption, "Connection", "RunAsync", "validate options")
	if !errors.Is(wrapped, ErrInvalidOption) {
		t.Error("wrapped error should unwrap to sentinel")
	}
}

func TestProtocolError(t *testing.T) {
	pe := NewProtocolError(RuntimeError, "index out of bounds", []byte(`[0,1]`))

	if pe.Kind != RuntimeError {
		t.Errorf("expected RuntimeError, got %v", pe.Kind)
	}
	if pe.Error() != "runtime error: index out of bounds" {
		t.Errorf("unexpected message: %s", pe.Error())
	}
	if !IsProtocolError(pe) {
		t.Error("IsProtocolError should report true")
	}
	if !IsProtocolError(fmt.Errorf("wrapped: %w", pe)) {
		t.Error("IsProtocolError should see through wrapping")
	}
	if IsProtocolError(fmt.Errorf("plain")) {
		t.Error("IsProtocolError should report false for plain errors")
	}
}

func TestProtocolErrorKind_String(t *testing.T) {
	tests := []struct {
		kind     ProtocolErrorKind
		expected string
	}{
		{ClientError, "client"},
		{CompileError, "compile"},
		{RuntimeError, "runtime"},
		{ProtocolErrorKind(42), "unknown"},
	}

	for _, test := range tests {
		t.Run(test.expected, func(t *testing.T) {
			if got := test.kind.String(); got != test.expected {
				t.Errorf("expected %s, got %s", test.expected, got)
			}
		})
	}
}
