package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/c360/querystream/errors"
)

// ResponseType tags an inbound response frame
type ResponseType int

// Response type tags used by the remote engine
const (
	// SuccessAtom carries a single value as the complete result
	SuccessAtom ResponseType = 1
	// SuccessSequence carries the final (or only) batch of a result set
	SuccessSequence ResponseType = 2
	// SuccessPartial carries a non-final batch; the client must send a
	// continue query to receive the next batch
	SuccessPartial ResponseType = 3
	// WaitComplete acknowledges a noreply-wait request
	WaitComplete ResponseType = 4
	// ClientErrorType reports a malformed client request
	ClientErrorType ResponseType = 16
	// CompileErrorType reports a query that failed server-side compilation
	CompileErrorType ResponseType = 17
	// RuntimeErrorType reports a query that failed during execution
	RuntimeErrorType ResponseType = 18
)

// String returns the string representation of ResponseType
func (t ResponseType) String() string {
	switch t {
	case SuccessAtom:
		return "atom"
	case SuccessSequence:
		return "sequence"
	case SuccessPartial:
		return "partial"
	case WaitComplete:
		return "wait_complete"
	case ClientErrorType:
		return "client_error"
	case CompileErrorType:
		return "compile_error"
	case RuntimeErrorType:
		return "runtime_error"
	default:
		return "unknown"
	}
}

// ResponseNote marks a response as belonging to a change feed
type ResponseNote int

// Response notes used by the remote engine
const (
	// SequenceFeed marks a plain change feed
	SequenceFeed ResponseNote = 1
	// AtomFeed marks a single-document change feed
	AtomFeed ResponseNote = 2
	// OrderByLimitFeed marks a feed over an ordered, limited query
	OrderByLimitFeed ResponseNote = 3
	// UnionedFeed marks a feed unioning several sub-feeds
	UnionedFeed ResponseNote = 4
	// IncludesStates marks a feed that emits state documents
	IncludesStates ResponseNote = 5
)

// Response is a decoded inbound frame payload: type tag, optional feed notes,
// an ordered sequence of raw row values, and an optional profiling block.
type Response struct {
	Type      ResponseType      `json:"t"`
	Rows      []json.RawMessage `json:"r"`
	Notes     []ResponseNote    `json:"n,omitempty"`
	Profile   json.RawMessage   `json:"p,omitempty"`
	Backtrace json.RawMessage   `json:"b,omitempty"`
	ErrorCode int               `json:"e,omitempty"`
}

// DecodeResponse decodes a frame payload into a Response
func DecodeResponse(payload []byte) (*Response, error) {
	var resp Response
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, errors.WrapInvalid(err, "Response", "DecodeResponse", "unmarshal payload")
	}
	return &resp, nil
}

// IsFeed reports whether the response belongs to a change feed. State-marker
// notes alone do not make a response a feed.
func (r *Response) IsFeed() bool {
	for _, n := range r.Notes {
		switch n {
		case SequenceFeed, AtomFeed, OrderByLimitFeed, UnionedFeed:
			return true
		}
	}
	return false
}

// IsError reports whether the response type is one of the error tags or is
// unrecognized. Unrecognized tags are treated as errors so a cursor can never
// stall on a frame the driver does not understand.
func (r *Response) IsError() bool {
	switch r.Type {
	case SuccessAtom, SuccessSequence, SuccessPartial, WaitComplete:
		return false
	default:
		return true
	}
}

// Error materializes a structured protocol error from an error-type response.
// The first row carries the server's message as a JSON string.
func (r *Response) Error() error {
	var kind errors.ProtocolErrorKind
	switch r.Type {
	case ClientErrorType:
		kind = errors.ClientError
	case CompileErrorType:
		kind = errors.CompileError
	case RuntimeErrorType:
		kind = errors.RuntimeError
	default:
		return fmt.Errorf("unrecognized response type %d", int(r.Type))
	}

	if len(r.Rows) == 0 {
		return errors.NewProtocolError(kind, "server sent no error message", r.Backtrace)
	}

	var msg string
	if err := json.Unmarshal(r.Rows[0], &msg); err != nil {
		return errors.WrapInvalid(err, "Response", "Error", "decode server error message")
	}
	return errors.NewProtocolError(kind, msg, r.Backtrace)
}

// AtomValue returns the single value of an atom response along with whether
// that value is a JSON array.
func (r *Response) AtomValue() (json.RawMessage, bool, error) {
	if len(r.Rows) == 0 {
		return nil, false, errors.New("atom response carries no value")
	}
	val := r.Rows[0]
	trimmed := bytes.TrimLeft(val, " \t\r\n")
	isArray := len(trimmed) > 0 && trimmed[0] == '['
	return val, isArray, nil
}
