package driver

import (
	"encoding/json"
)

// Handler is the callback surface a caller implements to consume a query's
// results. Every field is optional; a nil field means the capability is
// absent and the engine skips or reroutes the delivery (feed rows fall
// through their classification rules to OnUnhandledChange, everything else is
// dropped silently).
//
// Value-delivering callbacks return an error. A non-nil error, like a panic,
// is a handler fault: the engine delivers it to OnError and closes the
// cursor.
type Handler struct {
	// OnOpen fires once, before the first value of the first delivery
	OnOpen func() error

	// OnClose fires exactly once when the cursor reaches its terminal
	// state, after all other callbacks
	OnClose func()

	// OnStreamValue receives each row of a non-feed stream verbatim
	OnStreamValue func(row json.RawMessage) error

	// OnArray receives an atom result whose value is an array
	OnArray func(value json.RawMessage) error

	// OnAtom receives a scalar atom result
	OnAtom func(value json.RawMessage) error

	// OnWaitComplete fires when the server acknowledges a noreply wait
	OnWaitComplete func() error

	// OnError receives protocol errors and handler faults for this query
	OnError func(err error)

	// OnChange receives a feed row carrying both old and new values
	OnChange func(oldVal, newVal json.RawMessage) error

	// OnInitial receives a feed row carrying only a new value
	OnInitial func(newVal json.RawMessage) error

	// OnUninitial receives a feed row carrying only an old value
	OnUninitial func(oldVal json.RawMessage) error

	// OnChangeError receives an in-band feed error row
	OnChangeError func(err error) error

	// OnState receives feed state markers; its presence makes the engine
	// request state markers from the server via the include_states option
	OnState func(state string) error

	// OnUnhandledChange receives feed rows no other capability claimed
	OnUnhandledChange func(row json.RawMessage) error

	// Stopped, when present, is polled at delivery time; reporting true
	// stops the query as if it had been closed explicitly
	Stopped func() bool
}

// callOnOpen invokes OnOpen if present
func (h *Handler) callOnOpen() error {
	if h.OnOpen != nil {
		return h.OnOpen()
	}
	return nil
}

// callOnClose invokes OnClose if present
func (h *Handler) callOnClose() {
	if h.OnClose != nil {
		h.OnClose()
	}
}

// callOnError invokes OnError if present; absent capability drops the error
func (h *Handler) callOnError(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// callOnWaitComplete invokes OnWaitComplete if present
func (h *Handler) callOnWaitComplete() error {
	if h.OnWaitComplete != nil {
		return h.OnWaitComplete()
	}
	return nil
}

// stopped reports whether the handler asked to stop
func (h *Handler) stopped() bool {
	return h.Stopped != nil && h.Stopped()
}

// wantsStates reports whether the handler consumes feed state markers
func (h *Handler) wantsStates() bool {
	return h.OnState != nil
}
