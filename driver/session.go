package driver

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/c360/querystream/errors"
)

// Materializer converts a raw row value into the caller's domain type. A nil
// materializer passes json.RawMessage through.
type Materializer func(raw json.RawMessage) (any, error)

// StreamEvent is one change notification emitted by a session stream. A nil
// Old marks an initial value; a nil New marks a deletion.
type StreamEvent struct {
	Stream string
	Old    any
	New    any
}

// Session groups change-feed subscriptions for one consumer: every stream it
// opens is tracked, events from all streams funnel into one outbound
// channel, and ending the session tears every stream down best-effort.
type Session struct {
	id          string
	conn        *Connection
	dispatcher  Dispatcher
	registry    *StreamRegistry
	materialize Materializer
	logger      *slog.Logger
	events      chan StreamEvent
}

// defaultSessionBuffer bounds undelivered session events
const defaultSessionBuffer = 256

// NewSession creates a session delivering events through the given
// dispatcher. A zero or negative buffer selects the default.
func NewSession(conn *Connection, dispatcher Dispatcher, materialize Materializer, buffer int) (*Session, error) {
	if conn == nil {
		return nil, errors.WrapInvalid(errors.New("connection cannot be nil"),
			"Session", "NewSession", "validate arguments")
	}
	if dispatcher == nil {
		return nil, errors.WrapInvalid(errors.ErrNilDispatcher, "Session", "NewSession", "validate arguments")
	}
	if buffer <= 0 {
		buffer = defaultSessionBuffer
	}

	id := uuid.NewString()
	logger := conn.logger.With("component", "session", "session_id", id)
	return &Session{
		id:          id,
		conn:        conn,
		dispatcher:  dispatcher,
		registry:    NewStreamRegistry(logger),
		materialize: materialize,
		logger:      logger,
		events:      make(chan StreamEvent, buffer),
	}, nil
}

// ID returns the session's unique identifier
func (s *Session) ID() string {
	return s.id
}

// Events returns the channel carrying change notifications from every stream
// opened by this session
func (s *Session) Events() <-chan StreamEvent {
	return s.events
}

// Subscribe opens a change-feed query under the given stream name. Change
// rows are materialized and forwarded to the session's event channel; a full
// channel drops the event with a warning rather than stalling delivery.
func (s *Session) Subscribe(name string, query any, opts map[string]any) (*Cursor, error) {
	handler := &Handler{
		OnChange: func(oldVal, newVal json.RawMessage) error {
			return s.emit(name, oldVal, newVal)
		},
		OnInitial: func(newVal json.RawMessage) error {
			return s.emit(name, nil, newVal)
		},
		OnUninitial: func(oldVal json.RawMessage) error {
			return s.emit(name, oldVal, nil)
		},
		OnChangeError: func(err error) error {
			s.logger.Warn("stream error row", "stream", name, "error", err)
			return nil
		},
		OnError: func(err error) {
			s.logger.Error("stream failed", "stream", name, "error", err)
		},
		OnClose: func() {
			s.logger.Debug("stream closed", "stream", name)
		},
	}

	cursor, err := s.conn.RunAsync(query, opts, handler, s.dispatcher)
	if err != nil {
		return nil, err
	}
	s.registry.Track(cursor)
	s.logger.Info("stream subscribed", "stream", name, "token", cursor.Token())
	return cursor, nil
}

// emit materializes one change and forwards it without blocking
func (s *Session) emit(name string, oldRaw, newRaw json.RawMessage) error {
	ev := StreamEvent{Stream: name}

	var err error
	if oldRaw != nil {
		if ev.Old, err = s.materializeValue(oldRaw); err != nil {
			return err
		}
	}
	if newRaw != nil {
		if ev.New, err = s.materializeValue(newRaw); err != nil {
			return err
		}
	}

	select {
	case s.events <- ev:
	default:
		s.logger.Warn("event channel full, dropping change", "stream", name)
	}
	return nil
}

func (s *Session) materializeValue(raw json.RawMessage) (any, error) {
	if s.materialize == nil {
		return raw, nil
	}
	v, err := s.materialize(raw)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Session", "materializeValue", "materialize row")
	}
	return v, nil
}

// Close ends the session, tearing down every tracked stream best-effort.
// The event channel stays open so buffered events can still be drained.
func (s *Session) Close() {
	s.registry.CloseAll()
	s.logger.Info("session closed")
}
