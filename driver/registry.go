package driver

import (
	"log/slog"
	"sync"
)

// StreamRegistry tracks the cursors a consumer has opened so they can all be
// torn down together. Teardown is best-effort: a cursor that fails to close
// never blocks the others.
type StreamRegistry struct {
	logger *slog.Logger

	mu      sync.Mutex
	cursors []*Cursor
}

// NewStreamRegistry creates an empty registry
func NewStreamRegistry(logger *slog.Logger) *StreamRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamRegistry{
		logger: logger.With("component", "stream_registry"),
	}
}

// Track adds a cursor to the registry
func (r *StreamRegistry) Track(c *Cursor) {
	if c == nil {
		return
	}
	r.mu.Lock()
	r.cursors = append(r.cursors, c)
	r.mu.Unlock()
}

// Len reports how many cursors are currently tracked
func (r *StreamRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cursors)
}

// CloseAll closes every tracked cursor and empties the registry. Close
// failures are logged and swallowed so one bad stream cannot keep the rest
// alive. The registry is reusable afterwards.
func (r *StreamRegistry) CloseAll() {
	r.mu.Lock()
	cursors := r.cursors
	r.cursors = nil
	r.mu.Unlock()

	for _, c := range cursors {
		if err := c.Close(); err != nil {
			r.logger.Warn("stream close failed", "token", c.Token(), "error", err)
		}
	}
}
