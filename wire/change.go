package wire

import (
	"encoding/json"
)

// Change row keys emitted by the remote engine
const (
	oldValKey = "old_val"
	newValKey = "new_val"
	errorKey  = "error"
	stateKey  = "state"
)

// Change is a decoded feed row. Key presence is recorded separately from the
// values because classification depends purely on which keys exist; an
// explicit JSON null still counts as present.
type Change struct {
	OldValue json.RawMessage
	NewValue json.RawMessage
	HasOld   bool
	HasNew   bool

	// ErrMessage is set when the row carries an in-band feed error
	ErrMessage string
	HasError   bool

	// State is the feed state marker ("initializing", "ready")
	State    string
	HasState bool

	// Raw is the row as received, preserved for unhandled-change delivery
	Raw json.RawMessage
}

// ParseChange decodes a feed row into a Change. Rows that are not JSON
// objects decode to a Change with no keys present; they still reach the
// handler through the unhandled-change path rather than failing the cursor.
func ParseChange(row json.RawMessage) *Change {
	c := &Change{Raw: row}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(row, &fields); err != nil {
		return c
	}

	if v, ok := fields[oldValKey]; ok {
		c.HasOld = true
		c.OldValue = v
	}
	if v, ok := fields[newValKey]; ok {
		c.HasNew = true
		c.NewValue = v
	}
	if v, ok := fields[errorKey]; ok {
		c.HasError = true
		// A non-string error payload is preserved verbatim
		if err := json.Unmarshal(v, &c.ErrMessage); err != nil {
			c.ErrMessage = string(v)
		}
	}
	if v, ok := fields[stateKey]; ok {
		c.HasState = true
		if err := json.Unmarshal(v, &c.State); err != nil {
			c.State = string(v)
		}
	}

	return c
}
