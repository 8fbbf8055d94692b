package wire

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseChange_KeyPresence(t *testing.T) {
	tests := []struct {
		name     string
		row      string
		hasOld   bool
		hasNew   bool
		hasError bool
		hasState bool
	}{
		{"change", `{"old_val":{"id":1},"new_val":{"id":2}}`, true, true, false, false},
		{"initial", `{"new_val":{"id":2}}`, false, true, false, false},
		{"uninitial", `{"old_val":{"id":1}}`, true, false, false, false},
		{"error", `{"error":"feed dropped"}`, false, false, true, false},
		{"state", `{"state":"ready"}`, false, false, false, true},
		{"empty object", `{}`, false, false, false, false},
		{"null old_val still present", `{"old_val":null,"new_val":{"id":2}}`, true, true, false, false},
		{"null new_val still present", `{"new_val":null}`, false, true, false, false},
		{"not an object", `42`, false, false, false, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			c := ParseChange(json.RawMessage(test.row))
			assert.Equal(t, test.hasOld, c.HasOld, "HasOld")
			assert.Equal(t, test.hasNew, c.HasNew, "HasNew")
			assert.Equal(t, test.hasError, c.HasError, "HasError")
			assert.Equal(t, test.hasState, c.HasState, "HasState")
			assert.Equal(t, test.row, string(c.Raw))
		})
	}
}

func TestParseChange_Values(t *testing.T) {
	c := ParseChange(json.RawMessage(`{"old_val":{"id":1},"new_val":{"id":2}}`))
	assert.JSONEq(t, `{"id":1}`, string(c.OldValue))
	assert.JSONEq(t, `{"id":2}`, string(c.NewValue))

	c = ParseChange(json.RawMessage(`{"error":"changefeed aborted"}`))
	assert.Equal(t, "changefeed aborted", c.ErrMessage)

	c = ParseChange(json.RawMessage(`{"state":"initializing"}`))
	assert.Equal(t, "initializing", c.State)
}
