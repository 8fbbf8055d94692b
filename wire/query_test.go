package wire

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/querystream/errors"
)

func TestEncodeQuery_Start(t *testing.T) {
	payload, err := EncodeQuery(Start, []any{15, []any{[]any{14, []any{"test"}}, "users"}}, map[string]any{
		"time_format": "native",
	})
	require.NoError(t, err)

	var frame []json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &frame))
	require.Len(t, frame, 3)
	assert.Equal(t, "1", string(frame[0]))
	assert.JSONEq(t, `{"time_format":"native"}`, string(frame[2]))
}

func TestEncodeQuery_ContinueAndStop(t *testing.T) {
	for _, qt := range []QueryType{Continue, Stop, NoreplyWait} {
		t.Run(qt.String(), func(t *testing.T) {
			payload, err := EncodeQuery(qt, nil, nil)
			require.NoError(t, err)
			assert.JSONEq(t, fmt.Sprintf("[%d]", int(qt)), string(payload))
		})
	}
}

func TestEncodeQuery_NilOptions(t *testing.T) {
	payload, err := EncodeQuery(Start, "body", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[1,"body",{}]`, string(payload))
}

func TestEncodeDatum(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected string
	}{
		{"scalar", "native", `"native"`},
		{"number", float64(5), `5`},
		{"array becomes make_array term", []any{1, 2}, `[2,[1,2]]`},
		{"nested array", []any{[]any{1}}, `[2,[[2,[1]]]]`},
		{"object recurses", map[string]any{"a": []any{1}}, `{"a":[2,[1]]}`},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			out, err := json.Marshal(EncodeDatum(test.in))
			require.NoError(t, err)
			assert.JSONEq(t, test.expected, string(out))
		})
	}
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		opts    map[string]any
		wantErr bool
	}{
		{"nil options", nil, false},
		{"raw time format", map[string]any{"time_format": "raw"}, false},
		{"native time format", map[string]any{"time_format": "native"}, false},
		{"iso8601 time format", map[string]any{"time_format": "iso8601"}, true},
		{"bad group format", map[string]any{"group_format": "grouped"}, true},
		{"bad binary format", map[string]any{"binary_format": "base64"}, true},
		{"non-string format", map[string]any{"time_format": 5}, true},
		{"unrelated options pass", map[string]any{"durability": "soft"}, false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateOptions(test.opts)
			if test.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrInvalidOption))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
