package wire

import (
	"encoding/json"
	"fmt"

	"github.com/c360/querystream/errors"
)

// QueryType tags an outbound query frame
type QueryType int

// Query type tags used by the remote engine
const (
	// Start begins execution of a new query
	Start QueryType = 1
	// Continue requests the next batch of a partial result
	Continue QueryType = 2
	// Stop cancels an in-flight query and releases its server-side resources
	Stop QueryType = 3
	// NoreplyWait asks the server to flush all outstanding noreply writes
	NoreplyWait QueryType = 4
)

// String returns the string representation of QueryType
func (t QueryType) String() string {
	switch t {
	case Start:
		return "start"
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	case NoreplyWait:
		return "noreply_wait"
	default:
		return "unknown"
	}
}

// makeArray is the term tag the engine uses for literal arrays. Raw JSON
// arrays in a query position would be interpreted as terms, so literal arrays
// must be wrapped before transmission.
const makeArray = 2

// EncodeQuery builds the JSON payload for a query frame:
// [QueryType, QueryBody, OptionsMap]. Continue and stop frames omit body and
// options. Option values that are raw literals are converted through the
// query-expression encoder.
func EncodeQuery(qt QueryType, body any, opts map[string]any) ([]byte, error) {
	frame := []any{int(qt)}
	if qt == Start {
		frame = append(frame, body, encodeOptions(opts))
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Query", "EncodeQuery", "marshal query frame")
	}
	return payload, nil
}

// encodeOptions converts every option value through the expression encoder.
// A nil options map encodes as an empty object.
func encodeOptions(opts map[string]any) map[string]any {
	encoded := make(map[string]any, len(opts))
	for k, v := range opts {
		encoded[k] = EncodeDatum(v)
	}
	return encoded
}

// EncodeDatum converts a raw literal into its query-expression form. Slices
// become MAKE_ARRAY terms, maps are converted recursively, and scalars pass
// through untouched.
func EncodeDatum(value any) any {
	switch v := value.(type) {
	case []any:
		items := make([]any, len(v))
		for i, item := range v {
			items[i] = EncodeDatum(item)
		}
		return []any{makeArray, items}
	case map[string]any:
		obj := make(map[string]any, len(v))
		for k, item := range v {
			obj[k] = EncodeDatum(item)
		}
		return obj
	default:
		return v
	}
}

// Format option keys validated before a query is sent
const (
	// TimeFormatKey controls how the server renders time values
	TimeFormatKey = "time_format"
	// GroupFormatKey controls how the server renders grouped data
	GroupFormatKey = "group_format"
	// BinaryFormatKey controls how the server renders binary values
	BinaryFormatKey = "binary_format"
	// IncludeStatesKey asks the server to emit feed state markers
	IncludeStatesKey = "include_states"
)

// ValidateOptions rejects malformed run options before anything is sent. The
// textual format options accept only the literal values "raw" or "native".
func ValidateOptions(opts map[string]any) error {
	for _, key := range []string{TimeFormatKey, GroupFormatKey, BinaryFormatKey} {
		val, ok := opts[key]
		if !ok {
			continue
		}
		s, ok := val.(string)
		if !ok || (s != "raw" && s != "native") {
			return errors.WrapInvalid(
				fmt.Errorf("%w: %s must be \"raw\" or \"native\", got %v", errors.ErrInvalidOption, key, val),
				"Query", "ValidateOptions", "check format option")
		}
	}
	return nil
}
