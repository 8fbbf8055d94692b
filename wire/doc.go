// Package wire implements the framing and serialization boundary of the
// querystream driver.
//
// # Overview
//
// The remote query engine multiplexes concurrent in-flight queries over one
// transport using per-query tokens. Each message on the wire is a Frame: a
// token plus a JSON payload.
//
// Outbound payloads are three-element JSON arrays:
//
//	[QueryType, QueryBody, OptionsMap]
//
// Inbound payloads decode into Response values:
//
//	{"t": type, "r": rows, "n": notes, "p": profile, "b": backtrace}
//
// The response type tag distinguishes single values (atom), complete result
// sets (sequence), continuation batches (partial), wait acknowledgements, and
// the three error kinds. The notes bitset marks change-feed responses and
// their feed flavor.
//
// # Change rows
//
// Rows of a feed response are change notifications. ParseChange records which
// of the old_val/new_val/error/state keys are present, independent of their
// values; classification of a change is purely a function of key presence.
//
// # Option encoding
//
// Raw literal values in the options map are converted through the
// query-expression encoder before transmission (arrays become MAKE_ARRAY
// terms), matching what the remote engine expects of composed query terms.
package wire
