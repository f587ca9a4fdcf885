// Package canonical produces deterministic byte serializations of structured
// records for tamper-evident hashing. Two semantically equal records yield
// byte-identical output regardless of key insertion order: object keys are
// sorted lexicographically at every nesting level, whitespace is stripped,
// and JSON number literals are carried through untouched so that hashes
// reproduce across platforms.
package canonical

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
)

// ErrMalformedRecord is returned when a record cannot be canonicalized:
// non-finite floats, unsupported value kinds, or nesting deeper than the
// engine is willing to follow (which also catches cyclic references).
var ErrMalformedRecord = errors.New("malformed record")

// maxDepth bounds nesting so that a cyclic map cannot hang canonicalization.
const maxDepth = 64

// Marshal encodes v with deterministic key ordering. Values are expected to
// be JSON-shaped (maps, slices, json.Number, string, bool, nil, numbers);
// anything else is round-tripped through encoding/json first, the same way
// the record would have arrived off the wire.
func Marshal(v interface{}) ([]byte, error) {
	buf := &bytes.Buffer{}
	if err := appendCanonical(buf, v, 0); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func appendCanonical(buf *bytes.Buffer, v interface{}, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting exceeds %d levels", ErrMalformedRecord, maxDepth)
	}
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case string:
		return writeString(buf, val)
	case json.Number:
		buf.WriteString(val.String())
	case int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return fmt.Errorf("%w: non-finite number", ErrMalformedRecord)
		}
		buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := appendCanonical(buf, val[k], depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case []interface{}:
		buf.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := appendCanonical(buf, item, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	default:
		decoded, err := roundTrip(val)
		if err != nil {
			return err
		}
		return appendCanonical(buf, decoded, depth)
	}
	return nil
}

// writeString emits a JSON string without HTML escaping, matching the
// canonical form producers generate.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	// Encode appends a newline the canonical form must not contain.
	buf.Truncate(buf.Len() - 1)
	return nil
}

// roundTrip converts an arbitrary Go value into the JSON-shaped form the
// canonicalizer understands, preserving number literals via json.Number.
func roundTrip(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded interface{}
	if err := dec.Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return decoded, nil
}
