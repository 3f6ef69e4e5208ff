// Package canonical encodes config values deterministically so two configs
// can be compared by value.
//
// Object keys are NFC-normalized and sorted, HTML characters are not
// escaped, and every number is encoded through float64, so a config decoded
// from JSON compares equal to the same config built in Go. String values are
// kept byte for byte: a node sees the exact bytes, so a change in their
// normalization is a real change.
package canonical

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Marshal produces the canonical encoding of v.
// Supported values are nil, bool, numbers, strings, []any, map[string]any,
// and anything encoding/json can round-trip into those.
func Marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Equal reports whether a and b have the same canonical encoding.
// A nil map and an empty map are equal.
func Equal(a, b any) bool {
	if isEmpty(a) && isEmpty(b) {
		return true
	}
	ab, errA := Marshal(a)
	bb, errB := Marshal(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return bytes.Equal(ab, bb)
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case map[string]any:
		return len(val) == 0
	}
	return false
}

func encode(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case string:
		return encodeString(buf, val)
	case float64:
		return encodeNumber(buf, val)
	case float32:
		return encodeNumber(buf, float64(val))
	case int:
		return encodeNumber(buf, float64(val))
	case int8:
		return encodeNumber(buf, float64(val))
	case int16:
		return encodeNumber(buf, float64(val))
	case int32:
		return encodeNumber(buf, float64(val))
	case int64:
		return encodeNumber(buf, float64(val))
	case uint:
		return encodeNumber(buf, float64(val))
	case uint8:
		return encodeNumber(buf, float64(val))
	case uint16:
		return encodeNumber(buf, float64(val))
	case uint32:
		return encodeNumber(buf, float64(val))
	case uint64:
		return encodeNumber(buf, float64(val))
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return fmt.Errorf("number %q: %w", val, err)
		}
		return encodeNumber(buf, f)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, elem); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.SortFunc(keys, func(a, b string) int {
			return strings.Compare(norm.NFC.String(a), norm.NFC.String(b))
		})
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, norm.NFC.String(k)); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, val[k]); err != nil {
				return fmt.Errorf("%q: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		// Structs, typed maps and slices go through a JSON round trip.
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("unsupported value %T: %w", v, err)
		}
		var generic any
		if err := json.Unmarshal(raw, &generic); err != nil {
			return fmt.Errorf("unsupported value %T: %w", v, err)
		}
		return encode(buf, generic)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder appends a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}

func encodeNumber(buf *bytes.Buffer, f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("number %v has no canonical form", f)
	}
	buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
	return nil
}
