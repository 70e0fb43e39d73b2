package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
)

// ErrMalformedPayload marks a message that is not a valid reading.
var ErrMalformedPayload = errors.New("malformed payload")

// Decode validates a sensor payload and returns its fields. The payload must
// be a UTF-8 JSON object; rain_value, when present and not null, must be a
// number and status a string. Integral numbers decode as int64, the rest as
// float64.
func Decode(payload []byte) (map[string]any, error) {
	if !utf8.Valid(payload) {
		return nil, errors.New("payload is not valid UTF-8")
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("invalid JSON: trailing data after object")
	}

	fields, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is %s, want object", kind(v))
	}

	if rv, ok := fields[types.FieldRainValue]; ok && rv != nil {
		if _, isNum := rv.(json.Number); !isNum {
			return nil, fmt.Errorf("%s is %s, want number", types.FieldRainValue, kind(rv))
		}
	}
	if st, ok := fields[types.FieldStatus]; ok && st != nil {
		if _, isStr := st.(string); !isStr {
			return nil, fmt.Errorf("%s is %s, want string", types.FieldStatus, kind(st))
		}
	}

	if _, err := normalize(fields); err != nil {
		return nil, err
	}
	return fields, nil
}

// normalize replaces json.Number values in place so every store backend
// sees plain numeric types. Numbers outside the float64 range are rejected.
func normalize(v any) (any, error) {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i, nil
		}
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("number %s is out of range", t.String())
		}
		return f, nil
	case map[string]any:
		for k, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			t[k] = n
		}
		return t, nil
	case []any:
		for i, e := range t {
			n, err := normalize(e)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			t[i] = n
		}
		return t, nil
	default:
		return v, nil
	}
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	default:
		return fmt.Sprintf("%T", v)
	}
}
