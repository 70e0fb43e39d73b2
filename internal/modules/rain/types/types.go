package types

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Document field names written by the ingestor.
const (
	FieldRainValue = "rain_value"
	FieldStatus    = "status"
	FieldTimestamp = "timestamp"
)

// Reading is one stored rain sensor document. Fields carries every stored
// field, including pass-through ones.
type Reading struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// RainValue returns the numeric rain value, or nil when it is missing or
// not a number.
func (r Reading) RainValue() *float64 {
	f, ok := Number(r.Fields[FieldRainValue])
	if !ok {
		return nil
	}
	return &f
}

// Status returns the status label. Non-string values are formatted.
func (r Reading) Status() (string, bool) {
	switch v := r.Fields[FieldStatus].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}

// Number converts the numeric types produced by the JSON and BSON decoders
// to float64. NaN and infinities count as missing.
func Number(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		var err error
		if f, err = strconv.ParseFloat(n.String(), 64); err != nil {
			return 0, false
		}
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
