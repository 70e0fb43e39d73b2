package summary

import (
	"math"
	"strings"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
)

// Numbers above this are unix milliseconds rather than seconds.
const millisThreshold = 1e11

// Accepted string layouts, tried in order. Layouts without a zone parse as
// UTC; time.Parse accepts a fractional second after the seconds field even
// when the layout omits it.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp coerces a stored timestamp value into a UTC time. It
// reports false for anything that is not a time.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return time.Time{}, false
		}
		return t.UTC(), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range timestampLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	}

	f, ok := types.Number(v)
	if !ok {
		return time.Time{}, false
	}
	if math.Abs(f) > millisThreshold {
		f /= 1000
	}
	// Past year 300000 is not a plausible reading time.
	if math.Abs(f) > 1e13 {
		return time.Time{}, false
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}
