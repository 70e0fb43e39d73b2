// Package summary derives the dashboard views from a window of readings.
package summary

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
)

const (
	// RecentLimit is how many rows the recent-records table shows.
	RecentLimit = 10

	UnknownStatus = "unknown"
	IconRain      = "rain"
	IconSun       = "sun"

	seriesTimeLayout = "2006-01-02 15:04:05"
)

// Point is one sample of the rain value line chart. Value is nil where the
// reading has no rain value.
type Point struct {
	Label string   `json:"label"`
	Value *float64 `json:"value"`
}

// Slice is one status label of the distribution.
type Slice struct {
	Label   string  `json:"label"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// Summary is everything the dashboard renders. Average is nil when no
// reading carries a rain value.
type Summary struct {
	Count        int             `json:"count"`
	Current      *float64        `json:"current"`
	Average      *float64        `json:"average"`
	Status       string          `json:"status"`
	HasStatus    bool            `json:"has_status"`
	Icon         string          `json:"icon"`
	Latest       *time.Time      `json:"latest"`
	Ordinal      bool            `json:"ordinal"`
	Series       []Point         `json:"series"`
	Distribution []Slice         `json:"distribution"`
	Columns      []string        `json:"columns"`
	Recent       []types.Reading `json:"recent"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

// Empty reports whether there was nothing to summarize.
func (s Summary) Empty() bool {
	return s.Count == 0
}

type row struct {
	reading types.Reading
	at      time.Time
	valid   bool
}

// Build computes the summary of readings, given in fetch order. Rows are
// sorted ascending by timestamp with not-a-time rows first, so the last row
// carries the latest valid timestamp. When no row has a valid timestamp the
// fetch order is kept and the chart uses ordinal labels.
func Build(readings []types.Reading, now time.Time) Summary {
	s := Summary{
		Count:        len(readings),
		Icon:         IconSun,
		Series:       []Point{},
		Distribution: []Slice{},
		Columns:      []string{},
		Recent:       []types.Reading{},
		GeneratedAt:  now.UTC(),
	}
	if len(readings) == 0 {
		return s
	}

	rows := sortRows(readings)
	s.Ordinal = !rows[len(rows)-1].valid

	last := rows[len(rows)-1]
	s.Current = last.reading.RainValue()
	s.Status, s.HasStatus = last.reading.Status()
	s.Icon = Icon(s.Status)
	if last.valid {
		at := last.at
		s.Latest = &at
	}

	values := make([]float64, 0, len(rows))
	for i, r := range rows {
		v := r.reading.RainValue()
		if v != nil {
			values = append(values, *v)
		}
		switch {
		case s.Ordinal:
			s.Series = append(s.Series, Point{Label: strconv.Itoa(i), Value: v})
		case r.valid:
			s.Series = append(s.Series, Point{Label: r.at.Format(seriesTimeLayout), Value: v})
		}
	}
	if avg := Mean(values); !math.IsNaN(avg) {
		s.Average = &avg
	}

	s.Distribution = Distribution(readings)

	n := min(RecentLimit, len(rows))
	for i := len(rows) - 1; i >= len(rows)-n; i-- {
		s.Recent = append(s.Recent, rows[i].reading)
	}
	s.Columns = Columns(s.Recent)
	return s
}

func sortRows(readings []types.Reading) []row {
	rows := make([]row, len(readings))
	for i, r := range readings {
		at, ok := ParseTimestamp(r.Fields[types.FieldTimestamp])
		rows[i] = row{reading: r, at: at, valid: ok}
	}
	slices.SortStableFunc(rows, func(a, b row) int {
		switch {
		case a.valid != b.valid:
			if a.valid {
				return 1
			}
			return -1
		case !a.valid:
			return 0
		default:
			return a.at.Compare(b.at)
		}
	})
	return rows
}

// Mean returns the arithmetic mean of values, or NaN when there are none.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Icon picks the status icon: rain when the label mentions rain.
func Icon(status string) string {
	if strings.Contains(strings.ToLower(status), "rain") {
		return IconRain
	}
	return IconSun
}

// Distribution counts readings per status label, missing statuses under
// UnknownStatus. Slices are ordered by count descending, then label.
func Distribution(readings []types.Reading) []Slice {
	counts := map[string]int{}
	for _, r := range readings {
		label, ok := r.Status()
		if !ok {
			label = UnknownStatus
		}
		counts[label]++
	}

	out := make([]Slice, 0, len(counts))
	for label, n := range counts {
		out = append(out, Slice{
			Label:   label,
			Count:   n,
			Percent: float64(n) * 100 / float64(len(readings)),
		})
	}
	slices.SortFunc(out, func(a, b Slice) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// Columns lists the fields present across readings: timestamp, rain_value
// and status first, the rest alphabetically.
func Columns(readings []types.Reading) []string {
	seen := map[string]bool{}
	for _, r := range readings {
		for k := range r.Fields {
			seen[k] = true
		}
	}
	cols := []string{}
	for _, k := range []string{types.FieldTimestamp, types.FieldRainValue, types.FieldStatus} {
		if seen[k] {
			cols = append(cols, k)
			delete(seen, k)
		}
	}
	return append(cols, slices.Sorted(maps.Keys(seen))...)
}
