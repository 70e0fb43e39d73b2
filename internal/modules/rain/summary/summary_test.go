package summary

import (
	"math"
	"math/rand"
	"reflect"
	"testing"
	"testing/quick"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func reading(ts any, value any, status any) types.Reading {
	f := map[string]any{}
	if ts != nil {
		f["timestamp"] = ts
	}
	if value != nil {
		f["rain_value"] = value
	}
	if status != nil {
		f["status"] = status
	}
	return types.Reading{Fields: f}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	tests := []struct {
		name string
		in   any
		want time.Time
		ok   bool
	}{
		{"time value", want.In(time.FixedZone("MYT", 8*3600)), want, true},
		{"zero time", time.Time{}, time.Time{}, false},
		{"rfc3339", "2024-05-06T07:08:09Z", want, true},
		{"rfc3339 offset", "2024-05-06T15:08:09+08:00", want, true},
		{"rfc3339 nanos", "2024-05-06T07:08:09.123456789Z", want.Add(123456789), true},
		{"naive iso", "2024-05-06T07:08:09", want, true},
		{"space separated", "2024-05-06 07:08:09", want, true},
		{"space separated millis", "2024-05-06 07:08:09.250", want.Add(250 * time.Millisecond), true},
		{"date only", "2024-05-06", time.Date(2024, 5, 6, 0, 0, 0, 0, time.UTC), true},
		{"unix seconds", float64(want.Unix()), want, true},
		{"unix seconds int64", want.Unix(), want, true},
		{"unix millis", float64(want.UnixMilli()), want, true},
		{"garbage", "yesterday", time.Time{}, false},
		{"empty", "  ", time.Time{}, false},
		{"bool", true, time.Time{}, false},
		{"nil", nil, time.Time{}, false},
		{"nan", math.NaN(), time.Time{}, false},
		{"absurd", 1e30, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%#v) ok = %v; want %v", tt.in, ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%#v) = %v; want %v", tt.in, got, tt.want)
			}
			if ok && got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%#v) location = %v; want UTC", tt.in, got.Location())
			}
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	s := Build(nil, now)
	if !s.Empty() {
		t.Fatal("Empty() = false for no readings")
	}
	if s.Current != nil || s.Average != nil || s.Latest != nil {
		t.Errorf("empty summary has values: %+v", s)
	}
	if len(s.Series) != 0 || len(s.Distribution) != 0 || len(s.Recent) != 0 {
		t.Errorf("empty summary has chart data: %+v", s)
	}
	if !s.GeneratedAt.Equal(now) {
		t.Errorf("GeneratedAt = %v; want %v", s.GeneratedAt, now)
	}
}

func TestBuild_CurrentIsLatestTimestamp(t *testing.T) {
	readings := []types.Reading{
		reading("2024-01-01T10:00:00Z", 10.0, "no rain"),
		reading("2024-01-01T12:00:00Z", 30.0, "Heavy Rain"),
		reading("bogus", 99.0, "no rain"),
		reading("2024-01-01T11:00:00Z", 20.0, nil),
	}
	s := Build(readings, now)

	if s.Count != 4 {
		t.Errorf("Count = %d; want 4", s.Count)
	}
	if s.Current == nil || *s.Current != 30 {
		t.Errorf("Current = %v; want 30", s.Current)
	}
	if s.Average == nil || *s.Average != 39.75 {
		t.Errorf("Average = %v; want 39.75", s.Average)
	}
	if !s.HasStatus || s.Status != "Heavy Rain" || s.Icon != IconRain {
		t.Errorf("Status = %q (%v) icon %q; want Heavy Rain rain", s.Status, s.HasStatus, s.Icon)
	}
	if s.Latest == nil || !s.Latest.Equal(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("Latest = %v", s.Latest)
	}
	if s.Ordinal {
		t.Error("Ordinal = true with valid timestamps")
	}

	wantLabels := []string{"2024-01-01 10:00:00", "2024-01-01 11:00:00", "2024-01-01 12:00:00"}
	var labels []string
	for _, p := range s.Series {
		labels = append(labels, p.Label)
	}
	if !reflect.DeepEqual(labels, wantLabels) {
		t.Errorf("series labels = %v; want %v", labels, wantLabels)
	}

	var recent []float64
	for _, r := range s.Recent {
		recent = append(recent, *r.RainValue())
	}
	if want := []float64{30, 20, 10, 99}; !reflect.DeepEqual(recent, want) {
		t.Errorf("recent values = %v; want %v", recent, want)
	}
}

func TestBuild_AllTimestampsInvalid(t *testing.T) {
	readings := []types.Reading{
		reading(nil, 1.0, "rain"),
		reading("not a time", nil, "rain"),
		reading(true, 3.0, "dry"),
	}
	s := Build(readings, now)

	if !s.Ordinal {
		t.Fatal("Ordinal = false; want true")
	}
	if s.Latest != nil {
		t.Errorf("Latest = %v; want nil", s.Latest)
	}
	if s.Current == nil || *s.Current != 3 {
		t.Errorf("Current = %v; want 3 (last in fetch order)", s.Current)
	}
	if s.Status != "dry" || s.Icon != IconSun {
		t.Errorf("Status = %q icon %q; want dry sun", s.Status, s.Icon)
	}
	if len(s.Series) != 3 || s.Series[0].Label != "0" || s.Series[2].Label != "2" {
		t.Errorf("Series = %+v; want ordinal labels 0..2", s.Series)
	}
	if s.Series[1].Value != nil {
		t.Errorf("Series[1].Value = %v; want nil gap", *s.Series[1].Value)
	}
}

func TestBuild_MissingValues(t *testing.T) {
	s := Build([]types.Reading{reading("2024-01-01", nil, nil)}, now)
	if s.Current != nil {
		t.Errorf("Current = %v; want nil", *s.Current)
	}
	if s.Average != nil {
		t.Errorf("Average = %v; want nil", *s.Average)
	}
	if s.HasStatus || s.Icon != IconSun {
		t.Errorf("HasStatus = %v icon %q; want false sun", s.HasStatus, s.Icon)
	}
	if len(s.Distribution) != 1 || s.Distribution[0].Label != UnknownStatus {
		t.Errorf("Distribution = %+v; want single unknown slice", s.Distribution)
	}
}

func TestBuild_RecentLimited(t *testing.T) {
	var readings []types.Reading
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range 25 {
		readings = append(readings, reading(base.Add(time.Duration(i)*time.Minute), float64(i), "rain"))
	}
	s := Build(readings, now)
	if len(s.Recent) != RecentLimit {
		t.Fatalf("len(Recent) = %d; want %d", len(s.Recent), RecentLimit)
	}
	if v := *s.Recent[0].RainValue(); v != 24 {
		t.Errorf("Recent[0] = %v; want 24", v)
	}
	if v := *s.Recent[RecentLimit-1].RainValue(); v != 15 {
		t.Errorf("Recent[last] = %v; want 15", v)
	}
}

func TestMean(t *testing.T) {
	if !math.IsNaN(Mean(nil)) {
		t.Error("Mean(nil) is not NaN")
	}
	if got := Mean([]float64{1, 2, 3, 4}); got != 2.5 {
		t.Errorf("Mean = %v; want 2.5", got)
	}
}

func TestIcon(t *testing.T) {
	tests := map[string]string{
		"rain":       IconRain,
		"Heavy RAIN": IconRain,
		"no rain":    IconRain,
		"dry":        IconSun,
		"":           IconSun,
	}
	for in, want := range tests {
		if got := Icon(in); got != want {
			t.Errorf("Icon(%q) = %q; want %q", in, got, want)
		}
	}
}

func TestDistribution_Order(t *testing.T) {
	readings := []types.Reading{
		reading(nil, nil, "rain"),
		reading(nil, nil, "dry"),
		reading(nil, nil, "rain"),
		reading(nil, nil, nil),
		reading(nil, nil, "dry"),
		reading(nil, nil, "drizzle"),
	}
	got := Distribution(readings)
	want := []Slice{
		{Label: "dry", Count: 2, Percent: 200.0 / 6},
		{Label: "rain", Count: 2, Percent: 200.0 / 6},
		{Label: "drizzle", Count: 1, Percent: 100.0 / 6},
		{Label: "unknown", Count: 1, Percent: 100.0 / 6},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Distribution = %+v; want %+v", got, want)
	}
}

func TestColumns(t *testing.T) {
	readings := []types.Reading{
		{Fields: map[string]any{"status": "rain", "device": "esp32", "timestamp": "x"}},
		{Fields: map[string]any{"rain_value": 1.0, "battery": 3.7}},
	}
	got := Columns(readings)
	want := []string{"timestamp", "rain_value", "status", "battery", "device"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Columns = %v; want %v", got, want)
	}
	if got := Columns(nil); got == nil || len(got) != 0 {
		t.Errorf("Columns(nil) = %#v; want empty non-nil", got)
	}
}

// randomReadings builds n readings with a mix of valid, invalid and missing
// fields.
func randomReadings(r *rand.Rand, n int) ([]types.Reading, []float64) {
	statuses := []any{"rain", "no rain", "dry", nil, 7.0}
	stamps := []any{nil, "garbage", "2024-02-03 04:05:06"}
	var values []float64
	readings := make([]types.Reading, n)
	for i := range readings {
		var ts any = time.Unix(1_700_000_000+r.Int63n(1_000_000), 0).UTC().Format(time.RFC3339)
		if r.Intn(4) == 0 {
			ts = stamps[r.Intn(len(stamps))]
		}
		var v any
		if r.Intn(5) != 0 {
			f := float64(r.Intn(4096))
			values = append(values, f)
			v = f
		}
		readings[i] = reading(ts, v, statuses[r.Intn(len(statuses))])
	}
	return readings, values
}

func TestBuild_Properties(t *testing.T) {
	cfg := &quick.Config{MaxCount: 200}
	prop := func(seed int64, size uint8) bool {
		r := rand.New(rand.NewSource(seed))
		readings, values := randomReadings(r, int(size))
		s := Build(readings, now)

		total := 0
		for _, sl := range s.Distribution {
			total += sl.Count
		}
		if total != len(readings) || s.Count != len(readings) {
			return false
		}

		mean := Mean(values)
		if math.IsNaN(mean) != (s.Average == nil) {
			return false
		}
		if s.Average != nil && math.Abs(*s.Average-mean) > 1e-9 {
			return false
		}

		if len(readings) == 0 {
			return s.Empty()
		}
		// The current value belongs to the reading with the latest valid
		// timestamp.
		var latest time.Time
		found := false
		for _, rd := range readings {
			if at, ok := ParseTimestamp(rd.Fields["timestamp"]); ok && (!found || !at.Before(latest)) {
				latest, found = at, true
			}
		}
		if found != (s.Latest != nil) || found && !s.Latest.Equal(latest) {
			return false
		}
		return len(s.Recent) == min(RecentLimit, len(readings))
	}
	if err := quick.Check(prop, cfg); err != nil {
		t.Error(err)
	}
}
