package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
	"github.com/anisahjamin/CPC357-Assignment2/internal/mqtt"
)

type insert struct {
	collection string
	fields     map[string]any
}

type fakeStore struct {
	mu      sync.Mutex
	inserts []insert
	err     error
}

func (f *fakeStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		return "", errors.New("insert without deadline")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.inserts = append(f.inserts, insert{collection: collection, fields: fields})
	return "id-1", nil
}

func (f *fakeStore) all() []insert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]insert(nil), f.inserts...)
}

func newTestIngestor(t *testing.T, st Inserter) (*Ingestor, *metrics.Metrics) {
	t.Helper()
	m, err := metrics.New()
	if err != nil {
		t.Fatalf("metrics.New() error = %v", err)
	}
	in := New(st, Options{
		Collection:   "rain_data",
		Quarantine:   "rain_data_quarantine",
		StoreTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), m)
	return in, m
}

// ingestCount reads rain_ingest_messages_total{result} from the registry.
func ingestCount(t *testing.T, m *metrics.Metrics, result string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != "rain_ingest_messages_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "result" && lp.GetValue() == result {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "full reading", payload: `{"rain_value": 812, "status": "rain"}`},
		{name: "extra fields", payload: `{"rain_value": 1.5, "status": "dry", "device": "esp32", "rssi": -60}`},
		{name: "empty object", payload: `{}`},
		{name: "nulls allowed", payload: `{"rain_value": null, "status": null}`},
		{name: "trailing whitespace", payload: "{\"status\":\"rain\"}\n"},
		{name: "not json", payload: `rain=812`, wantErr: true},
		{name: "truncated", payload: `{"rain_value": 8`, wantErr: true},
		{name: "array", payload: `[1,2]`, wantErr: true},
		{name: "number", payload: `42`, wantErr: true},
		{name: "empty", payload: ``, wantErr: true},
		{name: "trailing data", payload: `{"status":"rain"} {}`, wantErr: true},
		{name: "string rain value", payload: `{"rain_value": "812"}`, wantErr: true},
		{name: "numeric status", payload: `{"status": 1}`, wantErr: true},
		{name: "invalid utf8", payload: "{\"status\":\"\xff\"}", wantErr: true},
		{name: "rain value overflows", payload: `{"rain_value": 1e400, "status": "rain"}`, wantErr: true},
		{name: "negative overflow", payload: `{"rain_value": -1e400}`, wantErr: true},
		{name: "nested extra overflows", payload: `{"status": "rain", "meta": {"calib": [1, 2e999]}}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("Decode(%q) error = %v; wantErr %v", tt.payload, err, tt.wantErr)
			}
		})
	}
}

func TestDecode_Numbers(t *testing.T) {
	fields, err := Decode([]byte(`{"rain_value": 812, "avg": 1.25, "nested": {"n": 3}, "list": [4, 0.5]}`))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if v, ok := fields["rain_value"].(int64); !ok || v != 812 {
		t.Errorf("rain_value = %#v; want int64(812)", fields["rain_value"])
	}
	if v, ok := fields["avg"].(float64); !ok || v != 1.25 {
		t.Errorf("avg = %#v; want 1.25", fields["avg"])
	}
	if v := fields["nested"].(map[string]any)["n"]; v != int64(3) {
		t.Errorf("nested.n = %#v; want int64(3)", v)
	}
	list := fields["list"].([]any)
	if list[0] != int64(4) || list[1] != 0.5 {
		t.Errorf("list = %#v", list)
	}
}

func TestHandle_StoresReading(t *testing.T) {
	st := &fakeStore{}
	in, m := newTestIngestor(t, st)
	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	in.now = func() time.Time { return received.Add(time.Millisecond) }

	msg := mqtt.Message{
		Topic:      "iot/rain/esp32",
		Payload:    []byte(`{"rain_value": 812, "status": "rain", "device": "esp32", "timestamp": "1999-01-01"}`),
		ReceivedAt: received,
	}
	if err := in.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	got := st.all()
	if len(got) != 1 {
		t.Fatalf("inserts = %d; want 1", len(got))
	}
	if got[0].collection != "rain_data" {
		t.Errorf("collection = %q; want rain_data", got[0].collection)
	}
	f := got[0].fields
	if f["rain_value"] != int64(812) || f["status"] != "rain" || f["device"] != "esp32" {
		t.Errorf("fields = %#v; want original fields kept", f)
	}
	ts, ok := f["timestamp"].(time.Time)
	if !ok {
		t.Fatalf("timestamp = %#v; want time.Time", f["timestamp"])
	}
	if ts.Before(received) || ts.Location() != time.UTC {
		t.Errorf("timestamp = %v; want UTC and not before %v", ts, received)
	}
	if v := ingestCount(t, m, metrics.ResultStored); v != 1 {
		t.Errorf("stored counter = %v; want 1", v)
	}
}

func TestHandle_MalformedIsQuarantined(t *testing.T) {
	st := &fakeStore{}
	in, m := newTestIngestor(t, st)
	received := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	err := in.Handle(context.Background(), mqtt.Message{
		Topic:      "iot/rain/esp32",
		Payload:    []byte(`rain=812`),
		ReceivedAt: received,
	})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Handle() error = %v; want ErrMalformedPayload", err)
	}

	got := st.all()
	if len(got) != 1 {
		t.Fatalf("inserts = %d; want exactly one quarantine document", len(got))
	}
	if got[0].collection != "rain_data_quarantine" {
		t.Errorf("collection = %q; want rain_data_quarantine", got[0].collection)
	}
	q := got[0].fields
	if q["payload"] != "rain=812" || q["topic"] != "iot/rain/esp32" || q["reason"] == "" {
		t.Errorf("quarantine doc = %#v", q)
	}
	if at, ok := q["received_at"].(time.Time); !ok || !at.Equal(received) {
		t.Errorf("received_at = %v; want %v", q["received_at"], received)
	}
	if v := ingestCount(t, m, metrics.ResultRejected); v != 1 {
		t.Errorf("rejected counter = %v; want 1", v)
	}
}

// encodingStore marshals documents the way the real backends do.
type encodingStore struct {
	fakeStore
}

func (e *encodingStore) Insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	if _, err := json.Marshal(fields); err != nil {
		return "", err
	}
	return e.fakeStore.Insert(ctx, collection, fields)
}

func TestHandle_OverflowingNumberIsQuarantined(t *testing.T) {
	st := &encodingStore{}
	in, m := newTestIngestor(t, st)
	payload := `{"rain_value":1e400,"status":"rain"}`

	err := in.Handle(context.Background(), mqtt.Message{Topic: "iot/rain/esp32", Payload: []byte(payload)})
	if !errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Handle() error = %v; want ErrMalformedPayload", err)
	}

	got := st.all()
	if len(got) != 1 || got[0].collection != "rain_data_quarantine" {
		t.Fatalf("inserts = %#v; want exactly one quarantine document", got)
	}
	if got[0].fields["payload"] != payload {
		t.Errorf("quarantined payload = %v; want %q", got[0].fields["payload"], payload)
	}
	if v := ingestCount(t, m, metrics.ResultRejected); v != 1 {
		t.Errorf("rejected counter = %v; want 1", v)
	}
	if v := ingestCount(t, m, metrics.ResultStoreError); v != 0 {
		t.Errorf("store_error counter = %v; want 0", v)
	}
}

func TestHandle_StoreError(t *testing.T) {
	st := &fakeStore{err: errors.New("disk full")}
	in, m := newTestIngestor(t, st)

	err := in.Handle(context.Background(), mqtt.Message{Payload: []byte(`{"rain_value": 1}`)})
	if err == nil || errors.Is(err, ErrMalformedPayload) {
		t.Fatalf("Handle() error = %v; want store error", err)
	}
	if v := ingestCount(t, m, metrics.ResultStoreError); v != 1 {
		t.Errorf("store_error counter = %v; want 1", v)
	}
}

func TestRun(t *testing.T) {
	t.Run("handles messages until cancelled", func(t *testing.T) {
		st := &fakeStore{}
		in, _ := newTestIngestor(t, st)
		msgs := make(chan mqtt.Message, 3)
		msgs <- mqtt.Message{Payload: []byte(`{"status":"rain"}`)}
		msgs <- mqtt.Message{Payload: []byte(`nope`)}
		msgs <- mqtt.Message{Payload: []byte(`{"status":"dry"}`)}

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- in.Run(ctx, msgs) }()

		deadline := time.After(2 * time.Second)
		for len(st.all()) < 3 {
			select {
			case <-deadline:
				t.Fatalf("inserts = %d; want 3", len(st.all()))
			case <-time.After(5 * time.Millisecond):
			}
		}
		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Run() error = %v; want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Run() did not return after cancel")
		}
	})

	t.Run("returns when channel closes", func(t *testing.T) {
		in, _ := newTestIngestor(t, &fakeStore{})
		msgs := make(chan mqtt.Message)
		close(msgs)
		if err := in.Run(context.Background(), msgs); err != nil {
			t.Errorf("Run() error = %v; want nil", err)
		}
	})
}
