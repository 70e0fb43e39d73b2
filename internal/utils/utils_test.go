package utils

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content-type and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

		if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("encodes body as JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusCreated, map[string]any{"rain_value": 812.5})

		var got map[string]float64
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if got["rain_value"] != 812.5 {
			t.Errorf("body[rain_value] = %v; want 812.5", got["rain_value"])
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusServiceUnavailable, "store unavailable")

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Code = %d; want %d", w.Code, http.StatusServiceUnavailable)
	}
	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != http.StatusText(http.StatusServiceUnavailable) {
		t.Errorf("error = %q; want %q", got["error"], http.StatusText(http.StatusServiceUnavailable))
	}
	if got["message"] != "store unavailable" {
		t.Errorf("message = %q; want %q", got["message"], "store unavailable")
	}
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]any{"rain_value": math.NaN()})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Code = %d; want %d", w.Code, http.StatusInternalServerError)
	}
	var got ErrorBody
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got.Message != "failed to encode response" {
		t.Errorf("message = %q", got.Message)
	}
}

func TestNullableTime(t *testing.T) {
	if NullableTime(time.Time{}) != nil {
		t.Error("NullableTime(zero) != nil")
	}
	now := time.Now()
	if got := NullableTime(now); got == nil || !got.Equal(now) {
		t.Errorf("NullableTime(now) = %v", got)
	}
}
