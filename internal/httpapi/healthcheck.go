package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/utils"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type healthchecker struct {
	checks  map[string]Pinger
	timeout time.Duration
	logger  *slog.Logger
}

func (h *healthchecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			h.logger.Error("health check failed", "check", name, "error", err)
			utils.WriteError(w, http.StatusServiceUnavailable, name+" unavailable")
			return
		}
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func registerHealthcheck(mux *http.ServeMux, checks map[string]Pinger, logger *slog.Logger) {
	h := &healthchecker{checks: checks, timeout: 2 * time.Second, logger: logger}
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
