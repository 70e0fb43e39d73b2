package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
)

// MuxOptions selects the shared routes of a process.
type MuxOptions struct {
	// Checks run in /healthz; every one must pass.
	Checks map[string]Pinger
	// Metrics is served at /metrics when non-nil.
	Metrics *metrics.Metrics
	// StaticDir is served at /static/ when non-empty.
	StaticDir string
}

// NewMux registers /healthz, /metrics and /static/. Feature modules add
// their own routes afterwards.
func NewMux(opts MuxOptions, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, opts.Checks, logger)
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}
	if opts.StaticDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}
	return mux
}
