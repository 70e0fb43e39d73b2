// Package rain wires the rain sensor dashboard: repository, cached summary
// service and HTTP controller.
package rain

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/cache"
	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/controller"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/repository"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/service"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
)

type Options struct {
	Collection string
	Window     repository.Window
	CacheTTL   time.Duration
	Refresh    time.Duration
	Title      string
}

// RegisterFeature registers the dashboard routes on mux. c may be nil to
// disable summary caching.
func RegisterFeature(mux *http.ServeMux, st store.Store, c cache.Cache, opts Options, logger *slog.Logger, m *metrics.Metrics) {
	rainRepository := repository.NewRepository(st, opts.Collection, opts.Window)
	summaries := service.NewService(rainRepository, c, opts.CacheTTL, logger, m)
	rainController := controller.NewRainController(summaries, rainRepository, controller.PageOptions{
		Title:   opts.Title,
		Refresh: opts.Refresh,
	}, logger)
	rainController.RegisterRoutes(mux)
}
