package app

import (
	"context"
	"log/slog"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
	"github.com/anisahjamin/CPC357-Assignment2/internal/httpapi"
	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/repository"
	rainviews "github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/views"
)

// RunDashboard serves the dashboard on HTTPAddr until ctx is cancelled.
func RunDashboard(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logConfig(logger, cfg)

	if err := rainviews.LoadTemplates(); err != nil {
		return err
	}

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	summaryCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if summaryCache != nil {
		defer func() {
			if err := summaryCache.Close(); err != nil {
				logger.Error("cache close", "error", err)
			}
		}()
	}

	m, err := metrics.New()
	if err != nil {
		return err
	}

	mux := httpapi.NewMux(httpapi.MuxOptions{
		Checks:    map[string]httpapi.Pinger{"store": st},
		Metrics:   m,
		StaticDir: cfg.StaticDir,
	}, logger)
	rain.RegisterFeature(mux, st, summaryCache, rain.Options{
		Collection: cfg.Collection,
		Window: repository.Window{
			Limit:  cfg.DashboardWindowLimit,
			MaxAge: cfg.DashboardWindow,
		},
		CacheTTL: cfg.DashboardCacheTTL,
		Refresh:  cfg.DashboardRefresh,
	}, logger, m)

	srv := httpapi.NewServer(cfg.HTTPAddr, mux, logger, m)
	return httpapi.Serve(ctx, srv, logger)
}
