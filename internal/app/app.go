// Package app assembles and runs the ingestor and dashboard processes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anisahjamin/CPC357-Assignment2/internal/cache"
	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store"
	"github.com/anisahjamin/CPC357-Assignment2/internal/store/backend"
)

func logConfig(logger *slog.Logger, cfg config.Config) {
	logger.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"ingestorHttpAddr", cfg.IngestorHTTPAddr,
		"staticDir", cfg.StaticDir,
		"storeDriver", cfg.StoreDriver,
		"sqlitePath", cfg.SQLitePath,
		"collection", cfg.Collection,
		"mqttBroker", cfg.MQTTBroker,
		"mqttPort", cfg.MQTTPort,
		"mqttTLS", cfg.MQTTTLS,
		"mqttTopic", cfg.MQTTTopic,
		"redis", cfg.RedisAddr != "",
	)
}

// OpenStore opens the configured document store. The caller closes it.
func OpenStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store.Store, error) {
	openCtx, cancel := context.WithTimeout(ctx, cfg.StoreTimeout)
	defer cancel()
	st, err := backend.Open(openCtx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	logger.Info("document store ready", "driver", cfg.StoreDriver)
	return st, nil
}

func closeStore(st store.Store, logger *slog.Logger) {
	if err := st.Close(); err != nil {
		logger.Error("store close", "error", err)
	}
}

// openCache returns Redis when configured, otherwise an in-process cache.
// A nil cache means caching is disabled.
func openCache(ctx context.Context, cfg config.Config, logger *slog.Logger) (cache.Cache, error) {
	if cfg.DashboardCacheTTL <= 0 {
		return nil, nil
	}
	if cfg.RedisAddr == "" {
		return cache.NewMemory(), nil
	}
	c, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("summary cache ready", "backend", "redis", "addr", cfg.RedisAddr)
	return c, nil
}

// joinShutdown merges a run error with the errors of the shutdown steps,
// dropping context cancellation caused by the shutdown itself.
func joinShutdown(runErr error, others ...error) error {
	if errors.Is(runErr, context.Canceled) {
		runErr = nil
	}
	return errors.Join(append([]error{runErr}, others...)...)
}
