package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/anisahjamin/CPC357-Assignment2/internal/config"
	"github.com/anisahjamin/CPC357-Assignment2/internal/httpapi"
	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/ingest"
	"github.com/anisahjamin/CPC357-Assignment2/internal/mqtt"
)

// RunIngestor subscribes to the sensor topic and stores every reading until
// ctx is cancelled. /healthz and /metrics are served on IngestorHTTPAddr.
func RunIngestor(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	logConfig(logger, cfg)

	st, err := OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore(st, logger)

	m, err := metrics.New()
	if err != nil {
		return err
	}

	// Subscribe happens in the connect handler, so a broker that replays
	// queued messages right after CONNACK finds the channel ready.
	subscriber, err := mqtt.NewSubscriber(cfg, logger)
	if err != nil {
		return err
	}
	defer subscriber.Disconnect()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	if cfg.IngestorHTTPAddr != "" {
		mux := httpapi.NewMux(httpapi.MuxOptions{
			Checks: map[string]httpapi.Pinger{
				"store": st,
				"mqtt": httpapi.PingFunc(func(context.Context) error {
					if !subscriber.IsConnected() {
						return errors.New("not connected")
					}
					return nil
				}),
			},
			Metrics: m,
		}, logger)
		srv := httpapi.NewServer(cfg.IngestorHTTPAddr, mux, logger, m)
		go func() {
			err := httpapi.Serve(ctx, srv, logger)
			if err != nil {
				cancel()
			}
			httpErr <- err
		}()
	} else {
		httpErr <- nil
	}

	logger.Info("mqtt connecting", "broker", cfg.MQTTBrokerURL(), "topic", cfg.MQTTTopic)
	var runErr error
	if runErr = subscriber.Connect(ctx); runErr == nil {
		ingestor := ingest.New(st, ingest.Options{
			Collection:   cfg.Collection,
			Quarantine:   cfg.QuarantineCollection(),
			StoreTimeout: cfg.StoreTimeout,
		}, logger, m)
		runErr = ingestor.Run(ctx, subscriber.Messages())
	}

	cancel()
	return joinShutdown(runErr, <-httpErr)
}
