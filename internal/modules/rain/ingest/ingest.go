// Package ingest turns sensor messages into stored readings.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/types"
	"github.com/anisahjamin/CPC357-Assignment2/internal/mqtt"
)

// Inserter is the part of the document store the ingestor writes through.
type Inserter interface {
	Insert(ctx context.Context, collection string, fields map[string]any) (string, error)
}

type Options struct {
	Collection string
	// Quarantine receives payloads that fail validation. Empty disables it.
	Quarantine   string
	StoreTimeout time.Duration
}

type Ingestor struct {
	store   Inserter
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

func New(store Inserter, opts Options, logger *slog.Logger, m *metrics.Metrics) *Ingestor {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	return &Ingestor{
		store:   store,
		opts:    opts,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// Run handles messages one at a time until ctx is cancelled or msgs is
// closed. Handling errors are logged by Handle and do not stop the loop.
func (in *Ingestor) Run(ctx context.Context, msgs <-chan mqtt.Message) error {
	in.logger.Info("ingestor started", "collection", in.opts.Collection)
	defer in.logger.Info("ingestor stopped")

	for {
		in.metrics.SetQueueDepth(len(msgs))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			_ = in.Handle(ctx, msg)
		}
	}
}

// Handle validates one message and stores it with a UTC ingestion
// timestamp. A malformed payload is quarantined and reported with an error
// wrapping ErrMalformedPayload.
func (in *Ingestor) Handle(ctx context.Context, msg mqtt.Message) error {
	fields, err := Decode(msg.Payload)
	if err != nil {
		in.metrics.IngestResult(metrics.ResultRejected)
		in.logger.Warn("rejected payload",
			"topic", msg.Topic,
			"reason", err.Error(),
			"bytes", len(msg.Payload),
		)
		in.quarantine(ctx, msg, err)
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	if prev, ok := fields[types.FieldTimestamp]; ok {
		in.logger.Debug("overwriting sensor timestamp", "sensor_timestamp", prev)
	}
	fields[types.FieldTimestamp] = in.now().UTC()

	start := time.Now()
	id, err := in.insert(ctx, in.opts.Collection, fields)
	in.metrics.ObserveStore(time.Since(start))
	if err != nil {
		in.metrics.IngestResult(metrics.ResultStoreError)
		in.logger.Error("store reading", "topic", msg.Topic, "err", err)
		return fmt.Errorf("store reading: %w", err)
	}

	in.metrics.IngestResult(metrics.ResultStored)
	in.logger.Info("stored reading",
		"id", id,
		"rain_value", fields[types.FieldRainValue],
		"status", fields[types.FieldStatus],
	)
	return nil
}

func (in *Ingestor) quarantine(ctx context.Context, msg mqtt.Message, reason error) {
	if in.opts.Quarantine == "" {
		return
	}
	doc := map[string]any{
		"topic":       msg.Topic,
		"payload":     strings.ToValidUTF8(string(msg.Payload), "�"),
		"reason":      reason.Error(),
		"received_at": msg.ReceivedAt.UTC(),
	}
	if _, err := in.insert(ctx, in.opts.Quarantine, doc); err != nil {
		in.logger.Error("quarantine payload", "topic", msg.Topic, "err", err)
	}
}

func (in *Ingestor) insert(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, in.opts.StoreTimeout)
	defer cancel()
	return in.store.Insert(ctx, collection, fields)
}
