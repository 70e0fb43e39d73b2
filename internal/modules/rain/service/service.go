// Package service serves the dashboard summary through a short-lived cache.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/anisahjamin/CPC357-Assignment2/internal/cache"
	"github.com/anisahjamin/CPC357-Assignment2/internal/metrics"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/repository"
	"github.com/anisahjamin/CPC357-Assignment2/internal/modules/rain/summary"
)

const cacheKeyPrefix = "raindash:summary:"

type Service struct {
	repository repository.RainRepository
	cache      cache.Cache
	ttl        time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// NewService returns a summary service. A nil cache or a non-positive ttl
// disables caching.
func NewService(repo repository.RainRepository, c cache.Cache, ttl time.Duration, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repository: repo,
		cache:      c,
		ttl:        ttl,
		logger:     logger,
		metrics:    m,
		now:        time.Now,
	}
}

// CacheKey is where the summary of collection is cached.
func CacheKey(collection string) string {
	return cacheKeyPrefix + collection
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.ttl > 0
}

// Summary returns the cached summary when fresh, otherwise fetches the
// window and computes it. Cache failures are logged and skipped.
func (s *Service) Summary(ctx context.Context) (summary.Summary, error) {
	key := CacheKey(s.repository.Collection())

	if s.cacheEnabled() {
		b, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("summary cache get failed", "key", key, "err", err)
		case ok:
			var sum summary.Summary
			if err := json.Unmarshal(b, &sum); err == nil {
				s.metrics.SummaryLookup(metrics.SourceCache)
				return sum, nil
			}
			s.logger.Warn("summary cache entry undecodable", "key", key, "err", err)
		}
	}

	start := time.Now()
	readings, err := s.repository.Window(ctx)
	if err != nil {
		return summary.Summary{}, err
	}
	sum := summary.Build(readings, s.now())
	s.metrics.ObserveSummaryBuild(time.Since(start))
	s.metrics.SummaryLookup(metrics.SourceStore)

	if s.cacheEnabled() {
		b, err := json.Marshal(sum)
		if err != nil {
			s.logger.Warn("summary encode failed", "err", err)
			return sum, nil
		}
		if err := s.cache.Set(ctx, key, b, s.ttl); err != nil {
			s.logger.Warn("summary cache set failed", "key", key, "err", err)
		}
	}
	return sum, nil
}
