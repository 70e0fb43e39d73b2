// Package metrics defines the Prometheus collectors of both processes.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Ingest results.
const (
	ResultStored     = "stored"
	ResultRejected   = "rejected"
	ResultStoreError = "store_error"
)

// Summary sources.
const (
	SourceCache = "cache"
	SourceStore = "store"
)

// Metrics is safe to use as a nil pointer; every recorder is then a no-op.
type Metrics struct {
	registry *prometheus.Registry

	ingestMessages *prometheus.CounterVec
	ingestStore    prometheus.Histogram
	ingestQueue    prometheus.Gauge

	summaryLookups *prometheus.CounterVec
	summaryBuild   prometheus.Histogram

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry, together with the Go
// runtime and process collectors.
func New() (*Metrics, error) {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	var err error
	if _, err = register(reg, collectors.NewGoCollector()); err != nil {
		return nil, err
	}
	if _, err = register(reg, collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, err
	}

	if m.ingestMessages, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rain_ingest_messages_total",
		Help: "MQTT messages handled by the ingestor, by result",
	}, []string{"result"})); err != nil {
		return nil, err
	}
	if m.ingestStore, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rain_ingest_store_seconds",
		Help:    "Time taken to insert one document",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.ingestQueue, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rain_ingest_queue_depth",
		Help: "Messages waiting between the MQTT callback and the receive loop",
	})); err != nil {
		return nil, err
	}
	if m.summaryLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rain_dashboard_summary_lookups_total",
		Help: "Dashboard summary lookups, by source",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if m.summaryBuild, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "rain_dashboard_summary_build_seconds",
		Help:    "Time taken to fetch the window and compute the summary",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	if m.httpRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "rain_http_requests_total",
		Help: "HTTP requests served, by method and status code",
	}, []string{"method", "code"})); err != nil {
		return nil, err
	}
	if m.httpDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rain_http_request_duration_seconds",
		Help:    "HTTP request latency, by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})); err != nil {
		return nil, err
	}

	return m, nil
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) IngestResult(result string) {
	if m == nil {
		return
	}
	m.ingestMessages.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStore(d time.Duration) {
	if m == nil {
		return
	}
	m.ingestStore.Observe(d.Seconds())
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.ingestQueue.Set(float64(n))
}

func (m *Metrics) SummaryLookup(source string) {
	if m == nil {
		return
	}
	m.summaryLookups.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveSummaryBuild(d time.Duration) {
	if m == nil {
		return
	}
	m.summaryBuild.Observe(d.Seconds())
}

func (m *Metrics) ObserveHTTP(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}
