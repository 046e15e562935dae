// Package telemetry defines the Prometheus collectors markdex exposes
// and the HTTP handler that serves them.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Sync outcome label values.
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeConflict = "conflict"
	OutcomeNoChange = "no_change"
)

// Search mode label values.
const (
	ModeListing = "listing"
	ModeKeyword = "keyword"
)

// Metrics holds all Prometheus collectors. Each service instance owns
// its own registry so repeated construction (tests included) never
// collides.
type Metrics struct {
	registry *prometheus.Registry

	SyncCyclesTotal       *prometheus.CounterVec
	SyncDuration          prometheus.Histogram
	DocumentsIndexedTotal prometheus.Counter
	DocumentsRemovedTotal prometheus.Counter
	LiveViews             prometheus.Gauge
	SearchRequestsTotal   *prometheus.CounterVec
	SearchLatency         *prometheus.HistogramVec
	CacheHitsTotal        prometheus.Counter
	CacheMissesTotal      prometheus.Counter
}

// New creates and registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SyncCyclesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdex_sync_cycles_total",
				Help: "Synchronization cycles by outcome (ok, error, conflict, no_change).",
			},
			[]string{"outcome"},
		),
		SyncDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "markdex_sync_duration_seconds",
				Help:    "Duration of one synchronization cycle in seconds.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
			},
		),
		DocumentsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "markdex_documents_indexed_total",
				Help: "Documents upserted into the index.",
			},
		),
		DocumentsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "markdex_documents_removed_total",
				Help: "Documents removed from the index.",
			},
		),
		LiveViews: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "markdex_index_live_views",
				Help: "Open index views: the current one plus any draining.",
			},
		),
		SearchRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "markdex_search_requests_total",
				Help: "Search requests by mode (listing, keyword).",
			},
			[]string{"mode"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "markdex_search_latency_seconds",
				Help:    "Search request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"mode"},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "markdex_search_cache_hits_total",
				Help: "Search response cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "markdex_search_cache_misses_total",
				Help: "Search response cache misses.",
			},
		),
	}
	m.registry.MustRegister(
		m.SyncCyclesTotal,
		m.SyncDuration,
		m.DocumentsIndexedTotal,
		m.DocumentsRemovedTotal,
		m.LiveViews,
		m.SearchRequestsTotal,
		m.SearchLatency,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)
	return m
}

// Handler returns the scrape endpoint handler for this metric set.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
