// Package metrics provides Prometheus metrics for the econdash service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nicktill/econdash/pkg/storage"
)

// Manager owns every econdash collector. Each Manager registers on its own
// registry unless one is supplied, so several can coexist in tests.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Store, set once after load
	storeTables       prometheus.Gauge
	storeRows         *prometheus.GaugeVec
	storeMissing      *prometheus.GaugeVec
	storeLoadDuration prometheus.Gauge

	// Query and export
	querySkipped  prometheus.Counter
	exportUnknown prometheus.Counter
	exportRows    *prometheus.CounterVec
}

// NewManager creates a metrics manager with a private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "econdash",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	}

	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.storeTables = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_tables",
		Help:      "Number of metric tables held by the store",
	})

	m.storeRows = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_rows",
			Help:      "Rows per metric table",
		},
		[]string{"metric"},
	)

	m.storeMissing = auto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_missing_values",
			Help:      "Rows with a missing value per metric table",
		},
		[]string{"metric"},
	)

	m.storeLoadDuration = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_load_duration_seconds",
		Help:      "Time taken to build the store at startup",
	})

	m.querySkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "query_metrics_skipped_total",
		Help:      "Requested metric keys dropped from query results because they are not loaded",
	})

	m.exportUnknown = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "export_unknown_metric_total",
		Help:      "Export requests rejected for an unknown metric",
	})

	m.exportRows = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "export_rows_total",
			Help:      "Rows written by exports",
		},
		[]string{"metric"},
	)
}

// RecordHTTPRequest records one request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// ObserveStore publishes the store's load statistics.
func (m *Manager) ObserveStore(stats storage.Stats) {
	m.storeTables.Set(float64(stats.Tables))
	m.storeLoadDuration.Set(stats.LoadDuration.Seconds())
	for _, t := range stats.PerTable {
		m.storeRows.WithLabelValues(t.Key).Set(float64(t.Rows))
		m.storeMissing.WithLabelValues(t.Key).Set(float64(t.Missing))
	}
}

// MetricSkipped counts a query metric that was not found.
// The key is not used as a label; it comes from the request.
func (m *Manager) MetricSkipped(string) {
	m.querySkipped.Inc()
}

// UnknownMetric counts an export rejected for an unknown metric.
func (m *Manager) UnknownMetric(string) {
	m.exportUnknown.Inc()
}

// RowsExported counts rows written for a known metric.
func (m *Manager) RowsExported(metric string, n int) {
	m.exportRows.WithLabelValues(metric).Add(float64(n))
}

// Registry returns the Prometheus registry used by this manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
