// Package metrics provides Prometheus metrics for the engagement backend.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the engagement service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	registry         prometheus.Registerer

	// Core Business Metrics
	scoreUpdates       prometheus.Counter
	scoreUpdateMisses  prometheus.Counter
	scorePointsAdded   prometheus.Counter
	ledgerTouches      prometheus.Counter
	ledgerEvictions    prometheus.Counter
	ledgerRemovals     prometheus.Counter
	rankingQueries     prometheus.Counter
	recordsQueries     prometheus.Counter

	// Store Metrics
	storeErrors       *prometheus.CounterVec
	storeQueryLatency *prometheus.HistogramVec

	// Operational Health Metrics
	totalVideos prometheus.Gauge
	totalUsers  prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ucmao",
		subsystem:        "engagement",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	// Ensure metrics are registered on the configured registry (custom by default)
	auto := promauto.With(m.registry)

	// Core Business Metrics
	m.scoreUpdates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_updates_total",
		Help:      "Total number of score accumulation operations applied",
	})

	m.scoreUpdateMisses = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_update_misses_total",
		Help:      "Total number of score updates that matched no catalog row",
	})

	m.scorePointsAdded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_points_added_total",
		Help:      "Total score points added to the catalog",
	})

	m.ledgerTouches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_touches_total",
		Help:      "Total number of ledger touch operations",
	})

	m.ledgerEvictions = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_evictions_total",
		Help:      "Total number of ledger entries evicted over capacity",
	})

	m.ledgerRemovals = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ledger_removals_total",
		Help:      "Total number of explicit ledger removals",
	})

	m.rankingQueries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ranking_queries_total",
		Help:      "Total number of ranking bundle queries served",
	})

	m.recordsQueries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records_queries_total",
		Help:      "Total number of personal history bundle queries served",
	})

	// Store Metrics
	m.storeErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_errors_total",
			Help:      "Total number of storage backend errors by component",
		},
		[]string{"component"},
	)

	m.storeQueryLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "store_query_latency_milliseconds",
			Help:      "Storage operation latency in milliseconds by component",
			Buckets:   m.histogramBuckets,
		},
		[]string{"component"},
	)

	// Operational Health Metrics
	m.totalVideos = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "total_videos",
		Help:      "Total number of videos in the catalog",
	})

	m.totalUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "total_users",
		Help:      "Total number of users with a ledger",
	})

	// HTTP Performance Metrics
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
}

// GetRegistry returns the custom Prometheus registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RefreshInterval returns the configured gauge refresh interval. Drives the
// background updater in main.
func RefreshInterval() time.Duration {
	if globalManager == nil {
		return defaultRefreshInterval
	}
	return globalManager.refreshInterval
}

// Package-level helpers operating on the global manager.

// RecordScoreUpdate records a successful score accumulation with the points added.
func RecordScoreUpdate(points int64) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.scoreUpdates.Inc()
	globalManager.scorePointsAdded.Add(float64(points))
}

// RecordScoreUpdateMiss records a score update that matched no catalog row.
func RecordScoreUpdateMiss() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.scoreUpdateMisses.Inc()
}

// RecordLedgerTouch records a ledger touch, with evicted reporting whether the
// touch displaced the oldest entry.
func RecordLedgerTouch(evicted bool) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.ledgerTouches.Inc()
	if evicted {
		globalManager.ledgerEvictions.Inc()
	}
}

// RecordLedgerRemoval records an explicit ledger removal.
func RecordLedgerRemoval() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.ledgerRemovals.Inc()
}

// RecordRankingQuery records a served ranking bundle.
func RecordRankingQuery() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.rankingQueries.Inc()
}

// RecordRecordsQuery records a served history bundle.
func RecordRecordsQuery() {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.recordsQueries.Inc()
}

// RecordStoreError records a storage backend error for a component.
func RecordStoreError(component string) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.storeErrors.WithLabelValues(component).Inc()
}

// RecordStoreQueryLatency records a storage operation latency sample.
func RecordStoreQueryLatency(component string, durationMs float64) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.storeQueryLatency.WithLabelValues(component).Observe(durationMs)
}

// UpdateTotalVideos sets the catalog size gauge.
func UpdateTotalVideos(n int) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.totalVideos.Set(float64(n))
}

// UpdateTotalUsers sets the user count gauge.
func UpdateTotalUsers(n int) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.totalUsers.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request by endpoint, method and status.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records an HTTP request duration sample.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	if globalManager == nil || !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}
