// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Provider metrics
	ProviderRequests *prometheus.CounterVec
	ProviderLatency  *prometheus.HistogramVec
	AggregateResults *prometheus.CounterVec

	// Cache metrics
	CacheLookups *prometheus.CounterVec
	CacheEntries prometheus.Gauge

	// Stream metrics
	StreamSessions prometheus.Gauge
	StreamEvents   *prometheus.CounterVec

	// Companion metrics
	MessageGenerations *prometheus.CounterVec

	// Solana RPC metrics
	RPCCalls       *prometheus.CounterVec
	RPCCallLatency *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance registered with reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "token_companion"
	}
	factory := promauto.With(reg)

	return &Metrics{
		ProviderRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "requests_total",
			Help:      "Upstream provider requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		ProviderLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "request_latency_seconds",
			Help:      "Upstream provider request latency in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		AggregateResults: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "aggregator",
			Name:      "results_total",
			Help:      "Aggregated price lookups by winning source (or none)",
		}, []string{"source"}),

		CacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by cache name and result (hit, miss, stale)",
		}, []string{"cache", "result"}),
		CacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "price_entries",
			Help:      "Current number of entries in the price cache",
		}),

		StreamSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "sessions_active",
			Help:      "Number of open streaming sessions",
		}),
		StreamEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Stream events emitted by type",
		}, []string{"type"}),

		MessageGenerations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "companion",
			Name:      "generations_total",
			Help:      "Companion message generations by outcome",
		}, []string{"outcome"}),

		RPCCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_calls_total",
			Help:      "Solana RPC calls by method and outcome",
		}, []string{"method", "outcome"}),

		RPCCallLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "solana",
			Name:      "rpc_call_latency_seconds",
			Help:      "Solana RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", prometheus.DefaultRegisterer)

// RecordProviderRequest records one upstream request and its latency.
func RecordProviderRequest(provider, outcome string, seconds float64) {
	DefaultMetrics.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	DefaultMetrics.ProviderLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordAggregate records which source won an aggregation ("none" for no data).
func RecordAggregate(source string) {
	if source == "" {
		source = "none"
	}
	DefaultMetrics.AggregateResults.WithLabelValues(source).Inc()
}

// RecordCacheLookup records a cache hit, miss or stale serve.
func RecordCacheLookup(cache, result string) {
	DefaultMetrics.CacheLookups.WithLabelValues(cache, result).Inc()
}

// UpdateCacheEntries sets the price cache size gauge.
func UpdateCacheEntries(n int) {
	DefaultMetrics.CacheEntries.Set(float64(n))
}

// SessionOpened increments the active sessions gauge.
func SessionOpened() {
	DefaultMetrics.StreamSessions.Inc()
}

// SessionClosed decrements the active sessions gauge.
func SessionClosed() {
	DefaultMetrics.StreamSessions.Dec()
}

// RecordStreamEvent increments the stream events counter.
func RecordStreamEvent(eventType string) {
	DefaultMetrics.StreamEvents.WithLabelValues(eventType).Inc()
}

// RecordMessageGeneration records a companion message generation outcome.
func RecordMessageGeneration(outcome string) {
	DefaultMetrics.MessageGenerations.WithLabelValues(outcome).Inc()
}

// RecordRPCCall records one RPC call, retries included, and its latency.
func RecordRPCCall(method, outcome string, seconds float64) {
	DefaultMetrics.RPCCalls.WithLabelValues(method, outcome).Inc()
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
