// internal/utils/metrics.go
package utils

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "script_studio"

// MetricsCollector groups the service's Prometheus collectors on a private registry
type MetricsCollector struct {
	registry *prometheus.Registry

	providerRequests   *prometheus.CounterVec
	providerLatency    *prometheus.HistogramVec
	promptTokens       *prometheus.HistogramVec
	cacheLookups       *prometheus.CounterVec
	sessionTransitions *prometheus.CounterVec
	storeWrites        *prometheus.CounterVec
	activeSessions     prometheus.Gauge
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector(prometheus.NewRegistry())
	})
	return globalMetrics
}

// NewMetricsCollector registers all collectors on the given registry
func NewMetricsCollector(registry *prometheus.Registry) *MetricsCollector {
	factory := promauto.With(registry)
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &MetricsCollector{
		registry: registry,
		providerRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "provider_requests_total",
			Help:      "Text-generation requests, partitioned by provider, operation and status.",
		}, []string{"provider", "operation", "status"}),
		providerLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of text-generation requests.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"provider", "operation"}),
		promptTokens: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "prompt_tokens",
			Help:      "Estimated prompt size in tokens.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		}, []string{"operation"}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "artifact_cache_lookups_total",
			Help:      "Derived-artifact cache lookups, partitioned by slot and result.",
		}, []string{"slot", "result"}),
		sessionTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "session_transitions_total",
			Help:      "Script session state transitions.",
		}, []string{"from", "to"}),
		storeWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "store_writes_total",
			Help:      "Whole-record writes to the key/value store.",
		}, []string{"record", "status"}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_sessions",
			Help:      "Number of live script sessions.",
		}),
	}
}

// Registry returns the underlying registry
func (m *MetricsCollector) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProviderRequest records one provider call
func (m *MetricsCollector) ObserveProviderRequest(provider, operation string, started time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.providerRequests.WithLabelValues(provider, operation, status).Inc()
	m.providerLatency.WithLabelValues(provider, operation).Observe(time.Since(started).Seconds())
}

// ObservePromptTokens records an estimated prompt size
func (m *MetricsCollector) ObservePromptTokens(operation string, tokens int) {
	m.promptTokens.WithLabelValues(operation).Observe(float64(tokens))
}

// RecordCacheLookup records a hit or miss for a cache slot
func (m *MetricsCollector) RecordCacheLookup(slot string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(slot, result).Inc()
}

// RecordTransition records a session state change
func (m *MetricsCollector) RecordTransition(from, to string) {
	m.sessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordStoreWrite records a record write
func (m *MetricsCollector) RecordStoreWrite(record string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.storeWrites.WithLabelValues(record, status).Inc()
}

// SetActiveSessions updates the live session gauge
func (m *MetricsCollector) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
