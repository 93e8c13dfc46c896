// Package metrics provides Prometheus metrics for the scorecard scoring
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scoring engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Core business metrics
	templatesCreated  prometheus.Counter
	scoresRecorded    prometheus.Counter
	scoresSubmitted   prometheus.Counter
	scoresValidated   *prometheus.CounterVec // labeled by actor kind: system/human
	scoresFinalized   prometheus.Counter
	consistencyChecks prometheus.Counter
	consistencyFlags  prometheus.Counter
	auditEntries      prometheus.Counter

	// Latency
	recordLatency     prometheus.Histogram
	evaluationLatency prometheus.Histogram

	// Operational gauges
	storedTemplates prometheus.Gauge
	storedScores    prometheus.Gauge

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scorecard",
		subsystem:        "scoring",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.templatesCreated = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "templates_created_total",
		Help:      "Total number of rubric templates created",
	})
	m.scoresRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_recorded_total",
		Help:      "Total number of score saves (drafts included)",
	})
	m.scoresSubmitted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_submitted_total",
		Help:      "Total number of successful score submissions",
	})
	m.scoresValidated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_validated_total",
		Help:      "Total number of validated scores by actor kind",
	}, []string{"actor"})
	m.scoresFinalized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "scores_finalized_total",
		Help:      "Total number of finalized scores",
	})
	m.consistencyChecks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consistency_checks_total",
		Help:      "Total number of judge consistency checks run",
	})
	m.consistencyFlags = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "consistency_flags_total",
		Help:      "Total number of teams flagged for inconsistent judging",
	})
	m.auditEntries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "audit_entries_total",
		Help:      "Total number of audit log entries written",
	})

	m.recordLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "record_latency_milliseconds",
		Help:      "Histogram of score recording latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.evaluationLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "evaluation_latency_milliseconds",
		Help:      "Histogram of pure evaluation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.storedTemplates = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stored_templates",
		Help:      "Current number of rubric templates in the store",
	})
	m.storedScores = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stored_scores",
		Help:      "Current number of scores in the store",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "errors_total",
		Help:      "Total errors by component and error type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "Current allocated heap memory in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Current number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_milliseconds",
		Help:      "Average GC pause time in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// Package-level helpers operating on the global manager.

// RecordTemplateCreated increments the template creation counter.
func RecordTemplateCreated() {
	globalManager.templatesCreated.Inc()
}

// RecordScoreRecorded increments the score save counter.
func RecordScoreRecorded() {
	globalManager.scoresRecorded.Inc()
}

// RecordScoreSubmitted increments the submission counter.
func RecordScoreSubmitted() {
	globalManager.scoresSubmitted.Inc()
}

// RecordScoreValidated increments the validation counter for an actor kind
// ("system" or "human").
func RecordScoreValidated(actor string) {
	globalManager.scoresValidated.WithLabelValues(actor).Inc()
}

// RecordScoreFinalized increments the finalization counter.
func RecordScoreFinalized() {
	globalManager.scoresFinalized.Inc()
}

// RecordConsistencyCheck increments the consistency check counter.
func RecordConsistencyCheck() {
	globalManager.consistencyChecks.Inc()
}

// RecordConsistencyFlag increments the inconsistent-judging counter.
func RecordConsistencyFlag() {
	globalManager.consistencyFlags.Inc()
}

// RecordAuditEntry increments the audit entry counter.
func RecordAuditEntry() {
	globalManager.auditEntries.Inc()
}

// RecordRecordLatency observes a score recording latency in milliseconds.
func RecordRecordLatency(latencyMs float64) {
	globalManager.recordLatency.Observe(latencyMs)
}

// RecordEvaluationLatency observes a pure evaluation latency in milliseconds.
func RecordEvaluationLatency(latencyMs float64) {
	globalManager.evaluationLatency.Observe(latencyMs)
}

// UpdateStoredTemplates sets the stored template gauge.
func UpdateStoredTemplates(count int) {
	globalManager.storedTemplates.Set(float64(count))
}

// UpdateStoredScores sets the stored score gauge.
func UpdateStoredScores(count int) {
	globalManager.storedScores.Set(float64(count))
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the allocated heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime observes an average GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
