// Package metrics provides Prometheus metrics for the scout discovery service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the scout service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Discovery
	fetchRequests   *prometheus.CounterVec
	fetchLatency    *prometheus.HistogramVec
	staleResults    prometheus.Counter
	sessionsActive  prometheus.Gauge
	affiliatesTotal prometheus.Gauge
	cacheRequests   *prometheus.CounterVec

	// Segments
	segmentsTotal     prometheus.Gauge
	segmentMutations  *prometheus.CounterVec
	segmentExports    *prometheus.CounterVec
	idempotentReplays prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker
	workerCount             prometheus.Gauge
	workerMessagesPerSecond prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System
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
		namespace:        "scout",
		subsystem:        "discovery",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.fetchRequests = auto.NewCounterVec(m.counterOpts("fetch_requests_total", "Page fetches by data source and outcome"), []string{"source", "outcome"})
	m.fetchLatency = auto.NewHistogramVec(m.histogramOpts("fetch_latency_milliseconds", "Page fetch latency in milliseconds"), []string{"source"})
	m.staleResults = auto.NewCounter(m.counterOpts("stale_results_total", "Fetch results discarded because a newer filter generation started"))
	m.sessionsActive = auto.NewGauge(m.gaugeOpts("sessions_active", "Open discovery sessions"))
	m.affiliatesTotal = auto.NewGauge(m.gaugeOpts("affiliates_total", "Affiliates in the local collection"))
	m.cacheRequests = auto.NewCounterVec(m.counterOpts("cache_requests_total", "Page cache lookups by result"), []string{"result"})

	m.segmentsTotal = auto.NewGauge(m.gaugeOpts("segments_total", "Segments currently stored"))
	m.segmentMutations = auto.NewCounterVec(m.counterOpts("segment_mutations_total", "Segment store mutations by operation"), []string{"operation"})
	m.segmentExports = auto.NewCounterVec(m.counterOpts("segment_exports_total", "Segment exports by format"), []string{"format"})
	m.idempotentReplays = auto.NewCounter(m.counterOpts("idempotent_replays_total", "Requests answered from a previously recorded idempotency key"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Fetch jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum fetch jobs the queue accepts"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Queue size divided by capacity"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Fetch jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Fetch jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Fetch jobs rejected by the queue"))
	m.queueProcessingLatency = auto.NewHistogram(m.histogramOpts("queue_processing_latency_milliseconds", "Time spent enqueuing a fetch job"))

	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Fetch workers running"))
	m.workerMessagesPerSecond = auto.NewGauge(m.gaugeOpts("worker_jobs_per_second", "Fetch jobs completed per second"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Time a worker spends on one fetch job"))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Fetch jobs that ended in an error"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"), []string{"endpoint", "method", "error_type"})
	m.errorLatency = auto.NewHistogramVec(m.histogramOpts("error_latency_milliseconds", "Latency of failed operations"), []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutines", "Goroutines running"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds"))
}

// RecordFetch records one page fetch against a data source.
func RecordFetch(source, outcome string, latencyMs float64) {
	globalManager.fetchRequests.WithLabelValues(source, outcome).Inc()
	globalManager.fetchLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordStaleResult counts a result dropped for belonging to an old generation.
func RecordStaleResult() { globalManager.staleResults.Inc() }

// UpdateSessionsActive sets the number of open discovery sessions.
func UpdateSessionsActive(n int) { globalManager.sessionsActive.Set(float64(n)) }

// UpdateAffiliatesTotal sets the size of the local affiliate collection.
func UpdateAffiliatesTotal(n int) { globalManager.affiliatesTotal.Set(float64(n)) }

// RecordCacheResult counts a page cache lookup: hit, miss or error.
func RecordCacheResult(result string) { globalManager.cacheRequests.WithLabelValues(result).Inc() }

// UpdateSegmentsTotal sets the number of stored segments.
func UpdateSegmentsTotal(n int) { globalManager.segmentsTotal.Set(float64(n)) }

// RecordSegmentMutation counts a segment store mutation.
func RecordSegmentMutation(operation string) {
	globalManager.segmentMutations.WithLabelValues(operation).Inc()
}

// RecordSegmentExport counts an export in the given format.
func RecordSegmentExport(format string) { globalManager.segmentExports.WithLabelValues(format).Inc() }

// RecordIdempotentReplay counts a request answered from the idempotency cache.
func RecordIdempotentReplay() { globalManager.idempotentReplays.Inc() }

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateQueueSize updates the queue size metric.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets queue utilization (0..1).
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue counts an enqueued job.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue counts a dequeued job.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError counts a rejected job.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency records enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerMessagesPerSecond sets worker throughput.
func UpdateWorkerMessagesPerSecond(rate float64) { globalManager.workerMessagesPerSecond.Set(rate) }

// RecordWorkerProcessingLatency records the time spent on one job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordErrorByComponent records errors by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records errors by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records errors by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records latency of failed operations.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records the average GC pause.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom registry served by /healthz.
func GetRegistry() *prometheus.Registry { return customRegistry }
