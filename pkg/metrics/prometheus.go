// Package metrics provides Prometheus metrics for the openrpg sheet service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// defaultLatencyBuckets spans sub-millisecond store reads up to slow
// remote commits. All latencies are recorded in milliseconds.
var defaultLatencyBuckets = []float64{0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only

// Manager manages all Prometheus metrics for the openrpg service.
type Manager struct {
	namespace       string
	subsystem       string
	latencyBuckets  []float64
	refreshInterval time.Duration
	constLabels     map[string]string
	metricPrefix    string
	registry        prometheus.Registerer

	// Field writes - server side persistence of sheet scalars
	fieldWrites       *prometheus.CounterVec
	fieldWriteLatency prometheus.Histogram

	// Commits - client side optimistic writes
	commits       *prometheus.CounterVec
	commitLatency prometheus.Histogram

	// Dice
	rolls        *prometheus.CounterVec
	rollOutcomes *prometheus.CounterVec

	// Change broadcast
	changesPublished prometheus.Counter
	changesDelivered prometheus.Counter
	changesDropped   prometheus.Counter
	changesDuplicate prometheus.Counter
	changesApplied   prometheus.Counter
	subscribers      prometheus.Gauge
	wsConnections    prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository Metrics
	repositoryRecordsTotal  prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue Metrics - per-subscriber buffers
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// System Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram

	// Error Metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
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
		namespace:       "openrpg",
		subsystem:       "sheet",
		latencyBuckets:  defaultLatencyBuckets,
		refreshInterval: defaultRefreshInterval,
		constLabels:     make(map[string]string),
		registry:        prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.latencyBuckets,
		ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.fieldWrites = m.counterVec("field_writes_total", "Field writes by field kind and outcome", "kind", "outcome")
	m.fieldWriteLatency = m.histogram("field_write_latency_milliseconds", "Latency of persisting and publishing a field write")

	m.commits = m.counterVec("commits_total", "Client commits by outcome (issued, applied, rejected)", "outcome")
	m.commitLatency = m.histogram("commit_latency_milliseconds", "Round trip latency of a client commit")

	m.rolls = m.counterVec("rolls_total", "Dice rolls by resolver key", "resolver")
	m.rollOutcomes = m.counterVec("roll_outcomes_total", "Classified dice outcomes by result type", "result")

	m.changesPublished = m.counter("changes_published_total", "Change events published to the broadcast hub")
	m.changesDelivered = m.counter("changes_delivered_total", "Change events buffered for a subscriber")
	m.changesDropped = m.counter("changes_dropped_total", "Change events dropped because a subscriber buffer was full")
	m.changesDuplicate = m.counter("changes_duplicate_total", "Change events discarded as already applied")
	m.changesApplied = m.counter("changes_applied_total", "Change events that altered a client field")
	m.subscribers = m.gauge("subscribers", "Current number of change subscribers")
	m.wsConnections = m.gauge("websocket_connections", "Current number of open websocket streams")

	m.httpRequests = promauto.With(m.registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_requests_total"),
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        m.name("http_request_duration_milliseconds"),
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.latencyBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.repositoryRecordsTotal = m.gauge("repository_records_total", "Total number of persisted field values")
	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Repository write latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository read latency in milliseconds")

	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of messages enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of messages dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Queue processing latency in milliseconds")

	m.workerActiveCount = m.gauge("worker_active_count", "Number of running change workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of worker errors")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause time in milliseconds")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component", "component", "error_type")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Total number of errors by endpoint", "endpoint", "method", "error_type")
}

// Field write functions.

// RecordFieldWrite counts a server-side field write.
func RecordFieldWrite(kind, outcome string) {
	globalManager.fieldWrites.WithLabelValues(kind, outcome).Inc()
}

// RecordFieldWriteLatency records field write latency in milliseconds.
func RecordFieldWriteLatency(latencyMs float64) {
	globalManager.fieldWriteLatency.Observe(latencyMs)
}

// RecordCommit counts a client commit transition.
func RecordCommit(outcome string) {
	globalManager.commits.WithLabelValues(outcome).Inc()
}

// RecordCommitLatency records commit round trip latency in milliseconds.
func RecordCommitLatency(latencyMs float64) {
	globalManager.commitLatency.Observe(latencyMs)
}

// Dice functions.

// RecordRoll counts a roll resolved by the given key.
func RecordRoll(resolver string) {
	globalManager.rolls.WithLabelValues(resolver).Inc()
}

// RecordRollOutcome counts a classified outcome.
func RecordRollOutcome(result string) {
	globalManager.rollOutcomes.WithLabelValues(result).Inc()
}

// Broadcast functions.

// RecordChangePublished increments the published changes counter.
func RecordChangePublished() {
	globalManager.changesPublished.Inc()
}

// RecordChangeDelivered increments the delivered changes counter.
func RecordChangeDelivered() {
	globalManager.changesDelivered.Inc()
}

// RecordChangeDropped increments the dropped changes counter.
func RecordChangeDropped() {
	globalManager.changesDropped.Inc()
}

// RecordChangeDuplicate increments the duplicate changes counter.
func RecordChangeDuplicate() {
	globalManager.changesDuplicate.Inc()
}

// RecordChangeApplied increments the applied changes counter.
func RecordChangeApplied() {
	globalManager.changesApplied.Inc()
}

// UpdateSubscribers sets the current subscriber count.
func UpdateSubscribers(count int) {
	globalManager.subscribers.Set(float64(count))
}

// AddWebsocketConnections adjusts the open websocket gauge by delta.
func AddWebsocketConnections(delta int) {
	globalManager.wsConnections.Add(float64(delta))
}

// HTTP functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Repository Metrics Functions.

// UpdateRepositoryRecordsTotal sets the total number of persisted values.
func UpdateRepositoryRecordsTotal(count int) {
	globalManager.repositoryRecordsTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// AddWorkerActiveCount adjusts the number of running workers by delta.
func AddWorkerActiveCount(delta int) {
	globalManager.workerActiveCount.Add(float64(delta))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
