// Package metrics provides Prometheus metrics for the ensemble relay and
// piano clients.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for ensemble.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Relay Metrics
	relayClients       prometheus.Gauge
	relayFanout        prometheus.Counter
	relayDropped       *prometheus.CounterVec
	backplanePublished prometheus.Counter
	backplaneReceived  prometheus.Counter
	backplaneDuplicate prometheus.Counter

	// Client Metrics
	keyPresses         *prometheus.CounterVec
	outboundDropped    *prometheus.CounterVec
	intentDropped      prometheus.Counter
	decodeErrors       prometheus.Counter
	protocolViolations prometheus.Counter
	sessionState       prometheus.Gauge

	// Queue Metrics - outbound message queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "ensemble",
		subsystem:        "sync",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(auto promauto.Factory, name, help string) prometheus.Counter {
	return auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(auto promauto.Factory, name, help string, labels ...string) *prometheus.CounterVec {
	return auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(auto promauto.Factory, name, help string) prometheus.Gauge {
	return auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.relayClients = m.gauge(auto, "relay_clients", "Clients currently connected to this relay")
	m.relayFanout = m.counter(auto, "relay_fanout_total", "Messages written to client outboxes")
	m.relayDropped = m.counterVec(auto, "relay_dropped_clients_total", "Clients disconnected by the relay", "reason")
	m.backplanePublished = m.counter(auto, "backplane_published_total", "Envelopes published to the backplane")
	m.backplaneReceived = m.counter(auto, "backplane_received_total", "Envelopes received from the backplane")
	m.backplaneDuplicate = m.counter(auto, "backplane_duplicate_total", "Backplane envelopes dropped as already seen")

	m.keyPresses = m.counterVec(auto, "key_presses_total", "Key presses applied to the keyboard", "source")
	m.outboundDropped = m.counterVec(auto, "outbound_dropped_total", "Outbound events not sent", "reason")
	m.intentDropped = m.counter(auto, "intent_dropped_total", "Local intents dropped because the synchronizer inbox was full")
	m.decodeErrors = m.counter(auto, "decode_errors_total", "Inbound frames that could not be decoded")
	m.protocolViolations = m.counter(auto, "protocol_violations_total", "Decoded messages rejected as invalid")
	m.sessionState = m.gauge(auto, "session_state", "Current network session state")

	m.queueSize = m.gauge(auto, "queue_size", "Current size of the outbound queue")
	m.queueCapacity = m.gauge(auto, "queue_capacity", "Maximum outbound queue capacity")
	m.queueEnqueueRate = m.counter(auto, "queue_enqueue_total", "Total number of messages enqueued")
	m.queueDequeueRate = m.counter(auto, "queue_dequeue_total", "Total number of messages dequeued")
	m.queueEnqueueErrors = m.counter(auto, "queue_enqueue_errors_total", "Total number of enqueue errors")

	m.workerActiveCount = m.gauge(auto, "worker_active_count", "Number of active writer workers")
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_processing_latency_milliseconds",
		Help:        "Time to write one message to the connection in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
	m.workerErrorRate = m.counter(auto, "worker_errors_total", "Total number of writer errors")

	m.httpRequests = m.counterVec(auto, "http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: m.constLabels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = m.counterVec(auto, "errors_by_component_total",
		"Total number of errors by component", "component", "error_type")

	m.systemMemoryUsage = m.gauge(auto, "system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge(auto, "system_goroutine_count", "Number of goroutines")
}

// Relay Metrics Functions.

// UpdateRelayClients sets the number of connected clients.
func UpdateRelayClients(count int) {
	globalManager.relayClients.Set(float64(count))
}

// RecordFanout counts messages queued to client outboxes.
func RecordFanout(n int) {
	globalManager.relayFanout.Add(float64(n))
}

// RecordClientDropped counts a client the relay disconnected.
func RecordClientDropped(reason string) {
	globalManager.relayDropped.WithLabelValues(reason).Inc()
}

// RecordBackplanePublished counts envelopes sent to the backplane.
func RecordBackplanePublished() {
	globalManager.backplanePublished.Inc()
}

// RecordBackplaneReceived counts envelopes read from the backplane.
func RecordBackplaneReceived() {
	globalManager.backplaneReceived.Inc()
}

// RecordBackplaneDuplicate counts envelopes dropped by the deduper.
func RecordBackplaneDuplicate() {
	globalManager.backplaneDuplicate.Inc()
}

// Client Metrics Functions.

// RecordKeyPress counts a press applied by source ("local" or "remote").
func RecordKeyPress(source string) {
	globalManager.keyPresses.WithLabelValues(source).Inc()
}

// RecordOutboundDropped counts an outbound event that was not sent.
func RecordOutboundDropped(reason string) {
	globalManager.outboundDropped.WithLabelValues(reason).Inc()
}

// RecordIntentDropped counts a local press or release that did not fit
// in the synchronizer inbox.
func RecordIntentDropped() {
	globalManager.intentDropped.Inc()
}

// RecordDecodeError counts an undecodable inbound frame.
func RecordDecodeError() {
	globalManager.decodeErrors.Inc()
}

// RecordProtocolViolation counts a rejected inbound message.
func RecordProtocolViolation() {
	globalManager.protocolViolations.Inc()
}

// UpdateSessionState sets the session state gauge.
func UpdateSessionState(state int) {
	globalManager.sessionState.Set(float64(state))
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

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

// Worker Metrics Functions.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Performance Metrics Functions.

// UpdateSystemMemoryUsage sets the memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RunSystemCollector samples runtime stats every refresh interval until
// ctx is done.
func RunSystemCollector(ctx context.Context) {
	t := time.NewTicker(globalManager.refreshInterval)
	defer t.Stop()
	for {
		collectSystem()
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func collectSystem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	UpdateSystemMemoryUsage(ms.HeapInuse)
	UpdateSystemGoroutineCount(runtime.NumGoroutine())
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
