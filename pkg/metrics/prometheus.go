// Package metrics provides Prometheus metrics for the nebula leaderboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Delivery outcome labels for fan-out metrics.
const (
	OutcomeSuccess = "success"
	OutcomeGone    = "gone"
	OutcomeError   = "error"
)

// Manager owns every metric the service exports.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Scores
	scoresSubmitted      prometheus.Counter
	submissionFailures   prometheus.Counter
	validationRejections *prometheus.CounterVec
	leaderboardReads     prometheus.Counter
	leaderboardClears    prometheus.Counter
	scoresDeleted        prometheus.Counter
	storeLatency         *prometheus.HistogramVec

	// Notifications
	notificationsEnqueued prometheus.Counter
	notificationsDropped  *prometheus.CounterVec
	notifyQueueSize       prometheus.Gauge
	fanoutDeliveries      *prometheus.CounterVec
	fanoutLatency         prometheus.Histogram
	registryEvictions     prometheus.Counter
	liveSockets           prometheus.Gauge

	// Identity
	authAttempts *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	processRSS           prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide metrics

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // avoids default Go collectors

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nebula",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.scoresSubmitted = m.counter("scores_submitted_total", "Scores persisted to the score store")
	m.submissionFailures = m.counter("submission_failures_total", "Score submissions that failed on the store write")
	m.validationRejections = m.counterVec("validation_rejections_total", "Score submissions rejected before any write", "reason")
	m.leaderboardReads = m.counter("leaderboard_reads_total", "Leaderboard top-entry computations")
	m.leaderboardClears = m.counter("leaderboard_clears_total", "Administrative bulk clears")
	m.scoresDeleted = m.counter("scores_deleted_total", "Score rows removed by bulk clears")
	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Store operation latency in milliseconds", "store", "op")

	m.notificationsEnqueued = m.counter("notifications_enqueued_total", "High-score notifications handed to the notifier queue")
	m.notificationsDropped = m.counterVec("notifications_dropped_total", "High-score notifications that never reached fan-out", "reason")
	m.notifyQueueSize = m.gauge("notify_queue_size", "Pending notifications in the notifier queue")
	m.fanoutDeliveries = m.counterVec("fanout_deliveries_total", "Push deliveries attempted by fan-out", "outcome")
	m.fanoutLatency = m.histogram("fanout_latency_milliseconds", "Wall time of one fan-out call in milliseconds")
	m.registryEvictions = m.counter("registry_evictions_total", "Connection records evicted from the registry")
	m.liveSockets = m.gauge("live_sockets", "Sockets currently attached to this process")

	m.authAttempts = m.counterVec("auth_attempts_total", "Identity provider calls by operation and result", "op", "result")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.processRSS = m.gauge("process_rss_bytes", "Resident set size of the process")
}

// RecordScoreSubmitted increments the persisted-score counter.
func RecordScoreSubmitted() { globalManager.scoresSubmitted.Inc() }

// RecordSubmissionFailure increments the failed-write counter.
func RecordSubmissionFailure() { globalManager.submissionFailures.Inc() }

// RecordValidationRejection counts a rejected submission by reason.
func RecordValidationRejection(reason string) {
	globalManager.validationRejections.WithLabelValues(reason).Inc()
}

// RecordLeaderboardRead increments the leaderboard read counter.
func RecordLeaderboardRead() { globalManager.leaderboardReads.Inc() }

// RecordLeaderboardClear records a bulk clear and the rows it removed.
func RecordLeaderboardClear(deleted int) {
	globalManager.leaderboardClears.Inc()
	globalManager.scoresDeleted.Add(float64(deleted))
}

// RecordStoreLatency observes one store operation.
func RecordStoreLatency(store, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(store, op).Observe(latencyMs)
}

// RecordNotificationEnqueued increments the enqueued notification counter.
func RecordNotificationEnqueued() { globalManager.notificationsEnqueued.Inc() }

// RecordNotificationDropped counts a notification lost before fan-out.
func RecordNotificationDropped(reason string) {
	globalManager.notificationsDropped.WithLabelValues(reason).Inc()
}

// UpdateNotifyQueueSize sets the notifier backlog gauge.
func UpdateNotifyQueueSize(size int) { globalManager.notifyQueueSize.Set(float64(size)) }

// RecordFanoutDelivery counts one delivery attempt by outcome.
func RecordFanoutDelivery(outcome string) {
	globalManager.fanoutDeliveries.WithLabelValues(outcome).Inc()
}

// RecordFanoutLatency observes the duration of one fan-out call.
func RecordFanoutLatency(latencyMs float64) { globalManager.fanoutLatency.Observe(latencyMs) }

// RecordRegistryEviction counts one evicted connection record.
func RecordRegistryEviction() { globalManager.registryEvictions.Inc() }

// UpdateLiveSockets sets the attached socket gauge.
func UpdateLiveSockets(count int) { globalManager.liveSockets.Set(float64(count)) }

// RecordAuthAttempt counts an identity provider call.
func RecordAuthAttempt(op, result string) {
	globalManager.authAttempts.WithLabelValues(op, result).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// UpdateProcessRSS sets the resident set size in bytes.
func UpdateProcessRSS(bytes uint64) { globalManager.processRSS.Set(float64(bytes)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
