package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the listener service
type Metrics struct {
	// Listener lifecycle metrics
	RunningListeners prometheus.Gauge
	ListenerStarts   *prometheus.CounterVec
	ListenerStops    prometheus.Counter
	ListenerFailures *prometheus.CounterVec
	ListenerLeaks    prometheus.Counter
	UnresolvedGroups prometheus.Counter
	ResolveDuration  prometheus.Histogram

	// Message capture metrics
	MessagesCaptured   prometheus.Counter
	MessagesDuplicate  prometheus.Counter
	SinkWriteErrors    prometheus.Counter
	SinkAppendDuration prometheus.Histogram

	// Publisher metrics
	MessagesPublished prometheus.Counter
	PublishErrors     *prometheus.CounterVec

	// Archive metrics
	ArchiveUploads prometheus.Counter
	ArchiveErrors  prometheus.Counter
}

var (
	// DefaultMetrics is the default metrics instance
	DefaultMetrics *Metrics
	once           sync.Once
)

// GetDefaultMetrics returns the singleton metrics instance
func GetDefaultMetrics() *Metrics {
	once.Do(func() {
		DefaultMetrics = newMetrics()
	})
	return DefaultMetrics
}

func newMetrics() *Metrics {
	return &Metrics{
		RunningListeners: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "listener_service_running_listeners",
			Help: "Current number of registered listener tasks",
		}),
		ListenerStarts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listener_service_listener_starts_total",
				Help: "Total number of start requests by outcome",
			},
			[]string{"outcome"},
		),
		ListenerStops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_listener_stops_total",
			Help: "Total number of listener tasks stopped on request",
		}),
		ListenerFailures: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listener_service_listener_failures_total",
				Help: "Total number of listener tasks that ended in the failed state",
			},
			[]string{"stage"},
		),
		ListenerLeaks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_listener_grace_timeouts_total",
			Help: "Total number of cancelled tasks that did not end within the grace period",
		}),
		UnresolvedGroups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_unresolved_groups_total",
			Help: "Total number of group references that could not be resolved",
		}),
		ResolveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listener_service_resolve_duration_seconds",
			Help:    "Duration of group resolution in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),

		MessagesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_messages_captured_total",
			Help: "Total number of messages appended to account logs",
		}),
		MessagesDuplicate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_messages_duplicate_total",
			Help: "Total number of events skipped by the dedup key",
		}),
		SinkWriteErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_sink_write_errors_total",
			Help: "Total number of failed message log writes",
		}),
		SinkAppendDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "listener_service_sink_append_duration_seconds",
			Help:    "Duration of message log appends in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
		}),

		MessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_kafka_messages_published_total",
			Help: "Total number of captured messages published to Kafka",
		}),
		PublishErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "listener_service_kafka_publish_errors_total",
				Help: "Total number of Kafka publish errors",
			},
			[]string{"error_type"},
		),

		ArchiveUploads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_archive_uploads_total",
			Help: "Total number of message log snapshots uploaded",
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "listener_service_archive_errors_total",
			Help: "Total number of failed message log uploads",
		}),
	}
}

// RecordStart records the outcome of a start request
func (m *Metrics) RecordStart(outcome string) {
	m.ListenerStarts.WithLabelValues(outcome).Inc()
}

// RecordStop records a stopped listener
func (m *Metrics) RecordStop() {
	m.ListenerStops.Inc()
}

// SetRunningListeners updates the running listeners gauge
func (m *Metrics) SetRunningListeners(count int) {
	m.RunningListeners.Set(float64(count))
}

// RecordListenerFailure records a task that failed at the given stage
func (m *Metrics) RecordListenerFailure(stage string) {
	if stage == "" {
		stage = "unknown"
	}
	m.ListenerFailures.WithLabelValues(stage).Inc()
}

// RecordGraceTimeout records a task that outlived its grace period
func (m *Metrics) RecordGraceTimeout() {
	m.ListenerLeaks.Inc()
}

// RecordResolution records a finished group resolution
func (m *Metrics) RecordResolution(unresolved int, duration float64) {
	if unresolved > 0 {
		m.UnresolvedGroups.Add(float64(unresolved))
	}
	m.ResolveDuration.Observe(duration)
}

// RecordAppend records the result of a sink append
func (m *Metrics) RecordAppend(appended bool, duration float64) {
	if appended {
		m.MessagesCaptured.Inc()
	} else {
		m.MessagesDuplicate.Inc()
	}
	m.SinkAppendDuration.Observe(duration)
}

// RecordSinkError records a failed log write
func (m *Metrics) RecordSinkError() {
	m.SinkWriteErrors.Inc()
}

// RecordPublished records a message delivered to Kafka
func (m *Metrics) RecordPublished() {
	m.MessagesPublished.Inc()
}

// RecordPublishError records a Kafka publish error with error type
func (m *Metrics) RecordPublishError(errorType string) {
	if errorType == "" {
		errorType = "unknown"
	}
	m.PublishErrors.WithLabelValues(errorType).Inc()
}

// RecordArchive records an archive upload attempt
func (m *Metrics) RecordArchive(err error) {
	if err != nil {
		m.ArchiveErrors.Inc()
		return
	}
	m.ArchiveUploads.Inc()
}
