package observer

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricsEnabled = true // Flag to control metric collection

	// Labels for trigger event metrics
	eventProcessingLabels = []string{"event_type", "consumer_type"}
	// Labels for tracking specific processing actions
	eventActionLabels = []string{"event_type", "consumer_type", "action", "error_type"}

	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_events_received_total",
			Help: "Total number of trigger events received from NATS, labeled by consumer type.",
		},
		eventProcessingLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_events_processed_total",
			Help: "Total number of trigger events successfully processed and acknowledged.",
		},
		eventProcessingLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_events_failed_total",
			Help: "Total number of trigger events that failed processing (resulting in Nack or error).",
		},
		eventProcessingLabels,
	)

	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_sync_event_processing_duration_seconds",
			Help:    "Histogram of trigger event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventProcessingLabels,
	)

	EventProcessingActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_event_processing_actions_total",
			Help: "Total count of ack/nak/exhausted actions taken after event processing, labeled by error type.",
		},
		eventActionLabels,
	)

	// Global metrics instance
	Metrics *metricsStore
)

// Sync pipeline metrics
var (
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_runs_total",
			Help: "Total number of setting runs, labeled by trigger and final status.",
		},
		[]string{"trigger", "status"},
	)
	SyncRunDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_sync_run_duration_seconds",
			Help:    "Histogram of setting run durations.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14), // 100ms to ~27m
		},
		[]string{"trigger"},
	)
	LeadsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_leads_total",
			Help: "Total number of leads seen by the ingestor, labeled by outcome (created, existing, duplicate, failed, invalid).",
		},
		[]string{"outcome"},
	)
	PagesFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_pages_fetched_total",
			Help: "Total number of lead pages requested, labeled by status.",
		},
		[]string{"status"},
	)
	GraphRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_sync_graph_request_duration_seconds",
			Help:    "Histogram of Graph API request durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 13), // 10ms to ~40s
		},
		[]string{"endpoint", "outcome"},
	)
	DispatchOutcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_dispatch_total",
			Help: "Total number of pixel event dispatches, labeled by status and error kind.",
		},
		[]string{"status", "error_kind"},
	)
	DispatchAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lead_sync_dispatch_attempts",
			Help:    "Number of attempts used per dispatch.",
			Buckets: []float64{1, 2, 3, 4, 5},
		},
	)
	StatusTriggersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_status_triggers_total",
			Help: "Total number of status change events evaluated, labeled by record type and outcome.",
		},
		[]string{"record_type", "outcome"},
	)
)

// Labels for database operations
var (
	dbOperationLabels = []string{"operation", "entity", "status"}

	DatabaseOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_sync_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
		},
		dbOperationLabels,
	)
)

// Sync worker pool metrics
var (
	syncTaskLabels       = []string{"kind"}
	syncTaskStatusLabels = []string{"kind", "status"}

	syncTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_tasks_submitted_total",
			Help: "Total number of sync tasks submitted to the worker pool.",
		},
		syncTaskLabels,
	)
	syncTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_tasks_processed_total",
			Help: "Total number of sync tasks processed by the worker pool, labeled by final status.",
		},
		syncTaskStatusLabels,
	)
	syncTaskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lead_sync_task_duration_seconds",
			Help:    "Histogram of processing durations for sync tasks.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		syncTaskLabels,
	)
	syncQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lead_sync_task_queue_length",
		Help: "Approximate number of tasks waiting in the sync worker pool queue.",
	})
)

// Simulation metrics
var (
	loadgenLabels = []string{"subject"}

	loadgenMessagesAttemptedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_loadgen_messages_attempted_total",
			Help: "Total number of messages the simulator attempted to publish.",
		},
		loadgenLabels,
	)
	loadgenMessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_loadgen_messages_published_total",
			Help: "Total number of messages successfully published by the simulator.",
		},
		loadgenLabels,
	)
	loadgenPublishErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lead_sync_loadgen_publish_errors_total",
			Help: "Total number of errors encountered by the simulator during publishing.",
		},
		loadgenLabels,
	)
)

// metricsStore marks metrics as initialized. Collectors are registered by promauto.
type metricsStore struct{}

// InitMetrics enables or disables metric collection.
// Call this function during application startup.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
	if !enabled {
		Metrics = nil
		return
	}
	Metrics = &metricsStore{}
}

// Enabled reports whether metric collection is on.
func Enabled() bool {
	return metricsEnabled
}

// IncEventsReceived increments the events received counter.
func IncEventsReceived(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// IncEventsProcessed increments the events processed counter.
func IncEventsProcessed(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// IncEventsFailed increments the events failed counter.
func IncEventsFailed(eventType, consumerType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(sanitizeLabel(eventType), consumerType).Inc()
}

// sanitizeLabel returns a default value for empty label values.
func sanitizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveEventProcessingDuration records the processing time for a trigger event.
func ObserveEventProcessingDuration(eventType, consumerType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventProcessingDurationSeconds.WithLabelValues(sanitizeLabel(eventType), consumerType).Observe(duration.Seconds())
}

// IncEventProcessingAction increments the counter for a specific processing outcome.
func IncEventProcessingAction(eventType, consumerType, action, errorType string) {
	if !metricsEnabled {
		return
	}
	EventProcessingActionsTotal.WithLabelValues(sanitizeLabel(eventType), consumerType, action, SanitizeErrorType(errorType)).Inc()
}

// ObserveSyncRun records the end of one setting run.
func ObserveSyncRun(trigger, status string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	SyncRunsTotal.WithLabelValues(sanitizeLabel(trigger), status).Inc()
	SyncRunDurationSeconds.WithLabelValues(sanitizeLabel(trigger)).Observe(duration.Seconds())
}

// AddLeads adds n leads to the given outcome.
func AddLeads(outcome string, n int) {
	if !metricsEnabled || n <= 0 {
		return
	}
	LeadsIngestedTotal.WithLabelValues(outcome).Add(float64(n))
}

// IncPagesFetched counts one lead page request.
func IncPagesFetched(status string) {
	if !metricsEnabled {
		return
	}
	PagesFetchedTotal.WithLabelValues(status).Inc()
}

// ObserveGraphRequest records a Graph API call.
func ObserveGraphRequest(endpoint string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = SanitizeErrorType(err.Error())
	}
	GraphRequestDurationSeconds.WithLabelValues(endpoint, outcome).Observe(duration.Seconds())
}

// ObserveDispatch records the outcome of a pixel event dispatch.
func ObserveDispatch(status, errorKind string, attempts int) {
	if !metricsEnabled {
		return
	}
	if errorKind == "" {
		errorKind = "none"
	}
	DispatchOutcomesTotal.WithLabelValues(status, errorKind).Inc()
	if attempts > 0 {
		DispatchAttempts.Observe(float64(attempts))
	}
}

// IncStatusTrigger counts one evaluated status change.
func IncStatusTrigger(recordType, outcome string) {
	if !metricsEnabled {
		return
	}
	StatusTriggersTotal.WithLabelValues(sanitizeLabel(recordType), outcome).Inc()
}

// ObserveDbOperationDuration records the duration for a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DatabaseOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// SanitizeErrorType maps specific errors or provides a default category.
// Keep this simple to avoid high cardinality.
func SanitizeErrorType(errStr string) string {
	if errStr == "" || errStr == "none" {
		return "none"
	}

	switch {
	case strings.Contains(errStr, "duplicate"), strings.Contains(errStr, "database"), strings.Contains(errStr, "SQL"), strings.Contains(errStr, "constraint"):
		return "database"
	case strings.Contains(errStr, "validation failed"), strings.Contains(errStr, "bad request"), strings.Contains(errStr, "invalid"), strings.Contains(errStr, "missing field"):
		return "validation"
	case strings.Contains(errStr, "configuration error"):
		return "configuration"
	case strings.Contains(errStr, "api error"):
		return "api"
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "no rows"):
		return "not_found"
	case strings.Contains(errStr, "nats"), strings.Contains(errStr, "jetstream"):
		return "nats"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "network error"), strings.Contains(errStr, "connection"):
		return "network"
	case strings.Contains(errStr, "unmarshal"), strings.Contains(errStr, "json"):
		return "unmarshal"
	case strings.Contains(errStr, "panic"):
		return "panic"
	default:
		return "unknown"
	}
}

// --- Sync Worker Metric Helpers ---

// IncSyncTasksSubmitted increments the counter for submitted sync tasks.
func IncSyncTasksSubmitted(kind string) {
	if Metrics != nil {
		syncTasksSubmittedTotal.WithLabelValues(kind).Inc()
	}
}

// IncSyncTasksProcessed increments the counter for processed sync tasks by status.
func IncSyncTasksProcessed(kind, status string) {
	if Metrics != nil {
		syncTasksProcessedTotal.WithLabelValues(kind, status).Inc()
	}
}

// ObserveSyncTaskDuration records the processing time for a sync task.
func ObserveSyncTaskDuration(kind string, duration time.Duration) {
	if Metrics != nil {
		syncTaskDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	}
}

// SetSyncQueueLength sets the current sync queue length.
func SetSyncQueueLength(length int) {
	if Metrics != nil {
		syncQueueLength.Set(float64(length))
	}
}

// --- Simulation Metric Helpers ---

// IncLoadgenMessagesAttempted increments the counter for attempted message publications.
func IncLoadgenMessagesAttempted(subject string) {
	if Metrics != nil {
		loadgenMessagesAttemptedTotal.WithLabelValues(subject).Inc()
	}
}

// IncLoadgenMessagesPublished increments the counter for successfully published messages.
func IncLoadgenMessagesPublished(subject string) {
	if Metrics != nil {
		loadgenMessagesPublishedTotal.WithLabelValues(subject).Inc()
	}
}

// IncLoadgenPublishErrors increments the counter for publishing errors.
func IncLoadgenPublishErrors(subject string) {
	if Metrics != nil {
		loadgenPublishErrorsTotal.WithLabelValues(subject).Inc()
	}
}
