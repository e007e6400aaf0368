package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// RunsTotal tracks the total number of pipeline runs
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"dataset", "status"}, // status: success, failed, not_found
	)

	// RunDuration measures pipeline run duration in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12), // 0.5s to ~17m
		},
		[]string{"dataset", "status"},
	)

	// RunsRunning tracks the number of currently running pipeline runs
	RunsRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_runs_running",
			Help: "Number of currently running pipeline runs",
		},
		[]string{"dataset", "worker"},
	)

	// LastSuccess records the unix time of the last successful run per dataset
	LastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "mirror_last_success_timestamp",
			Help: "Unix time of the last successful run",
		},
		[]string{"dataset"},
	)

	// StageDuration measures the duration of each pipeline stage
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_stage_duration_seconds",
			Help:    "Pipeline stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"dataset", "stage", "status"},
	)

	// WarehouseStatements counts warehouse statements executed
	WarehouseStatements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_warehouse_statements_total",
			Help: "Total number of warehouse statements executed",
		},
		[]string{"statement", "status"}, // statement: first SQL keyword
	)

	// WarehouseStatementDuration measures warehouse statement execution time
	WarehouseStatementDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_warehouse_statement_duration_seconds",
			Help:    "Warehouse statement execution time",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"statement"},
	)

	// ObjectStoreOperations counts object store operations
	ObjectStoreOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_object_store_operations_total",
			Help: "Total number of object store operations",
		},
		[]string{"operation", "status"}, // operation: list, download, upload
	)

	// ObjectStoreDuration measures object store operation time
	ObjectStoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mirror_object_store_duration_seconds",
			Help:    "Object store operation time",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"operation"},
	)

	// RowsLoaded counts rows loaded into mirror tables
	RowsLoaded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_rows_loaded_total",
			Help: "Total number of rows loaded into mirror tables",
		},
		[]string{"dataset"},
	)

	// RowErrors counts rows skipped by ON_ERROR = CONTINUE
	RowErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_row_errors_total",
			Help: "Total number of rows skipped because of row level errors",
		},
		[]string{"dataset"},
	)

	// SchemaMismatches counts failed schema reconciliations
	SchemaMismatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_schema_mismatches_total",
			Help: "Total number of file/table schema mismatches",
		},
		[]string{"dataset"},
	)

	// TasksEnqueued counts total number of ingest tasks enqueued
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_tasks_enqueued_total",
			Help: "Total number of ingest tasks enqueued",
		},
		[]string{"dataset", "trigger"}, // trigger: schedule, api, manual
	)

	// ErrorsTotal counts total number of errors
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mirror_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)
)

// RecordRunStart records the start of a run
func RecordRunStart(dataset, worker string) {
	RunsRunning.WithLabelValues(dataset, worker).Inc()
}

// RecordRunComplete records run completion
func RecordRunComplete(dataset, worker, status string, duration float64) {
	RunsRunning.WithLabelValues(dataset, worker).Dec()
	RunsTotal.WithLabelValues(dataset, status).Inc()
	RunDuration.WithLabelValues(dataset, status).Observe(duration)
}

// RecordLastSuccess records the time of a successful run
func RecordLastSuccess(dataset string, at time.Time) {
	LastSuccess.WithLabelValues(dataset).Set(float64(at.Unix()))
}

// RecordStage records a stage execution
func RecordStage(dataset, stage, status string, duration float64) {
	StageDuration.WithLabelValues(dataset, stage, status).Observe(duration)
}

// RecordWarehouseStatement records warehouse statement metrics
func RecordWarehouseStatement(statement, status string, duration float64) {
	WarehouseStatements.WithLabelValues(statement, status).Inc()
	WarehouseStatementDuration.WithLabelValues(statement).Observe(duration)
}

// RecordObjectStoreOperation records object store metrics
func RecordObjectStoreOperation(operation, status string, duration float64) {
	ObjectStoreOperations.WithLabelValues(operation, status).Inc()
	ObjectStoreDuration.WithLabelValues(operation).Observe(duration)
}

// RecordRowsLoaded records loaded and skipped rows
func RecordRowsLoaded(dataset string, loaded, errored float64) {
	RowsLoaded.WithLabelValues(dataset).Add(loaded)
	RowErrors.WithLabelValues(dataset).Add(errored)
}

// RecordSchemaMismatch records a failed reconciliation
func RecordSchemaMismatch(dataset string) {
	SchemaMismatches.WithLabelValues(dataset).Inc()
}

// RecordTaskEnqueued records task enqueue
func RecordTaskEnqueued(dataset, trigger string) {
	TasksEnqueued.WithLabelValues(dataset, trigger).Inc()
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}
