package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liturgia_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Job Metrics
	JobsCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_jobs_completed_total",
			Help: "Total number of jobs that reached a terminal state",
		},
		[]string{"status"},
	)

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_jobs_failed_total",
			Help: "Total number of failed jobs by the stage they failed in",
		},
		[]string{"stage"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "liturgia_jobs_in_progress",
			Help: "Number of jobs currently being processed",
		},
	)

	JobDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liturgia_job_duration_seconds",
			Help:    "Job processing duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liturgia_stage_duration_seconds",
			Help:    "Duration of each pipeline stage in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"stage", "status"},
	)

	// Batch Metrics
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_batch_runs_total",
			Help: "Total number of batch runs",
		},
		[]string{"status"},
	)

	BatchJobsPerRun = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "liturgia_batch_jobs_per_run",
			Help:    "Number of jobs processed per batch run",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	// External command Metrics
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_commands_total",
			Help: "Total number of external command invocations",
		},
		[]string{"command", "status"},
	)

	CommandDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liturgia_command_duration_seconds",
			Help:    "External command duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
		},
		[]string{"command"},
	)

	// Remote coordinator Metrics
	RemoteOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_remote_operations_total",
			Help: "Total number of remote coordinator operations",
		},
		[]string{"operation", "status"},
	)

	RemoteOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "liturgia_remote_operation_duration_seconds",
			Help:    "Remote coordinator operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Storage Metrics
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageBytesTransferred = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_storage_bytes_transferred_total",
			Help: "Total bytes transferred to/from storage",
		},
		[]string{"operation"},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "liturgia_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)
)

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordJobStarted marks a job as in progress
func RecordJobStarted() {
	JobsInProgress.Inc()
}

// RecordJobCompleted records a job reaching a terminal state
func RecordJobCompleted(status, failedStage string, duration float64) {
	JobsInProgress.Dec()
	JobsCompletedTotal.WithLabelValues(status).Inc()
	JobDuration.Observe(duration)
	if failedStage != "" {
		JobsFailedTotal.WithLabelValues(failedStage).Inc()
	}
}

// RecordStage records the duration of one pipeline stage
func RecordStage(stage string, duration float64, err error) {
	StageDuration.WithLabelValues(stage, statusLabel(err)).Observe(duration)
}

// RecordBatchRun records a finished batch run
func RecordBatchRun(jobs, failed int) {
	status := "success"
	if failed > 0 {
		status = "partial_failure"
	}
	BatchRunsTotal.WithLabelValues(status).Inc()
	BatchJobsPerRun.Observe(float64(jobs))
}

// RecordCommand records an external command invocation
func RecordCommand(command string, duration float64, err error) {
	CommandsTotal.WithLabelValues(command, statusLabel(err)).Inc()
	CommandDuration.WithLabelValues(command).Observe(duration)
}

// RecordRemoteOperation records a call to the remote coordinator
func RecordRemoteOperation(operation string, duration float64, err error) {
	RemoteOperationsTotal.WithLabelValues(operation, statusLabel(err)).Inc()
	RemoteOperationDuration.WithLabelValues(operation).Observe(duration)
}

// RecordStorageOperation records a storage operation
func RecordStorageOperation(operation, status string, bytesTransferred int64) {
	StorageOperationsTotal.WithLabelValues(operation, status).Inc()
	StorageBytesTransferred.WithLabelValues(operation).Add(float64(bytesTransferred))
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}
