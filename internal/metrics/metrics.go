package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"result"}, // "commit", "rollback"
	)

	DBBusyRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_db_busy_retries_total",
			Help: "Statements retried after SQLITE_BUSY",
		},
	)

	DBConnectionsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_db_connections_open",
			Help: "Number of open database connections",
		},
	)
)

// Reconciler metrics
var (
	ReconcileRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_reconcile_runs_total",
			Help: "Total number of reconciliation passes by trigger and result",
		},
		[]string{"trigger", "result"}, // result: "success", "noop", "conflict", "error"
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_catalog_reconcile_duration_seconds",
			Help:    "Duration of reconciliation passes",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
		},
	)

	ReconcileLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_reconcile_last_run_timestamp",
			Help: "Unix timestamp of the last completed reconciliation pass",
		},
	)

	ReconcileIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_reconcile_in_progress",
			Help: "Number of reconciliation passes currently running",
		},
	)

	ReconcileAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_reconcile_added_total",
			Help: "Rows created by reconciliation passes",
		},
		[]string{"entity"}, // "catalog", "video", "metadata"
	)

	ReconcileOrphansSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_reconcile_orphans_skipped_total",
			Help: "Videos skipped because their catalog could not be resolved",
		},
	)

	ScanEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_scan_entries_total",
			Help: "Store entries seen by the tree scanner by classification",
		},
		[]string{"kind"}, // "catalog", "video", "ignored", "unclassifiable", "error"
	)
)

// Watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_events_total",
			Help: "Filesystem notifications received by the watcher",
		},
		[]string{"op"},
	)

	WatcherEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_events_coalesced_total",
			Help: "Notifications folded into an already pending pass because the queue was full",
		},
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_watcher_errors_total",
			Help: "Errors reported by the filesystem watcher",
		},
	)

	WatcherWatchedDirectories = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_watcher_watched_directories",
			Help: "Number of directories registered with the watcher",
		},
	)

	WatcherState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "media_catalog_watcher_state",
			Help: "Current watcher state (1 for the active state)",
		},
		[]string{"state"},
	)
)

// Prober metrics
var (
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_probes_total",
			Help: "Metadata probes by result",
		},
		[]string{"result"}, // "success", "failure", "skipped"
	)

	ProbeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_catalog_probe_duration_seconds",
			Help:    "Duration of ffprobe invocations",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ProbesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_probes_in_flight",
			Help: "Number of ffprobe processes currently running",
		},
	)
)

// Streaming metrics
var (
	StreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_stream_requests_total",
			Help: "Range read requests by outcome",
		},
		[]string{"outcome"}, // "full", "partial", "not_found", "unsatisfiable", "error"
	)

	StreamBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_stream_bytes_total",
			Help: "Bytes returned by range reads",
		},
	)

	StreamReadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_catalog_stream_read_duration_seconds",
			Help:    "Duration of range reads",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
)

// Library metrics
var (
	CatalogsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_catalogs_total",
			Help: "Number of catalogs in the database",
		},
	)

	VideosTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_videos_total",
			Help: "Number of videos in the database",
		},
	)
)

// Filesystem metrics
var (
	FilesystemOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_operation_duration_seconds",
			Help:    "Filesystem operation latency by volume and operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"volume", "operation"},
	)

	FilesystemOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_operation_errors_total",
			Help: "Filesystem operation errors by volume and operation",
		},
		[]string{"volume", "operation"},
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_attempts_total",
			Help: "Retries after a stale file handle",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetrySuccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_success_total",
			Help: "Operations that succeeded after at least one retry",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_retry_failures_total",
			Help: "Operations that failed after exhausting retries",
		},
		[]string{"operation", "volume"},
	)

	FilesystemStaleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_catalog_filesystem_stale_errors_total",
			Help: "ESTALE errors observed",
		},
		[]string{"operation", "volume"},
	)

	FilesystemRetryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_catalog_filesystem_retry_duration_seconds",
			Help:    "Total time spent in retried filesystem operations",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"operation", "volume"},
	)
)

// Application info
var AppInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "media_catalog_app_info",
		Help: "Application build information",
	},
	[]string{"version", "commit", "go_version"},
)

// Memory metrics
var (
	MemoryUsageRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_usage_ratio",
			Help: "Heap allocation as a fraction of the memory limit",
		},
	)

	MemoryPressure = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_catalog_memory_pressure",
			Help: "1 while stream requests are being shed because of memory pressure",
		},
	)

	MemoryShedRequests = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_catalog_memory_shed_requests_total",
			Help: "Stream requests rejected with 503 under memory pressure",
		},
	)
)
