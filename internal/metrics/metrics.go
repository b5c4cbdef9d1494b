package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insta_archive_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insta_archive_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insta_archive_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insta_archive_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insta_archive_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	DBTransactionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "insta_archive_db_transaction_duration_seconds",
			Help:    "Database transaction duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"result"}, // "commit", "rollback"
	)
)

// Indexer metrics
var (
	IndexerRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insta_archive_indexer_runs_total",
			Help: "Total number of indexer runs by outcome",
		},
		[]string{"result"}, // "success", "failure"
	)

	IndexerIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insta_archive_indexer_running",
			Help: "Whether an indexer run is in flight (1 = running, 0 = idle)",
		},
	)

	IndexerLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insta_archive_indexer_last_run_timestamp",
			Help: "Unix timestamp of the last completed indexer run",
		},
	)

	IndexerLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insta_archive_indexer_last_run_duration_seconds",
			Help: "Duration of the last completed indexer run in seconds",
		},
	)

	IndexerAccountsScanned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insta_archive_indexer_accounts_scanned_total",
			Help: "Total number of account directories scanned",
		},
	)

	IndexerEntitiesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insta_archive_indexer_entities_created_total",
			Help: "Total number of entities created by the reconciler",
		},
		[]string{"entity"}, // "account", "post", "media", "profile_pic", "tag", "highlight"
	)

	IndexerRerunsCoalesced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insta_archive_indexer_reruns_coalesced_total",
			Help: "Number of trigger requests folded into a pending rerun",
		},
	)
)

// Watcher and cache metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insta_archive_watcher_events_total",
			Help: "Total number of filesystem events seen by the watcher",
		},
		[]string{"type"}, // "create", "write", "remove", "rename", "chmod", "unknown"
	)

	WatcherErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "insta_archive_watcher_errors_total",
			Help: "Total number of watcher errors",
		},
	)

	CacheRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insta_archive_cache_requests_total",
			Help: "Read cache lookups by outcome",
		},
		[]string{"outcome"}, // "hit", "miss", "expired"
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "insta_archive_cache_entries",
			Help: "Number of entries currently held by the read cache",
		},
	)
)
