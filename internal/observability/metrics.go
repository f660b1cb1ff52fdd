// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Ingestion metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        *prometheus.HistogramVec
	AuctionsStored     prometheus.Counter
	StatisticsStored   prometheus.Counter
	RecordsSkipped     *prometheus.CounterVec
	SnapshotsProcessed *prometheus.CounterVec

	// Backfill metrics
	ItemsFetched      prometheus.Counter
	ItemFetchFailures *prometheus.CounterVec
	ItemsInFlight     prometheus.Gauge

	// Feed metrics
	FeedRequestLatency *prometheus.HistogramVec
	SnapshotBytes      prometheus.Histogram

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	LastSnapshotSeen  prometheus.Gauge
	ArchiveFailures   prometheus.Counter
}

// NewMetrics creates a new Metrics instance registered with reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "wow_auction_lab"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by mode and status",
		}, []string{"mode", "status"}),
		RunDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "run_duration_seconds",
			Help:      "Ingestion run duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"mode"}),
		AuctionsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "auctions_stored_total",
			Help:      "Total number of auction records stored",
		}),
		StatisticsStored: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "statistics_stored_total",
			Help:      "Total number of item statistics rows stored",
		}),
		RecordsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "records_skipped_total",
			Help:      "Total number of auction records excluded from statistics by reason",
		}, []string{"reason"}),
		SnapshotsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingestion",
			Name:      "snapshots_total",
			Help:      "Snapshots seen by outcome",
		}, []string{"outcome"}),

		ItemsFetched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "items_fetched_total",
			Help:      "Total number of item metadata documents fetched",
		}),
		ItemFetchFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "item_fetch_failures_total",
			Help:      "Total number of skipped item fetches by reason",
		}, []string{"reason"}),
		ItemsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "backfill",
			Name:      "items_in_flight",
			Help:      "Item fetches currently in progress",
		}),

		FeedRequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "request_latency_seconds",
			Help:      "Feed API request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		SnapshotBytes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "snapshot_bytes",
			Help:      "Size of downloaded snapshot bodies",
			Buckets:   prometheus.ExponentialBuckets(1<<16, 4, 8),
		}),

		LastSuccessfulRun: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful ingestion run",
		}),
		LastSnapshotSeen: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_snapshot_timestamp",
			Help:      "Unix timestamp (ms) of the newest snapshot located",
		}),
		ArchiveFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "archive_failures_total",
			Help:      "Total number of failed raw snapshot archive writes",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished ingestion run.
func RecordRun(mode, status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(mode, status).Inc()
	DefaultMetrics.RunDuration.WithLabelValues(mode).Observe(durationSeconds)
}

// RecordSnapshot records the outcome for a located snapshot.
func RecordSnapshot(outcome string, timestampMs int64) {
	DefaultMetrics.SnapshotsProcessed.WithLabelValues(outcome).Inc()
	DefaultMetrics.LastSnapshotSeen.Set(float64(timestampMs))
}

// RecordAuctionsStored adds n to the stored auctions counter.
func RecordAuctionsStored(n int) {
	DefaultMetrics.AuctionsStored.Add(float64(n))
}

// RecordStatisticsStored adds n to the stored statistics counter.
func RecordStatisticsStored(n int) {
	DefaultMetrics.StatisticsStored.Add(float64(n))
}

// RecordSkipped records records excluded from statistics.
func RecordSkipped(reason string, n int) {
	DefaultMetrics.RecordsSkipped.WithLabelValues(reason).Add(float64(n))
}

// RecordItemFetched increments the fetched items counter.
func RecordItemFetched() {
	DefaultMetrics.ItemsFetched.Inc()
}

// RecordItemFailure records a skipped item fetch.
func RecordItemFailure(reason string) {
	DefaultMetrics.ItemFetchFailures.WithLabelValues(reason).Inc()
}

// RecordFeedLatency records a feed request latency.
func RecordFeedLatency(endpoint string, seconds float64) {
	DefaultMetrics.FeedRequestLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordArchiveFailure increments the archive failure counter.
func RecordArchiveFailure() {
	DefaultMetrics.ArchiveFailures.Inc()
}

// MarkRunSucceeded sets the last successful run gauge to now.
func MarkRunSucceeded() {
	DefaultMetrics.LastSuccessfulRun.SetToCurrentTime()
}
