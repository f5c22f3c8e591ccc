// Package metrics provides performance tracking and observability for
// Sleuth using Prometheus metrics. It offers collectors for scan
// throughput, match counts, cache efficiency, and adapter health.
//
// # Overview
//
// The metrics package provides:
//   - Prometheus-compatible metrics collection
//   - Pre-defined metrics for scan operations
//   - Throughput tracking utilities
//   - Thread-safe metric recording
//   - Automatic metric registration
//
// # Basic Usage
//
//	// Record scanned rows
//	metrics.RowsProcessed.WithLabelValues("postgres").Add(10000)
//
//	// Track batch latency
//	timer := metrics.NewTimer("fetch_batch")
//	rows := fetchBatch()
//	metrics.BatchDuration.WithLabelValues("postgres").Observe(timer.Stop().Seconds())
//
//	// Track throughput
//	tracker := metrics.NewThroughputTracker("postgres")
//	for batch := range batches {
//	    scan(batch)
//	    tracker.Increment(int64(len(batch)))
//	}
//	rowsPerSec := tracker.GetAndReset()
//
// # Metric Types
//
// Counter: Monotonically increasing values (e.g., total rows scanned)
// Gauge: Values that can go up or down (e.g., units in flight)
// Histogram: Distribution of values (e.g., batch durations)
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RowsProcessed tracks the total number of rows scanned.
	// Labels: adapter (source type)
	//
	// Example:
	//	metrics.RowsProcessed.WithLabelValues("postgres").Add(10000)
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_rows_processed_total",
			Help: "Total number of rows scanned",
		},
		[]string{"adapter"},
	)

	// MatchesFound tracks matches by rule and confidence tier.
	// Labels: adapter, rule (e.g. email, credit_card), confidence
	MatchesFound = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_matches_found_total",
			Help: "Total number of sensitive values matched",
		},
		[]string{"adapter", "rule", "confidence"},
	)

	// BatchDuration tracks the distribution of batch fetch-and-match
	// durations in seconds. The buckets bracket the adaptive sizing
	// target of 0.5s per batch.
	BatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sleuth_batch_duration_seconds",
			Help: "Batch fetch and match duration in seconds",
			Buckets: []float64{
				0.01, // tiny batches
				0.05,
				0.1,
				0.25,
				0.5, // adaptive target
				1,
				2.5,
				5,
				10, // pathological batches
			},
		},
		[]string{"adapter"},
	)

	// UnitDuration tracks end-to-end unit scan durations in seconds
	UnitDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sleuth_unit_duration_seconds",
			Help:    "Unit scan duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"adapter"},
	)

	// UnitsScanned tracks unit outcomes.
	// Labels: adapter, status (completed, skipped, timeout, failed)
	UnitsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_units_scanned_total",
			Help: "Total number of units scanned by outcome",
		},
		[]string{"adapter", "status"},
	)

	// ActiveUnits tracks how many units are scanning right now
	ActiveUnits = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sleuth_active_units",
			Help: "Number of units currently being scanned",
		},
	)

	// CacheHits counts value cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_value_cache_hits_total",
			Help: "Total value cache hits",
		},
	)

	// CacheMisses counts value cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_value_cache_misses_total",
			Help: "Total value cache misses",
		},
	)

	// EarlyTerminations counts values rejected before any rule ran
	EarlyTerminations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sleuth_early_terminations_total",
			Help: "Total values rejected by the early termination filter",
		},
	)

	// ColumnsSkipped tracks columns dropped during selection.
	// Labels: reason (identifier, numeric, type)
	ColumnsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_columns_skipped_total",
			Help: "Total columns excluded from scanning",
		},
		[]string{"reason"},
	)

	// ConnectionErrors counts failed connection attempts
	ConnectionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_connection_errors_total",
			Help: "Total connection errors",
		},
		[]string{"adapter"},
	)

	// Retries counts retry attempts after transient failures
	Retries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sleuth_retries_total",
			Help: "Total retry attempts",
		},
		[]string{"adapter"},
	)

	// MemoryUsage tracks process resident memory in bytes
	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sleuth_memory_usage_bytes",
			Help: "Process resident memory in bytes",
		},
	)

	// Throughput tracks rows per second per adapter
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sleuth_throughput_rows_per_second",
			Help: "Current scan throughput in rows per second",
		},
		[]string{"adapter"},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
// It captures the start time on creation and calculates elapsed time on stop.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
//
// Example:
//
//	timer := metrics.NewTimer("fetch_batch")
//	rows := fetchBatch()
//	logger.Debug("batch fetched", zap.Duration("duration", timer.Stop()))
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Stop stops the timer and returns the elapsed duration since creation.
// The timer can be stopped multiple times, each returning the total
// elapsed time since creation.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker tracks scan throughput (rows per second) over time
// windows. It updates the Throughput gauge when queried. Thread-safe
// for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64     // Rows counted since last reset
	lastReset time.Time // Time of last reset
	adapter   string    // Adapter name used as the metric label
}

// NewThroughputTracker creates a new throughput tracker for an adapter.
//
// Example:
//
//	tracker := metrics.NewThroughputTracker("postgres")
//	for batch := range batches {
//	    scan(batch)
//	    tracker.Increment(int64(len(batch)))
//	}
//	rowsPerSec := tracker.GetAndReset()
//	logger.Info("throughput", zap.Float64("rows_per_sec", rowsPerSec))
func NewThroughputTracker(adapter string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		adapter:   adapter,
	}
}

// Increment adds n to the row count. Safe for concurrent use.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset calculates the current throughput (rows/second),
// updates the Prometheus gauge, resets the counter, and returns
// the calculated throughput. Safe for concurrent use.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	Throughput.WithLabelValues(t.adapter).Set(throughput)

	return throughput
}
