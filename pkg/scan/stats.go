package scan

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates counters for one run. A single instance is created per
// run and injected into every unit's execution; all methods are safe for
// concurrent use.
type Stats struct {
	start time.Time

	rowsProcessed     int64
	valuesScanned     int64
	matchesFound      int64
	cacheHits         int64
	cacheMisses       int64
	earlyTerminations int64
	columnsScanned    int64
	columnsSkipped    int64
	connectionErrors  int64
	retries           int64
	unitsTotal        int64
	unitsCompleted    int64
	unitsSkipped      int64
	unitsFailed       int64

	mu         sync.Mutex
	batchTimes []time.Duration
	memSamples []float64
}

// NewStats creates run statistics starting now.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// SetUnitsTotal records how many units the run enumerated
func (s *Stats) SetUnitsTotal(n int) { atomic.StoreInt64(&s.unitsTotal, int64(n)) }

// AddRows counts processed rows
func (s *Stats) AddRows(n int) { atomic.AddInt64(&s.rowsProcessed, int64(n)) }

// AddValues counts evaluated values
func (s *Stats) AddValues(n int) { atomic.AddInt64(&s.valuesScanned, int64(n)) }

// AddMatch counts one found match
func (s *Stats) AddMatch() { atomic.AddInt64(&s.matchesFound, 1) }

// CacheHit counts one value-cache hit
func (s *Stats) CacheHit() { atomic.AddInt64(&s.cacheHits, 1) }

// CacheMiss counts one value-cache miss
func (s *Stats) CacheMiss() { atomic.AddInt64(&s.cacheMisses, 1) }

// EarlyTermination counts one early-rejected value
func (s *Stats) EarlyTermination() { atomic.AddInt64(&s.earlyTerminations, 1) }

// ColumnsScanned counts columns selected for scanning
func (s *Stats) ColumnsScanned(n int) { atomic.AddInt64(&s.columnsScanned, int64(n)) }

// ColumnsSkipped counts columns dropped by column optimization
func (s *Stats) ColumnsSkipped(n int) { atomic.AddInt64(&s.columnsSkipped, int64(n)) }

// ConnectionError counts one unrecoverable backend failure
func (s *Stats) ConnectionError() { atomic.AddInt64(&s.connectionErrors, 1) }

// Retry counts one retried backend operation
func (s *Stats) Retry() { atomic.AddInt64(&s.retries, 1) }

// UnitCompleted counts one unit finishing cleanly
func (s *Stats) UnitCompleted() { atomic.AddInt64(&s.unitsCompleted, 1) }

// UnitSkipped counts one unit abandoned by timeout
func (s *Stats) UnitSkipped() { atomic.AddInt64(&s.unitsSkipped, 1) }

// UnitFailed counts one unit exhausting its retries
func (s *Stats) UnitFailed() { atomic.AddInt64(&s.unitsFailed, 1) }

// MatchesFound returns the current match count
func (s *Stats) MatchesFound() int64 { return atomic.LoadInt64(&s.matchesFound) }

// ObserveBatch records one batch's wall-clock duration
func (s *Stats) ObserveBatch(d time.Duration) {
	s.mu.Lock()
	s.batchTimes = append(s.batchTimes, d)
	s.mu.Unlock()
}

// ObserveMemory records one process RSS sample in megabytes
func (s *Stats) ObserveMemory(mb float64) {
	s.mu.Lock()
	s.memSamples = append(s.memSamples, mb)
	s.mu.Unlock()
}

// Snapshot is the serializable view of the run counters with rates derived
// at capture time.
type Snapshot struct {
	Elapsed              time.Duration `json:"elapsed" yaml:"elapsed"`
	RowsProcessed        int64         `json:"rows_processed" yaml:"rows_processed"`
	ValuesScanned        int64         `json:"values_scanned" yaml:"values_scanned"`
	MatchesFound         int64         `json:"matches_found" yaml:"matches_found"`
	CacheHits            int64         `json:"cache_hits" yaml:"cache_hits"`
	CacheMisses          int64         `json:"cache_misses" yaml:"cache_misses"`
	CacheHitRate         float64       `json:"cache_hit_rate" yaml:"cache_hit_rate"`
	EarlyTerminations    int64         `json:"early_terminations" yaml:"early_terminations"`
	EarlyTerminationRate float64       `json:"early_termination_rate" yaml:"early_termination_rate"`
	ColumnsScanned       int64         `json:"columns_scanned" yaml:"columns_scanned"`
	ColumnsSkipped       int64         `json:"columns_skipped" yaml:"columns_skipped"`
	ColumnSkipRate       float64       `json:"column_skip_rate" yaml:"column_skip_rate"`
	ConnectionErrors     int64         `json:"connection_errors" yaml:"connection_errors"`
	Retries              int64         `json:"retries" yaml:"retries"`
	UnitsTotal           int64         `json:"units_total" yaml:"units_total"`
	UnitsCompleted       int64         `json:"units_completed" yaml:"units_completed"`
	UnitsSkipped         int64         `json:"units_skipped" yaml:"units_skipped"`
	UnitsFailed          int64         `json:"units_failed" yaml:"units_failed"`
	RowsPerSecond        float64       `json:"rows_per_second" yaml:"rows_per_second"`
	MatchesPerSecond     float64       `json:"matches_per_second" yaml:"matches_per_second"`
	AvgBatchTime         time.Duration `json:"avg_batch_time" yaml:"avg_batch_time"`
	MinBatchTime         time.Duration `json:"min_batch_time" yaml:"min_batch_time"`
	MaxBatchTime         time.Duration `json:"max_batch_time" yaml:"max_batch_time"`
	AvgMemoryMB          float64       `json:"avg_memory_mb" yaml:"avg_memory_mb"`
	MaxMemoryMB          float64       `json:"max_memory_mb" yaml:"max_memory_mb"`
}

// Snapshot captures the counters and derives rates.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Elapsed:           time.Since(s.start),
		RowsProcessed:     atomic.LoadInt64(&s.rowsProcessed),
		ValuesScanned:     atomic.LoadInt64(&s.valuesScanned),
		MatchesFound:      atomic.LoadInt64(&s.matchesFound),
		CacheHits:         atomic.LoadInt64(&s.cacheHits),
		CacheMisses:       atomic.LoadInt64(&s.cacheMisses),
		EarlyTerminations: atomic.LoadInt64(&s.earlyTerminations),
		ColumnsScanned:    atomic.LoadInt64(&s.columnsScanned),
		ColumnsSkipped:    atomic.LoadInt64(&s.columnsSkipped),
		ConnectionErrors:  atomic.LoadInt64(&s.connectionErrors),
		Retries:           atomic.LoadInt64(&s.retries),
		UnitsTotal:        atomic.LoadInt64(&s.unitsTotal),
		UnitsCompleted:    atomic.LoadInt64(&s.unitsCompleted),
		UnitsSkipped:      atomic.LoadInt64(&s.unitsSkipped),
		UnitsFailed:       atomic.LoadInt64(&s.unitsFailed),
	}

	if lookups := snap.CacheHits + snap.CacheMisses; lookups > 0 {
		snap.CacheHitRate = float64(snap.CacheHits) / float64(lookups)
	}
	if snap.ValuesScanned > 0 {
		snap.EarlyTerminationRate = float64(snap.EarlyTerminations) / float64(snap.ValuesScanned)
	}
	if total := snap.ColumnsScanned + snap.ColumnsSkipped; total > 0 {
		snap.ColumnSkipRate = float64(snap.ColumnsSkipped) / float64(total)
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.RowsPerSecond = float64(snap.RowsProcessed) / secs
		snap.MatchesPerSecond = float64(snap.MatchesFound) / secs
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.batchTimes) > 0 {
		var total time.Duration
		snap.MinBatchTime = s.batchTimes[0]
		for _, d := range s.batchTimes {
			total += d
			if d < snap.MinBatchTime {
				snap.MinBatchTime = d
			}
			if d > snap.MaxBatchTime {
				snap.MaxBatchTime = d
			}
		}
		snap.AvgBatchTime = total / time.Duration(len(s.batchTimes))
	}
	if len(s.memSamples) > 0 {
		var total float64
		for _, mb := range s.memSamples {
			total += mb
			if mb > snap.MaxMemoryMB {
				snap.MaxMemoryMB = mb
			}
		}
		snap.AvgMemoryMB = total / float64(len(s.memSamples))
	}

	return snap
}
