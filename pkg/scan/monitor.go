package scan

import (
	"os"
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/logger"
	"github.com/ajitpratap0/sleuth/pkg/metrics"
)

// MemoryMonitor samples process RSS during streaming and forces a garbage
// collection when it crosses the configured high-water mark. A nil monitor
// is valid and does nothing, so callers never branch on the config.
type MemoryMonitor struct {
	proc        *process.Process
	interval    int
	thresholdMB float64
	stats       *Stats
	log         *zap.Logger

	mu      sync.Mutex
	batches int
}

// NewMemoryMonitor creates a monitor from the memory section, or nil when
// monitoring is disabled or the process handle cannot be opened.
func NewMemoryMonitor(cfg config.MemoryConfig, stats *Stats) *MemoryMonitor {
	if !cfg.EnableMonitor {
		return nil
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		logger.Warn("memory monitor unavailable", zap.Error(err))
		return nil
	}

	interval := cfg.CheckIntervalBatches
	if interval < 1 {
		interval = 1
	}

	return &MemoryMonitor{
		proc:        proc,
		interval:    interval,
		thresholdMB: float64(cfg.GCThresholdMB),
		stats:       stats,
		log:         logger.Get().With(zap.String("component", "memory_monitor")),
	}
}

// AfterBatch counts one processed batch and samples memory every interval
// batches. Safe for concurrent use across units.
func (mm *MemoryMonitor) AfterBatch() {
	if mm == nil {
		return
	}

	mm.mu.Lock()
	mm.batches++
	due := mm.batches%mm.interval == 0
	mm.mu.Unlock()

	if due {
		mm.Sample()
	}
}

// Sample records the current RSS and forces a GC above the threshold,
// logging the footprint before and after so the reclaim is visible.
func (mm *MemoryMonitor) Sample() {
	if mm == nil {
		return
	}

	info, err := mm.proc.MemoryInfo()
	if err != nil {
		mm.log.Debug("memory sample failed", zap.Error(err))
		return
	}

	mb := float64(info.RSS) / (1024 * 1024)
	mm.stats.ObserveMemory(mb)
	metrics.MemoryUsage.Set(float64(info.RSS))

	if mm.thresholdMB <= 0 || mb <= mm.thresholdMB {
		return
	}

	runtime.GC()

	after, err := mm.proc.MemoryInfo()
	if err != nil {
		return
	}
	afterMB := float64(after.RSS) / (1024 * 1024)
	mm.stats.ObserveMemory(afterMB)
	metrics.MemoryUsage.Set(float64(after.RSS))
	mm.log.Info("forced gc above memory threshold",
		zap.Float64("before_mb", mb),
		zap.Float64("after_mb", afterMB),
		zap.Float64("threshold_mb", mm.thresholdMB))
}
