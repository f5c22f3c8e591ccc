package scan

import (
	"sync"
	"time"

	"github.com/ajitpratap0/sleuth/pkg/config"
)

const (
	// batchTuneInterval is how many batches pass between adjustments.
	batchTuneInterval = 5
	// batchTargetTime is the wall-clock duration one batch should take.
	batchTargetTime = 500 * time.Millisecond
)

// BatchController adapts a unit's fetch size to observed batch latency.
// Simple proportional feedback: markedly slow batches shrink the size,
// markedly fast ones grow it, always inside the configured bounds. Each
// streaming unit owns one controller.
type BatchController struct {
	mu       sync.Mutex
	current  int
	min      int
	max      int
	adaptive bool
	count    int
}

// NewBatchController seeds the controller from the performance section.
func NewBatchController(perf config.PerformanceConfig, adaptive bool) *BatchController {
	return &BatchController{
		current:  perf.ClampBatch(perf.FetchSize),
		min:      perf.MinBatchSize,
		max:      perf.MaxBatchSize,
		adaptive: adaptive,
	}
}

// Size returns the batch size to fetch next.
func (bc *BatchController) Size() int {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.current
}

// Observe records one batch's duration. Every batchTuneInterval batches
// the latest duration is compared to the target: slower than 1.5x shrinks
// the size by 20%, faster than 0.5x grows it by 20%, in between leaves it
// alone. The result is clamped to the configured min and max.
func (bc *BatchController) Observe(d time.Duration) {
	bc.mu.Lock()
	defer bc.mu.Unlock()

	if !bc.adaptive {
		return
	}

	bc.count++
	if bc.count%batchTuneInterval != 0 {
		return
	}

	switch {
	case d > batchTargetTime*3/2:
		bc.current = int(float64(bc.current) * 0.8)
	case d < batchTargetTime/2:
		bc.current = int(float64(bc.current) * 1.2)
	}

	if bc.current < bc.min {
		bc.current = bc.min
	}
	if bc.current > bc.max {
		bc.current = bc.max
	}
}
