package scan

import (
	"sync/atomic"
	"time"
)

// Progress is the shared completion counter for one run. Units increment
// it as they reach a terminal state; the ETA derives from average elapsed
// time per completed unit.
type Progress struct {
	total     int64
	completed int64
	start     time.Time
}

// NewProgress starts tracking a run over total units.
func NewProgress(total int) *Progress {
	return &Progress{total: int64(total), start: time.Now()}
}

// UnitDone marks one unit terminal and returns the new completed count.
func (p *Progress) UnitDone() int64 {
	return atomic.AddInt64(&p.completed, 1)
}

// Completed returns how many units reached a terminal state.
func (p *Progress) Completed() int64 {
	return atomic.LoadInt64(&p.completed)
}

// Total returns the enumerated unit count.
func (p *Progress) Total() int64 {
	return p.total
}

// Percent returns completion as 0-100.
func (p *Progress) Percent() float64 {
	if p.total == 0 {
		return 100
	}
	return float64(p.Completed()) / float64(p.total) * 100
}

// Elapsed returns time since the run started.
func (p *Progress) Elapsed() time.Duration {
	return time.Since(p.start)
}

// ETA estimates remaining wall-clock time from elapsed time per completed
// unit. Zero until the first unit completes and once nothing remains.
func (p *Progress) ETA() time.Duration {
	done := p.Completed()
	if done == 0 {
		return 0
	}
	remaining := p.total - done
	if remaining <= 0 {
		return 0
	}
	perUnit := time.Since(p.start) / time.Duration(done)
	return perUnit * time.Duration(remaining)
}
