package scan

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatsSnapshotDerivesRates(t *testing.T) {
	s := NewStats()
	s.SetUnitsTotal(4)
	s.AddRows(1000)
	s.AddValues(800)
	s.AddMatch()
	s.AddMatch()

	for i := 0; i < 3; i++ {
		s.CacheHit()
	}
	s.CacheMiss()

	s.ColumnsScanned(6)
	s.ColumnsSkipped(2)

	s.ObserveBatch(100 * time.Millisecond)
	s.ObserveBatch(300 * time.Millisecond)
	s.ObserveBatch(200 * time.Millisecond)

	s.ObserveMemory(100)
	s.ObserveMemory(300)

	snap := s.Snapshot()
	assert.Equal(t, int64(1000), snap.RowsProcessed)
	assert.Equal(t, int64(2), snap.MatchesFound)
	assert.InDelta(t, 0.75, snap.CacheHitRate, 1e-9)
	assert.InDelta(t, 0.25, snap.ColumnSkipRate, 1e-9)
	assert.Equal(t, 100*time.Millisecond, snap.MinBatchTime)
	assert.Equal(t, 300*time.Millisecond, snap.MaxBatchTime)
	assert.Equal(t, 200*time.Millisecond, snap.AvgBatchTime)
	assert.InDelta(t, 200, snap.AvgMemoryMB, 1e-9)
	assert.InDelta(t, 300, snap.MaxMemoryMB, 1e-9)
	assert.Greater(t, snap.RowsPerSecond, 0.0)
}

func TestStatsConcurrentCounters(t *testing.T) {
	s := NewStats()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.AddRows(1)
				s.AddMatch()
				s.ObserveBatch(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Equal(t, int64(1000), snap.RowsProcessed)
	assert.Equal(t, int64(1000), snap.MatchesFound)
	assert.Equal(t, time.Millisecond, snap.AvgBatchTime)
}

func TestProgressETA(t *testing.T) {
	p := NewProgress(4)
	assert.Equal(t, int64(4), p.Total())
	assert.Equal(t, time.Duration(0), p.ETA(), "no estimate before the first unit lands")

	p.UnitDone()
	p.UnitDone()
	assert.Equal(t, int64(2), p.Completed())
	assert.InDelta(t, 50.0, p.Percent(), 1e-9)
	assert.Greater(t, p.ETA(), time.Duration(0))

	p.UnitDone()
	p.UnitDone()
	assert.Equal(t, time.Duration(0), p.ETA(), "nothing remaining")
	assert.InDelta(t, 100.0, p.Percent(), 1e-9)
}

func TestProgressZeroUnits(t *testing.T) {
	p := NewProgress(0)
	assert.InDelta(t, 100.0, p.Percent(), 1e-9)
	assert.Equal(t, time.Duration(0), p.ETA())
}
