package scan

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/metrics"
	"github.com/ajitpratap0/sleuth/pkg/observability"
)

// UnitState tracks where a unit is in its lifecycle.
type UnitState int32

const (
	UnitPending UnitState = iota
	UnitColumnSelection
	UnitStreaming
	UnitRetrying
	UnitCompleted
	UnitTimedOut
	UnitFailed
)

// String returns the state name for logs
func (s UnitState) String() string {
	switch s {
	case UnitPending:
		return "pending"
	case UnitColumnSelection:
		return "column_selection"
	case UnitStreaming:
		return "streaming"
	case UnitRetrying:
		return "retrying"
	case UnitCompleted:
		return "completed"
	case UnitTimedOut:
		return "timed_out"
	case UnitFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// unitRun is one unit's trip through the state machine.
type unitRun struct {
	unit  string
	state int32
}

func (u *unitRun) setState(s UnitState) {
	atomic.StoreInt32(&u.state, int32(s))
}

// State returns the unit's current state.
func (u *unitRun) State() UnitState {
	return UnitState(atomic.LoadInt32(&u.state))
}

// coordinator drives units through the state machine. One coordinator
// serves the run; its fields are all either immutable after construction
// or internally synchronized.
type coordinator struct {
	adapter        core.Adapter
	cfg            *config.ScanConfig
	matcher        *matcher
	stats          *Stats
	progress       *Progress
	monitor        *MemoryMonitor
	policy         *base.RetryPolicy
	tracer         *observability.ScanTracer
	throughput     *metrics.ThroughputTracker
	creditCardOnly bool
	log            *zap.Logger
}

// ScanUnit drives one unit to a terminal state. Only fatal errors and run
// cancellation propagate; timeouts and unit-level failures are absorbed,
// counted, and logged so the rest of the run continues.
func (c *coordinator) ScanUnit(ctx context.Context, unit string) error {
	unitCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeouts.Unit)
	defer cancel()

	u := &unitRun{unit: unit, state: int32(UnitPending)}
	started := time.Now()
	metrics.ActiveUnits.Inc()
	defer metrics.ActiveUnits.Dec()

	attempts := c.policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			u.setState(UnitRetrying)
			c.stats.Retry()
			metrics.Retries.WithLabelValues(c.adapter.Name()).Inc()
			c.log.Warn("unit retrying",
				zap.String("unit", unit),
				zap.Int("attempt", attempt+1),
				zap.Error(err))

			timer := time.NewTimer(c.policy.Delay(attempt - 1))
			select {
			case <-unitCtx.Done():
				timer.Stop()
				err = base.ClassifyNet(unitCtx.Err(), "unit scan")
			case <-timer.C:
				err = nil
			}
			if err != nil {
				break
			}
		}

		err = c.runAttempt(unitCtx, u)
		if err == nil {
			break
		}
		if unitCtx.Err() != nil {
			// The unit deadline (or the run) ended; retrying would
			// start against a dead context.
			break
		}
		if !errors.IsRetryable(err) {
			break
		}
		// Retryable: the next attempt restarts at column selection and
		// the pooled driver hands back a fresh connection.
	}

	return c.finish(ctx, u, started, err)
}

// runAttempt executes one pass over the unit: column selection then batch
// streaming for relational backends, a bounded sample fetch otherwise.
func (c *coordinator) runAttempt(ctx context.Context, u *unitRun) error {
	scan := func(ctx context.Context) error {
		switch a := c.adapter.(type) {
		case core.Streamer:
			return c.streamUnit(ctx, u, a)
		case core.Sampler:
			return c.sampleUnit(ctx, u, a)
		default:
			return errors.Newf(errors.ErrorTypeInternal,
				"adapter %s implements neither streaming nor sampling", c.adapter.Name())
		}
	}

	if c.tracer != nil {
		return c.tracer.TraceUnit(ctx, u.unit, scan)
	}
	return scan(ctx)
}

// streamUnit runs the relational path: select columns, open a cursor over
// the survivors, and feed batches through the matcher until the cursor is
// exhausted or the sample limit is reached.
func (c *coordinator) streamUnit(ctx context.Context, u *unitRun, s core.Streamer) error {
	u.setState(UnitColumnSelection)

	all, err := s.Columns(ctx, u.unit)
	if err != nil {
		return err
	}

	columns, skipped := SelectColumns(all, c.creditCardOnly, c.cfg.Optimization.ColumnOptimization)
	c.stats.ColumnsScanned(len(columns))
	c.stats.ColumnsSkipped(skipped)
	if len(columns) == 0 {
		c.log.Debug("no scannable columns", zap.String("unit", u.unit))
		return nil
	}

	cursor, err := s.OpenCursor(ctx, u.unit, columns)
	if err != nil {
		return err
	}
	defer cursor.Close() //nolint:errcheck // read-only cursor

	u.setState(UnitStreaming)

	controller := NewBatchController(c.cfg.Performance, c.cfg.Optimization.AdaptiveBatching)
	adapterName := c.adapter.Name()

	sampleLimit := 0
	if c.cfg.Performance.SampleOnly {
		sampleLimit = c.cfg.Performance.SampleSize
	}

	fetched := 0
	for {
		if err := ctx.Err(); err != nil {
			return base.ClassifyNet(err, "stream")
		}

		size := controller.Size()
		if sampleLimit > 0 {
			if remaining := sampleLimit - fetched; remaining < size {
				size = remaining
			}
			if size <= 0 {
				break
			}
		}

		start := time.Now()
		rows, err := cursor.Next(ctx, size)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			break
		}

		c.matcher.processBatch(u.unit, columns, rows)

		elapsed := time.Since(start)
		controller.Observe(elapsed)
		c.stats.ObserveBatch(elapsed)
		metrics.BatchDuration.WithLabelValues(adapterName).Observe(elapsed.Seconds())
		metrics.RowsProcessed.WithLabelValues(adapterName).Add(float64(len(rows)))
		if c.throughput != nil {
			c.throughput.Increment(int64(len(rows)))
		}
		c.monitor.AfterBatch()

		fetched += len(rows)
	}
	return nil
}

// sampleUnit runs the simple path for backends without column structure.
func (c *coordinator) sampleUnit(ctx context.Context, u *unitRun, sampler core.Sampler) error {
	u.setState(UnitStreaming)

	start := time.Now()
	samples, err := sampler.FetchSamples(ctx, u.unit, c.cfg.Performance.SampleSize)
	if err != nil {
		return err
	}

	c.matcher.checkSamples(u.unit, samples)

	elapsed := time.Since(start)
	c.stats.ObserveBatch(elapsed)
	metrics.BatchDuration.WithLabelValues(c.adapter.Name()).Observe(elapsed.Seconds())
	if c.throughput != nil {
		c.throughput.Increment(int64(len(samples)))
	}
	c.monitor.AfterBatch()
	return nil
}

// finish moves the unit to its terminal state, updates shared progress,
// and decides what the run sees: nil for absorbed outcomes, the error
// itself for fatal failures and run cancellation.
func (c *coordinator) finish(runCtx context.Context, u *unitRun, started time.Time, err error) error {
	adapterName := c.adapter.Name()
	elapsed := time.Since(started)
	metrics.UnitDuration.WithLabelValues(adapterName).Observe(elapsed.Seconds())

	if err != nil && runCtx.Err() != nil && !errors.IsFatal(err) {
		// The whole run is shutting down; the unit never reached a
		// terminal state of its own.
		return err
	}

	timedOut := errors.IsType(err, errors.ErrorTypeTimeout) ||
		stderrors.Is(err, context.DeadlineExceeded)

	var status string
	switch {
	case err == nil:
		u.setState(UnitCompleted)
		c.stats.UnitCompleted()
		status = "completed"
	case errors.IsFatal(err):
		u.setState(UnitFailed)
		status = "failed"
	case timedOut:
		u.setState(UnitTimedOut)
		c.stats.UnitSkipped()
		status = "timeout"
		c.log.Warn("unit timed out, skipping",
			zap.String("unit", u.unit),
			zap.Duration("after", elapsed))
		err = nil
	default:
		u.setState(UnitFailed)
		c.stats.UnitFailed()
		c.stats.ConnectionError()
		metrics.ConnectionErrors.WithLabelValues(adapterName).Inc()
		status = "failed"
		c.log.Warn("unit failed",
			zap.String("unit", u.unit),
			zap.Error(err))
		err = nil
	}
	metrics.UnitsScanned.WithLabelValues(adapterName, status).Inc()

	done := c.progress.UnitDone()
	c.log.Info("unit finished",
		zap.String("unit", u.unit),
		zap.String("status", status),
		zap.Int64("completed", done),
		zap.Int64("total", c.progress.Total()),
		zap.Float64("percent", c.progress.Percent()),
		zap.Duration("eta", c.progress.ETA()),
		zap.Int64("matches", c.stats.MatchesFound()))

	return err
}
