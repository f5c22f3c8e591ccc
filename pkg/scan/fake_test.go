package scan

import (
	"context"
	"sync"
	"time"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
)

func testConfig() *config.ScanConfig {
	cfg := config.NewScanConfig("fake://test")
	cfg.Reliability.RetryDelay = time.Millisecond
	cfg.Reliability.MaxRetryDelay = 5 * time.Millisecond
	cfg.Observability.ProgressInterval = 0
	cfg.Memory.EnableMonitor = false
	return cfg
}

// fakeStreamer is an in-memory relational backend. Rows are stored full
// width, aligned with the declared columns; cursors project down to the
// columns the engine asked for, the way a real backend would.
type fakeStreamer struct {
	units    []string
	cols     map[string][]core.Column
	rows     map[string][][]string
	hang     map[string]bool    // cursors that block until the context dies
	failures map[string][]error // consumed one per Columns call

	connectErrs []error // consumed one per Connect call

	mu       sync.Mutex
	connects int
	opened   map[string][]core.Column
}

func (f *fakeStreamer) Name() string { return "fake" }

func (f *fakeStreamer) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connects++
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeStreamer) Disconnect(ctx context.Context) error { return nil }

func (f *fakeStreamer) ListUnits(ctx context.Context) ([]string, error) {
	return f.units, nil
}

func (f *fakeStreamer) Columns(ctx context.Context, unit string) ([]core.Column, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if errs := f.failures[unit]; len(errs) > 0 {
		err := errs[0]
		f.failures[unit] = errs[1:]
		return nil, err
	}
	return f.cols[unit], nil
}

func (f *fakeStreamer) OpenCursor(ctx context.Context, unit string, columns []core.Column) (core.Cursor, error) {
	f.mu.Lock()
	if f.opened == nil {
		f.opened = make(map[string][]core.Column)
	}
	f.opened[unit] = append([]core.Column(nil), columns...)
	f.mu.Unlock()

	if f.hang[unit] {
		return &hangingCursor{}, nil
	}
	return &sliceCursor{rows: projectRows(f.rows[unit], f.cols[unit], columns)}, nil
}

// openedColumns returns the column names the engine requested for a unit.
func (f *fakeStreamer) openedColumns(unit string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for _, c := range f.opened[unit] {
		names = append(names, c.Name)
	}
	return names
}

func projectRows(rows [][]string, declared, selected []core.Column) [][]string {
	idx := make([]int, 0, len(selected))
	for _, sc := range selected {
		for i, dc := range declared {
			if dc.Name == sc.Name {
				idx = append(idx, i)
				break
			}
		}
	}
	out := make([][]string, len(rows))
	for i, row := range rows {
		projected := make([]string, len(idx))
		for j, k := range idx {
			if k < len(row) {
				projected[j] = row[k]
			}
		}
		out[i] = projected
	}
	return out
}

type sliceCursor struct {
	rows [][]string
	pos  int
}

func (c *sliceCursor) Next(ctx context.Context, n int) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	end := c.pos + n
	if end > len(c.rows) {
		end = len(c.rows)
	}
	batch := c.rows[c.pos:end]
	c.pos = end
	return batch, nil
}

func (c *sliceCursor) Close() error { return nil }

type hangingCursor struct{}

func (c *hangingCursor) Next(ctx context.Context, n int) ([][]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (c *hangingCursor) Close() error { return nil }

// fakeSampler is an in-memory unstructured backend.
type fakeSampler struct {
	units   []string
	samples map[string][]core.Sample

	mu     sync.Mutex
	limits []int
}

func (f *fakeSampler) Name() string { return "fakesample" }

func (f *fakeSampler) Connect(ctx context.Context) error { return nil }

func (f *fakeSampler) Disconnect(ctx context.Context) error { return nil }

func (f *fakeSampler) ListUnits(ctx context.Context) ([]string, error) {
	return f.units, nil
}

func (f *fakeSampler) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	s := f.samples[unit]
	if len(s) > limit {
		s = s[:limit]
	}
	return s, nil
}
