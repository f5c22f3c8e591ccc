package scan

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/adapter/base"
	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
	"github.com/ajitpratap0/sleuth/pkg/metrics"
	"github.com/ajitpratap0/sleuth/pkg/observability"
	"github.com/ajitpratap0/sleuth/pkg/rules"
)

// creditCardRule is the rule name whose solo selection narrows column
// scanning to textual columns only.
const creditCardRule = "credit_card"

// Scanner owns one run over one adapter. Construction selects the rule
// set; Run connects, enumerates units, and fans them out onto a bounded
// pool of workers. A Scanner is single-use: its finder and counters
// accumulate for exactly one Run.
type Scanner struct {
	adapter core.Adapter
	cfg     *config.ScanConfig
	finder  *rules.Finder
	stats   *Stats
	policy  *base.RetryPolicy
	ccOnly  bool
	log     *zap.Logger

	mu   sync.Mutex
	hits []Hit
}

// NewScanner builds a run over adapter with the rule selection, ad-hoc
// pattern, and custom rules file from the matching section of cfg. It
// fails on an invalid config, an invalid pattern, an unreadable rules
// file, or a selection that leaves nothing to match.
func NewScanner(a core.Adapter, cfg *config.ScanConfig) (*Scanner, error) {
	if a == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "adapter is required")
	}
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid scan config")
	}

	catalog := rules.NewCatalog()
	if cfg.Matching.RulesFile != "" {
		if err := rules.LoadFile(cfg.Matching.RulesFile, catalog); err != nil {
			return nil, err
		}
	}

	selected, err := catalog.Patterns(rules.PatternOptions{
		Only:      cfg.Matching.Only,
		Except:    cfg.Matching.Except,
		AdHoc:     cfg.Matching.Pattern,
		AdHocName: cfg.Matching.PatternName,
	})
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return nil, errors.New(errors.ErrorTypeConfig, "rule selection matches no rules")
	}

	ccOnly := true
	for _, r := range selected {
		if r.Name != creditCardRule {
			ccOnly = false
			break
		}
	}

	return &Scanner{
		adapter: a,
		cfg:     cfg,
		finder:  rules.NewFinder(selected),
		stats:   NewStats(),
		policy:  base.PolicyFromConfig(cfg.Reliability),
		ccOnly:  ccOnly,
		log: logger.Get().With(
			zap.String("adapter", a.Name()),
			zap.String("scan", cfg.Name)),
	}, nil
}

// Rules returns the rules this run matches against, in evaluation order.
func (s *Scanner) Rules() []*rules.Rule {
	return s.finder.Rules()
}

// Run executes the scan: connect under the retry policy, enumerate units,
// scan them on at most MaxConcurrentUnits workers, and assemble the
// aggregated result. Unit-level failures and timeouts are absorbed into
// the counters; a fatal error from any unit cancels the rest of the run
// and is returned instead of a result.
func (s *Scanner) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	s.log.Info("scan starting",
		zap.String("url", redactURL(s.cfg.URL)),
		zap.Int("rules", len(s.finder.Rules())),
		zap.Int("max_concurrent_units", s.cfg.Performance.MaxConcurrentUnits))

	if err := base.ConnectWithRetry(ctx, s.adapter.Name(), s.policy, s.adapter.Connect); err != nil {
		return nil, err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeouts.Connection)
		defer cancel()
		if err := s.adapter.Disconnect(dctx); err != nil {
			s.log.Warn("disconnect failed", zap.Error(err))
		}
	}()

	units, err := s.adapter.ListUnits(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "listing units failed")
	}
	s.stats.SetUnitsTotal(len(units))
	if len(units) == 0 {
		s.log.Warn("no units to scan")
		return s.result(), nil
	}
	s.log.Info("units enumerated", zap.Int("units", len(units)))

	progress := NewProgress(len(units))
	throughput := metrics.NewThroughputTracker(s.adapter.Name())

	var tracer *observability.ScanTracer
	if s.cfg.Observability.EnableTracing {
		tracer = observability.NewScanTracer(s.adapter.Name(),
			fmt.Sprintf("%s-%d", s.cfg.Name, started.Unix()))
	}

	co := &coordinator{
		adapter:        s.adapter,
		cfg:            s.cfg,
		matcher:        newMatcher(s.adapter.Name(), s.finder, s.cfg, s.stats, s.addHit),
		stats:          s.stats,
		progress:       progress,
		monitor:        NewMemoryMonitor(s.cfg.Memory, s.stats),
		policy:         s.policy,
		tracer:         tracer,
		throughput:     throughput,
		creditCardOnly: s.ccOnly,
		log:            s.log,
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopReporting := make(chan struct{})
	go s.reportProgress(progress, throughput, stopReporting)

	// One token per in-flight unit; fatal failures cancel runCtx so
	// queued units drain without starting.
	sem := make(chan struct{}, s.cfg.Performance.MaxConcurrentUnits)
	var wg sync.WaitGroup
	var once sync.Once
	var runErr error

	for _, unit := range units {
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(unit string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-runCtx.Done():
				return
			}
			defer func() { <-sem }()

			if err := co.ScanUnit(runCtx, unit); err != nil {
				once.Do(func() {
					runErr = err
					cancel()
				})
			}
		}(unit)
	}
	wg.Wait()
	close(stopReporting)

	if runErr != nil {
		s.log.Error("scan aborted", zap.Error(runErr), zap.Duration("elapsed", time.Since(started)))
		return nil, runErr
	}

	result := s.result()
	s.log.Info("scan complete",
		zap.Duration("elapsed", time.Since(started)),
		zap.Int("matches", len(result.Matches)),
		zap.Int64("rows", result.Snapshot.RowsProcessed),
		zap.Int64("units_completed", result.Snapshot.UnitsCompleted),
		zap.Int64("units_skipped", result.Snapshot.UnitsSkipped),
		zap.Int64("units_failed", result.Snapshot.UnitsFailed))
	return result, nil
}

// reportProgress logs completion and throughput every progress interval
// until the run finishes. Flushing the tracker also refreshes the
// throughput gauge.
func (s *Scanner) reportProgress(p *Progress, t *metrics.ThroughputTracker, stop <-chan struct{}) {
	interval := s.cfg.Observability.ProgressInterval
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			t.GetAndReset()
			return
		case <-ticker.C:
			s.log.Info("scan progress",
				zap.Int64("completed", p.Completed()),
				zap.Int64("total", p.Total()),
				zap.Float64("percent", p.Percent()),
				zap.Duration("eta", p.ETA()),
				zap.Float64("rows_per_second", t.GetAndReset()),
				zap.Int64("matches", s.stats.MatchesFound()))
		}
	}
}

// redactURL strips the password from a source URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if _, has := u.User.Password(); has {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

func (s *Scanner) addHit(h Hit) {
	s.mu.Lock()
	s.hits = append(s.hits, h)
	s.mu.Unlock()
}

func (s *Scanner) result() *Result {
	s.mu.Lock()
	hits := s.hits
	s.hits = nil
	s.mu.Unlock()

	return &Result{
		Matches:  s.finder.Matches(),
		Hits:     hits,
		Snapshot: s.stats.Snapshot(),
	}
}
