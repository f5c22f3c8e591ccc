package scan

import (
	"sync/atomic"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/metrics"
	"github.com/ajitpratap0/sleuth/pkg/rules"
)

// matcher evaluates values against the active rule set. One matcher serves
// the whole run; unit goroutines call it concurrently. The optimized path
// layers early rejection, the value cache, per-pattern shape gates, and
// first-match-wins evaluation; every layer switches off individually from
// the optimization config.
type matcher struct {
	adapter string
	rules   []*rules.Rule
	byName  map[string]*rules.Rule
	finder  *rules.Finder
	cache   *ValueCache
	stats   *Stats
	opt     config.OptimizationConfig
	showAll bool
	onHit   func(Hit)

	// evaluations counts individual regex runs, for asserting that the
	// cache short-circuits re-evaluation.
	evaluations int64
}

func newMatcher(adapter string, finder *rules.Finder, cfg *config.ScanConfig, stats *Stats, onHit func(Hit)) *matcher {
	m := &matcher{
		adapter: adapter,
		rules:   finder.Rules(),
		byName:  make(map[string]*rules.Rule),
		finder:  finder,
		stats:   stats,
		opt:     cfg.Optimization,
		showAll: cfg.Matching.ShowAll,
		onHit:   onHit,
	}
	for _, r := range m.rules {
		m.byName[r.Name] = r
	}
	if cfg.Optimization.ValueCaching {
		m.cache = NewValueCache()
	}
	return m
}

// evaluate returns the names of the rules matching value. Cached results
// replay without touching a regex; a miss runs the gated pattern loop and
// memoizes whatever it found, including nothing.
func (m *matcher) evaluate(value string) []string {
	if !m.opt.PatternOptimization {
		return m.evaluateAll(value)
	}

	if m.opt.EarlyTermination && ShouldReject(value) {
		m.stats.EarlyTermination()
		metrics.EarlyTerminations.Inc()
		return nil
	}

	if m.cache != nil {
		if names, ok := m.cache.Get(value); ok {
			m.stats.CacheHit()
			metrics.CacheHits.Inc()
			return names
		}
		m.stats.CacheMiss()
		metrics.CacheMisses.Inc()
	}

	var matched []string
	for _, r := range m.rules {
		if !r.ShapeOK(value) {
			continue
		}
		atomic.AddInt64(&m.evaluations, 1)
		if r.Matches(value) {
			matched = append(matched, r.Name)
			if !m.showAll {
				break
			}
		}
	}

	if m.cache != nil {
		m.cache.Put(value, matched)
	}
	return matched
}

// evaluateAll is the unoptimized path: every pattern runs, nothing is
// gated or cached, and all matching rules are reported.
func (m *matcher) evaluateAll(value string) []string {
	var matched []string
	for _, r := range m.rules {
		atomic.AddInt64(&m.evaluations, 1)
		if r.Matches(value) {
			matched = append(matched, r.Name)
		}
	}
	return matched
}

// Evaluations returns how many regexes have run so far.
func (m *matcher) Evaluations() int64 {
	return atomic.LoadInt64(&m.evaluations)
}

// processBatch runs one fetched batch through evaluation. With batch
// optimization on, a per-batch set suppresses re-evaluating duplicate cell
// values; their matches are already aggregated, so the duplicates add
// nothing but counter noise.
func (m *matcher) processBatch(unit string, columns []core.Column, rows [][]string) {
	var processed map[string]bool
	if m.opt.BatchOptimization {
		processed = make(map[string]bool, len(rows))
	}

	for _, row := range rows {
		for i, value := range row {
			if i >= len(columns) || value == "" {
				continue
			}
			if processed != nil {
				if processed[value] {
					continue
				}
				processed[value] = true
			}
			m.checkCell(unit, columns[i], value)
		}
	}
	m.stats.AddRows(len(rows))
}

// checkCell evaluates one table cell. Matching rules record the whole cell
// value; the aggregation layer handles dedup across batches.
func (m *matcher) checkCell(unit string, col core.Column, value string) {
	m.stats.AddValues(1)

	for _, name := range m.evaluate(value) {
		r, ok := m.byName[name]
		if !ok {
			continue
		}
		m.recordHit(r, value, Hit{
			Table:      unit,
			Column:     col.Name,
			Value:      value,
			Rule:       r.Name,
			Confidence: r.Confidence,
			DataType:   col.Type,
		})
	}
}

// checkSamples feeds sampled values through the extraction path. Sampled
// backends yield free text where the interesting substring, not the whole
// value, is the match; they bypass the cell-level optimizations.
func (m *matcher) checkSamples(unit string, samples []core.Sample) {
	for _, s := range samples {
		if s.Value == "" {
			continue
		}
		m.stats.AddValues(1)

		for _, r := range m.rules {
			for _, v := range r.FindAll(s.Value) {
				m.recordHit(r, v, Hit{
					Path:       s.Path,
					Table:      unit,
					Column:     s.Column,
					Value:      v,
					Rule:       r.Name,
					Confidence: r.Confidence,
				})
			}
		}
	}
}

// recordHit aggregates into the finder and streams the hit when its value
// is new for the (rule, location) pair.
func (m *matcher) recordHit(r *rules.Rule, value string, hit Hit) {
	m.stats.AddMatch()
	metrics.MatchesFound.WithLabelValues(m.adapter, r.Name, string(r.Confidence)).Inc()

	if m.finder.Record(r, value, hit.Location()) && m.onHit != nil {
		m.onHit(hit)
	}
}
