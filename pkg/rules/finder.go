package rules

import (
	"sort"
	"strings"
	"sync"
)

// Match is the set of values one rule found at one location. Matches
// are keyed by (rule name, location); values are deduplicated by
// their normalized form so "John Doe" and "john  doe" count once.
type Match struct {
	Name        string     `json:"name" yaml:"name"`
	DisplayName string     `json:"display_name" yaml:"display_name"`
	Confidence  Confidence `json:"confidence" yaml:"confidence"`
	Location    string     `json:"location" yaml:"location"`
	Values      []string   `json:"values" yaml:"values"`
}

// Finder aggregates matches across an entire run. Safe for concurrent
// use; unit scans running in parallel feed the same finder.
type Finder struct {
	rules []*Rule

	mu      sync.Mutex
	matches map[string]*Match
	seen    map[string]map[string]bool
}

// NewFinder creates a finder over an already selected rule set,
// typically the result of Catalog.Patterns.
func NewFinder(selected []*Rule) *Finder {
	return &Finder{
		rules:   selected,
		matches: make(map[string]*Match),
		seen:    make(map[string]map[string]bool),
	}
}

// Rules returns the rule set the finder evaluates
func (f *Finder) Rules() []*Rule {
	return f.rules
}

// CheckLine evaluates every rule against one value and records hits
// under the given location.
func (f *Finder) CheckLine(line, location string) {
	for _, rule := range f.rules {
		for _, value := range rule.FindAll(line) {
			f.Record(rule, value, location)
		}
	}
}

// CheckTableData evaluates every string cell of rows, recording
// matches under "table.column" locations.
func (f *Finder) CheckTableData(table string, rows []map[string]string) {
	for _, row := range rows {
		for column, value := range row {
			if value == "" {
				continue
			}
			f.CheckLine(value, table+"."+column)
		}
	}
}

// Record upserts a match directly, bypassing regex evaluation. The scan
// engine uses it to replay cache hits. The first hit for a (rule,
// location) key creates the entry; later hits append values not already
// present in normalized form. Returns true when the value was newly
// added.
func (f *Finder) Record(rule *Rule, value, location string) bool {
	key := rule.Name + ":" + location

	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.matches[key]
	if !ok {
		m = &Match{
			Name:        rule.Name,
			DisplayName: rule.DisplayName,
			Confidence:  rule.Confidence,
			Location:    location,
		}
		f.matches[key] = m
		f.seen[key] = make(map[string]bool)
	}

	normalized := NormalizeValue(value)
	if f.seen[key][normalized] {
		return false
	}
	f.seen[key][normalized] = true
	m.Values = append(m.Values, value)
	return true
}

// DropRule discards every aggregated match for a rule name. Removing a
// custom rule from the catalog mid-run calls this so its pending matches
// do not survive the rule.
func (f *Finder) DropRule(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for key, m := range f.matches {
		if m.Name == name {
			delete(f.matches, key)
			delete(f.seen, key)
		}
	}
}

// Matches returns all aggregated matches ordered by location then
// rule name, so output is stable across runs.
func (f *Finder) Matches() []Match {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Match, 0, len(f.matches))
	for _, m := range f.matches {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Location != out[j].Location {
			return out[i].Location < out[j].Location
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// MatchesFor returns the matches whose location starts with prefix,
// e.g. all matches inside one file or one table.
func (f *Finder) MatchesFor(prefix string) []Match {
	var out []Match
	for _, m := range f.Matches() {
		if strings.HasPrefix(m.Location, prefix) {
			out = append(out, m)
		}
	}
	return out
}

// Count returns how many (rule, location) entries exist
func (f *Finder) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.matches)
}

// NormalizeValue folds a value for deduplication: surrounding and
// repeated whitespace collapses to single spaces and the result is
// lowercased.
func NormalizeValue(value string) string {
	return strings.ToLower(strings.Join(strings.Fields(value), " "))
}
