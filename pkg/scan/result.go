package scan

import (
	"github.com/ajitpratap0/sleuth/pkg/rules"
)

// Hit is one per-occurrence emission record, streamed as values match and
// kept alongside the aggregated matches. Table holds the scan unit (a
// table, collection, topic, or index); Path locates the value inside
// backends that address by path or key instead, such as files, objects,
// and key-value entries.
type Hit struct {
	Path       string           `json:"path,omitempty" yaml:"path,omitempty"`
	Table      string           `json:"table,omitempty" yaml:"table,omitempty"`
	Column     string           `json:"column,omitempty" yaml:"column,omitempty"`
	Value      string           `json:"value" yaml:"value"`
	Rule       string           `json:"rule" yaml:"rule"`
	Confidence rules.Confidence `json:"confidence" yaml:"confidence"`
	DataType   string           `json:"data_type,omitempty" yaml:"data_type,omitempty"`
}

// Location renders the hit's position the way the aggregated matches key
// it: "table.column" for structured backends, the path otherwise.
func (h Hit) Location() string {
	switch {
	case h.Table != "" && h.Column != "":
		return h.Table + "." + h.Column
	case h.Table != "" && h.Path != "" && h.Path != h.Table:
		return h.Table + ":" + h.Path
	case h.Path != "":
		return h.Path
	default:
		return h.Table
	}
}

// Result is everything one run produced.
type Result struct {
	// Matches are the aggregated (rule, location) entries with their
	// deduplicated values, ordered by location then rule name.
	Matches []rules.Match `json:"matches" yaml:"matches"`
	// Hits are the flat per-occurrence records in the order values
	// matched. A value deduplicated by the aggregation still appears
	// here once per location it was first seen at.
	Hits []Hit `json:"hits,omitempty" yaml:"hits,omitempty"`
	// Snapshot carries the run counters and derived rates.
	Snapshot Snapshot `json:"snapshot" yaml:"snapshot"`
}
