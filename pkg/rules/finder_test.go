package rules

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFinder(t *testing.T, opts PatternOptions) *Finder {
	t.Helper()
	selected, err := NewCatalog().Patterns(opts)
	require.NoError(t, err)
	return NewFinder(selected)
}

func TestCheckLineAggregatesByRuleAndLocation(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email"}})

	f.CheckLine("contact a@b.com today", "users.email")
	f.CheckLine("or c@d.org instead", "users.email")
	f.CheckLine("a@b.com", "backup.email")

	matches := f.Matches()
	require.Len(t, matches, 2, "one entry per (rule, location) pair")

	// Sorted by location then name
	assert.Equal(t, "backup.email", matches[0].Location)
	assert.Equal(t, []string{"a@b.com"}, matches[0].Values)
	assert.Equal(t, "users.email", matches[1].Location)
	assert.Equal(t, []string{"a@b.com", "c@d.org"}, matches[1].Values)
}

func TestValuesDedupByNormalizedForm(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email"}})

	f.CheckLine("A@B.COM", "users.email")
	f.CheckLine("a@b.com", "users.email")
	f.CheckLine("maria@example.com", "users.email")

	matches := f.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, []string{"A@B.COM", "maria@example.com"}, matches[0].Values,
		"case variants collapse to the first value seen")
}

func TestRecordReportsNewValues(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email"}})
	rule := f.Rules()[0]

	assert.True(t, f.Record(rule, "a@b.com", "users.email"))
	assert.False(t, f.Record(rule, "A@B.COM", "users.email"), "normalized duplicate")
	assert.True(t, f.Record(rule, "a@b.com", "backup.email"), "same value, new location")
}

func TestDropRule(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email", "ssn"}})

	f.CheckLine("a@b.com", "users.email")
	f.CheckLine("123-45-6789", "users.ssn")
	require.Equal(t, 2, f.Count())

	f.DropRule("email")

	matches := f.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, "ssn", matches[0].Name)
}

func TestCheckTableData(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email", "ssn"}})

	rows := []map[string]string{
		{"email": "a@b.com", "ssn": "123-45-6789", "note": "nothing here"},
		{"email": "not-an-email", "ssn": "", "note": "also clean"},
	}
	f.CheckTableData("users", rows)

	matches := f.Matches()
	require.Len(t, matches, 2)
	assert.Equal(t, "users.email", matches[0].Location)
	assert.Equal(t, "email", matches[0].Name)
	assert.Equal(t, "users.ssn", matches[1].Location)
	assert.Equal(t, "ssn", matches[1].Name)
}

func TestTokenRuleRecordsWholeLine(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"connection_string"}})

	line := "postgresql://svc:hunter2@db:5432/prod"
	f.CheckLine(line, "config.value")

	matches := f.Matches()
	require.Len(t, matches, 1)
	assert.Equal(t, []string{line}, matches[0].Values)
}

func TestMatchesFor(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email"}})

	f.CheckLine("a@b.com", "exports/users.csv:3")
	f.CheckLine("c@d.org", "exports/orders.csv:9")
	f.CheckLine("e@f.net", "archive/old.csv:1")

	exports := f.MatchesFor("exports/")
	require.Len(t, exports, 2)
	for _, m := range exports {
		assert.Contains(t, m.Location, "exports/")
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"John Doe", "john doe"},
		{"  John   Doe  ", "john doe"},
		{"JOHN\tDOE", "john doe"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeValue(tt.in))
	}
}

func TestFinderConcurrentUse(t *testing.T) {
	f := newTestFinder(t, PatternOptions{Only: []string{"email"}})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.CheckLine(fmt.Sprintf("user%d-%d@example.com", n, j), fmt.Sprintf("t%d.email", n))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 8, f.Count(), "one aggregate per location")
	for _, m := range f.Matches() {
		assert.Len(t, m.Values, 100)
	}
}
