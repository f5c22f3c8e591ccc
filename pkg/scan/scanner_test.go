package scan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/errors"
)

func TestScannerFindsEmailAndSkipsNumericColumn(t *testing.T) {
	adapter := &fakeStreamer{
		units: []string{"users"},
		cols: map[string][]core.Column{
			"users": {
				{Name: "id", Type: "NUMBER"},
				{Name: "email", Type: "VARCHAR2(255)"},
			},
		},
		rows: map[string][][]string{
			"users": {
				{"1", "a@b.com"},
				{"2", "not-an-email"},
			},
		},
	}

	cfg := testConfig()
	cfg.Matching.Only = []string{"email"}

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, "email", m.Name)
	assert.Equal(t, "users.email", m.Location)
	assert.Equal(t, []string{"a@b.com"}, m.Values)

	// The numeric id column must never travel over the wire.
	assert.Equal(t, []string{"email"}, adapter.openedColumns("users"))

	assert.Equal(t, int64(1), result.Snapshot.UnitsCompleted)
	assert.Equal(t, int64(2), result.Snapshot.RowsProcessed)
}

func TestScannerDeduplicatesRepeatedValueInBatch(t *testing.T) {
	const card = "4111-1111-1111-1111"
	rows := make([][]string, 500)
	for i := range rows {
		rows[i] = []string{card}
	}

	adapter := &fakeStreamer{
		units: []string{"payments"},
		cols: map[string][]core.Column{
			"payments": {{Name: "note", Type: "VARCHAR2(64)"}},
		},
		rows: map[string][][]string{"payments": rows},
	}

	s, err := NewScanner(adapter, testConfig())
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, "credit_card", m.Name)
	assert.Equal(t, "payments.note", m.Location)
	assert.Equal(t, []string{card}, m.Values)

	// All 500 rows land in one batch; the batch-level set suppresses
	// every repeat after the first.
	assert.Equal(t, int64(1), result.Snapshot.MatchesFound)
	assert.Equal(t, int64(1), result.Snapshot.ValuesScanned)
	assert.Equal(t, int64(500), result.Snapshot.RowsProcessed)
}

func TestScannerTimeoutSkipsUnitAndKeepsOtherMatches(t *testing.T) {
	adapter := &fakeStreamer{
		units: []string{"slow", "fast"},
		cols: map[string][]core.Column{
			"slow": {{Name: "payload", Type: "TEXT"}},
			"fast": {{Name: "contact", Type: "TEXT"}},
		},
		rows: map[string][][]string{
			"fast": {{"reach me at jane.roe@example.org today"}},
		},
		hang: map[string]bool{"slow": true},
	}

	cfg := testConfig()
	cfg.Timeouts.Unit = 50 * time.Millisecond

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Snapshot.UnitsSkipped)
	assert.Equal(t, int64(1), result.Snapshot.UnitsCompleted)
	assert.Equal(t, int64(0), result.Snapshot.UnitsFailed)

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "email", result.Matches[0].Name)
	assert.Equal(t, "fast.contact", result.Matches[0].Location)
}

func TestScannerCreditCardOnlyRestrictsToTextualColumns(t *testing.T) {
	adapter := &fakeStreamer{
		units: []string{"accounts"},
		cols: map[string][]core.Column{
			"accounts": {
				{Name: "balance", Type: "DECIMAL(10,2)"},
				{Name: "notes", Type: "VARCHAR2(200)"},
			},
		},
		rows: map[string][][]string{
			"accounts": {
				{"14.50", "4111111111111111"},
			},
		},
	}

	cfg := testConfig()
	cfg.Matching.Only = []string{"credit_card"}

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"notes"}, adapter.openedColumns("accounts"))

	require.Len(t, result.Matches, 1)
	assert.Equal(t, "credit_card", result.Matches[0].Name)
	assert.Equal(t, "accounts.notes", result.Matches[0].Location)
}

func TestScannerFatalErrorAbortsRun(t *testing.T) {
	adapter := &fakeStreamer{
		units: []string{"a", "b"},
		failures: map[string][]error{
			"a": {errors.New(errors.ErrorTypeAuthentication, "invalid credentials")},
			"b": {errors.New(errors.ErrorTypeAuthentication, "invalid credentials")},
		},
	}

	s, err := NewScanner(adapter, testConfig())
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
}

func TestScannerRetriesRetryableUnitFailure(t *testing.T) {
	adapter := &fakeStreamer{
		units: []string{"users"},
		cols: map[string][]core.Column{
			"users": {{Name: "email", Type: "VARCHAR2(255)"}},
		},
		rows: map[string][][]string{
			"users": {{"a@b.com"}},
		},
		failures: map[string][]error{
			"users": {errors.New(errors.ErrorTypeConnection, "connection reset")},
		},
	}

	s, err := NewScanner(adapter, testConfig())
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Snapshot.Retries)
	assert.Equal(t, int64(1), result.Snapshot.UnitsCompleted)
	assert.Equal(t, int64(0), result.Snapshot.UnitsFailed)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "email", result.Matches[0].Name)
}

func TestScannerAbsorbsUnitFailureAfterRetryBudget(t *testing.T) {
	connErr := func() error { return errors.New(errors.ErrorTypeConnection, "connection reset") }
	adapter := &fakeStreamer{
		units: []string{"users", "orders"},
		cols: map[string][]core.Column{
			"users":  {{Name: "email", Type: "TEXT"}},
			"orders": {{Name: "email", Type: "TEXT"}},
		},
		rows: map[string][][]string{
			"orders": {{"a@b.com"}},
		},
		failures: map[string][]error{
			"users": {connErr(), connErr(), connErr()},
		},
	}

	cfg := testConfig()
	cfg.Reliability.RetryAttempts = 2

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.Snapshot.UnitsFailed)
	assert.Equal(t, int64(1), result.Snapshot.UnitsCompleted)
	assert.Equal(t, int64(1), result.Snapshot.ConnectionErrors)
	assert.Equal(t, int64(1), result.Snapshot.Retries)

	// The failed unit does not poison the rest of the run.
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "orders.email", result.Matches[0].Location)
}

func TestScannerConnectFatalFailsWithoutRetry(t *testing.T) {
	adapter := &fakeStreamer{
		units:       []string{"users"},
		connectErrs: []error{errors.New(errors.ErrorTypeAuthentication, "password rejected")},
	}

	s, err := NewScanner(adapter, testConfig())
	require.NoError(t, err)

	_, err = s.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeAuthentication))
	assert.Equal(t, 1, adapter.connects)
}

func TestScannerConnectRetriesTransientFailure(t *testing.T) {
	adapter := &fakeStreamer{
		units:       []string{},
		connectErrs: []error{errors.New(errors.ErrorTypeConnection, "refused")},
	}

	s, err := NewScanner(adapter, testConfig())
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, adapter.connects)
	assert.Empty(t, result.Matches)
}

func TestScannerEmptySource(t *testing.T) {
	s, err := NewScanner(&fakeStreamer{}, testConfig())
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Matches)
	assert.Equal(t, int64(0), result.Snapshot.UnitsTotal)
}

func TestScannerSamplerExtractsFromFreeText(t *testing.T) {
	adapter := &fakeSampler{
		units: []string{"session_keys"},
		samples: map[string][]core.Sample{
			"session_keys": {
				{Path: "user:1001", Value: "contact bob@example.com for access"},
				{Path: "user:1002", Value: "nothing interesting"},
			},
		},
	}

	cfg := testConfig()
	cfg.Matching.Only = []string{"email"}

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Matches, 1)
	m := result.Matches[0]
	assert.Equal(t, "email", m.Name)
	assert.Equal(t, "session_keys:user:1001", m.Location)
	assert.Equal(t, []string{"bob@example.com"}, m.Values)

	// The sampler is asked for at most the configured sample size.
	require.NotEmpty(t, adapter.limits)
	assert.Equal(t, cfg.Performance.SampleSize, adapter.limits[0])
}

func TestScannerSampleOnlyBoundsFetchedRows(t *testing.T) {
	rows := make([][]string, 50)
	for i := range rows {
		rows[i] = []string{"jane.roe@example.org"}
	}

	adapter := &fakeStreamer{
		units: []string{"users"},
		cols: map[string][]core.Column{
			"users": {{Name: "email", Type: "TEXT"}},
		},
		rows: map[string][][]string{"users": rows},
	}

	cfg := testConfig()
	cfg.Performance.SampleOnly = true
	cfg.Performance.SampleSize = 10
	cfg.Performance.MinBatchSize = 1
	cfg.Performance.FetchSize = 4

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), result.Snapshot.RowsProcessed)
}

func TestNewScannerRejectsInvalidPattern(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.Pattern = "("

	_, err := NewScanner(&fakeStreamer{}, cfg)
	require.Error(t, err)
}

func TestNewScannerRejectsEmptySelection(t *testing.T) {
	cfg := testConfig()
	cfg.Matching.Only = []string{"no_such_rule"}

	_, err := NewScanner(&fakeStreamer{}, cfg)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestScannerHitsStreamPerOccurrence(t *testing.T) {
	adapter := &fakeStreamer{
		units: []string{"users"},
		cols: map[string][]core.Column{
			"users": {
				{Name: "email", Type: "TEXT"},
				{Name: "backup_email", Type: "TEXT"},
			},
		},
		rows: map[string][][]string{
			"users": {{"a@b.com", "a@b.com"}},
		},
	}

	cfg := testConfig()
	cfg.Matching.Only = []string{"email"}
	cfg.Optimization.BatchOptimization = false

	s, err := NewScanner(adapter, cfg)
	require.NoError(t, err)

	result, err := s.Run(context.Background())
	require.NoError(t, err)

	// Same value in two columns: two aggregated matches, one hit each.
	assert.Len(t, result.Matches, 2)
	assert.Len(t, result.Hits, 2)
	for _, h := range result.Hits {
		assert.Equal(t, "a@b.com", h.Value)
		assert.Equal(t, "email", h.Rule)
	}
}
