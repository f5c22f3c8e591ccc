package runner

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sleuth/pkg/adapter/core"
	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/scan"
)

// stubAdapter samples a fixed set of values, enough to drive the whole
// runner path without a backend.
type stubAdapter struct {
	samples []core.Sample
}

func (s *stubAdapter) Name() string                          { return "stub" }
func (s *stubAdapter) Connect(ctx context.Context) error     { return nil }
func (s *stubAdapter) Disconnect(ctx context.Context) error  { return nil }
func (s *stubAdapter) ListUnits(ctx context.Context) ([]string, error) {
	return []string{"inbox"}, nil
}
func (s *stubAdapter) FetchSamples(ctx context.Context, unit string, limit int) ([]core.Sample, error) {
	if len(s.samples) > limit {
		return s.samples[:limit], nil
	}
	return s.samples, nil
}

func init() {
	registry.Register("stub", func(cfg *config.ScanConfig) (core.Adapter, error) {
		return &stubAdapter{samples: []core.Sample{
			{Path: "msg:1", Value: "reach me at carol@example.com"},
			{Path: "msg:2", Value: "nothing here"},
		}}, nil
	})
}

func TestRunnerEndToEnd(t *testing.T) {
	cfg := config.NewScanConfig("stub://local")
	cfg.Matching.ShowData = true

	var buf bytes.Buffer
	result, err := New(cfg, "text", &buf).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result)

	out := buf.String()
	assert.Contains(t, out, "Email Address (high confidence)")
	assert.Contains(t, out, "Found in inbox:msg:1")
	assert.Contains(t, out, "carol@example.com")
	assert.Equal(t, ExitOK, ExitCode(result, err))
}

func TestRunnerUnknownScheme(t *testing.T) {
	cfg := config.NewScanConfig("gopher://host/db")

	var buf bytes.Buffer
	_, err := New(cfg, "text", &buf).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestRunnerBadFormatFailsFast(t *testing.T) {
	cfg := config.NewScanConfig("stub://local")

	var buf bytes.Buffer
	_, err := New(cfg, "yaml", &buf).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeValidation))
}

func TestScheme(t *testing.T) {
	cases := map[string]string{
		"postgres://localhost/app": "postgres",
		"elasticsearch+https://h/": "elasticsearch+https",
		"/var/exports":             "file",
		"./exports":                "file",
	}
	for raw, want := range cases {
		got, err := Scheme(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := Scheme("localhost/app")
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitFatal, ExitCode(nil, errors.New(errors.ErrorTypeAuthentication, "no")))

	failed := &scan.Result{}
	failed.Snapshot.UnitsFailed = 2
	assert.Equal(t, ExitUnitsFailed, ExitCode(failed, nil))

	assert.Equal(t, ExitOK, ExitCode(&scan.Result{}, nil))
}
