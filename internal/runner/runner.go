// Package runner connects the CLI to the scan engine. It resolves the
// adapter for a scan URL through the registry, drives one run, and
// renders the result with the selected formatter.
package runner

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/ajitpratap0/sleuth/pkg/adapter/registry"
	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/output"
	"github.com/ajitpratap0/sleuth/pkg/rules"
	"github.com/ajitpratap0/sleuth/pkg/scan"
)

// Exit statuses distinguish how a run ended: clean, finished with some
// units failed, or aborted outright.
const (
	ExitOK          = 0
	ExitUnitsFailed = 1
	ExitFatal       = 2
)

// Runner executes one scan and writes the formatted result.
type Runner struct {
	cfg    *config.ScanConfig
	format string
	out    io.Writer
}

// New builds a runner. format selects the output formatter; out receives
// the rendered result.
func New(cfg *config.ScanConfig, format string, out io.Writer) *Runner {
	return &Runner{cfg: cfg, format: format, out: out}
}

// Run resolves the adapter, executes the scan, and formats the result.
// The formatter is resolved before connecting so a bad format name fails
// fast instead of after a full scan.
func (r *Runner) Run(ctx context.Context) (*scan.Result, error) {
	formatter, err := output.New(r.format)
	if err != nil {
		return nil, err
	}

	scheme, err := Scheme(r.cfg.URL)
	if err != nil {
		return nil, err
	}

	adapter, err := registry.Create(scheme, r.cfg)
	if err != nil {
		return nil, err
	}

	scanner, err := scan.NewScanner(adapter, r.cfg)
	if err != nil {
		return nil, err
	}

	result, err := scanner.Run(ctx)
	if err != nil {
		return nil, err
	}

	opts := output.Options{
		ShowData:      r.cfg.Matching.ShowData,
		ShowAll:       r.cfg.Matching.ShowAll,
		MinConfidence: rules.Confidence(r.cfg.Matching.MinConfidence),
	}
	if err := formatter.Format(r.out, result, opts); err != nil {
		return result, errors.Wrap(err, errors.ErrorTypeInternal, "writing output failed")
	}
	return result, nil
}

// Scheme extracts the adapter scheme from a scan URL. A bare absolute or
// relative path scans as local files.
func Scheme(rawURL string) (string, error) {
	if strings.HasPrefix(rawURL, "/") || strings.HasPrefix(rawURL, "./") || strings.HasPrefix(rawURL, "../") {
		return "file", nil
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeConfig, "scan url does not parse")
	}
	if u.Scheme == "" {
		return "", errors.New(errors.ErrorTypeConfig,
			"scan url carries no scheme, expected one of: "+strings.Join(registry.Schemes(), ", "))
	}
	return u.Scheme, nil
}

// ExitCode maps a run outcome onto the process exit status.
func ExitCode(result *scan.Result, err error) int {
	switch {
	case err != nil:
		return ExitFatal
	case result != nil && result.Snapshot.UnitsFailed > 0:
		return ExitUnitsFailed
	default:
		return ExitOK
	}
}
