package base

import (
	"context"
	stderrors "errors"
	"net"
	"syscall"

	"github.com/ajitpratap0/sleuth/pkg/errors"
)

// ClassifyNet translates low-level network failures into structured error
// types. Driver-specific classification (SQLSTATE codes, vendor error
// numbers) lives in each adapter; this covers the dial and transport
// failures every backend can produce.
//
// Connection refused and unknown-host failures classify as unavailable,
// which is fatal for the run: nothing is listening, so retrying per unit
// would only repeat the same failure N times.
func ClassifyNet(err error, operation string) error {
	if err == nil {
		return nil
	}

	var typed *errors.Error
	if stderrors.As(err, &typed) {
		return err
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.ErrorTypeTimeout, operation+" timed out")
	case stderrors.Is(err, context.Canceled):
		return errors.Wrap(err, errors.ErrorTypeTimeout, operation+" cancelled")
	}

	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		if dnsErr.IsNotFound {
			return errors.Wrap(err, errors.ErrorTypeUnavailable, operation+": host not found")
		}
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+": dns lookup failed")
	}

	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return errors.Wrap(err, errors.ErrorTypeUnavailable, operation+": connection refused")
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+" timed out")
	}

	var opErr *net.OpError
	if stderrors.As(err, &opErr) {
		return errors.Wrap(err, errors.ErrorTypeConnection, operation+": network error")
	}

	return errors.Wrap(err, errors.ErrorTypeConnection, operation+" failed")
}
