// Package base provides shared plumbing for concrete adapters: the
// connection retry policy, database/sql pool setup and row cursors for the
// SQL-backed backends, and a fallback classifier for network errors.
package base

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sleuth/pkg/config"
	"github.com/ajitpratap0/sleuth/pkg/errors"
	"github.com/ajitpratap0/sleuth/pkg/logger"
	"github.com/ajitpratap0/sleuth/pkg/metrics"
)

// RetryPolicy defines connection retry behavior with exponential backoff.
type RetryPolicy struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// PolicyFromConfig builds a retry policy from the reliability section.
func PolicyFromConfig(rel config.ReliabilityConfig) *RetryPolicy {
	return &RetryPolicy{
		Attempts:     rel.RetryAttempts,
		InitialDelay: rel.RetryDelay,
		MaxDelay:     rel.MaxRetryDelay,
		Multiplier:   rel.RetryMultiplier,
	}
}

// Delay returns the backoff delay before the given zero-based retry.
func (rp *RetryPolicy) Delay(attempt int) time.Duration {
	delay := float64(rp.InitialDelay) * math.Pow(rp.Multiplier, float64(attempt))
	if rp.MaxDelay > 0 && delay > float64(rp.MaxDelay) {
		delay = float64(rp.MaxDelay)
	}
	return time.Duration(delay)
}

// Execute runs fn up to Attempts times, backing off between attempts. Only
// retryable errors are retried; everything else surfaces immediately so
// fatal failures are never masked by the retry loop.
func (rp *RetryPolicy) Execute(ctx context.Context, fn func() error) error {
	attempts := rp.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(rp.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "retry cancelled")
		case <-timer.C:
		}
	}

	return errors.Wrap(lastErr, errors.ErrorTypeConnection, fmt.Sprintf("all %d attempts failed", attempts))
}

// ConnectWithRetry runs connect under the retry policy, recording retry and
// connection-error metrics for the adapter. Fatal errors (bad credentials,
// unreachable service) are returned on the first attempt so the run can
// abort instead of burning the retry budget.
func ConnectWithRetry(ctx context.Context, adapterName string, rp *RetryPolicy, connect func(context.Context) error) error {
	log := logger.Get().With(zap.String("adapter", adapterName))

	attempts := rp.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := connect(ctx)
		if err == nil {
			if attempt > 0 {
				log.Info("connected after retry", zap.Int("attempts", attempt+1))
			}
			return nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			metrics.ConnectionErrors.WithLabelValues(adapterName).Inc()
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := rp.Delay(attempt)
		log.Warn("connection attempt failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err))
		metrics.Retries.WithLabelValues(adapterName).Inc()

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrap(ctx.Err(), errors.ErrorTypeTimeout, "connect cancelled")
		case <-timer.C:
		}
	}

	metrics.ConnectionErrors.WithLabelValues(adapterName).Inc()
	return errors.Wrap(lastErr, errors.ErrorTypeConnection,
		fmt.Sprintf("all %d connection attempts failed", attempts))
}
