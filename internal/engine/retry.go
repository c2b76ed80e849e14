package engine

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"daybook/internal/errors"
)

// RetryConfig bounds collaborator retries. Only fetch and commit calls are
// retried; everything between them is pure computation.
type RetryConfig struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxInterval time.Duration
}

// DefaultRetryConfig returns the retry policy used when none is configured.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 4,
		BaseBackoff: 250 * time.Millisecond,
		MaxInterval: 5 * time.Second,
	}
}

// withRetry runs op with bounded exponential backoff. Irrecoverable errors
// fail fast; ctx cancellation stops waiting immediately. The error of the
// final attempt is returned when attempts are exhausted.
func withRetry(ctx context.Context, cfg RetryConfig, op func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.BaseBackoff
	exp.Multiplier = 2
	exp.MaxInterval = cfg.MaxInterval
	exp.Reset()

	var err error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if !errors.IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		select {
		case <-time.After(exp.NextBackOff()):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
