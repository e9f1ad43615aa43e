// Package resilience provides retry and source failover primitives for the
// outbound HTTP calls made by the predictor and the currency converter.
//
// All types are safe for concurrent use.
package resilience

import (
	"context"
	"log/slog"
	"time"
)

// RetryConfig bounds a [Retry] loop.
type RetryConfig struct {
	// Name labels log messages.
	Name string

	// MaxRetries is the number of extra attempts after the first one.
	// Zero disables retrying.
	MaxRetries int

	// Backoff is the delay before the first retry. It doubles on each
	// subsequent retry. Default: 500ms.
	Backoff time.Duration

	// MaxBackoff caps the doubled delay. Default: 8s.
	MaxBackoff time.Duration

	// ShouldRetry classifies an error. When nil every error is retried.
	ShouldRetry func(error) bool
}

// Retry calls fn until it succeeds, returns a non-retryable error, the retry
// budget is spent, or ctx is done. The last error is returned unchanged.
func Retry(ctx context.Context, cfg RetryConfig, fn func(context.Context) error) error {
	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = 8 * time.Second
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= cfg.MaxRetries || ctx.Err() != nil {
			return err
		}
		if cfg.ShouldRetry != nil && !cfg.ShouldRetry(err) {
			return err
		}

		slog.Debug("retrying after failure",
			"name", cfg.Name, "attempt", attempt+1, "backoff", backoff, "error", err)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}
