package embed

import (
	"context"
	"fmt"
	"time"

	deweyerrors "github.com/dewey-index/dewey/internal/errors"
)

// RetryConfig configures exponential backoff retry behavior for an
// embedding request. WithRetry retries every error that
// deweyerrors.IsFatal does not report as fatal; HTTPEmbedder marks 429
// and 5xx responses as transient and other non-200 statuses as fatal.
type RetryConfig struct {
	MaxRetries   int           // Maximum number of retry attempts (not including initial attempt)
	InitialDelay time.Duration // Delay before first retry
	MaxDelay     time.Duration // Maximum delay between retries
	Multiplier   float64       // Multiplier for exponential backoff
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     16 * time.Second,
		Multiplier:   2.0,
	}
}

// WithRetry executes fn with exponential backoff, retrying up to
// cfg.MaxRetries times. A fatal error (spec §4.5: bad auth, malformed
// request, dimension mismatch) is returned immediately without
// consuming a retry, since retrying it can never succeed. If ctx is
// cancelled while waiting between attempts, WithRetry returns a
// Cancelled-kind error.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return deweyerrors.Cancelled("retry cancelled", ctx.Err())
		default:
		}

		if err := fn(); err != nil {
			lastErr = err

			// Fatal errors never benefit from a retry.
			if deweyerrors.IsFatal(err) {
				return err
			}

			if attempt >= cfg.MaxRetries {
				break
			}

			select {
			case <-ctx.Done():
				return deweyerrors.Cancelled("retry cancelled", ctx.Err())
			case <-time.After(delay):
			}

			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
			continue
		}

		return nil
	}

	return fmt.Errorf("failed after %d retries: %w", cfg.MaxRetries, lastErr)
}
