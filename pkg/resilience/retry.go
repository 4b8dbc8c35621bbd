package resilience

import (
	"context"
	"math/rand"
	"time"

	"github.com/urbanflow/trip-demand/pkg/config"
	"github.com/urbanflow/trip-demand/pkg/logger"
	"go.uber.org/zap"
)

// Operation is a retryable unit of work
type Operation func(ctx context.Context) (interface{}, error)

// RetryConfig controls retry behavior for transient failures
type RetryConfig struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
	// IsRetryable decides whether an error is worth another attempt.
	// When nil every error is retried.
	IsRetryable func(error) bool
}

// DefaultRetryConfig returns a retry configuration with sane defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2.0,
	}
}

// FromConfig builds a RetryConfig from application configuration
func FromConfig(cfg *config.RetryConfig) RetryConfig {
	rc := DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMS > 0 {
		rc.InitialBackoff = time.Duration(cfg.InitialBackoffMS) * time.Millisecond
	}
	if cfg.MaxBackoffMS > 0 {
		rc.MaxBackoff = time.Duration(cfg.MaxBackoffMS) * time.Millisecond
	}
	if cfg.BackoffMultiplier > 1 {
		rc.Multiplier = cfg.BackoffMultiplier
	}
	return rc
}

// Retry executes operation with bounded exponential backoff. It returns the
// last error once attempts are exhausted, a non-retryable error surfaces, or
// the context is cancelled.
func Retry(ctx context.Context, cfg RetryConfig, operation Operation) (interface{}, error) {
	backoff := cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err := operation(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if cfg.IsRetryable != nil && !cfg.IsRetryable(err) {
			return nil, err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		logger.WithContext(ctx).Warn("operation failed, backing off",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		// Full jitter keeps concurrent partitions from retrying in lockstep.
		sleep := time.Duration(rand.Int63n(int64(backoff) + 1))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * cfg.Multiplier)
		if backoff > cfg.MaxBackoff {
			backoff = cfg.MaxBackoff
		}
	}

	return nil, lastErr
}
