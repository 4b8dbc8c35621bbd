package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/urbanflow/trip-demand/pkg/common"
)

var (
	testError         = errors.New("test error")
	nonRetryableError = errors.New("non-retryable error")
)

func TestRetry_SuccessOnFirstAttempt(t *testing.T) {
	ctx := context.Background()
	config := DefaultRetryConfig()
	attemptCount := 0

	operation := func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return "success", nil
	}

	result, err := Retry(ctx, config, operation)

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 1, attemptCount, "should only attempt once on success")
}

func TestRetry_SuccessAfterRetries(t *testing.T) {
	ctx := context.Background()
	config := DefaultRetryConfig()
	config.InitialBackoff = 1 * time.Millisecond
	config.MaxBackoff = 5 * time.Millisecond
	attemptCount := 0

	operation := func(ctx context.Context) (interface{}, error) {
		attemptCount++
		if attemptCount < 3 {
			return nil, testError
		}
		return "success", nil
	}

	result, err := Retry(ctx, config, operation)

	assert.NoError(t, err)
	assert.Equal(t, "success", result)
	assert.Equal(t, 3, attemptCount, "should attempt 3 times")
}

func TestRetry_FailureAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	config := DefaultRetryConfig()
	config.InitialBackoff = 1 * time.Millisecond
	config.MaxAttempts = 3
	attemptCount := 0

	operation := func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return nil, testError
	}

	result, err := Retry(ctx, config, operation)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, testError, err)
	assert.Equal(t, 3, attemptCount, "should attempt max times")
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	ctx := context.Background()
	config := DefaultRetryConfig()
	config.InitialBackoff = 1 * time.Millisecond
	config.IsRetryable = common.IsTransient
	attemptCount := 0

	operation := func(ctx context.Context) (interface{}, error) {
		attemptCount++
		return nil, nonRetryableError
	}

	result, err := Retry(ctx, config, operation)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, 1, attemptCount, "should not retry a non-retryable error")
}

func TestRetry_TransientErrorsAreRetried(t *testing.T) {
	ctx := context.Background()
	config := DefaultRetryConfig()
	config.InitialBackoff = 1 * time.Millisecond
	config.IsRetryable = common.IsTransient
	attemptCount := 0

	operation := func(ctx context.Context) (interface{}, error) {
		attemptCount++
		if attemptCount < 2 {
			return nil, common.NewTransientError("warehouse write", testError)
		}
		return 42, nil
	}

	result, err := Retry(ctx, config, operation)

	assert.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 2, attemptCount)
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	config := DefaultRetryConfig()
	config.InitialBackoff = time.Minute

	operation := func(ctx context.Context) (interface{}, error) {
		cancel()
		return nil, testError
	}

	result, err := Retry(ctx, config, operation)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, context.Canceled)
}
