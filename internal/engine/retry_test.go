package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_SucceedsAfterTransientErrors(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := RetryWithBackoff(context.Background(), policy, func() error {
		calls++
		if calls < 3 {
			return errors.New("throttled: rate exceeded")
		}
		return nil
	}, IsTransientError)

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_StopsOnPermanentError(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := RetryWithBackoff(context.Background(), policy, func() error {
		calls++
		return errors.New("InvalidParameterValue: bad CIDR")
	}, IsTransientError)

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryWithBackoff_ExhaustsRetries(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}

	calls := 0
	err := RetryWithBackoff(context.Background(), policy, func() error {
		calls++
		return errors.New("service unavailable")
	}, IsTransientError)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries")
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_CancelledBetweenAttempts(t *testing.T) {
	policy := &RetryPolicy{MaxRetries: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RetryWithBackoff(ctx, policy, func() error {
		return errors.New("throttled")
	}, IsTransientError)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransientError(t *testing.T) {
	assert.False(t, IsTransientError(nil))
	assert.True(t, IsTransientError(errors.New("Throttling: rate exceeded")))
	assert.True(t, IsTransientError(errors.New("read tcp: i/o timeout")))
	assert.True(t, IsTransientError(errors.New("connection reset by peer")))
	assert.False(t, IsTransientError(errors.New("InvalidSubnetID.NotFound")))
	assert.True(t, IsTransientError(&smithy.GenericAPIError{Code: "RequestLimitExceeded", Message: "slow down"}))
	assert.False(t, IsTransientError(&smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}))
	assert.True(t, IsTransientError(fmt.Errorf("call failed: %w", errors.New("too many requests"))))
}

func TestCalculateBackoff_Capped(t *testing.T) {
	for attempt := 0; attempt < 10; attempt++ {
		d := calculateBackoff(attempt, time.Second, 5*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(0))
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}
