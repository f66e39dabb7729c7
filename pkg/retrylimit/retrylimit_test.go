package retrylimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestWithRetryEventualSuccess(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	transient := errors.New("transient")
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Equal(t, 3, calls)
}

func TestWithRetryFatalStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("no such clip")
	err := WithRetry(context.Background(), fastConfig(), func() error {
		calls++
		return Fatal(boom)
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := WithRetry(ctx, fastConfig(), func() error {
		t.Fatal("fn must not run after cancel")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiterBacksOffAndRecovers(t *testing.T) {
	lim := NewAdaptiveLimiter(1, 8)
	assert.InDelta(t, 8.0, lim.CurrentLimit(), 0.001)

	lim.Failure()
	assert.InDelta(t, 4.0, lim.CurrentLimit(), 0.001)
	lim.Failure()
	lim.Failure()
	lim.Failure()
	assert.InDelta(t, 1.0, lim.CurrentLimit(), 0.001, "never below the floor")

	// Success inside the grace period is ignored.
	lim.Success()
	assert.InDelta(t, 1.0, lim.CurrentLimit(), 0.001)

	lim.lastError = time.Now().Add(-time.Minute)
	lim.Success()
	assert.Greater(t, lim.CurrentLimit(), 1.0)
}
