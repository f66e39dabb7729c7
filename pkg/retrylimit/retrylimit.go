// Package retrylimit paces outbound deliveries: an adaptive rate limiter
// that backs off when the transport errors and recovers on success, plus a
// bounded retry with exponential backoff for individual sends.
package retrylimit

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// recoveryGrace is how long after the last failure successes are ignored, so
// a single lucky send does not undo a backoff.
const recoveryGrace = 10 * time.Second

// AdaptiveLimiter is a requests-per-second limiter that halves its rate on
// failure and creeps back up on success. Safe for concurrent use.
type AdaptiveLimiter struct {
	mu        sync.Mutex
	limiter   *rate.Limiter
	minLimit  rate.Limit
	maxLimit  rate.Limit
	stepUp    rate.Limit
	lastError time.Time
}

// NewAdaptiveLimiter creates a limiter starting (and capped) at max
// requests per second, never dropping below min.
func NewAdaptiveLimiter(min, max float64) *AdaptiveLimiter {
	if min <= 0 {
		min = 0.1
	}
	if max < min {
		max = min
	}
	return &AdaptiveLimiter{
		limiter:  rate.NewLimiter(rate.Limit(max), 1),
		minLimit: rate.Limit(min),
		maxLimit: rate.Limit(max),
		stepUp:   rate.Limit((max - min) / 10),
	}
}

// Wait blocks until a send slot is available or ctx is done.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// Success nudges the rate back toward the maximum once the grace period
// after the last failure has passed.
func (a *AdaptiveLimiter) Success() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if time.Since(a.lastError) > recoveryGrace {
		a.setLimit(a.limiter.Limit() + a.stepUp)
	}
}

// Failure halves the rate.
func (a *AdaptiveLimiter) Failure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastError = time.Now()
	a.setLimit(a.limiter.Limit() / 2)
}

// CurrentLimit returns the current sends per second.
func (a *AdaptiveLimiter) CurrentLimit() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return float64(a.limiter.Limit())
}

func (a *AdaptiveLimiter) setLimit(l rate.Limit) {
	if l > a.maxLimit {
		l = a.maxLimit
	}
	if l < a.minLimit {
		l = a.minLimit
	}
	if l != a.limiter.Limit() {
		a.limiter.SetLimit(l)
	}
}

// FatalError marks an error that must not be retried (missing file, unknown
// channel).
type FatalError struct {
	Err error
}

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Fatal wraps err so WithRetry gives up immediately.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// RetryConfig bounds WithRetry.
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig suits short-lived delivery attempts inside a dispatch
// timeout.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
	}
}

// WithRetry runs fn with exponential backoff and jitter until it succeeds,
// returns a FatalError, exhausts cfg.MaxAttempts, or ctx ends. The last
// error is returned.
func WithRetry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Join(err, lastErr)
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var fatal *FatalError
		if errors.As(lastErr, &fatal) {
			return fatal.Err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		sleep := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), lastErr)
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
	return lastErr
}
