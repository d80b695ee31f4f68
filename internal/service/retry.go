package service

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/sentinel-review/sentinel/internal/core"
)

// RetryPolicy defines backoff behavior for collaborator transport calls.
// The orchestration loop itself never retries; retrying the underlying
// agent invocation is the executor collaborator's responsibility, and it
// uses this policy. Errors that are not retryable (protocol violations,
// budget exhaustion) abort immediately.
type RetryPolicy struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64 // 0.0 to 1.0
	Multiplier   float64 // Exponential factor
}

// DefaultRetryPolicy returns the default policy for agent invocations.
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		BaseDelay:    time.Second,
		MaxDelay:     30 * time.Second,
		JitterFactor: 0.2,
		Multiplier:   2.0,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc func(ctx context.Context) error

// Execute runs the function with retry logic.
func (p *RetryPolicy) Execute(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !core.IsRetryable(err) {
			return err
		}
		if attempt == p.MaxAttempts {
			break
		}

		delay := p.CalculateDelay(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return &RetryExhaustedError{Attempts: p.MaxAttempts, LastErr: lastErr}
}

// CalculateDelay computes the backoff delay for a given attempt.
func (p *RetryPolicy) CalculateDelay(attempt int) time.Duration {
	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.JitterFactor > 0 {
		jitter := delay * p.JitterFactor
		delay += (rand.Float64()*2 - 1) * jitter
	}
	return time.Duration(delay)
}

// RetryExhaustedError indicates all retry attempts failed.
type RetryExhaustedError struct {
	Attempts int
	LastErr  error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.LastErr)
}

func (e *RetryExhaustedError) Unwrap() error {
	return e.LastErr
}
