// Package retry runs an operation with bounded exponential backoff.
package retry

import (
	"context"
	"math/rand/v2"
	"time"
)

const (
	DefaultMaxRetries = 3
	// DefaultMaxDelay caps a single backoff wait when Policy.MaxDelay is unset.
	DefaultMaxDelay = 30 * time.Second
)

// Policy configures an Invoker.
type Policy struct {
	// MaxRetries is the number of calls allowed after the first one.
	MaxRetries int
	// BaseDelay is the wait before the first retry; it doubles per retry.
	BaseDelay time.Duration
	// MaxDelay caps every backoff wait. 0 means DefaultMaxDelay.
	MaxDelay time.Duration
	// Jitter adds up to Jitter*delay of random extra wait. 0 disables it.
	Jitter float64
	// AttemptTimeout bounds every single call when positive.
	AttemptTimeout time.Duration
	// Retryable decides whether err is worth another attempt. nil retries every error.
	Retryable func(err error) bool
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Invoker applies a Policy. The zero value is not usable; call NewInvoker.
type Invoker struct {
	policy Policy
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewInvoker returns an Invoker for policy. Negative MaxRetries is treated as 0.
func NewInvoker(policy Policy) *Invoker {
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.Jitter < 0 {
		policy.Jitter = 0
	}
	if policy.Jitter > 1 {
		policy.Jitter = 1
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = DefaultMaxDelay
	}
	return &Invoker{policy: policy, sleep: sleepContext}
}

// Policy returns a copy of the invoker's policy.
func (inv *Invoker) Policy() Policy {
	return inv.policy
}

// Delay returns the backoff before retry n (0-indexed): BaseDelay * 2^n,
// capped at MaxDelay.
func (inv *Invoker) Delay(n int) time.Duration {
	base, limit := inv.policy.BaseDelay, inv.policy.MaxDelay
	if base <= 0 || n < 0 {
		return 0
	}
	// limit>>n is 0 for n >= 63, so the shift below never overflows.
	if base > limit>>n {
		return limit
	}
	return base << n
}

// Invoke calls fn until it succeeds, the retry budget is spent, or ctx is done.
// On exhaustion the last error from fn is returned unchanged.
func Invoke[T any](ctx context.Context, inv *Invoker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 0; attempt <= inv.policy.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := callAttempt(ctx, inv.policy.AttemptTimeout, fn)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == inv.policy.MaxRetries {
			break
		}
		if inv.policy.Retryable != nil && !inv.policy.Retryable(err) {
			break
		}

		delay := inv.withJitter(inv.Delay(attempt))
		if inv.policy.OnRetry != nil {
			inv.policy.OnRetry(attempt+1, delay, err)
		}
		if err := inv.sleep(ctx, delay); err != nil {
			return zero, err
		}
	}

	return zero, lastErr
}

func callAttempt[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func (inv *Invoker) withJitter(d time.Duration) time.Duration {
	if inv.policy.Jitter == 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*inv.policy.Jitter*float64(d))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
