// Package retry offers handler authors an opt-in retry helper. The
// dispatcher itself never retries a leaf invocation: a failed handler call
// fails its leaf, full stop. A handler's Run function may wrap its own
// fallible work in Policy.Execute to retry internally before returning,
// which is indistinguishable from a handler that simply took longer.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// BackoffStrategy selects how delay grows between attempts.
type BackoffStrategy string

const (
	BackoffConstant    BackoffStrategy = "constant"
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
)

// Policy configures retry behavior for a single Execute call.
type Policy struct {
	MaxAttempts int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     BackoffStrategy
	// RetryableErrors, if non-empty, restricts retries to errors whose
	// message contains one of these substrings. Empty means retry any error.
	RetryableErrors []string
	// OnRetry, if set, is called after a failed attempt and before the
	// delay preceding the next one.
	OnRetry func(attempt int, err error)
}

// Default returns a sensible default: three attempts, exponential
// backoff starting at one second, capped at thirty.
func Default() *Policy {
	return &Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Strategy:     BackoffExponential,
	}
}

// None returns a policy that never retries: a single attempt.
func None() *Policy {
	return &Policy{MaxAttempts: 1}
}

// shouldRetry reports whether err qualifies for another attempt under p.
func (p *Policy) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if len(p.RetryableErrors) == 0 {
		return true
	}
	msg := err.Error()
	for _, pattern := range p.RetryableErrors {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// delay computes the wait before the given attempt number (1-indexed),
// clamped to MaxDelay.
func (p *Policy) delay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	var d time.Duration
	switch p.Strategy {
	case BackoffConstant:
		d = p.InitialDelay
	case BackoffLinear:
		d = p.InitialDelay * time.Duration(attempt)
	case BackoffExponential:
		d = time.Duration(float64(p.InitialDelay) * math.Pow(2, float64(attempt-1)))
	default:
		d = p.InitialDelay
	}

	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Execute runs fn, retrying per the policy until it succeeds, ctx is done,
// or attempts are exhausted. The returned error wraps the last failure.
func (p *Policy) Execute(ctx context.Context, fn func() error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		err := fn()
		attempts = attempt
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt >= maxAttempts || !p.shouldRetry(err) {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}

		if d := p.delay(attempt); d > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled during delay: %w", ctx.Err())
			case <-time.After(d):
			}
		}
	}

	return fmt.Errorf("%d attempt(s) failed: %w", attempts, lastErr)
}

// IsTransient reports whether err looks safe to retry: not a context
// cancellation/deadline, and either unclassified or self-reporting as
// Temporary()/Timeout().
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var temporary interface{ Temporary() bool }
	if errors.As(err, &temporary) {
		return temporary.Temporary()
	}

	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) {
		return timeout.Timeout()
	}

	return true
}
