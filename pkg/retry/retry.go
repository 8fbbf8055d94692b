package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// PermanentError wraps errors that must not be retried
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps an error to indicate retrying cannot help
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is marked permanent
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// Policy describes how attempts are made and spaced
type Policy struct {
	// Attempts is the total number of tries, including the first (min 1)
	Attempts int
	// BaseDelay is the delay before the second attempt
	BaseDelay time.Duration
	// MaxDelay caps the delay between attempts
	MaxDelay time.Duration
	// Factor multiplies the delay after each attempt (typically 2.0)
	Factor float64
	// Jitter adds up to 25% randomness to each delay
	Jitter bool
}

// Default returns a policy suitable for most reconnect scenarios
func Default() Policy {
	return Policy{
		Attempts:  3,
		BaseDelay: 100 * time.Millisecond,
		MaxDelay:  5 * time.Second,
		Factor:    2.0,
		Jitter:    true,
	}
}

// Single returns a policy that tries exactly once with no backoff
func Single() Policy {
	return Policy{Attempts: 1}
}

// normalized returns the policy with defaults applied to zero fields
func (p Policy) normalized() Policy {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 100 * time.Millisecond
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 5 * time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.Factor < 1 {
		p.Factor = 2.0
	}
	return p
}

// Delay returns the pause before attempt n+1, where n counts completed
// attempts starting at 1. Jitter, when enabled, extends the delay by up to a
// quarter of its value.
func (p Policy) Delay(n int) time.Duration {
	p = p.normalized()

	d := float64(p.BaseDelay)
	for i := 1; i < n; i++ {
		d *= p.Factor
		if d >= float64(p.MaxDelay) {
			d = float64(p.MaxDelay)
			break
		}
	}

	delay := time.Duration(d)
	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter && delay > 0 {
		delay += time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	return delay
}

// Do executes fn under the policy, sleeping between attempts. It returns nil
// on the first success, the wrapped error immediately for permanent failures
// or context cancellation, and the last error once attempts are exhausted.
func Do(ctx context.Context, p Policy, fn func() error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("retry cancelled before attempt %d: %w", attempt, err)
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if IsPermanent(err) {
			return err
		}
		if attempt == p.Attempts {
			break
		}

		timer := time.NewTimer(p.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled during backoff for attempt %d: %w", attempt+1, ctx.Err())
		case <-timer.C:
		}
	}

	return fmt.Errorf("retry failed after %d attempts: %w", p.Attempts, lastErr)
}
