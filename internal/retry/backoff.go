// Package retry provides the exponential backoff used by the supervisor
// when startup failures are configured to be retried.
package retry

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"
)

// ── Permanent errors ─────────────────────────────────────────────────

// PermanentError wraps an error to signal that retrying will not help.
// Return [Permanent](err) from the operation function to stop retrying
// immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent marks err as non-retryable.  The backoff loop will return
// the inner error immediately without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err has been marked as permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// ── Backoff ──────────────────────────────────────────────────────────

// Backoff paces repeated attempts with an exponentially growing pause.
type Backoff struct {
	// InitialDelay is the pause after the first failure (default 1s).
	InitialDelay time.Duration
	// MaxDelay caps the pause (default 30s).
	MaxDelay time.Duration
	// Multiplier grows the pause after every failure (default 2).
	Multiplier float64
	// MaxAttempts counts every try including the first; 0 keeps going
	// until the context ends.
	MaxAttempts int
	// Jitter spreads each pause by up to 25% either way.
	Jitter bool
	// Notify, when set, is called before each pause with the failed
	// attempt number, its error and the pause length.
	Notify func(attempt int, err error, wait time.Duration)
}

// DefaultBackoff returns the supervisor's default pacing.
func DefaultBackoff() *Backoff {
	return &Backoff{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
		MaxAttempts:  10,
		Jitter:       true,
	}
}

// Delay returns the pause that follows failed attempt n (1-based),
// before jitter.
func (b *Backoff) Delay(n int) time.Duration {
	initial, maxDelay, mult := b.InitialDelay, b.MaxDelay, b.Multiplier
	if initial <= 0 {
		initial = time.Second
	}
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	if mult < 1 {
		mult = 2
	}
	d := float64(initial) * math.Pow(mult, float64(max(n-1, 0)))
	if d > float64(maxDelay) {
		return maxDelay
	}
	return time.Duration(d)
}

// Do calls fn until it returns nil, returns a [Permanent] error, runs
// out of attempts, or ctx ends.  fn receives the 1-based attempt number.
// Running out of attempts wraps the last error; a permanent error is
// returned unwrapped.
func (b *Backoff) Do(ctx context.Context, fn func(attempt int) error) error {
	for attempt := 1; ; attempt++ {
		err := fn(attempt)
		switch {
		case err == nil:
			return nil
		case IsPermanent(err):
			return errors.Unwrap(err)
		case b.MaxAttempts > 0 && attempt >= b.MaxAttempts:
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		wait := b.Delay(attempt)
		if b.Jitter {
			wait = addJitter(wait)
		}
		if b.Notify != nil {
			b.Notify(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, ctx.Err())
		case <-timer.C:
		}
	}
}

// addJitter moves d by a random amount within ±25%, never below 1ms.
func addJitter(d time.Duration) time.Duration {
	spread := float64(d) / 4
	j := float64(d) + (rand.Float64()*2-1)*spread
	return time.Duration(math.Max(j, float64(time.Millisecond)))
}
