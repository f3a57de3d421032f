package lifecycle

import (
	"context"
	"time"
)

// Backoff produces the delay between retry attempts, doubling from initial
// up to max. With initial == max it degrades to a fixed interval, which is
// how the caster session uses it.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// NewBackoff creates a backoff with the given initial and max delays.
func NewBackoff(initial, max time.Duration) *Backoff {
	if max < initial {
		max = initial
	}
	return &Backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

// Fixed creates a backoff that always waits the same interval.
func Fixed(interval time.Duration) *Backoff {
	return NewBackoff(interval, interval)
}

// Wait sleeps for the current delay or until ctx is done, then advances the
// delay for the next attempt.
func (b *Backoff) Wait(ctx context.Context) error {
	d := b.current
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset restores the initial delay after a successful attempt.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Current returns the delay the next Wait will use.
func (b *Backoff) Current() time.Duration {
	return b.current
}
