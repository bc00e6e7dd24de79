package app

import (
	"context"
	"math/rand/v2"
	"time"
)

// Default reconnect backoff values.
const (
	DefaultBackoffInitial = 500 * time.Millisecond
	DefaultBackoffMax     = 10 * time.Second
)

// backoff implements capped exponential backoff with ±20% jitter.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if initial <= 0 {
		initial = DefaultBackoffInitial
	}
	if max < initial {
		max = initial
	}
	return &backoff{initial: initial, max: max, current: initial}
}

// Next returns the jittered delay for this attempt and doubles the base
// for the following one, up to max.
func (b *backoff) Next() time.Duration {
	jitter := float64(b.current) * 0.2 * (rand.Float64()*2 - 1)
	d := time.Duration(float64(b.current) + jitter)

	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Wait sleeps for Next() or until ctx is done.
func (b *backoff) Wait(ctx context.Context) error {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Reset goes back to the initial delay.
func (b *backoff) Reset() {
	b.current = b.initial
}

// Current returns the undecorated delay the next attempt will use.
func (b *backoff) Current() time.Duration {
	return b.current
}
