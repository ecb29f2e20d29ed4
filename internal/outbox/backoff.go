// Package outbox delivers persisted outbound messages to the provider.
// This file implements the retry scheduling policy: exponential growth with
// a hard cap and symmetric jitter, so a catch-up after downtime does not
// turn into a synchronized retry storm.
package outbox

import (
	"math"
	"math/rand"
	"time"
)

// Backoff computes retry delays for failed deliveries.
//
// The deterministic delay for attempt n (0-based, the number of attempts
// already made) is Base * 2^n capped at Max; the returned value is jittered
// symmetrically within ±Jitter of that. The provider's own retry-after
// instruction always takes precedence over this policy and bypasses it
// entirely.
type Backoff struct {
	// Base is the first retry delay. Zero means 5s.
	Base time.Duration
	// Max caps the deterministic delay. Zero means 10m.
	Max time.Duration
	// Jitter is the symmetric jitter fraction in [0,1). Zero means 0.2.
	Jitter float64

	// rnd allows tests to pin the jitter roll. Defaults to math/rand.
	rnd func() float64
}

func (b Backoff) base() time.Duration {
	if b.Base <= 0 {
		return 5 * time.Second
	}
	return b.Base
}

func (b Backoff) max() time.Duration {
	if b.Max <= 0 {
		return 10 * time.Minute
	}
	return b.Max
}

func (b Backoff) jitter() float64 {
	if b.Jitter <= 0 || b.Jitter >= 1 {
		return 0.2
	}
	return b.Jitter
}

// Next returns the jittered delay to apply after the given number of
// attempts already made.
func (b Backoff) Next(attempts int) time.Duration {
	if attempts < 0 {
		attempts = 0
	}
	base := float64(b.base())
	det := base * math.Pow(2, float64(attempts))
	if capped := float64(b.max()); det > capped {
		det = capped
	}

	roll := b.rnd
	if roll == nil {
		roll = rand.Float64
	}
	j := b.jitter()
	factor := 1 - j + 2*j*roll()
	return time.Duration(det * factor)
}
