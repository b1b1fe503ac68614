// Package backoff provides capped, jittered retry delays for receive loops.
package backoff

import (
	"context"
	rand "math/rand/v2"
	"time"
)

// Default policy values used when a Policy field is zero.
const (
	DefaultBase       = 50 * time.Millisecond
	DefaultMultiplier = 1.6
	DefaultCap        = 2 * time.Second
)

// Policy describes how retry delays grow.
type Policy struct {
	// Base is the first delay and the lower bound of every delay.
	Base time.Duration
	// Multiplier scales the previous delay to form the jitter window (<1 means no growth).
	Multiplier float64
	// Cap bounds every delay (0 = DefaultCap).
	Cap time.Duration
	// Seed makes the jitter sequence deterministic when non-zero.
	Seed int64
}

// Backoff produces successive delays for one retry sequence.
//
// Not safe for concurrent use; each receive loop owns its own Backoff.
type Backoff struct {
	policy Policy
	prev   time.Duration
	rng    *rand.Rand
}

// New creates a Backoff from the policy, filling zero fields with defaults.
func New(policy Policy) *Backoff {
	if policy.Base <= 0 {
		policy.Base = DefaultBase
	}
	if policy.Multiplier == 0 {
		policy.Multiplier = DefaultMultiplier
	}
	if policy.Cap <= 0 {
		policy.Cap = DefaultCap
	}

	return &Backoff{policy: policy, rng: newRNG(policy.Seed)}
}

// Next returns the next delay and advances the sequence.
func (b *Backoff) Next() time.Duration {
	b.prev = jitter(b.prev, b.policy.Base, b.policy.Multiplier, b.policy.Cap, b.rng)

	return b.prev
}

// Reset restarts the sequence from Base after a success.
func (b *Backoff) Reset() {
	b.prev = 0
}

// Wait sleeps for the next delay or until ctx is done.
//
// Returns:
//   - error: ctx.Err() if the context finished first
func (b *Backoff) Wait(ctx context.Context) error {
	timer := time.NewTimer(b.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// jitter computes a decorrelated jitter delay with a cap.
// See: https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
//
//	next = min(cap, base + rand(prev*mult - base))
//
// prev <= 0 starts from base; a cap below base always returns the cap.
func jitter(prev, base time.Duration, mult float64, capDur time.Duration, rng *rand.Rand) time.Duration {
	if mult < 1.0 {
		mult = 1.0
	}
	if capDur < base {
		return capDur
	}
	if prev <= 0 {
		return base
	}

	window := time.Duration(float64(prev)*mult) - base
	if window <= 0 {
		window = base
	}

	var offset int64
	if rng != nil {
		offset = rng.Int64N(int64(window))
	} else {
		offset = rand.Int64N(int64(window)) //nolint:gosec // non-crypto backoff jitter
	}

	return min(base+time.Duration(offset), capDur)
}

// newRNG returns a deterministic RNG for a non-zero seed, nil otherwise so
// callers fall back to the package-level PRNG.
//
//nolint:gosec
func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}
