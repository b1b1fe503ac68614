package backoff

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff_BoundsAndCap(t *testing.T) {
	b := New(Policy{Base: 200 * time.Millisecond, Multiplier: 1.6, Cap: 500 * time.Millisecond, Seed: 42})

	require.Equal(t, 200*time.Millisecond, b.Next())
	for range 10 {
		next := b.Next()
		require.GreaterOrEqual(t, next, 200*time.Millisecond)
		require.LessOrEqual(t, next, 500*time.Millisecond)
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := New(Policy{Base: 10 * time.Millisecond, Multiplier: 3, Cap: time.Second, Seed: 7})
	for range 5 {
		b.Next()
	}
	b.Reset()

	require.Equal(t, 10*time.Millisecond, b.Next())
}

func TestBackoff_CapLessThanBase(t *testing.T) {
	b := New(Policy{Base: 200 * time.Millisecond, Cap: 100 * time.Millisecond, Seed: 1})

	require.Equal(t, 100*time.Millisecond, b.Next())
	require.Equal(t, 100*time.Millisecond, b.Next())
}

func TestBackoff_Defaults(t *testing.T) {
	b := New(Policy{})

	require.Equal(t, DefaultBase, b.policy.Base)
	require.InDelta(t, DefaultMultiplier, b.policy.Multiplier, 0)
	require.Equal(t, DefaultCap, b.policy.Cap)
	require.Nil(t, b.rng)
	require.Equal(t, DefaultBase, b.Next())
}

func TestBackoff_DeterministicWithSeed(t *testing.T) {
	a := New(Policy{Base: 50 * time.Millisecond, Multiplier: 2, Cap: 5 * time.Second, Seed: 99})
	b := New(Policy{Base: 50 * time.Millisecond, Multiplier: 2, Cap: 5 * time.Second, Seed: 99})

	for range 8 {
		require.Equal(t, a.Next(), b.Next())
	}
}

func TestBackoff_WaitHonorsContext(t *testing.T) {
	b := New(Policy{Base: time.Hour, Cap: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, b.Wait(ctx), context.Canceled)
}
