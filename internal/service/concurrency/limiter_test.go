package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewLimiter(client, limit, time.Minute), mr
}

func TestLimiterCapsInFlightClaims(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 2)

	for i := 0; i < 2; i++ {
		ok, err := limiter.Acquire(ctx, "ext-1")
		require.NoError(t, err)
		require.True(t, ok, "slot %d should be granted", i+1)
	}

	ok, err := limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.False(t, ok, "third slot should be denied")

	// A different identity has its own budget.
	ok, err = limiter.Acquire(ctx, "ext-2")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestLimiterReleaseFreesSlot(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 1)

	ok, err := limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, limiter.Release(ctx, "ext-1"))

	ok, err = limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.True(t, ok, "released slot should be reusable")
}

func TestLimiterReleaseWithoutAcquire(t *testing.T) {
	ctx := context.Background()
	limiter, _ := newTestLimiter(t, 1)

	// An unmatched release must not open extra capacity.
	require.NoError(t, limiter.Release(ctx, "ext-1"))

	ok, err := limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLimiterUnlimitedIdentities(t *testing.T) {
	ctx := context.Background()

	// A zero limit disables the cap entirely.
	limiter, _ := newTestLimiter(t, 0)
	for i := 0; i < 10; i++ {
		ok, err := limiter.Acquire(ctx, "ext-1")
		require.NoError(t, err)
		require.True(t, ok)
	}

	// An empty identity bypasses the limiter.
	limited, _ := newTestLimiter(t, 1)
	for i := 0; i < 3; i++ {
		ok, err := limited.Acquire(ctx, "")
		require.NoError(t, err)
		require.True(t, ok)
	}
}

func TestLimiterSlotExpiry(t *testing.T) {
	ctx := context.Background()
	limiter, mr := newTestLimiter(t, 1)

	ok, err := limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.True(t, ok)

	// Abandoned slots expire with the key TTL instead of leaking forever.
	mr.FastForward(2 * time.Minute)

	ok, err = limiter.Acquire(ctx, "ext-1")
	require.NoError(t, err)
	require.True(t, ok, "slot should reopen after the claim ttl")
}
