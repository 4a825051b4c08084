package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldEvict(t *testing.T) {
	ctx := context.Background()

	t.Run("false under unlimited size", func(t *testing.T) {
		m := newBuffer(t, DefaultConfig())
		m, _ = m.Store(ctx, "a", 1)
		assert.False(t, m.ShouldEvict())
	})

	t.Run("true only above the bound", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.MaxSize = 2
		cfg.AutoEvict = false
		m := newBuffer(t, cfg)

		m, _ = m.Store(ctx, "a", 1)
		m, _ = m.Store(ctx, "b", 2)
		assert.False(t, m.ShouldEvict(), "at capacity is not over capacity")

		m, _ = m.Store(ctx, "c", 3)
		assert.True(t, m.ShouldEvict())
	})
}

// The concrete scenario from the design discussion: max_size=2, lru,
// evict_fraction=0.5, auto_evict=true. Storing a third key must evict
// exactly floor(3*0.5)=1 key, and the victim must be the first key, which
// was never read and has the oldest freshness.
func TestLRUEvictsLeastRecentlyTouched(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.Strategy = StrategyLRU
	cfg.EvictFraction = 0.5
	m := newBuffer(t, cfg, WithClock(clock.Now))

	m, _ = m.Store(ctx, "k1", "v1")
	m, _ = m.Store(ctx, "k2", "v2")
	require.Equal(t, 2, m.Size())

	m, _ = m.Store(ctx, "k3", "v3")
	assert.Equal(t, 2, m.Size(), "exactly one victim")
	assert.Equal(t, []string{"k2", "k3"}, m.Keys())

	_, err := m.Retrieve(ctx, "k1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLRUTrackedReadProtectsKey(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.Strategy = StrategyLRU
	cfg.EvictFraction = 0.5
	m := newBuffer(t, cfg, WithClock(clock.Now))

	m, _ = m.Store(ctx, "a", 1)
	m, _ = m.Store(ctx, "b", 2)

	// Touch "a" so "b" becomes the least recently used.
	m, _, err := m.GetAndTrack(ctx, "a")
	require.NoError(t, err)

	m, _ = m.Store(ctx, "c", 3)
	assert.Equal(t, []string{"a", "c"}, m.Keys())
}

func TestLFUEvictsLeastFrequentlyUsed(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	cfg := DefaultConfig()
	cfg.MaxSize = 2
	cfg.Strategy = StrategyLFU
	cfg.EvictFraction = 0.5
	m := newBuffer(t, cfg, WithClock(clock.Now))

	m, _ = m.Store(ctx, "cold", 1)
	m, _ = m.Store(ctx, "hot", 2)
	m, _, _ = m.GetAndTrack(ctx, "cold")
	m, _, _ = m.GetAndTrack(ctx, "hot")
	m, _, _ = m.GetAndTrack(ctx, "hot")

	// "warm" arrives with count 0 but the ranking must still pick "cold"
	// over "hot" once "warm"'s own store pushes size past the bound...
	// except "warm" itself has the lowest count, so it is the victim.
	m, _ = m.Store(ctx, "warm", 3)
	assert.Equal(t, []string{"cold", "hot"}, m.Keys())

	t.Run("ties break by freshness, oldest write first", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AutoEvict = false
		n := newBuffer(t, cfg, WithClock(clock.Now))
		n, _ = n.Store(ctx, "older", 1)
		n, _ = n.Store(ctx, "newer", 2)

		n = n.ForceEvict(ctx, StrategyLFU)
		assert.Equal(t, []string{"newer"}, n.Keys())
	})
}

func TestTTLExpiry(t *testing.T) {
	ctx := context.Background()

	t.Run("prune removes aged keys and keeps fresh ones", func(t *testing.T) {
		clock := newTestClock()
		cfg := DefaultConfig()
		cfg.Strategy = StrategyTTL
		cfg.TTLSeconds = 60
		m := newBuffer(t, cfg, WithClock(clock.Now))

		m, _ = m.Store(ctx, "stale", "old data")
		clock.Advance(61 * time.Second)
		m, _ = m.Store(ctx, "fresh", "new data")

		m = m.Prune(ctx)
		assert.Equal(t, []string{"fresh"}, m.Keys())
	})

	t.Run("freshness resets on overwrite, restarting the clock", func(t *testing.T) {
		clock := newTestClock()
		cfg := DefaultConfig()
		cfg.Strategy = StrategyTTL
		cfg.TTLSeconds = 60
		m := newBuffer(t, cfg, WithClock(clock.Now))

		m, _ = m.Store(ctx, "refreshed", "v1")
		clock.Advance(45 * time.Second)
		m, _ = m.Store(ctx, "refreshed", "v2")
		clock.Advance(45 * time.Second)

		// 90s since first write, 45s since last: still alive.
		m = m.Prune(ctx)
		assert.Equal(t, []string{"refreshed"}, m.Keys())
	})

	t.Run("unlimited ttl never expires", func(t *testing.T) {
		clock := newTestClock()
		cfg := DefaultConfig()
		cfg.Strategy = StrategyTTL
		m := newBuffer(t, cfg, WithClock(clock.Now))

		m, _ = m.Store(ctx, "k", "v")
		clock.Advance(365 * 24 * time.Hour)
		m = m.Prune(ctx)
		assert.Equal(t, 1, m.Size())
	})

	t.Run("ttl sweep is not bounded by evict fraction", func(t *testing.T) {
		clock := newTestClock()
		cfg := DefaultConfig()
		cfg.Strategy = StrategyTTL
		cfg.TTLSeconds = 60
		cfg.EvictFraction = 0.1
		m := newBuffer(t, cfg, WithClock(clock.Now))

		for i := 0; i < 10; i++ {
			m, _ = m.Store(ctx, fmt.Sprintf("k%d", i), i)
		}
		clock.Advance(61 * time.Second)

		m = m.Prune(ctx)
		assert.Equal(t, 0, m.Size(), "every expired key goes in one pass")
	})
}

func TestHybridStrategy(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	cfg := DefaultConfig()
	cfg.Strategy = StrategyHybrid
	cfg.TTLSeconds = 60
	cfg.MaxSize = 2
	cfg.EvictFraction = 0.5
	cfg.AutoEvict = false
	m := newBuffer(t, cfg, WithClock(clock.Now))

	m, _ = m.Store(ctx, "expired1", 1)
	m, _ = m.Store(ctx, "expired2", 2)
	clock.Advance(61 * time.Second)
	m, _ = m.Store(ctx, "lru-victim", 3)
	m, _ = m.Store(ctx, "recent1", 4)
	m, _ = m.Store(ctx, "recent2", 5)
	require.Equal(t, 5, m.Size())

	m = m.ForceEvict(ctx, StrategyHybrid)

	// TTL removed the two expired keys; size 3 still exceeds 2, so one
	// LRU pass removes the oldest remaining key.
	assert.Equal(t, []string{"recent1", "recent2"}, m.Keys())
}

func TestForceEvict(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	t.Run("ignores capacity and auto_evict", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.AutoEvict = false
		m := newBuffer(t, cfg, WithClock(clock.Now))
		m, _ = m.Store(ctx, "a", 1)
		m, _ = m.Store(ctx, "b", 2)

		m = m.ForceEvict(ctx)
		assert.Equal(t, 1, m.Size(), "unlimited capacity still evicts one key")
		assert.Equal(t, []string{"b"}, m.Keys())
	})

	t.Run("explicit strategy overrides the configured one", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Strategy = StrategyLFU
		cfg.AutoEvict = false
		m := newBuffer(t, cfg, WithClock(clock.Now))
		m, _ = m.Store(ctx, "a", 1)
		m, _, _ = m.GetAndTrack(ctx, "a")
		m, _ = m.Store(ctx, "b", 2)

		// LFU would pick "b" (count 0); LRU picks "a" (touched earlier).
		n := m.ForceEvict(ctx, StrategyLRU)
		assert.Equal(t, []string{"b"}, n.Keys())
	})

	t.Run("empty store is a no-op", func(t *testing.T) {
		m := newBuffer(t, DefaultConfig(), WithClock(clock.Now))
		n := m.ForceEvict(ctx)
		assert.Equal(t, 0, n.Size())
	})
}

func TestAutoEvictDisabled(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()
	cfg.MaxSize = 1
	cfg.AutoEvict = false
	m := newBuffer(t, cfg)

	m, _ = m.Store(ctx, "a", 1)
	m, _ = m.Store(ctx, "b", 2)
	assert.Equal(t, 2, m.Size(), "no eviction after store")

	m = m.Prune(ctx)
	assert.Equal(t, 2, m.Size(), "prune honors auto_evict")
}

// Capacity invariant: with auto_evict on, size never exceeds MaxSize
// immediately after any store.
func TestCapacityInvariant(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	for _, strat := range []Strategy{StrategyLRU, StrategyLFU} {
		t.Run(string(strat), func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.MaxSize = 5
			cfg.Strategy = strat
			m := newBuffer(t, cfg, WithClock(clock.Now))

			for i := 0; i < 50; i++ {
				var err error
				m, err = m.Store(ctx, fmt.Sprintf("k%03d", i), i)
				require.NoError(t, err)
				require.LessOrEqual(t, m.Size(), 5)
			}
		})
	}
}

func TestEvictionOnConversation(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()

	cfg := DefaultConfig()
	cfg.MaxSize = 3
	cfg.Strategy = StrategyLRU
	cfg.EvictFraction = 0.5
	m, err := New(ctx, VariantConversation, cfg, WithClock(clock.Now))
	require.NoError(t, err)

	// Two entries under one key: evicting that key drops both.
	m, _ = m.Store(ctx, "chatty", "msg1")
	m, _ = m.Store(ctx, "chatty", "msg2")
	m, _ = m.Store(ctx, "quiet", "msg3")
	m, _ = m.Store(ctx, "late", "msg4")

	// Size hit 4 > 3; floor(4*0.5)=2 victim keys, oldest freshness first:
	// "chatty" (both entries) and "quiet".
	assert.Equal(t, []string{"late"}, m.Keys())
	assert.Equal(t, 1, m.Size())
}
