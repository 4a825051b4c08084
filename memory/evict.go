package memory

import (
	"context"
	"sort"
	"time"
)

// ShouldEvict reports whether the store currently exceeds its capacity
// bound. Always false when MaxSize is Unlimited.
func (m *Memory) ShouldEvict() bool {
	return m.policy.MaxSize != Unlimited && m.Size() > m.policy.MaxSize
}

// Prune applies the configured strategy outside the write path, for
// scheduled or manual cleanup. It honors AutoEvict the same way the
// post-store check does and never fails: persistence problems during
// victim removal are logged and swallowed.
func (m *Memory) Prune(ctx context.Context) *Memory {
	return m.autoEvict(ctx)
}

// ForceEvict applies the given strategy, or the configured one when none
// is passed, unconditionally: it ignores both AutoEvict and the capacity
// check. The TTL component still removes nothing when TTLSeconds is
// Unlimited.
func (m *Memory) ForceEvict(ctx context.Context, strategy ...Strategy) *Memory {
	strat := m.policy.Strategy
	if len(strategy) > 0 {
		strat = strategy[0]
	}

	switch strat {
	case StrategyTTL:
		return m.evictExpired(ctx)
	case StrategyHybrid:
		n := m.evictExpired(ctx)
		if n.ShouldEvict() {
			n = n.evictRanked(ctx, StrategyLRU)
		}
		return n
	case StrategyLFU:
		return m.evictRanked(ctx, StrategyLFU)
	default:
		return m.evictRanked(ctx, StrategyLRU)
	}
}

// autoEvict runs after every store and inside Prune. Capacity-driven
// strategies (LRU, LFU) trigger only once size exceeds MaxSize. The TTL
// component is expiry-driven, not size-driven, so TTL and Hybrid sweep
// expired keys regardless of capacity; Hybrid then falls back to LRU if
// the store is still over its bound.
func (m *Memory) autoEvict(ctx context.Context) *Memory {
	if !m.policy.AutoEvict {
		return m
	}

	switch m.policy.Strategy {
	case StrategyTTL:
		return m.evictExpired(ctx)
	case StrategyHybrid:
		n := m.evictExpired(ctx)
		if n.ShouldEvict() {
			n = n.evictRanked(ctx, StrategyLRU)
		}
		return n
	case StrategyLFU:
		if m.ShouldEvict() {
			return m.evictRanked(ctx, StrategyLFU)
		}
	default:
		if m.ShouldEvict() {
			return m.evictRanked(ctx, StrategyLRU)
		}
	}
	return m
}

// evictRanked removes max(1, floor(size*EvictFraction)) keys, lowest
// ranked first, as repeated single-key deletions.
func (m *Memory) evictRanked(ctx context.Context, strat Strategy) *Memory {
	ranked := m.rankVictims(strat)
	if len(ranked) == 0 {
		return m
	}

	count := int(float64(m.Size()) * m.policy.EvictFraction)
	if count < 1 {
		count = 1
	}
	if count > len(ranked) {
		count = len(ranked)
	}
	return m.evictKeys(ctx, ranked[:count], strat)
}

// rankVictims orders all keys ascending by the strategy's criterion.
//
// LRU ranks by last-access time, falling back to the freshness timestamp
// for keys never read through GetAndTrack. LFU ranks by access count; the
// source behavior left equal counts unordered, so ties break by ascending
// freshness and then key to keep the ranking deterministic and stable.
func (m *Memory) rankVictims(strat Strategy) []string {
	keys := m.payload.keys()

	switch strat {
	case StrategyLFU:
		sort.Slice(keys, func(i, j int) bool {
			ci, cj := m.stats.access[keys[i]], m.stats.access[keys[j]]
			if ci != cj {
				return ci < cj
			}
			fi, fj := m.stats.fresh[keys[i]], m.stats.fresh[keys[j]]
			if !fi.Equal(fj) {
				return fi.Before(fj)
			}
			return keys[i] < keys[j]
		})
	default:
		touched := func(k string) time.Time {
			if t, ok := m.stats.last[k]; ok {
				return t
			}
			return m.stats.fresh[k]
		}
		sort.Slice(keys, func(i, j int) bool {
			ti, tj := touched(keys[i]), touched(keys[j])
			if !ti.Equal(tj) {
				return ti.Before(tj)
			}
			return keys[i] < keys[j]
		})
	}
	return keys
}

// evictExpired removes every key whose freshness timestamp predates
// now - TTL. It is not bounded by EvictFraction: one pass clears all
// expired keys. No-op when TTLSeconds is Unlimited.
func (m *Memory) evictExpired(ctx context.Context) *Memory {
	if m.policy.TTLSeconds == Unlimited {
		return m
	}

	cutoff := m.clock().Add(-m.policy.ttl())
	var victims []string
	for _, k := range m.payload.keys() {
		if m.stats.fresh[k].Before(cutoff) {
			victims = append(victims, k)
		}
	}
	sort.Strings(victims)
	return m.evictKeys(ctx, victims, StrategyTTL)
}

// evictKeys deletes the victims from storage and statistics. Eviction
// guarantees a bounded in-memory footprint, not durable shrinkage: a
// durable delete that cannot be flushed is logged and swallowed.
func (m *Memory) evictKeys(ctx context.Context, victims []string, strat Strategy) *Memory {
	if len(victims) == 0 {
		return m
	}

	n := m.clone()
	for _, k := range victims {
		n.payload = n.payload.remove(k)
		n.stats = n.stats.purge(k)
		if n.variant == VariantPersistentDatabase && n.repo != nil {
			if err := n.repo.Delete(ctx, n.table, k); err != nil {
				recordPersistFailure(ctx, n.variant)
				n.logger.Warn("evicted key not removed from durable storage",
					"table", n.table, "key", k, "error", err)
			}
		}
	}
	if n.variant == VariantPersistentFile {
		_ = n.persistSnapshot(ctx) // soft failure, already logged
	}

	recordEvictions(ctx, n.variant, len(victims), strat)
	n.logger.Debug("memory eviction pass",
		"strategy", string(strat), "victims", len(victims), "size", n.Size())
	return n
}
