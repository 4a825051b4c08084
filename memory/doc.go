// Package memory provides a value-oriented, key-addressed store for LLM
// application pipelines, with configurable capacity eviction and optional
// durability.
//
// A [Memory] is an immutable value: every mutating operation returns a new
// instance and never modifies the one it was called on. Two goroutines
// holding the same instance share no mutable state, so no locking is
// required around a single value. Callers that want shared-session
// semantics must hold one instance behind their own synchronization.
//
// # Variants
//
// Five storage variants share one operation surface:
//
//   - Buffer: plain in-memory key/value map.
//   - Conversation: append-only, newest-first history; the same key may
//     appear multiple times and Retrieve returns the most recent entry.
//   - PersistentFile: Buffer semantics mirrored write-through to a single
//     compressed snapshot file with atomic tmp+rename replacement.
//   - PersistentDatabase: Buffer semantics mirrored write-through to an
//     externally supplied [Repository] (Redis and SQL implementations ship
//     in the redisrepo and sqlrepo packages).
//   - Vector: a placeholder for semantic storage. It currently delegates
//     every operation to Buffer semantics; callers should not rely on any
//     similarity behavior.
//
// # Eviction
//
// Capacity is enforced by four interchangeable strategies (LRU, LFU, TTL,
// Hybrid) driven by per-key access statistics. A key's freshness timestamp
// resets on every store, so TTL measures time since the last write, not
// time since creation. Access counts advance only through [Memory.GetAndTrack];
// a plain [Memory.Retrieve] never touches statistics.
//
//	cfg := memory.DefaultConfig()
//	cfg.MaxSize = 100
//	cfg.Strategy = memory.StrategyLRU
//
//	m, err := memory.New(ctx, memory.VariantBuffer, cfg)
//	if err != nil {
//	    return err
//	}
//	m, _ = m.Store(ctx, "finding", "open redirect on /login")
//	m, v, err := m.GetAndTrack(ctx, "finding")
//
// # Durability and failure
//
// Persistence is write-through and soft-failing: the in-memory mutation
// always succeeds, and a failed durable write is reported as a wrapped
// [ErrPersistFailed] alongside the valid updated instance. Loading a
// missing snapshot file yields an empty store; loading a corrupt one is
// treated the same way and logged, never raised. This data-loss tolerance
// is deliberate — callers that need to detect it should wrap the store
// with their own schema/version key.
//
// Nothing in this package locks the snapshot file or database rows across
// processes. Concurrent writers to the same path or table race, and the
// last atomic rename (or last repository write) wins.
package memory
