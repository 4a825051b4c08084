package memory

import (
	"fmt"
	"time"
)

// Unlimited disables a capacity or TTL bound when assigned to
// Policy.MaxSize or Policy.TTLSeconds.
const Unlimited = -1

// Variant selects the storage behavior of a Memory instance.
type Variant string

const (
	// VariantBuffer is a plain in-memory key/value map with upsert semantics.
	VariantBuffer Variant = "buffer"

	// VariantConversation keeps an append-only, newest-first history of
	// entries. Storing an existing key appends a new entry rather than
	// overwriting; Retrieve returns the most recent entry for the key.
	VariantConversation Variant = "conversation"

	// VariantPersistentFile is a Buffer mirrored write-through to a single
	// compressed snapshot file.
	VariantPersistentFile Variant = "persistent_file"

	// VariantPersistentDatabase is a Buffer mirrored write-through to an
	// externally supplied Repository.
	VariantPersistentDatabase Variant = "persistent_database"

	// VariantVector is a placeholder for semantic/vector storage. All
	// operations delegate to Buffer semantics; no similarity search is
	// performed.
	VariantVector Variant = "vector"
)

// Validate returns ErrInvalidConfig if the variant is not a known value.
func (v Variant) Validate() error {
	switch v {
	case VariantBuffer, VariantConversation, VariantPersistentFile,
		VariantPersistentDatabase, VariantVector:
		return nil
	default:
		return fmt.Errorf("%w: unknown variant %q", ErrInvalidConfig, string(v))
	}
}

// Strategy selects the victim-ranking rule used when capacity is exceeded.
type Strategy string

const (
	// StrategyLRU evicts the keys touched longest ago, using the freshness
	// timestamp for keys that have never been read through GetAndTrack.
	StrategyLRU Strategy = "lru"

	// StrategyLFU evicts the keys with the lowest access count. Ties are
	// broken by ascending freshness, then key, which keeps the ordering
	// deterministic and stable.
	StrategyLFU Strategy = "lfu"

	// StrategyTTL evicts every key whose freshness timestamp is older than
	// the configured TTL. It is expiry-driven, not capacity-driven, and is
	// not bounded by EvictFraction.
	StrategyTTL Strategy = "ttl"

	// StrategyHybrid applies TTL expiry first, then LRU if the store still
	// exceeds MaxSize.
	StrategyHybrid Strategy = "hybrid"
)

// Validate returns ErrInvalidConfig if the strategy is not a known value.
func (s Strategy) Validate() error {
	switch s {
	case StrategyLRU, StrategyLFU, StrategyTTL, StrategyHybrid:
		return nil
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, string(s))
	}
}

// Policy controls capacity eviction for a Memory instance.
type Policy struct {
	// MaxSize is the size above which eviction triggers, or Unlimited.
	MaxSize int

	// TTLSeconds is the per-key time-to-live measured from the key's last
	// write, or Unlimited. Only the TTL and Hybrid strategies consult it.
	TTLSeconds int

	// Strategy is the victim-ranking rule.
	Strategy Strategy

	// EvictFraction is the fraction of current size removed per eviction
	// pass, in (0, 1]. At least one key is always removed.
	EvictFraction float64

	// AutoEvict runs the configured strategy synchronously after every
	// store, and enables Prune.
	AutoEvict bool
}

// DefaultPolicy returns the default eviction policy: unbounded size and
// TTL, LRU strategy, 20% eviction batches, auto-eviction enabled.
func DefaultPolicy() Policy {
	return Policy{
		MaxSize:       Unlimited,
		TTLSeconds:    Unlimited,
		Strategy:      StrategyLRU,
		EvictFraction: 0.2,
		AutoEvict:     true,
	}
}

// Validate checks the policy's strategy and eviction fraction.
func (p Policy) Validate() error {
	if err := p.Strategy.Validate(); err != nil {
		return err
	}
	if p.EvictFraction <= 0 || p.EvictFraction > 1 {
		return fmt.Errorf("%w: evict_fraction %v outside (0,1]", ErrInvalidConfig, p.EvictFraction)
	}
	return nil
}

func (p Policy) ttl() time.Duration {
	return time.Duration(p.TTLSeconds) * time.Second
}

// Entry is a single record in a Conversation history.
type Entry struct {
	// ID uniquely identifies this entry within the history.
	ID string `json:"id"`

	// Key is the key this entry was stored under. The same key may appear
	// in multiple entries.
	Key string `json:"key"`

	// Value is the stored data. Any JSON-serializable value is accepted.
	Value any `json:"value"`

	// Timestamp is when the entry was stored.
	Timestamp time.Time `json:"timestamp"`
}
