package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// Memory is an immutable key-addressed store. Every mutating operation
// returns a new instance; the receiver is never modified. See the package
// documentation for the variant and eviction semantics.
type Memory struct {
	variant Variant
	policy  Policy
	payload payload
	stats   stats

	// File persistence. Empty path disables it.
	path string

	// Database persistence. Nil repo disables it.
	repo  Repository
	table string

	logger *slog.Logger
	clock  func() time.Time
}

// Option configures a Memory at construction time.
type Option func(*Memory)

// WithLogger sets the logger used for soft-fail and eviction reporting.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Memory) {
		m.logger = logger
	}
}

// WithRepository supplies the storage backend for the PersistentDatabase
// variant. Without one the instance operates in-memory only.
func WithRepository(repo Repository) Option {
	return func(m *Memory) {
		m.repo = repo
	}
}

// WithClock overrides the wall-clock source. Freshness, last-access, and
// TTL cutoffs all derive from it.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.clock = now
	}
}

// New constructs a Memory instance for the given variant and configuration.
//
// For PersistentFile, the snapshot at cfg.Path is loaded immediately: a
// missing file yields an empty store and a corrupt one is discarded with a
// warning, never an error. A PersistentFile instance without a path, or a
// PersistentDatabase instance without a repository, stays usable as an
// in-memory-only store with persistence skipped.
func New(ctx context.Context, variant Variant, cfg Config, opts ...Option) (*Memory, error) {
	if err := variant.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	m := &Memory{
		variant: variant,
		policy:  cfg.policy(),
		stats:   newStats(),
		path:    cfg.Path,
		table:   cfg.Table,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}

	switch variant {
	case VariantConversation:
		m.payload = newConversationPayload()
	default:
		m.payload = newBufferPayload()
	}

	switch variant {
	case VariantPersistentFile:
		if m.path == "" {
			m.logger.Warn("persistent_file memory has no path, operating in-memory only")
			break
		}
		snap := loadSnapshot(m.path, m.logger)
		now := m.clock()
		for k := range snap {
			m.stats = m.stats.recordWrite(k, now)
		}
		m.payload = snap
	case VariantPersistentDatabase:
		if m.repo == nil {
			m.logger.Warn("persistent_database memory has no repository, operating in-memory only")
			break
		}
		m.seedFromRepository(ctx)
	}

	return m, nil
}

// seedFromRepository loads the table into the in-memory map and restores
// per-key statistics from the row metadata. A scan failure degrades to an
// empty store; the instance stays usable.
func (m *Memory) seedFromRepository(ctx context.Context) {
	rows, err := m.repo.Scan(ctx, m.table)
	if err != nil {
		m.logger.Warn("memory repository scan failed, starting empty",
			"table", m.table, "error", err)
		return
	}

	buf := newBufferPayload()
	for _, row := range rows {
		var v any
		if err := json.Unmarshal(row.Value, &v); err != nil {
			m.logger.Warn("memory row undecodable, skipping",
				"table", m.table, "key", row.Key, "error", err)
			continue
		}
		buf[row.Key] = v
		m.stats.fresh[row.Key] = row.UpdatedAt
		m.stats.access[row.Key] = int(row.AccessCount)
		if !row.LastAccess.IsZero() {
			m.stats.last[row.Key] = row.LastAccess
		}
	}
	m.payload = buf
}

// Variant returns the storage variant of this instance.
func (m *Memory) Variant() Variant {
	return m.variant
}

// Policy returns the eviction policy of this instance.
func (m *Memory) Policy() Policy {
	return m.policy
}

// Size returns the number of stored items. For Conversation this counts
// every history entry, including multiple entries for the same key.
func (m *Memory) Size() int {
	return m.payload.size()
}

// Keys returns the distinct stored keys in sorted order, each exactly once.
func (m *Memory) Keys() []string {
	keys := m.payload.keys()
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the Conversation history, newest first. For
// every other variant it returns nil.
func (m *Memory) Entries() []Entry {
	conv, ok := m.payload.(conversationPayload)
	if !ok {
		return nil
	}
	out := make([]Entry, len(conv))
	copy(out, conv)
	return out
}

// Store upserts the key (Buffer and persistent variants) or appends a new
// history entry (Conversation), resets the key's freshness timestamp, and
// runs auto-eviction if the policy calls for it.
//
// The in-memory write always succeeds. A non-nil error is always a wrapped
// ErrPersistFailed from the durable mirror: the returned instance is valid
// and holds the new value regardless.
func (m *Memory) Store(ctx context.Context, key string, value any) (*Memory, error) {
	if key == "" {
		return m, ErrInvalidKey
	}

	now := m.clock()
	n := m.clone()
	n.payload = m.payload.store(key, value, now)
	n.stats = m.stats.recordWrite(key, now)

	err := n.persistUpsert(ctx, key, value)
	n = n.autoEvict(ctx)
	return n, err
}

// Retrieve returns the value for the key, or ErrNotFound. For Conversation
// the most recent entry wins. Persistent variants fall back to the durable
// copy when the key is absent from the in-memory map. Retrieve never
// touches access statistics; use GetAndTrack for reads that should count.
func (m *Memory) Retrieve(ctx context.Context, key string) (any, error) {
	if v, ok := m.payload.retrieve(key); ok {
		return v, nil
	}

	switch m.variant {
	case VariantPersistentFile:
		if m.path == "" {
			break
		}
		snap := loadSnapshot(m.path, m.logger)
		if v, ok := snap[key]; ok {
			return v, nil
		}
	case VariantPersistentDatabase:
		if m.repo == nil {
			break
		}
		row, err := m.repo.Get(ctx, m.table, key)
		if err == nil {
			var v any
			if jerr := json.Unmarshal(row.Value, &v); jerr == nil {
				return v, nil
			}
		}
	}

	recordMiss(ctx, m.variant)
	return nil, ErrNotFound
}

// GetAndTrack retrieves the key and, on a hit, records a tracked read:
// the access count increments and the last-access timestamp updates on the
// returned instance. On a miss the instance comes back unchanged.
func (m *Memory) GetAndTrack(ctx context.Context, key string) (*Memory, any, error) {
	v, err := m.Retrieve(ctx, key)
	if err != nil {
		return m, nil, err
	}

	recordHit(ctx, m.variant)
	n := m.clone()
	n.stats = m.stats.recordRead(key, m.clock())
	return n, v, nil
}

// Delete removes every entry stored under the key and purges the key from
// all three statistics maps. Deleting an absent key is a no-op. The error,
// when non-nil, is a soft persistence failure; the in-memory removal has
// already taken effect on the returned instance.
func (m *Memory) Delete(ctx context.Context, key string) (*Memory, error) {
	n := m.clone()
	n.payload = m.payload.remove(key)
	n.stats = m.stats.purge(key)

	return n, n.persistDelete(ctx, key)
}

// Clear resets the instance to its empty form: storage, statistics, and
// policy all return to their initial state. For persistent variants the
// durable copy is removed as well, since it would otherwise outlive the
// in-process value.
func (m *Memory) Clear(ctx context.Context) (*Memory, error) {
	n := m.clone()
	n.payload = m.payload.clear()
	n.stats = newStats()
	n.policy = DefaultPolicy()

	var err error
	switch m.variant {
	case VariantPersistentFile:
		if m.path != "" {
			err = removeSnapshot(m.path)
		}
	case VariantPersistentDatabase:
		if m.repo != nil {
			err = m.clearRepository(ctx)
		}
	}
	if err != nil {
		recordPersistFailure(ctx, m.variant)
		m.logger.Warn("memory clear did not reach durable storage", "error", err)
	}
	return n, err
}

func (m *Memory) clearRepository(ctx context.Context) error {
	rows, err := m.repo.Scan(ctx, m.table)
	if err != nil {
		return fmt.Errorf("%w: scan: %v", ErrPersistFailed, err)
	}
	for _, row := range rows {
		if err := m.repo.Delete(ctx, m.table, row.Key); err != nil {
			return fmt.Errorf("%w: delete %q: %v", ErrPersistFailed, row.Key, err)
		}
	}
	return nil
}

func (m *Memory) clone() *Memory {
	n := *m
	return &n
}

// persistUpsert mirrors a single store to durable storage. Only the
// persistent variants do any work; both soft-fail.
func (m *Memory) persistUpsert(ctx context.Context, key string, value any) error {
	switch m.variant {
	case VariantPersistentFile:
		return m.persistSnapshot(ctx)
	case VariantPersistentDatabase:
		if m.repo == nil {
			return nil
		}
		data, err := json.Marshal(value)
		if err != nil {
			recordPersistFailure(ctx, m.variant)
			return fmt.Errorf("%w: encode %q: %v", ErrPersistFailed, key, err)
		}
		now := m.stats.fresh[key]
		row := Row{
			Key:         key,
			Value:       data,
			CreatedAt:   now,
			UpdatedAt:   now,
			AccessCount: int64(m.stats.access[key]),
			LastAccess:  m.stats.last[key],
		}
		if err := m.repo.Upsert(ctx, m.table, row); err != nil {
			recordPersistFailure(ctx, m.variant)
			m.logger.Warn("memory upsert did not reach durable storage",
				"table", m.table, "key", key, "error", err)
			return fmt.Errorf("%w: upsert %q: %v", ErrPersistFailed, key, err)
		}
	}
	return nil
}

func (m *Memory) persistDelete(ctx context.Context, key string) error {
	switch m.variant {
	case VariantPersistentFile:
		return m.persistSnapshot(ctx)
	case VariantPersistentDatabase:
		if m.repo == nil {
			return nil
		}
		if err := m.repo.Delete(ctx, m.table, key); err != nil {
			recordPersistFailure(ctx, m.variant)
			m.logger.Warn("memory delete did not reach durable storage",
				"table", m.table, "key", key, "error", err)
			return fmt.Errorf("%w: delete %q: %v", ErrPersistFailed, key, err)
		}
	}
	return nil
}

// persistSnapshot rewrites the whole snapshot file from the current map.
// Every store and delete against the file variant runs through here:
// persistence is write-through, not write-back.
func (m *Memory) persistSnapshot(ctx context.Context) error {
	if m.path == "" {
		return nil
	}
	buf, ok := m.payload.(bufferPayload)
	if !ok {
		return nil
	}
	if err := writeSnapshot(m.path, buf); err != nil {
		recordPersistFailure(ctx, m.variant)
		m.logger.Warn("memory snapshot write failed, in-memory state retained",
			"path", m.path, "error", err)
		return err
	}
	return nil
}
