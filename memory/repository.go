package memory

import (
	"context"
	"time"
)

// Row is the record shape the PersistentDatabase variant exchanges with a
// Repository. Value is an opaque JSON-encoded blob; the core never asks
// the repository to interpret it.
type Row struct {
	// Key is the unique primary key within the table.
	Key string

	// Value is the JSON encoding of the stored value.
	Value []byte

	// CreatedAt is when the key was first stored. Implementations preserve
	// it across upserts of an existing key.
	CreatedAt time.Time

	// UpdatedAt is when the key was last stored.
	UpdatedAt time.Time

	// AccessCount mirrors the key's tracked-read counter.
	AccessCount int64

	// LastAccess mirrors the key's last tracked-read time. Zero if the key
	// has never been read through GetAndTrack.
	LastAccess time.Time
}

// Repository is the externally supplied storage backend for the
// PersistentDatabase variant. The core issues upsert-by-key,
// delete-by-key, point-get, and full-scan operations against it and
// defines nothing about the underlying dialect or schema tooling.
//
// Implementations must be safe for use from multiple Memory instances and
// must return ErrNotFound (possibly wrapped) from Get when the key does
// not exist. Delete of a missing key is not an error.
//
// The redisrepo and sqlrepo packages provide ready-made implementations.
type Repository interface {
	// Upsert inserts or replaces the row for row.Key, preserving the
	// existing CreatedAt when the key is already present.
	Upsert(ctx context.Context, table string, row Row) error

	// Get returns the row for the key, or ErrNotFound.
	Get(ctx context.Context, table, key string) (Row, error)

	// Delete removes the row for the key. Missing keys are ignored.
	Delete(ctx context.Context, table, key string) error

	// Scan returns every row in the table.
	Scan(ctx context.Context, table string) ([]Row, error)
}
