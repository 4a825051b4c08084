// Package sqlrepo provides a database/sql-backed Repository for the
// PersistentDatabase memory variant. It works against any driver that
// understands the ON CONFLICT upsert clause (SQLite, PostgreSQL); the
// tests run it on modernc.org/sqlite.
//
// The row schema matches the memory.Row contract:
//
//	key          TEXT PRIMARY KEY
//	value        BLOB        -- opaque JSON blob, never interpreted here
//	created_at   INTEGER     -- Unix nanoseconds
//	updated_at   INTEGER
//	access_count INTEGER
//	last_access  INTEGER     -- zero when never tracked-read
//
// No cross-process locking or row versioning is provided: the last write
// to a key wins.
package sqlrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/prompta-ai/memkit/memory"
)

// tableName guards against interpolating arbitrary strings into SQL
// identifiers; table names come from configuration, not user input, but
// the check keeps the failure mode obvious.
var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Repo implements memory.Repository on top of a *sql.DB.
type Repo struct {
	db *sql.DB
}

var _ memory.Repository = (*Repo)(nil)

// New wraps an open database handle. The caller owns the handle's
// lifecycle; Repo never closes it.
func New(db *sql.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the table if it does not exist.
func (r *Repo) Migrate(ctx context.Context, table string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key          TEXT PRIMARY KEY,
		value        BLOB NOT NULL,
		created_at   INTEGER NOT NULL,
		updated_at   INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0,
		last_access  INTEGER NOT NULL DEFAULT 0
	)`, table))
	if err != nil {
		return fmt.Errorf("sql migrate %s: %w", table, err)
	}
	return nil
}

// Upsert inserts or replaces the row, preserving created_at for existing
// keys.
func (r *Repo) Upsert(ctx context.Context, table string, row memory.Row) error {
	if err := checkTable(table); err != nil {
		return err
	}

	query := fmt.Sprintf(`INSERT INTO %s
		(key, value, created_at, updated_at, access_count, last_access)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at,
			access_count = excluded.access_count,
			last_access = excluded.last_access`, table)

	_, err := r.db.ExecContext(ctx, query,
		row.Key, row.Value,
		row.CreatedAt.UnixNano(), row.UpdatedAt.UnixNano(),
		row.AccessCount, nanosOrZero(row.LastAccess))
	if err != nil {
		return fmt.Errorf("sql upsert %s/%s: %w", table, row.Key, err)
	}
	return nil
}

// Get returns the row for the key, or memory.ErrNotFound.
func (r *Repo) Get(ctx context.Context, table, key string) (memory.Row, error) {
	if err := checkTable(table); err != nil {
		return memory.Row{}, err
	}

	query := fmt.Sprintf(`SELECT key, value, created_at, updated_at, access_count, last_access
		FROM %s WHERE key = ?`, table)

	row, err := scanRow(r.db.QueryRowContext(ctx, query, key))
	if errors.Is(err, sql.ErrNoRows) {
		return memory.Row{}, memory.ErrNotFound
	}
	if err != nil {
		return memory.Row{}, fmt.Errorf("sql get %s/%s: %w", table, key, err)
	}
	return row, nil
}

// Delete removes the row for the key. Missing keys are ignored.
func (r *Repo) Delete(ctx context.Context, table, key string) error {
	if err := checkTable(table); err != nil {
		return err
	}
	_, err := r.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, table), key)
	if err != nil {
		return fmt.Errorf("sql delete %s/%s: %w", table, key, err)
	}
	return nil
}

// Scan returns every row in the table.
func (r *Repo) Scan(ctx context.Context, table string) ([]memory.Row, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT key, value, created_at, updated_at, access_count, last_access
		FROM %s`, table)
	rs, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sql scan %s: %w", table, err)
	}
	defer rs.Close()

	var rows []memory.Row
	for rs.Next() {
		row, err := scanRow(rs)
		if err != nil {
			return nil, fmt.Errorf("sql scan %s: %w", table, err)
		}
		rows = append(rows, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("sql scan %s: %w", table, err)
	}
	return rows, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(s rowScanner) (memory.Row, error) {
	var row memory.Row
	var created, updated, lastAccess int64
	if err := s.Scan(&row.Key, &row.Value, &created, &updated, &row.AccessCount, &lastAccess); err != nil {
		return memory.Row{}, err
	}
	row.CreatedAt = time.Unix(0, created)
	row.UpdatedAt = time.Unix(0, updated)
	if lastAccess != 0 {
		row.LastAccess = time.Unix(0, lastAccess)
	}
	return row, nil
}

func nanosOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func checkTable(table string) error {
	if !tableName.MatchString(table) {
		return fmt.Errorf("%w: bad table name %q", memory.ErrInvalidConfig, table)
	}
	return nil
}
