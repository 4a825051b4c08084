// Package redisrepo provides a Redis-backed Repository for the
// PersistentDatabase memory variant. Each table maps to one Redis hash
// whose fields are keys and whose values are JSON-encoded rows.
//
// Concurrent writers to the same table race at the Redis boundary: the
// last HSET wins. Callers needing cross-process consistency must layer
// their own serialization on top.
package redisrepo

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/prompta-ai/memkit/memory"
)

// Options configures the Redis connection.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379").
	URL string

	// TLS configuration for secure connections.
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment.
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations.
	WriteTimeout time.Duration

	// KeyPrefix namespaces every hash key, e.g. "memkit:". Optional.
	KeyPrefix string
}

// Repo implements memory.Repository using go-redis/v9.
type Repo struct {
	client *redis.Client
	prefix string
}

var _ memory.Repository = (*Repo)(nil)

// row is the JSON wire shape stored in hash fields.
type row struct {
	Value       json.RawMessage `json:"value"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
	AccessCount int64           `json:"access_count"`
	LastAccess  time.Time       `json:"last_access"`
}

// New creates a Redis repository with the given options and verifies the
// connection with a ping.
func New(opts Options) (*Repo, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Repo{client: client, prefix: opts.KeyPrefix}, nil
}

func (r *Repo) hashKey(table string) string {
	return r.prefix + table
}

// Upsert stores the row in the table's hash, preserving the existing
// CreatedAt when the key is already present.
func (r *Repo) Upsert(ctx context.Context, table string, mrow memory.Row) error {
	stored := row{
		Value:       json.RawMessage(mrow.Value),
		CreatedAt:   mrow.CreatedAt,
		UpdatedAt:   mrow.UpdatedAt,
		AccessCount: mrow.AccessCount,
		LastAccess:  mrow.LastAccess,
	}

	prev, err := r.client.HGet(ctx, r.hashKey(table), mrow.Key).Result()
	if err == nil {
		var existing row
		if jerr := json.Unmarshal([]byte(prev), &existing); jerr == nil {
			stored.CreatedAt = existing.CreatedAt
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis upsert %s/%s: %w", table, mrow.Key, err)
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("redis upsert %s/%s: encode: %w", table, mrow.Key, err)
	}
	if err := r.client.HSet(ctx, r.hashKey(table), mrow.Key, data).Err(); err != nil {
		return fmt.Errorf("redis upsert %s/%s: %w", table, mrow.Key, err)
	}
	return nil
}

// Get returns the row for the key, or memory.ErrNotFound.
func (r *Repo) Get(ctx context.Context, table, key string) (memory.Row, error) {
	data, err := r.client.HGet(ctx, r.hashKey(table), key).Result()
	if errors.Is(err, redis.Nil) {
		return memory.Row{}, memory.ErrNotFound
	}
	if err != nil {
		return memory.Row{}, fmt.Errorf("redis get %s/%s: %w", table, key, err)
	}
	return decodeRow(table, key, []byte(data))
}

// Delete removes the key from the table's hash. Missing keys are ignored.
func (r *Repo) Delete(ctx context.Context, table, key string) error {
	if err := r.client.HDel(ctx, r.hashKey(table), key).Err(); err != nil {
		return fmt.Errorf("redis delete %s/%s: %w", table, key, err)
	}
	return nil
}

// Scan returns every row in the table.
func (r *Repo) Scan(ctx context.Context, table string) ([]memory.Row, error) {
	fields, err := r.client.HGetAll(ctx, r.hashKey(table)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", table, err)
	}

	rows := make([]memory.Row, 0, len(fields))
	for key, data := range fields {
		mrow, err := decodeRow(table, key, []byte(data))
		if err != nil {
			return nil, err
		}
		rows = append(rows, mrow)
	}
	return rows, nil
}

// Close closes the Redis connection.
func (r *Repo) Close() error {
	return r.client.Close()
}

func decodeRow(table, key string, data []byte) (memory.Row, error) {
	var stored row
	if err := json.Unmarshal(data, &stored); err != nil {
		return memory.Row{}, fmt.Errorf("redis row %s/%s: decode: %w", table, key, err)
	}
	return memory.Row{
		Key:         key,
		Value:       []byte(stored.Value),
		CreatedAt:   stored.CreatedAt,
		UpdatedAt:   stored.UpdatedAt,
		AccessCount: stored.AccessCount,
		LastAccess:  stored.LastAccess,
	}, nil
}
