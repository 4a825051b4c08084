package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds construction parameters for a Memory instance. The zero
// value is not useful; start from DefaultConfig or LoadConfig so absent
// fields keep their defaults.
type Config struct {
	// MaxSize is the capacity bound, or Unlimited.
	MaxSize int `yaml:"max_size"`

	// TTLSeconds is the per-key time-to-live in seconds, or Unlimited.
	TTLSeconds int `yaml:"ttl_seconds"`

	// Strategy is the eviction strategy: lru, lfu, ttl, or hybrid.
	Strategy Strategy `yaml:"strategy"`

	// EvictFraction is the fraction of current size removed per eviction
	// pass, in (0, 1].
	EvictFraction float64 `yaml:"evict_fraction"`

	// AutoEvict runs the strategy synchronously after every store.
	AutoEvict bool `yaml:"auto_evict"`

	// Path is the snapshot file location for the PersistentFile variant.
	// When empty, the instance degrades to in-memory-only operation.
	Path string `yaml:"path,omitempty"`

	// Table names the repository table for the PersistentDatabase variant.
	Table string `yaml:"table,omitempty"`
}

// DefaultConfig returns the default configuration: unbounded size and TTL,
// LRU strategy, 20% eviction batches, auto-eviction on.
func DefaultConfig() Config {
	return Config{
		MaxSize:       Unlimited,
		TTLSeconds:    Unlimited,
		Strategy:      StrategyLRU,
		EvictFraction: 0.2,
		AutoEvict:     true,
		Table:         "memory",
	}
}

// LoadConfig reads a YAML configuration file. Fields absent from the file
// keep their DefaultConfig values.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate checks the strategy and eviction fraction.
func (c Config) Validate() error {
	return c.policy().Validate()
}

func (c Config) policy() Policy {
	return Policy{
		MaxSize:       c.MaxSize,
		TTLSeconds:    c.TTLSeconds,
		Strategy:      c.Strategy,
		EvictFraction: c.EvictFraction,
		AutoEvict:     c.AutoEvict,
	}
}
