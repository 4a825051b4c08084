package memory

import "time"

// stats tracks per-key access statistics used by the eviction engine.
// All methods are pure: they return a new value with freshly copied maps
// and never mutate the receiver, so instances can share a stats value
// until one of them records an event.
type stats struct {
	access map[string]int
	last   map[string]time.Time
	fresh  map[string]time.Time
}

func newStats() stats {
	return stats{
		access: make(map[string]int),
		last:   make(map[string]time.Time),
		fresh:  make(map[string]time.Time),
	}
}

func (s stats) copy() stats {
	n := stats{
		access: make(map[string]int, len(s.access)),
		last:   make(map[string]time.Time, len(s.last)),
		fresh:  make(map[string]time.Time, len(s.fresh)),
	}
	for k, v := range s.access {
		n.access[k] = v
	}
	for k, v := range s.last {
		n.last[k] = v
	}
	for k, v := range s.fresh {
		n.fresh[k] = v
	}
	return n
}

// recordWrite resets the key's freshness to now. Freshness denotes
// recency-of-write, not first-creation time: repeat stores of an existing
// key restart its TTL clock. The access count is initialized to zero only
// for keys not seen before and is never reset by a write.
func (s stats) recordWrite(key string, now time.Time) stats {
	n := s.copy()
	n.fresh[key] = now
	if _, ok := n.access[key]; !ok {
		n.access[key] = 0
	}
	return n
}

// recordRead increments the key's access count and stamps its last-access
// time. Only tracked reads call this; plain retrieval leaves stats alone.
func (s stats) recordRead(key string, now time.Time) stats {
	n := s.copy()
	n.access[key]++
	n.last[key] = now
	return n
}

// purge removes the key from all three maps.
func (s stats) purge(key string) stats {
	n := s.copy()
	delete(n.access, key)
	delete(n.last, key)
	delete(n.fresh, key)
	return n
}
