package memory

import (
	"time"

	"github.com/google/uuid"
)

// payload is the variant-specific storage container. Implementations are
// persistent data structures: mutating methods return a new payload and
// leave the receiver untouched.
//
// The closed set of implementations is bufferPayload (Buffer, Vector, and
// the in-memory side of both persistent variants) and conversationPayload.
type payload interface {
	store(key string, value any, now time.Time) payload
	retrieve(key string) (any, bool)
	remove(key string) payload
	clear() payload
	keys() []string
	size() int
}

// bufferPayload is a plain key/value map with upsert semantics.
type bufferPayload map[string]any

func newBufferPayload() bufferPayload {
	return bufferPayload{}
}

func (b bufferPayload) copy() bufferPayload {
	n := make(bufferPayload, len(b))
	for k, v := range b {
		n[k] = v
	}
	return n
}

func (b bufferPayload) store(key string, value any, _ time.Time) payload {
	n := b.copy()
	n[key] = value
	return n
}

func (b bufferPayload) retrieve(key string) (any, bool) {
	v, ok := b[key]
	return v, ok
}

func (b bufferPayload) remove(key string) payload {
	n := b.copy()
	delete(n, key)
	return n
}

func (b bufferPayload) clear() payload {
	return newBufferPayload()
}

func (b bufferPayload) keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	return keys
}

func (b bufferPayload) size() int {
	return len(b)
}

// conversationPayload is a newest-first, append-only history. A store call
// always prepends a fresh entry; existing entries for the same key are
// never overwritten.
type conversationPayload []Entry

func newConversationPayload() conversationPayload {
	return conversationPayload{}
}

func (c conversationPayload) store(key string, value any, now time.Time) payload {
	n := make(conversationPayload, 0, len(c)+1)
	n = append(n, Entry{
		ID:        uuid.NewString(),
		Key:       key,
		Value:     value,
		Timestamp: now,
	})
	n = append(n, c...)
	return n
}

// retrieve scans newest-first and returns the most recent entry for the key.
func (c conversationPayload) retrieve(key string) (any, bool) {
	for _, e := range c {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

// remove drops every history entry recorded under the key.
func (c conversationPayload) remove(key string) payload {
	n := make(conversationPayload, 0, len(c))
	for _, e := range c {
		if e.Key != key {
			n = append(n, e)
		}
	}
	return n
}

func (c conversationPayload) clear() payload {
	return newConversationPayload()
}

// keys returns the set of distinct keys, each once, regardless of how many
// history entries a key has.
func (c conversationPayload) keys() []string {
	seen := make(map[string]bool, len(c))
	var keys []string
	for _, e := range c {
		if !seen[e.Key] {
			seen[e.Key] = true
			keys = append(keys, e.Key)
		}
	}
	return keys
}

// size counts total entries, including duplicates of a key.
func (c conversationPayload) size() int {
	return len(c)
}
