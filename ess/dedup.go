package ess

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// deduplicator drops repeat deliveries of the same event. The upstream
// re-sends events after brief interruptions on its side, and overlapping
// filter dimensions in the aggregate subscription can produce duplicates too.
type deduplicator struct {
	cache *lru.Cache[string, bool]
}

func newDeduplicator(size int) (*deduplicator, error) {
	cache, err := lru.New[string, bool](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create LRU cache: %w", err)
	}
	return &deduplicator{cache: cache}, nil
}

// seen reports whether the event was already delivered and records it
// otherwise.
func (d *deduplicator) seen(event Event) bool {
	key := fingerprint(event)
	if d.cache.Contains(key) {
		return true
	}
	d.cache.Add(key, true)
	return false
}

func (d *deduplicator) len() int {
	return d.cache.Len()
}

// fingerprint keys an event by name, timestamp and the two filterable IDs
// when present; events without a timestamp fall back to a hash of the whole
// payload.
func fingerprint(event Event) string {
	ts, ok := event.Payload.Str("timestamp")
	if !ok {
		data, err := json.Marshal(event.Payload)
		if err != nil {
			return event.Name
		}
		return fmt.Sprintf("%s:%x", event.Name, hashBytes(data))
	}
	char, _ := event.Payload.Str(characterIDField)
	world, _ := event.Payload.Str(worldIDField)
	return event.Name + ":" + ts + ":" + char + ":" + world
}

// hashBytes is FNV-1a.
func hashBytes(data []byte) uint64 {
	var hash uint64 = 14695981039346656037
	for _, b := range data {
		hash ^= uint64(b)
		hash *= 1099511628211
	}
	return hash
}
