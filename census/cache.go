package census

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache stores raw response bodies keyed by request URL.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

type cacheEntry struct {
	data      []byte
	expiresAt time.Time
}

// MemoryCache is an in-memory LRU cache with TTL support. Expired entries
// are evicted on read; the LRU bound caps memory regardless.
type MemoryCache struct {
	cache *lru.Cache[string, *cacheEntry]
	ttl   time.Duration
	mu    sync.Mutex
}

// NewMemoryCache creates a cache holding up to size bodies for at most ttl.
// A zero ttl means entries never expire (the LRU still evicts).
func NewMemoryCache(size int, ttl time.Duration) (*MemoryCache, error) {
	cache, err := lru.New[string, *cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{cache: cache, ttl: ttl}, nil
}

// Get retrieves a body from the cache.
func (mc *MemoryCache) Get(key string) ([]byte, bool) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	entry, ok := mc.cache.Get(key)
	if !ok {
		return nil, false
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		mc.cache.Remove(key)
		return nil, false
	}
	return entry.data, true
}

// Set stores a body in the cache.
func (mc *MemoryCache) Set(key string, value []byte) {
	entry := &cacheEntry{data: value}
	if mc.ttl > 0 {
		entry.expiresAt = time.Now().Add(mc.ttl)
	}

	mc.mu.Lock()
	mc.cache.Add(key, entry)
	mc.mu.Unlock()
}

// NoopCache is used when caching is disabled.
type NoopCache struct{}

// NewNoopCache creates a cache that stores nothing.
func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

// Get always returns not found.
func (nc *NoopCache) Get(key string) ([]byte, bool) {
	return nil, false
}

// Set does nothing.
func (nc *NoopCache) Set(key string, value []byte) {}
