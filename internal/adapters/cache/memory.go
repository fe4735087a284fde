package cache

import (
	"context"
	"sync"
	"time"

	"cryptoJournal/internal/ports"
)

type memoryItem struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time // zero means no expiry
}

// MemoryCache is a process-local ports.Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	now   func() time.Time
}

var _ ports.Cache = (*MemoryCache)(nil)

// NewMemoryCache returns an empty cache using the wall clock.
func NewMemoryCache() *MemoryCache {
	return NewMemoryCacheWithClock(time.Now)
}

// NewMemoryCacheWithClock returns an empty cache reading time from now.
func NewMemoryCacheWithClock(now func() time.Time) *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), now: now}
}

// Get returns the live entry for key or ports.ErrCacheMiss.
func (c *MemoryCache) Get(_ context.Context, key string) (ports.CacheEntry, error) {
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()

	if !ok {
		return ports.CacheEntry{}, ports.ErrCacheMiss
	}
	if !item.expiresAt.IsZero() && !c.now().Before(item.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.items[key]; ok && cur.expiresAt.Equal(item.expiresAt) {
			delete(c.items, key)
		}
		c.mu.Unlock()
		return ports.CacheEntry{}, ports.ErrCacheMiss
	}

	value := make([]byte, len(item.value))
	copy(value, item.value)
	return ports.CacheEntry{Value: value, StoredAt: item.storedAt}, nil
}

// Set stores value under key. A non-positive ttl keeps the entry until overwritten.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	item := memoryItem{value: append([]byte(nil), value...), storedAt: now}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}

	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
