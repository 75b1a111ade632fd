package cache

import (
	"sync"
	"time"
)

// MemoryCache is an in-memory cache implementation with TTL support
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]entry
	ttl      time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates a new in-memory cache with the specified TTL
func NewMemory(ttl time.Duration) *MemoryCache {
	c := &MemoryCache{
		items:  make(map[string]entry),
		ttl:    ttl,
		stopCh: make(chan struct{}),
	}
	go c.cleanup()
	return c
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.value, true
}

func (c *MemoryCache) Set(key string, value []byte) {
	c.SetWithTTL(key, value, c.ttl)
}

func (c *MemoryCache) SetWithTTL(key string, value []byte, ttl time.Duration) {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	}
}

func (c *MemoryCache) Delete(keys ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.items, k)
	}
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]entry)
}

// Close stops the expiry loop. It is safe to call more than once.
func (c *MemoryCache) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *MemoryCache) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-c.stopCh:
			return
		}
	}
}

func (c *MemoryCache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.items {
		if now.After(e.expiresAt) {
			delete(c.items, key)
		}
	}
}

// Ensure MemoryCache implements Cache interface
var _ Cache = (*MemoryCache)(nil)
