package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value      string
	expiration time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiration.IsZero() && !e.expiration.After(now)
}

type memoryCache struct {
	mu     sync.RWMutex
	items  map[string]memoryEntry
	stopGC chan struct{}
	closed bool
}

// NewMemoryCache returns a process-local cache. Expired entries are swept every 30s.
func NewMemoryCache() Cache {
	return newMemoryCache(30 * time.Second)
}

func newMemoryCache(sweep time.Duration) *memoryCache {
	c := &memoryCache{
		items:  make(map[string]memoryEntry),
		stopGC: make(chan struct{}),
	}
	go c.startGC(sweep)
	return c
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	if key == "" {
		return "", ErrInvalidKey
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return "", ErrClosed
	}
	item, exists := c.items[key]
	if !exists || item.expired(time.Now()) {
		return "", ErrKeyNotFound
	}
	return item.value, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value string, ttl time.Duration) error {
	if key == "" {
		return ErrInvalidKey
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	c.items[key] = memoryEntry{value: value, expiration: exp}
	return nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	item, exists := c.items[key]
	if !exists || item.expired(time.Now()) {
		return ErrKeyNotFound
	}
	delete(c.items, key)
	return nil
}

func (c *memoryCache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false, ErrClosed
	}

	item, exists := c.items[key]
	return exists && !item.expired(time.Now()), nil
}

func (c *memoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return 0, ErrClosed
	}

	item, exists := c.items[key]
	if !exists {
		return 0, ErrKeyNotFound
	}
	if item.expiration.IsZero() {
		return 0, nil
	}
	ttl := time.Until(item.expiration)
	if ttl <= 0 {
		return 0, ErrKeyNotFound
	}
	return ttl, nil
}

func (c *memoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	close(c.stopGC)
	c.items = nil
	c.closed = true
	return nil
}

func (c *memoryCache) startGC(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanup()
		case <-c.stopGC:
			return
		}
	}
}

func (c *memoryCache) cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0
	}

	var expired int
	now := time.Now()
	for k, v := range c.items {
		if v.expired(now) {
			delete(c.items, k)
			expired++
		}
	}
	return expired
}
