package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// Cache stores opaque values with a time-to-live.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
}

// MemoryCache implements a thread-safe in-process TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	now     func() time.Time
}

// cacheEntry holds a cached value with expiry time.
type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
}

// Get retrieves a value from cache.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[key]
	if !exists || c.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.value, true
}

// Set stores a value in cache with TTL and drops expired entries.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = &cacheEntry{
		value:     value,
		expiresAt: now.Add(ttl),
	}
}

// MemcachedCache stores entries in a memcached cluster.
// Failures are logged and degrade to cache misses.
type MemcachedCache struct {
	client *memcache.Client
	prefix string
	logger *slog.Logger
}

// NewMemcachedCache connects to the given memcached servers.
func NewMemcachedCache(prefix string, logger *slog.Logger, servers ...string) *MemcachedCache {
	return &MemcachedCache{
		client: memcache.New(servers...),
		prefix: prefix,
		logger: logger,
	}
}

func (c *MemcachedCache) Get(key string) ([]byte, bool) {
	item, err := c.client.Get(c.prefix + key)
	if err != nil {
		// cache miss is memcached's way of saying the key was not found
		if err != memcache.ErrCacheMiss {
			c.logger.Warn("memcached get failed", "error", err)
		}
		return nil, false
	}
	return item.Value, true
}

func (c *MemcachedCache) Set(key string, value []byte, ttl time.Duration) {
	err := c.client.Set(&memcache.Item{
		Key:        c.prefix + key,
		Value:      value,
		Expiration: memcachedExpiration(ttl, time.Now()),
	})
	if err != nil {
		c.logger.Warn("memcached set failed", "error", err)
	}
}

// memcachedMaxRelative is the longest expiration memcached reads as relative
// seconds; larger values are taken as an absolute Unix time.
const memcachedMaxRelative = 30 * 24 * time.Hour

// memcachedExpiration converts ttl to memcached's expiration field.
func memcachedExpiration(ttl time.Duration, now time.Time) int32 {
	if ttl <= memcachedMaxRelative {
		return int32(ttl / time.Second)
	}
	return int32(now.Add(ttl).Unix())
}

// Ping checks that the memcached servers are reachable.
func (c *MemcachedCache) Ping() error {
	return c.client.Ping()
}
