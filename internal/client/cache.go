package client

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/gallery/internal/metrics"
)

const (
	DefaultCacheTTL  = 5 * time.Minute
	DefaultCacheSize = 100
)

// Cache holds first pages keyed by SearchQuery.CacheKey. Entries expire after
// the TTL and the least recently used entry is evicted beyond the size bound.
// Stored results are copied on the way in and out.
type Cache struct {
	lru *expirable.LRU[string, *Result]
}

func NewCache(size int, ttl time.Duration) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{lru: expirable.NewLRU[string, *Result](size, nil, ttl)}
}

func (c *Cache) Get(key string) (*Result, bool) {
	r, ok := c.lru.Get(key)
	if !ok {
		metrics.ClientCacheMissesTotal.Inc()
		return nil, false
	}
	metrics.ClientCacheHitsTotal.Inc()
	return r.clone(), true
}

func (c *Cache) Put(key string, r *Result) {
	c.lru.Add(key, r.clone())
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Purge() {
	c.lru.Purge()
}
