// Package memcache implements the cache port in-process for single-node
// deployments and tests. Entries expire on a TTL bucket; eviction policy
// beyond TTL+LRU is the library's concern, not ours.
package memcache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type entry struct {
	val      []byte
	deadline time.Time
}

// Cache adapts an expirable LRU to the cache port. The library applies one
// TTL per cache, so per-entry TTLs shorter than the bucket TTL are enforced
// with a stored deadline.
type Cache struct {
	lru *expirable.LRU[string, entry]
}

// New builds a cache holding at most size entries; maxTTL caps every entry's
// lifetime regardless of the per-write TTL.
func New(size int, maxTTL time.Duration) *Cache {
	if size <= 0 {
		size = 4096
	}
	return &Cache{lru: expirable.NewLRU[string, entry](size, nil, maxTTL)}
}

func (c *Cache) Get(key string) ([]byte, bool, error) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.deadline.IsZero() && time.Now().After(e.deadline) {
		c.lru.Remove(key)
		return nil, false, nil
	}
	return e.val, true, nil
}

func (c *Cache) Set(key string, val []byte, ttl time.Duration) error {
	var deadline time.Time
	if ttl > 0 {
		deadline = time.Now().Add(ttl)
	}
	c.lru.Add(key, entry{val: val, deadline: deadline})
	return nil
}

func (c *Cache) Del(keys ...string) error {
	for _, k := range keys {
		c.lru.Remove(k)
	}
	return nil
}
