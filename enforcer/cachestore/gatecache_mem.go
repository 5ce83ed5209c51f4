package cachestore

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemGateCache keeps gate values in an in-process LRU. Entries expire after a
// fixed TTL, which bounds how long a flipped gate goes unnoticed.
type MemGateCache struct {
	data *expirable.LRU[string, bool]
}

func NewMemGateCache(capacity int, ttl time.Duration) *MemGateCache {
	return &MemGateCache{
		data: expirable.NewLRU[string, bool](capacity, nil, ttl),
	}
}

func (c *MemGateCache) Lookup(ctx context.Context, name string) (bool, bool) {
	return c.data.Get(name)
}

func (c *MemGateCache) Store(ctx context.Context, name string, active bool) {
	c.data.Add(name, active)
}

func (c *MemGateCache) Forget(ctx context.Context, name string) {
	c.data.Remove(name)
}
