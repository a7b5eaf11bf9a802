package querycache

import (
	"context"
	"sync"
)

// MemoryCache tracks invalidation versions in memory. Used in tests and when
// the agent runs without Redis; readers compare versions to detect staleness.
type MemoryCache struct {
	mu       sync.Mutex
	versions map[string]int64
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{versions: make(map[string]int64)}
}

func (c *MemoryCache) Invalidate(_ context.Context, family string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[family]++
	return nil
}

// Version returns the invalidation counter for a family.
func (c *MemoryCache) Version(family string) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.versions[family]
}
