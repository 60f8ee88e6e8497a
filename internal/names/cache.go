package names

import (
	"context"
	"sync"

	"github.com/taxonomix/backend/internal/models"
)

// Cache is the durable store of accepted name matches. Implementations must
// be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, name string) (models.NameMatch, bool, error)
	Set(ctx context.Context, name string, match models.NameMatch) error
	Has(ctx context.Context, name string) (bool, error)
	Close() error
}

// MemoryCache keeps matches in process memory.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.NameMatch
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.NameMatch)}
}

func (c *MemoryCache) Get(_ context.Context, name string) (models.NameMatch, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[name]
	return m, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, name string, match models.NameMatch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = match
	return nil
}

func (c *MemoryCache) Has(_ context.Context, name string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[name]
	return ok, nil
}

// Len returns the number of cached names.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *MemoryCache) Close() error { return nil }
