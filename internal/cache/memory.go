package cache

import "sync"

// MemoryQuoteCache is a process-local QuoteCache used when no Redis address
// is configured and in tests.
type MemoryQuoteCache struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryQuoteCache creates an empty in-memory cache.
func NewMemoryQuoteCache() *MemoryQuoteCache {
	return &MemoryQuoteCache{data: make(map[string]string)}
}

// Get returns the cached value for key, if present.
func (c *MemoryQuoteCache) Get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	val, ok := c.data[key]
	return val, ok
}

// Set stores the value.
func (c *MemoryQuoteCache) Set(key string, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}
