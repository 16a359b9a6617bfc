package execution

import "sync"

// Cache is the per-run memoization store. Nodes that open expensive
// resources (database handles, connections) check for an entry keyed by
// a derived string before constructing a new one.
//
// The check-then-insert pattern is not atomic: two concurrent branches
// asking for the same key may both miss and both construct the
// resource, with the last Set winning. Callers needing exclusivity must
// arrange it themselves.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]any
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]any)}
}

// Get returns the entry for key, if present.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (c *Cache) Has(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores the entry for key, replacing any previous value.
func (c *Cache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
}

// Delete removes the entry for key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
