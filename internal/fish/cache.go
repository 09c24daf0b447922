package fish

import (
	"sync"
	"time"
)

// Cache holds uploaded datasets by name. A Put replaces the previous
// dataset whole; readers always get their own copy.
type Cache struct {
	mu   sync.RWMutex
	sets map[string]Dataset
	now  func() time.Time
}

func NewCache() *Cache {
	return &Cache{sets: make(map[string]Dataset), now: time.Now}
}

func (c *Cache) Get(name string) (Dataset, bool) {
	c.mu.RLock()
	d, ok := c.sets[name]
	c.mu.RUnlock()
	if !ok {
		return Dataset{}, false
	}
	return d.Clone(), true
}

// Put stores a copy of d and returns the time it was cached at.
func (c *Cache) Put(name string, d Dataset) time.Time {
	d = d.Clone()
	d.CachedAt = c.now()

	c.mu.Lock()
	c.sets[name] = d
	c.mu.Unlock()
	return d.CachedAt
}

func (c *Cache) Clear(name string) {
	c.mu.Lock()
	delete(c.sets, name)
	c.mu.Unlock()
}
