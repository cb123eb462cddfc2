package modules

import (
	"sync"
	"time"
)

// Kind is the loader used for a resolved file.
type Kind string

const (
	KindScript Kind = "script"
	KindJSON   Kind = "json"
	KindHost   Kind = "host"
)

// Entry records the most recent load of one module file.
type Entry struct {
	Path     string
	Kind     Kind
	Size     int
	LoadedAt time.Time
}

// Cache maps absolute module paths to their most recent load. It holds no
// module values or programs; it only tracks which paths were loaded so each
// load can invalidate the previous one.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*Entry
	evicted uint64
}

// NewCache creates an empty cache
func NewCache() *Cache {
	return &Cache{entries: make(map[string]*Entry)}
}

// Evict drops the entry for path and reports whether one existed
func (c *Cache) Evict(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[path]; !ok {
		return false
	}
	delete(c.entries, path)
	c.evicted++
	return true
}

// Store records the entry for its path
func (c *Cache) Store(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Path] = e
}

// Get returns the entry for path
func (c *Cache) Get(path string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[path]
	return e, ok
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Evictions returns how many entries have been invalidated so far
func (c *Cache) Evictions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicted
}
