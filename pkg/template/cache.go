package template

import (
	"sync"
	"sync/atomic"
)

// Cache memoises parsed expressions by source string. Parse failures are
// cached too so a bad template is not re-parsed on every request. A Cache
// belongs to one loaded configuration; reloading builds a new one.
type Cache struct {
	parser *Parser

	mu      sync.RWMutex
	entries map[string]cacheEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	expr *Expression
	err  error
}

// NewCache creates a cache that parses with p. A nil parser uses defaults.
func NewCache(p *Parser) *Cache {
	if p == nil {
		p = NewParser()
	}
	return &Cache{parser: p, entries: make(map[string]cacheEntry)}
}

// Get returns the parsed expression for source, parsing it on first use.
func (c *Cache) Get(source string) (*Expression, error) {
	c.mu.RLock()
	e, ok := c.entries[source]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return e.expr, e.err
	}

	c.misses.Add(1)
	expr, err := c.parser.Parse(source)
	c.mu.Lock()
	if existing, ok := c.entries[source]; ok {
		c.mu.Unlock()
		return existing.expr, existing.err
	}
	c.entries[source] = cacheEntry{expr: expr, err: err}
	c.mu.Unlock()
	return expr, err
}

// Len returns the number of cached sources.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns cache hit and miss counts.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
