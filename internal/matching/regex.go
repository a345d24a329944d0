package matching

import (
	"regexp"
	"sync"
)

// regexCache holds compiled patterns. Failed compilations are cached as nil
// so a bad pattern is compiled once.
type regexCache struct {
	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

func newRegexCache() *regexCache {
	return &regexCache{patterns: make(map[string]*regexp.Regexp)}
}

// get returns the compiled pattern, or nil when it does not compile.
func (c *regexCache) get(pattern string) *regexp.Regexp {
	c.mu.RLock()
	re, ok := c.patterns[pattern]
	c.mu.RUnlock()
	if ok {
		return re
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		re = nil
	}
	c.mu.Lock()
	c.patterns[pattern] = re
	c.mu.Unlock()
	return re
}

func (c *regexCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.patterns)
}
