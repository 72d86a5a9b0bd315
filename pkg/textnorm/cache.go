package textnorm

import (
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds a Cache built with a non-positive size.
const DefaultCacheSize = 4096

// Cache memoizes Normalize results keyed by the raw input string.
// It is bounded and safe for concurrent use; callers create one per batch
// run so that it never outlives the records it serves.
type Cache struct {
	entries *lru.Cache[string, string]
}

// NewCache creates a normalization memo holding at most size entries.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("creating normalization cache: %w", err)
	}
	return &Cache{entries: entries}, nil
}

// Normalize returns Normalize(text), consulting the memo first.
// A nil Cache normalizes without memoization.
func (c *Cache) Normalize(text string) string {
	if c == nil {
		return Normalize(text)
	}
	if v, ok := c.entries.Get(text); ok {
		return v
	}
	v := Normalize(text)
	c.entries.Add(text, v)
	return v
}

// Tokens is the memoized counterpart of the package-level Tokens.
func (c *Cache) Tokens(text string) []string {
	return strings.Fields(c.Normalize(text))
}

// Len reports the number of memoized entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}

// Purge drops every memoized entry.
func (c *Cache) Purge() {
	if c != nil {
		c.entries.Purge()
	}
}
