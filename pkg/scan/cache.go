package scan

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ValueCache memoizes the matching rule names for every distinct value a
// run has evaluated, keyed by content hash. Entries live for the whole
// run; there is no eviction, which trades unbounded growth on very
// high-cardinality scans for never re-running a regex on a repeated value.
// Each run constructs its own cache.
type ValueCache struct {
	mu      sync.RWMutex
	entries map[uint64][]string
}

// NewValueCache creates an empty cache
func NewValueCache() *ValueCache {
	return &ValueCache{entries: make(map[uint64][]string)}
}

// Get returns the memoized rule names for a value and whether it was seen
// before. The returned slice must not be mutated.
func (c *ValueCache) Get(value string) ([]string, bool) {
	key := xxhash.Sum64String(value)

	c.mu.RLock()
	defer c.mu.RUnlock()
	names, ok := c.entries[key]
	return names, ok
}

// Put memoizes the rule names for a value. Empty results are stored too;
// knowing a value matches nothing is the common case worth remembering.
func (c *ValueCache) Put(value string, ruleNames []string) {
	key := xxhash.Sum64String(value)

	c.mu.Lock()
	c.entries[key] = ruleNames
	c.mu.Unlock()
}

// Len returns the number of distinct values cached
func (c *ValueCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
