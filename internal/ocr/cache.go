package ocr

import "sync"

// resultCache is a small bounded map keyed by perceptual hash. It
// exists to make repeated extraction of an unchanged photo free, not
// to be a general cache; eviction is oldest-insertion-first.
type resultCache struct {
	mu      sync.Mutex
	limit   int
	order   []uint64
	entries map[uint64]Result
}

func newResultCache(limit int) *resultCache {
	return &resultCache{
		limit:   limit,
		entries: make(map[uint64]Result, limit),
	}
}

func (c *resultCache) get(hash uint64) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[hash]
	return r, ok
}

func (c *resultCache) put(hash uint64, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[hash]; !exists {
		c.order = append(c.order, hash)
		if len(c.order) > c.limit {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[hash] = result
}
