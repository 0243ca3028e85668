// Package clipcache implements the RepresentationCache (in-memory LRU) and
// SpoolManager (disk overflow) ports consumed by the Capture use case and
// the blob worker while a representation's payload is still Staged.
package clipcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RepresentationCache is bounded by both entry count and total bytes.
// Evictions are LRU and synchronous on insert, matching the concurrency
// model's requirement that eviction never races a later Get.
type RepresentationCache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, []byte]
	maxBytes  int64
	curBytes  int64
}

// NewRepresentationCache builds a cache bounded by maxEntries and maxBytes.
func NewRepresentationCache(maxEntries int, maxBytes int64) *RepresentationCache {
	c := &RepresentationCache{maxBytes: maxBytes}
	// The eviction callback only fires on the LRU's own count-based
	// eviction; byte-based eviction below calls Remove directly, which also
	// invokes this callback, so both paths converge on one accounting path.
	l, _ := lru.NewWithEvict[string, []byte](maxEntries, func(_ string, v []byte) {
		c.curBytes -= int64(len(v))
	})
	c.lru = l
	return c
}

func (c *RepresentationCache) Put(repID string, bytes []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.lru.Peek(repID); ok {
		c.curBytes -= int64(len(existing))
	}
	c.lru.Add(repID, bytes)
	c.curBytes += int64(len(bytes))

	for c.curBytes > c.maxBytes && c.lru.Len() > 0 {
		_, _, ok := c.lru.RemoveOldest()
		if !ok {
			break
		}
	}
}

func (c *RepresentationCache) Get(repID string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Get(repID)
}

func (c *RepresentationCache) Remove(repID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(repID)
}
