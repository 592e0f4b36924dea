package reducer

import (
	"container/list"
	"sync"
	"time"
)

// CacheStats reports cache activity since the Reducer was created.
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"size"`
}

// resultCache is a size-bounded LRU of reduction results keyed by content hash.
// Entries older than ttl are treated as absent; a zero ttl never expires.
type resultCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
	now      func() time.Time
	stats    CacheStats
}

type cacheEntry struct {
	key      string
	value    ReducedContent
	cachedAt time.Time
}

func newResultCache(capacity int, ttl time.Duration) *resultCache {
	return &resultCache{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached result for key if present and not expired.
func (c *resultCache) Get(key string) (ReducedContent, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return ReducedContent{}, false
	}

	entry := elem.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.cachedAt) > c.ttl {
		// Expired, remove from cache
		c.order.Remove(elem)
		delete(c.entries, key)
		c.stats.Misses++
		return ReducedContent{}, false
	}

	c.order.MoveToFront(elem)
	c.stats.Hits++
	return entry.value, true
}

// Set stores a result, evicting the least recently used entry when full.
func (c *resultCache) Set(key string, value ReducedContent) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.value = value
		entry.cachedAt = c.now()
		c.order.MoveToFront(elem)
		return
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, value: value, cachedAt: c.now()})
	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
		c.stats.Evictions++
	}
}

// Stats returns a copy of the counters and the current size.
func (c *resultCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.order.Len()
	return s
}
