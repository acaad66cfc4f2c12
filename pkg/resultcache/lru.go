// Package resultcache is a thread-safe, TTL-less LRU keyed by an
// iteration descriptor, grounded on the teacher's pkg/cache/lru.go. It
// sits outside the core: MEM and WI never consult it, and nothing
// here affects visibility or correctness. The core's only awareness
// of it is the Config.CachePinning flag it forwards, so that an
// embedder wiring an Iterator to a result cache can decide whether a
// given read view's output is worth pinning.
package resultcache

import (
	"container/list"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sync"
)

// Descriptor identifies one iteration whose output an embedder may
// want to cache: a key range probe under a specific read view.
type Descriptor struct {
	IterKind int
	Key      []string // stringified key fields; the core's Value type is not cache's concern
	VLSN     int64
}

// Key derives a deterministic cache key from a Descriptor the same way
// the teacher's GenerateKey hashes query shape: JSON-marshal then
// sha256, so unrelated descriptors never collide by accident.
func Key(d Descriptor) string {
	jsonBytes, err := json.Marshal(d)
	if err != nil {
		return fmt.Sprintf("%v_%v_%d", d.IterKind, d.Key, d.VLSN)
	}
	hash := sha256.Sum256(jsonBytes)
	return fmt.Sprintf("%x", hash)
}

type entry struct {
	key     string
	value   any
	element *list.Element
}

// Cache is a thread-safe, fixed-capacity LRU with no time-based
// expiry: entries are only evicted when capacity is exceeded, since a
// cached iteration result's validity is the embedder's call (e.g. tied
// to a read view's lifetime), not a wall-clock deadline.
type Cache struct {
	mu        sync.RWMutex
	capacity  int
	items     map[string]*entry
	lru       *list.List
	hits      uint64
	misses    uint64
	evictions uint64
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[string]*entry),
		lru:      list.New(),
	}
}

func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	c.lru.MoveToFront(e.element)
	c.hits++
	return e.value, true
}

func (c *Cache) Put(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		c.lru.MoveToFront(e.element)
		return
	}

	e := &entry{key: key, value: value}
	e.element = c.lru.PushFront(e)
	c.items[key] = e

	if c.lru.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *Cache) evictOldest() {
	oldest := c.lru.Back()
	if oldest == nil {
		return
	}
	e := oldest.Value.(*entry)
	c.lru.Remove(oldest)
	delete(c.items, e.key)
	c.evictions++
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*entry)
	c.lru = list.New()
}

func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Stats mirrors the teacher's Stats shape: a hit/miss/eviction summary
// an embedder can export as metrics.
func (c *Cache) Stats() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	total := c.hits + c.misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(c.hits) / float64(total) * 100
	}
	return map[string]any{
		"capacity":  c.capacity,
		"size":      len(c.items),
		"hits":      c.hits,
		"misses":    c.misses,
		"evictions": c.evictions,
		"hit_rate":  fmt.Sprintf("%.2f%%", hitRate),
	}
}
