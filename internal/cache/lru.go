// internal/cache/lru.go
//
// Tiny LRU cache with per-entry expiry.  The scope resolver uses it to
// memoize workspace-credential rows on the hot feed path.  No external
// deps; good for a few thousand entries.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRU is a non‑generic least‑recently‑used cache with per-entry TTL.
// Keys must be comparable; values can be any.  Safe for concurrent use.
type LRU struct {
	mu   sync.Mutex
	cap  int
	ll   *list.List
	dict map[any]*list.Element
}

type pair struct {
	key     any
	val     any
	expires time.Time
}

// New returns an LRU with the given capacity.  Panics on cap < 1.
func New(capacity int) *LRU {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU{
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[any]*list.Element, capacity),
	}
}

// Get retrieves a live value and marks it MRU; expired entries are
// dropped on read.
func (c *LRU) Get(key any) (val any, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ele, hit := c.dict[key]
	if !hit {
		return nil, false
	}
	p := ele.Value.(pair)
	if time.Now().After(p.expires) {
		c.ll.Remove(ele)
		delete(c.dict, key)
		return nil, false
	}
	c.ll.MoveToFront(ele)
	return p.val, true
}

// Add inserts or updates a value that expires after ttl.
func (c *LRU) Add(key, val any, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := time.Now().Add(ttl)
	if ele, hit := c.dict[key]; hit {
		ele.Value = pair{key, val, expires}
		c.ll.MoveToFront(ele)
		return
	}
	ele := c.ll.PushFront(pair{key, val, expires})
	c.dict[key] = ele
	if c.ll.Len() > c.cap {
		last := c.ll.Back()
		c.ll.Remove(last)
		delete(c.dict, last.Value.(pair).key)
	}
}

// Remove drops a key if present.
func (c *LRU) Remove(key any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, hit := c.dict[key]; hit {
		c.ll.Remove(ele)
		delete(c.dict, key)
	}
}

// Len reports current size, expired entries included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}
