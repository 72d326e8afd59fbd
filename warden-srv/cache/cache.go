// Package cache implements the proxy's in-memory LRU response cache: a
// bounded byte-size map from request URL to the raw response bytes fetched
// from an origin server.
//
// The eviction policy and locking strategy are grounded on the reference
// LRUCache (a HashMap plus an intrusive doubly linked list guarded by a
// ReentrantReadWriteLock): container/list plays the role of that intrusive
// list, and sync.RWMutex plays the role of the read/write lock.
package cache

import (
	"container/list"
	"sync"

	"github.com/wardenproxy/warden/warden-srv/logger"
)

const (
	// MaxTotalBytes is the default total byte budget for all cached entries.
	MaxTotalBytes = 200 * 1024 * 1024
	// MaxEntryBytes is the largest single response the cache will store.
	// A put beyond this size is a silent no-op.
	MaxEntryBytes = 10 * 1024 * 1024
)

var log = logger.Component("cache")

type entry struct {
	key   string
	value []byte
}

// LRU is a byte-size-bounded, least-recently-used response cache. The zero
// value is not usable; construct with New.
type LRU struct {
	mu sync.RWMutex

	maxTotalBytes int64
	maxEntryBytes int64
	capacity      int // optional entry-count bound; 0 disables it

	order       *list.List // most-recent at Front, least-recent at Back
	index       map[string]*list.Element
	currentSize int64
}

// New constructs an LRU cache with the given byte-size bounds. A capacity of
// 0 disables the optional entry-count bound (§9: only the byte bound is
// authoritative).
func New(maxTotalBytes, maxEntryBytes int64, capacity int) *LRU {
	if maxTotalBytes <= 0 {
		maxTotalBytes = MaxTotalBytes
	}
	if maxEntryBytes <= 0 {
		maxEntryBytes = MaxEntryBytes
	}
	return &LRU{
		maxTotalBytes: maxTotalBytes,
		maxEntryBytes: maxEntryBytes,
		capacity:      capacity,
		order:         list.New(),
		index:         make(map[string]*list.Element),
	}
}

// Get returns the cached value for key and promotes it to most-recently-used.
// The second return value reports whether the key was present.
//
// Promotion requires mutating the recency list, so Get takes the cache's
// exclusive lock rather than a shared read lock — the reference design's
// read/write split is unsound once recency order is part of the read path
// (see the design notes on concurrent cache recency).
func (c *LRU) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.index[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	ent := el.Value.(*entry)
	return ent.value, true
}

// Put inserts or replaces the value stored for key. A value larger than the
// cache's per-entry bound is silently dropped — callers must treat a
// subsequent Get as a miss. Inserting or replacing promotes the entry to
// most-recently-used, then evicts from the least-recent end until the total
// byte budget is satisfied.
func (c *LRU) Put(key string, value []byte) {
	size := int64(len(value))
	if size > c.maxEntryBytes {
		log.Debug("dropping oversize entry %q (%d bytes > %d max)", key, size, c.maxEntryBytes)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[key]; ok {
		ent := el.Value.(*entry)
		c.currentSize += size - int64(len(ent.value))
		ent.value = value
		c.order.MoveToFront(el)
	} else {
		el := c.order.PushFront(&entry{key: key, value: value})
		c.index[key] = el
		c.currentSize += size
	}

	c.evict()
}

// evict removes least-recently-used entries until both the byte budget and
// (if configured) the entry-count budget are satisfied. Caller must hold c.mu.
func (c *LRU) evict() {
	for c.currentSize > c.maxTotalBytes || (c.capacity > 0 && c.order.Len() > c.capacity) {
		back := c.order.Back()
		if back == nil {
			return
		}
		ent := back.Value.(*entry)
		c.order.Remove(back)
		delete(c.index, ent.key)
		c.currentSize -= int64(len(ent.value))
	}
}

// Len returns the number of entries currently cached.
func (c *LRU) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order.Len()
}

// Size returns the total number of bytes currently cached.
func (c *LRU) Size() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentSize
}
