package cache

import (
	"sync"
	"sync/atomic"
)

// contentCache keeps recently saved or reverted record contents in memory
// with LRU eviction bounded by total byte size.
type contentCache struct {
	entries     map[string]*entry
	mutex       sync.Mutex
	maxSize     int64
	currentSize int64
	head        *entry
	tail        *entry

	hits      int64
	misses    int64
	evictions int64
}

type entry struct {
	key   string
	stamp int64
	value []byte
	size  int64
	prev  *entry
	next  *entry
}

func newContentCache(maxSize int64) *contentCache {
	c := &contentCache{
		entries: make(map[string]*entry),
		maxSize: maxSize,
		head:    &entry{},
		tail:    &entry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// get returns the value stored under key when it was stored with stamp.
func (c *contentCache) get(key string, stamp int64) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	e, ok := c.entries[key]
	if !ok || e.stamp != stamp {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	c.moveToFront(e)
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

func (c *contentCache) set(key string, stamp int64, value []byte) {
	size := int64(len(value))
	if size > c.maxSize {
		c.remove(key)
		return
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[key]; ok {
		c.currentSize += size - e.size
		e.value, e.size, e.stamp = value, size, stamp
		c.moveToFront(e)
		c.evict()
		return
	}

	e := &entry{key: key, stamp: stamp, value: value, size: size}
	c.entries[key] = e
	c.currentSize += size
	c.addToFront(e)
	c.evict()
}

func (c *contentCache) remove(key string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
		c.currentSize -= e.size
	}
}

func (c *contentCache) clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.entries = make(map[string]*entry)
	c.currentSize = 0
	c.head.next = c.tail
	c.tail.prev = c.head
}

// stats returns entry count, hits, misses and evictions.
func (c *contentCache) stats() (int, int64, int64, int64) {
	c.mutex.Lock()
	n := len(c.entries)
	c.mutex.Unlock()
	return n, atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), atomic.LoadInt64(&c.evictions)
}

// evict drops least recently used entries until the cache fits maxSize.
func (c *contentCache) evict() {
	for c.currentSize > c.maxSize && c.tail.prev != c.head {
		lru := c.tail.prev
		c.unlink(lru)
		delete(c.entries, lru.key)
		c.currentSize -= lru.size
		atomic.AddInt64(&c.evictions, 1)
	}
}

func (c *contentCache) addToFront(e *entry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *contentCache) unlink(e *entry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *contentCache) moveToFront(e *entry) {
	c.unlink(e)
	c.addToFront(e)
}
