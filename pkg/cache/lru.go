// Package cache provides a bounded, thread-safe LRU cache.
//
// The server keeps one per-page toast manager in an LRU so abandoned pages are
// released, and the snapshot service caches rendered snapshots in another.
package cache

import (
	"container/list"
	"sync"
)

// EvictFunc is called with every entry that leaves the cache through eviction,
// Remove or Purge. It runs after the cache lock is released, so it may call
// back into the cache.
type EvictFunc[K comparable, V any] func(key K, value V)

// Option configures an LRU.
type Option[K comparable, V any] func(*LRU[K, V])

// WithEvict registers fn as the eviction callback.
func WithEvict[K comparable, V any](fn EvictFunc[K, V]) Option[K, V] {
	return func(c *LRU[K, V]) {
		c.onEvict = fn
	}
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// LRU evicts the least recently used entry once it holds more than its
// capacity.
type LRU[K comparable, V any] struct {
	capacity int
	items    map[K]*list.Element
	order    *list.List
	onEvict  EvictFunc[K, V]
	mu       sync.Mutex
}

// New creates an LRU holding at most capacity entries. It panics when
// capacity is not positive.
func New[K comparable, V any](capacity int, opts ...Option[K, V]) *LRU[K, V] {
	if capacity <= 0 {
		panic("cache: LRU capacity must be positive")
	}
	c := &LRU[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key and marks it recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		return elem.Value.(*entry[K, V]).value, true
	}
	var zero V
	return zero, false
}

// GetOrPut returns the cached value for key, or stores and returns the value
// built by create. create runs under the cache lock and must not call back
// into the cache.
func (c *LRU[K, V]) GetOrPut(key K, create func() V) (V, bool) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		v := elem.Value.(*entry[K, V]).value
		c.mu.Unlock()
		return v, true
	}
	v := create()
	evicted := c.insert(key, v)
	c.mu.Unlock()

	c.notify(evicted)
	return v, false
}

// Put stores value under key, replacing any previous value without calling
// the eviction callback.
func (c *LRU[K, V]) Put(key K, value V) {
	c.mu.Lock()
	if elem, ok := c.items[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*entry[K, V]).value = value
		c.mu.Unlock()
		return
	}
	evicted := c.insert(key, value)
	c.mu.Unlock()

	c.notify(evicted)
}

// Remove drops key and reports whether it was present.
func (c *LRU[K, V]) Remove(key K) bool {
	c.mu.Lock()
	elem, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false
	}
	e := c.unlink(elem)
	c.mu.Unlock()

	c.notify([]*entry[K, V]{e})
	return true
}

// Purge empties the cache.
func (c *LRU[K, V]) Purge() {
	c.mu.Lock()
	evicted := make([]*entry[K, V], 0, len(c.items))
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		evicted = append(evicted, elem.Value.(*entry[K, V]))
	}
	clear(c.items)
	c.order.Init()
	c.mu.Unlock()

	c.notify(evicted)
}

// Len returns the number of cached entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[K, V]).key)
	}
	return keys
}

// Must be called with lock held.
func (c *LRU[K, V]) insert(key K, value V) []*entry[K, V] {
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})

	var evicted []*entry[K, V]
	for c.order.Len() > c.capacity {
		evicted = append(evicted, c.unlink(c.order.Back()))
	}
	return evicted
}

// Must be called with lock held.
func (c *LRU[K, V]) unlink(elem *list.Element) *entry[K, V] {
	c.order.Remove(elem)
	e := elem.Value.(*entry[K, V])
	delete(c.items, e.key)
	return e
}

func (c *LRU[K, V]) notify(evicted []*entry[K, V]) {
	if c.onEvict == nil {
		return
	}
	for _, e := range evicted {
		c.onEvict(e.key, e.value)
	}
}
