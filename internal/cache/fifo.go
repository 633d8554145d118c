// Pathfinder - Route Recommendation and Quality Prediction
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/pathfinder

// Package cache provides a bounded, insertion-ordered cache with lazy TTL
// expiry.
//
// Entries are kept in a doubly-linked list ordered by insertion time with a
// map for O(1) lookup. Reads never reorder entries: when the cache is full
// the entry inserted longest ago is evicted, regardless of how often it is
// read. Overwriting a key counts as a fresh insertion.
//
// Expiry is checked only on Get. An expired entry is removed at that point;
// entries that are never read again stay until capacity pressure or Purge
// removes them.
package cache

import (
	"sync"
	"time"
)

// EvictReason says why an entry left the cache.
type EvictReason string

// Eviction reasons reported to the eviction hook.
const (
	EvictCapacity EvictReason = "capacity"
	EvictExpired  EvictReason = "expired"
	EvictPurged   EvictReason = "purged"
)

type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	prev       *entry[V]
	next       *entry[V]
}

// Option configures a FIFO.
type Option[V any] func(*FIFO[V])

// WithClock replaces time.Now, mainly for tests.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *FIFO[V]) {
		c.now = now
	}
}

// WithEvictHook registers a callback invoked (under the cache lock) for
// every entry removed other than by overwrite.
func WithEvictHook[V any](hook func(key string, reason EvictReason)) Option[V] {
	return func(c *FIFO[V]) {
		c.onEvict = hook
	}
}

// FIFO is a thread-safe insertion-ordered cache with a TTL.
type FIFO[V any] struct {
	mu sync.Mutex

	capacity int
	ttl      time.Duration
	now      func() time.Time
	onEvict  func(key string, reason EvictReason)

	items map[string]*entry[V]

	// head.next is the newest entry, tail.prev the oldest.
	head *entry[V]
	tail *entry[V]

	hits   int64
	misses int64
}

// NewFIFO creates a cache holding at most capacity entries, each valid for
// ttl after insertion. Non-positive values fall back to 1000 entries and
// five minutes.
func NewFIFO[V any](capacity int, ttl time.Duration, opts ...Option[V]) *FIFO[V] {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &FIFO[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*entry[V], capacity),
		head:     &entry[V]{},
		tail:     &entry[V]{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key if present and no older than the TTL.
func (c *FIFO[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	if c.now().Sub(e.insertedAt) > c.ttl {
		c.remove(e, EvictExpired)
		c.misses++
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Put inserts or overwrites key, evicting the oldest entries while the
// cache is over capacity.
func (c *FIFO[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.items[key]; ok {
		c.unlink(old)
		delete(c.items, key)
	}

	e := &entry[V]{key: key, value: value, insertedAt: c.now()}
	c.pushFront(e)
	c.items[key] = e

	for len(c.items) > c.capacity {
		c.remove(c.tail.prev, EvictCapacity)
	}
}

// Remove deletes key. It reports whether the key was present.
func (c *FIFO[V]) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if ok {
		c.unlink(e)
		delete(c.items, key)
	}
	return ok
}

// Purge removes every entry and returns how many were removed.
func (c *FIFO[V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.items)
	if c.onEvict != nil {
		for e := c.head.next; e != c.tail; e = e.next {
			c.onEvict(e.key, EvictPurged)
		}
	}
	c.items = make(map[string]*entry[V], c.capacity)
	c.head.next = c.tail
	c.tail.prev = c.head
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *FIFO[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns hit and miss counts.
func (c *FIFO[V]) Stats() (hits, misses int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *FIFO[V]) remove(e *entry[V], reason EvictReason) {
	c.unlink(e)
	delete(c.items, e.key)
	if c.onEvict != nil {
		c.onEvict(e.key, reason)
	}
}

func (c *FIFO[V]) pushFront(e *entry[V]) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *FIFO[V]) unlink(e *entry[V]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.prev = nil
	e.next = nil
}
