// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides a simple LRU cache with optional expiry.
// The authentication gateways use it to avoid looking up the same
// API token for every request.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// entry is one cached item.  expires is zero if the cache has no TTL.
type entry struct {
	key     string
	value   interface{}
	expires time.Time
}

// LRU is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type LRU struct {
	size      int
	ttl       time.Duration
	clock     clock.Clock
	lock      sync.RWMutex
	evictList *list.List
	index     map[string]*list.Element
}

// NewLRU creates a cache holding at most size items that never
// expire.
func NewLRU(size int) *LRU {
	return NewLRUWithTTL(size, 0, clock.New())
}

// NewLRUWithTTL creates a cache holding at most size items, each of
// which is discarded ttl after it was added.  A zero ttl disables
// expiry.  clk is consulted for the current time.
func NewLRUWithTTL(size int, ttl time.Duration, clk clock.Clock) *LRU {
	return &LRU{
		size:      size,
		ttl:       ttl,
		clock:     clk,
		evictList: list.New(),
		index:     make(map[string]*list.Element),
	}
}

// Get retrieves an item from the cache.  If it is not present, calls
// the fetch function, and if that returns without error, saves the
// item and returns it.  This should return an error only if the item
// is not present and the fetch function returns an error.
func (lru *LRU) Get(key string, fetch func(string) (interface{}, error)) (interface{}, error) {
	// This sadly happens under a writer lock, since we need to move
	// the item to the front of the list if it is present
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Is it there?
	if element, present := lru.index[key]; present {
		e := element.Value.(*entry)
		if !lru.expired(e) {
			lru.evictList.MoveToBack(element)
			return e.value, nil
		}
		lru.remove(element)
	}

	// Otherwise call the fetch function
	value, err := fetch(key)
	if err != nil {
		return value, err
	}
	lru.add(key, value)
	return value, nil
}

// Peek looks for an item in the cache and returns it if present.
// This runs under a reader lock, and so can run concurrently with
// itself but not calls to Put or Get.  This does not affect the
// recency of the item.
func (lru *LRU) Peek(key string) (interface{}, bool) {
	lru.lock.RLock()
	defer lru.lock.RUnlock()

	if element, present := lru.index[key]; present {
		e := element.Value.(*entry)
		if !lru.expired(e) {
			return e.value, true
		}
	}
	return nil, false
}

// Put adds an item to the LRU cache, possibly evicting something.
func (lru *LRU) Put(key string, value interface{}) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	// Are we just updating an existing item?
	if element, present := lru.index[key]; present {
		e := element.Value.(*entry)
		e.value = value
		e.expires = lru.expiry()
		lru.evictList.MoveToBack(element)
		return
	}

	// Otherwise add it
	lru.add(key, value)
}

// Remove takes an item out of the cache.  It does nothing if that
// key does not exist.
func (lru *LRU) Remove(key string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()

	if element, present := lru.index[key]; present {
		lru.remove(element)
	}
}

// Len returns the number of items in the cache, including any that
// have expired but not yet been discarded.
func (lru *LRU) Len() int {
	lru.lock.RLock()
	defer lru.lock.RUnlock()
	return len(lru.index)
}

func (lru *LRU) expiry() time.Time {
	if lru.ttl <= 0 {
		return time.Time{}
	}
	return lru.clock.Now().Add(lru.ttl)
}

func (lru *LRU) expired(e *entry) bool {
	return !e.expires.IsZero() && !lru.clock.Now().Before(e.expires)
}

func (lru *LRU) remove(element *list.Element) {
	delete(lru.index, element.Value.(*entry).key)
	lru.evictList.Remove(element)
}

// add is an internal helper, running under the write lock, that adds a
// new item to the cache.  The item is known to not already exist.
func (lru *LRU) add(key string, value interface{}) {
	element := lru.evictList.PushBack(&entry{key: key, value: value, expires: lru.expiry()})
	lru.index[key] = element

	// If this caused the cache to go over size, start evicting items
	for len(lru.index) > lru.size {
		lru.remove(lru.evictList.Front())
	}
}
