// GrowReporter - Web Analytics Reporting and AI Insights
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/growreporter

package cache

import (
	"sync"
	"time"
)

type memEntry struct {
	key       string
	siteID    string
	payload   []byte
	expiresAt time.Time
	prev      *memEntry
	next      *memEntry
}

// memoryLRU is a bounded LRU of encoded payloads with per-entry expiry.
// head.next is the most recently used entry, tail.prev the least.
type memoryLRU struct {
	mu        sync.Mutex
	capacity  int
	items     map[string]*memEntry
	head      *memEntry
	tail      *memEntry
	evictions int64
}

func newMemoryLRU(capacity int) *memoryLRU {
	c := &memoryLRU{
		capacity: capacity,
		items:    make(map[string]*memEntry, capacity),
		head:     &memEntry{},
		tail:     &memEntry{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

func (c *memoryLRU) get(key string, now time.Time) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if !now.Before(e.expiresAt) {
		c.remove(e)
		return nil, false
	}
	c.unlink(e)
	c.pushFront(e)
	return e.payload, true
}

func (c *memoryLRU) add(key, siteID string, payload []byte, expiresAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.siteID, e.payload, e.expiresAt = siteID, payload, expiresAt
		c.unlink(e)
		c.pushFront(e)
		return
	}
	e := &memEntry{key: key, siteID: siteID, payload: payload, expiresAt: expiresAt}
	c.pushFront(e)
	c.items[key] = e
	for len(c.items) > c.capacity {
		oldest := c.tail.prev
		if oldest == c.head {
			break
		}
		c.remove(oldest)
		c.evictions++
	}
}

func (c *memoryLRU) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.remove(e)
	}
}

func (c *memoryLRU) deleteSite(siteID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for e := c.head.next; e != c.tail; {
		next := e.next
		if e.siteID == siteID {
			c.remove(e)
			n++
		}
		e = next
	}
	return n
}

func (c *memoryLRU) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Callers hold mu.
func (c *memoryLRU) pushFront(e *memEntry) {
	e.prev = c.head
	e.next = c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *memoryLRU) unlink(e *memEntry) {
	e.prev.next = e.next
	e.next.prev = e.prev
}

func (c *memoryLRU) remove(e *memEntry) {
	c.unlink(e)
	delete(c.items, e.key)
}
