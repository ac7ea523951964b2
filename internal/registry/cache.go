// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"container/list"
	"sync"

	"github.com/daniell-olaitan/sensorhub/internal/domain"
)

// deviceCache is a bounded, in-process, write-through cache of recently
// accessed devices. Unlike the teacher's TTL-based cache, eviction here is
// by size (LRU) since device records are invalidated explicitly on every
// write rather than expiring on a clock.
type deviceCache struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	items    map[string]*list.Element
}

type cacheEntry struct {
	key   string
	value domain.Device
}

func newDeviceCache(capacity int) *deviceCache {
	return &deviceCache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *deviceCache) get(id string) (domain.Device, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[id]
	if !ok {
		return domain.Device{}, false
	}
	c.ll.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *deviceCache) put(d domain.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[d.ID]; ok {
		el.Value.(*cacheEntry).value = d
		c.ll.MoveToFront(el)
		return
	}

	el := c.ll.PushFront(&cacheEntry{key: d.ID, value: d})
	c.items[d.ID] = el

	for c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.ll.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
}

func (c *deviceCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[id]; ok {
		c.ll.Remove(el)
		delete(c.items, id)
	}
}
