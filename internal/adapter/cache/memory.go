package cache

import (
	"container/list"
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/conagua-etl/internal/domain"
)

// MemoryCache is a thread-safe LRU of archive bytes bounded by entry count.
type MemoryCache struct {
	maxEntries int
	mu         sync.Mutex
	order      *list.List // front is most recently used
	entries    map[domain.ArchiveKey]*list.Element
}

type entry struct {
	key   domain.ArchiveKey
	value []byte
}

// NewMemoryCache creates an LRU holding at most maxEntries archives.
// maxEntries below 1 is treated as 1.
func NewMemoryCache(maxEntries int) *MemoryCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &MemoryCache{
		maxEntries: maxEntries,
		order:      list.New(),
		entries:    make(map[domain.ArchiveKey]*list.Element),
	}
}

// Get returns a copy of the cached bytes.
func (c *MemoryCache) Get(_ context.Context, key domain.ArchiveKey) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	return slices.Clone(el.Value.(*entry).value), true, nil
}

// Put stores a copy of data, evicting the least recently used entry when full.
func (c *MemoryCache) Put(_ context.Context, key domain.ArchiveKey, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*entry).value = slices.Clone(data)
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&entry{key: key, value: slices.Clone(data)})
	for c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
	}
	return nil
}

// Delete drops key if present.
func (c *MemoryCache) Delete(_ context.Context, key domain.ArchiveKey) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	return nil
}

// Len reports the number of cached archives.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
