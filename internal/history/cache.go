// Package history keeps completed validation results: a bounded in-memory
// cache keyed by URL, a SQLite store, export and change comparison.
package history

import (
	"container/list"
	"sync"

	"github.com/raysh454/offerlens/internal/model"
)

// DefaultCacheSize bounds a Cache built with a non-positive size.
const DefaultCacheSize = 100

type cacheEntry struct {
	key    string
	result *model.ValidationResult
}

// Cache holds the latest result per key, evicting the least recently
// written key once full. Safe for concurrent use.
type Cache struct {
	mu    sync.Mutex
	size  int
	order *list.List // front is newest
	items map[string]*list.Element
}

func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	return &Cache{
		size:  size,
		order: list.New(),
		items: make(map[string]*list.Element, size),
	}
}

// Put stores result under key, replacing any earlier one. The replaced
// result is returned so callers can compare.
func (c *Cache) Put(key string, result *model.ValidationResult) (prev *model.ValidationResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*cacheEntry)
		prev = ent.result
		ent.result = result
		c.order.MoveToFront(el)
		return prev
	}

	c.items[key] = c.order.PushFront(&cacheEntry{key: key, result: result})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*cacheEntry).key)
	}
	return nil
}

func (c *Cache) Get(key string) (*model.ValidationResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).result, true
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Recent returns up to limit results, newest first. limit <= 0 returns all.
func (c *Cache) Recent(limit int) []*model.ValidationResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := c.order.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]*model.ValidationResult, 0, n)
	for el := c.order.Front(); el != nil && len(out) < n; el = el.Next() {
		out = append(out, el.Value.(*cacheEntry).result)
	}
	return out
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element, c.size)
}
