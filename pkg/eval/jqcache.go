package eval

import (
	"container/list"
	"sync"

	"github.com/itchyny/gojq"
)

// jqCache is an LRU cache of compiled gojq queries, mirroring programCache's
// shape for the second expression dialect the default evaluator supports.
type jqCache struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List
	mu       sync.RWMutex
}

type jqCacheEntry struct {
	key  string
	code *gojq.Code
}

func newJQCache(capacity int) *jqCache {
	if capacity <= 0 {
		capacity = 256
	}
	return &jqCache{
		capacity: capacity,
		cache:    make(map[string]*list.Element),
		lruList:  list.New(),
	}
}

func (c *jqCache) get(query string) (*gojq.Code, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, found := c.cache[query]; found {
		c.lruList.MoveToFront(element)
		return element.Value.(*jqCacheEntry).code, true
	}
	return nil, false
}

func (c *jqCache) put(query string, code *gojq.Code) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if element, found := c.cache[query]; found {
		c.lruList.MoveToFront(element)
		element.Value.(*jqCacheEntry).code = code
		return
	}
	element := c.lruList.PushFront(&jqCacheEntry{key: query, code: code})
	c.cache[query] = element
	if c.lruList.Len() > c.capacity {
		oldest := c.lruList.Back()
		if oldest != nil {
			c.lruList.Remove(oldest)
			delete(c.cache, oldest.Value.(*jqCacheEntry).key)
		}
	}
}
