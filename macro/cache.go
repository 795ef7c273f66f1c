package macro

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Cache keeps parsed trees keyed by template name and content checksum, so
// a template is parsed once and expanded for every table. Trees are shared
// read-only between callers.
type Cache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*list.Element
	lru     *list.List
	hits    int
	misses  int
}

type cacheEntry struct {
	key   string
	nodes []Node
}

// NewCache creates a cache holding at most maxSize trees. A maxSize of 0
// disables caching.
func NewCache(maxSize int) *Cache {
	return &Cache{
		maxSize: maxSize,
		entries: make(map[string]*list.Element),
		lru:     list.New(),
	}
}

// Parse returns the cached tree for (name, src) or parses and stores it.
// Parse failures are not cached.
func (c *Cache) Parse(name, src string) ([]Node, error) {
	if c == nil || c.maxSize == 0 {
		return Parse(name, src)
	}

	key := cacheKey(name, src)

	c.mu.Lock()
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		c.hits++
		nodes := el.Value.(*cacheEntry).nodes
		c.mu.Unlock()
		return nodes, nil
	}
	c.misses++
	c.mu.Unlock()

	nodes, err := Parse(name, src)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// another caller may have stored the same tree meanwhile
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		return el.Value.(*cacheEntry).nodes, nil
	}

	if c.lru.Len() >= c.maxSize {
		if oldest := c.lru.Back(); oldest != nil {
			delete(c.entries, oldest.Value.(*cacheEntry).key)
			c.lru.Remove(oldest)
		}
	}
	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, nodes: nodes})
	return nodes, nil
}

// Len returns the number of cached trees.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Stats returns hit and miss counts since creation.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func cacheKey(name, src string) string {
	sum := sha256.Sum256([]byte(src))
	return name + "@" + hex.EncodeToString(sum[:])
}
