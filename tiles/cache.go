package tiles

import (
	"github.com/hashicorp/golang-lru/v2"
)

// CachedResponse is a tile body kept with its validators for conditional
// requests.
type CachedResponse struct {
	Body         []byte
	ETag         string
	LastModified string
}

// Cache is an in-memory LRU of tile responses keyed by request URL, so
// sources with different templates can share one. It is safe for
// concurrent use.
type Cache struct {
	lru *lru.Cache[string, CachedResponse]
}

const DefaultCacheSize = 1024

func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, CachedResponse](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

func (c *Cache) Get(url string) (CachedResponse, bool) {
	return c.lru.Get(url)
}

func (c *Cache) Set(url string, r CachedResponse) {
	c.lru.Add(url, r)
}

func (c *Cache) Remove(url string) {
	c.lru.Remove(url)
}

func (c *Cache) Len() int { return c.lru.Len() }

func (c *Cache) Clear() {
	c.lru.Purge()
}
