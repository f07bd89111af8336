// Package icons caches site icons in memory and releases them under memory
// pressure.
package icons

import (
	"sync"

	"browserd/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// Memory-pressure levels, mirroring the platform trim signal.
const (
	TrimModerate = 5
	TrimCritical = 15
)

// Cache is an LRU icon cache keyed by origin.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, []byte]
	size   int
	logger *zap.SugaredLogger
}

// NewCache creates a cache holding at most size icons.
func NewCache(size int, logger *zap.SugaredLogger) (*Cache, error) {
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c, size: size, logger: logger}, nil
}

// Put stores an icon for origin.
func (c *Cache) Put(origin string, icon []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lru.Add(origin, icon) {
		metrics.IconCacheEvictions.WithLabelValues("lru").Inc()
	}
}

// Get returns the icon for origin, if cached.
func (c *Cache) Get(origin string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	icon, ok := c.lru.Get(origin)
	if ok {
		metrics.IconCacheHits.Inc()
	}
	return icon, ok
}

// Len returns the number of cached icons.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// OnTrimMemory releases memory in response to an OS trim signal: moderate
// pressure drops the older half of the cache, critical pressure drops
// everything. Safe to call repeatedly and at arbitrary times.
func (c *Cache) OnTrimMemory(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case level >= TrimCritical:
		n := c.lru.Len()
		c.lru.Purge()
		metrics.IconCacheEvictions.WithLabelValues("trim").Add(float64(n))
		c.logger.Debugw("Icon cache purged", "level", level, "dropped", n)

	case level >= TrimModerate:
		drop := c.lru.Len() / 2
		for i := 0; i < drop; i++ {
			c.lru.RemoveOldest()
		}
		metrics.IconCacheEvictions.WithLabelValues("trim").Add(float64(drop))
		c.logger.Debugw("Icon cache trimmed", "level", level, "dropped", drop)
	}
}
