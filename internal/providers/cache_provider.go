package providers

import (
	"clarity/internal/structures"
	"math"
	"time"
	"unsafe"

	"github.com/coocood/freecache"
)

// CacheProviderInterface is the in-memory hot tier in front of the generic
// cache table. Set takes the entry's remaining lifetime so a hot copy never
// outlives the stored entry.
type CacheProviderInterface interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration)
	Del(key string)
	Clear()
}

type CacheProvider struct {
	cache  *freecache.Cache
	maxTTL int
}

func NewCacheProvider(conf *structures.Config, logger Logger) CacheProviderInterface {
	if !conf.Cache.Enabled || conf.Cache.Size <= 0 {
		logger.Infof(TypeCache, "Hot cache disabled")
		return &noopCache{}
	}

	maxTTL := max(int(conf.Cache.TTL.Seconds()), 1)
	logger.Infof(TypeCache, "Hot cache initialized: %dMB, max TTL=%ds", conf.Cache.Size, maxTTL)

	return &CacheProvider{
		cache:  freecache.NewCache(conf.Cache.Size * 1024 * 1024),
		maxTTL: maxTTL,
	}
}

// expireSeconds rounds ttl up to whole seconds and caps it at the configured
// maximum. Zero means the value must not be cached at all.
func (c *CacheProvider) expireSeconds(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}
	return min(int(math.Ceil(ttl.Seconds())), c.maxTTL)
}

// keyBytes aliases the key's memory; freecache copies keys before storing them.
func keyBytes(s string) []byte {
	if len(s) == 0 {
		return nil
	}
	return unsafe.Slice(unsafe.StringData(s), len(s))
}

func (c *CacheProvider) Get(key string) ([]byte, bool) {
	val, err := c.cache.Get(keyBytes(key))
	if err != nil {
		return nil, false
	}
	return val, true
}

func (c *CacheProvider) Set(key string, value []byte, ttl time.Duration) {
	expire := c.expireSeconds(ttl)
	if expire == 0 {
		c.cache.Del(keyBytes(key))
		return
	}
	// Larger than 1/1024 of the cache: the store still has it.
	_ = c.cache.Set(keyBytes(key), value, expire)
}

func (c *CacheProvider) Del(key string) {
	c.cache.Del(keyBytes(key))
}

func (c *CacheProvider) Clear() {
	c.cache.Clear()
}

type noopCache struct{}

func (n *noopCache) Get(_ string) ([]byte, bool)             { return nil, false }
func (n *noopCache) Set(_ string, _ []byte, _ time.Duration) {}
func (n *noopCache) Del(_ string)                            {}
func (n *noopCache) Clear()                                  {}
