package providers

import (
	"clarity/internal/structures"
	"time"
)

const hotTier = "hot"

// MetricsCacheProvider counts hot-tier lookups under the "hot" tier label; the
// store tier is counted by the dashboard service.
type MetricsCacheProvider struct {
	inner   CacheProviderInterface
	metrics MetricsProviderInterface
}

func (c *MetricsCacheProvider) Get(key string) ([]byte, bool) {
	val, ok := c.inner.Get(key)
	if ok {
		c.metrics.IncCacheHits(hotTier)
	} else {
		c.metrics.IncCacheMisses(hotTier)
	}
	return val, ok
}

func (c *MetricsCacheProvider) Set(key string, value []byte, ttl time.Duration) {
	c.inner.Set(key, value, ttl)
}

func (c *MetricsCacheProvider) Del(key string) { c.inner.Del(key) }

func (c *MetricsCacheProvider) Clear() { c.inner.Clear() }

// NewInstrumentedCacheProvider returns the hot tier wrapped with hit/miss
// counters. A disabled tier is returned bare so every read is not a miss.
func NewInstrumentedCacheProvider(conf *structures.Config, logger Logger, metrics MetricsProviderInterface) CacheProviderInterface {
	inner := NewCacheProvider(conf, logger)
	if _, disabled := inner.(*noopCache); disabled {
		return inner
	}
	return &MetricsCacheProvider{inner: inner, metrics: metrics}
}
