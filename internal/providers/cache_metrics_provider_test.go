package providers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type cacheMetricsTestMetrics struct {
	noopMetrics
	hits   map[string]int
	misses map[string]int
}

func newCacheMetricsTestMetrics() *cacheMetricsTestMetrics {
	return &cacheMetricsTestMetrics{hits: map[string]int{}, misses: map[string]int{}}
}

func (m *cacheMetricsTestMetrics) IncCacheHits(tier string)   { m.hits[tier]++ }
func (m *cacheMetricsTestMetrics) IncCacheMisses(tier string) { m.misses[tier]++ }

type cacheMetricsTestInner struct {
	data map[string][]byte
}

func (c *cacheMetricsTestInner) Get(key string) ([]byte, bool) {
	v, ok := c.data[key]
	return v, ok
}
func (c *cacheMetricsTestInner) Set(key string, value []byte, _ time.Duration) {
	c.data[key] = value
}
func (c *cacheMetricsTestInner) Del(key string) {
	delete(c.data, key)
}
func (c *cacheMetricsTestInner) Clear() {
	c.data = map[string][]byte{}
}

func TestMetricsCacheProvider_Hit(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{"key1": []byte("val1")}}
	metrics := newCacheMetricsTestMetrics()
	cache := &MetricsCacheProvider{inner: inner, metrics: metrics}

	val, ok := cache.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, []byte("val1"), val)
	assert.Equal(t, 1, metrics.hits["hot"])
	assert.Equal(t, 0, metrics.misses["hot"])
}

func TestMetricsCacheProvider_Miss(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{}}
	metrics := newCacheMetricsTestMetrics()
	cache := &MetricsCacheProvider{inner: inner, metrics: metrics}

	val, ok := cache.Get("missing")
	assert.False(t, ok)
	assert.Nil(t, val)
	assert.Equal(t, 0, metrics.hits["hot"])
	assert.Equal(t, 1, metrics.misses["hot"])
}

func TestMetricsCacheProvider_DelegatesWrites(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{}}
	cache := &MetricsCacheProvider{inner: inner, metrics: newCacheMetricsTestMetrics()}

	cache.Set("key2", []byte("val2"), time.Minute)
	val, ok := inner.Get("key2")
	assert.True(t, ok)
	assert.Equal(t, []byte("val2"), val)

	cache.Del("key2")
	_, ok = inner.Get("key2")
	assert.False(t, ok)

	cache.Set("key3", []byte("val3"), time.Minute)
	cache.Clear()
	assert.Empty(t, inner.data)
}

func TestMetricsCacheProvider_MultipleOperations(t *testing.T) {
	inner := &cacheMetricsTestInner{data: map[string][]byte{"a": []byte("1")}}
	metrics := newCacheMetricsTestMetrics()
	cache := &MetricsCacheProvider{inner: inner, metrics: metrics}

	cache.Get("a") // hit
	cache.Get("b") // miss
	cache.Get("a") // hit
	cache.Get("c") // miss

	assert.Equal(t, 2, metrics.hits["hot"])
	assert.Equal(t, 2, metrics.misses["hot"])
}

func TestInstrumentedCacheProvider_DisabledSkipsMetrics(t *testing.T) {
	c := NewInstrumentedCacheProvider(cacheConfig(false, 0), &cacheTestLogger{}, newCacheMetricsTestMetrics())
	assert.IsType(t, &noopCache{}, c)

	c = NewInstrumentedCacheProvider(cacheConfig(true, 1), &cacheTestLogger{}, newCacheMetricsTestMetrics())
	assert.IsType(t, &MetricsCacheProvider{}, c)
}
