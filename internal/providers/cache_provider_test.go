package providers

import (
	"clarity/internal/structures"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// local mock logger to avoid import cycle with testutil
type cacheTestLogger struct{}

func (m *cacheTestLogger) Errorf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *cacheTestLogger) Warnf(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *cacheTestLogger) Debugf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *cacheTestLogger) Infof(_ TypeEnum, _ string, _ ...interface{})  {}
func (m *cacheTestLogger) Fatalf(_ TypeEnum, _ string, _ ...interface{}) {}
func (m *cacheTestLogger) Close()                                        {}

func cacheConfig(enabled bool, size int) *structures.Config {
	return &structures.Config{
		Cache: structures.CacheConfig{
			Enabled: enabled,
			Size:    size,
			TTL:     time.Minute,
		},
	}
}

func TestCacheProvider_Disabled(t *testing.T) {
	assert.IsType(t, &noopCache{}, NewCacheProvider(cacheConfig(false, 10), &cacheTestLogger{}))
	assert.IsType(t, &noopCache{}, NewCacheProvider(cacheConfig(true, 0), &cacheTestLogger{}))
	assert.IsType(t, &CacheProvider{}, NewCacheProvider(cacheConfig(true, 1), &cacheTestLogger{}))
}

func TestCacheProvider_SetGetOverwrite(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &cacheTestLogger{})

	_, ok := c.Get("cache:programs:i1")
	assert.False(t, ok)

	c.Set("cache:programs:i1", []byte("v1"), time.Minute)
	c.Set("cache:programs:i1", []byte("v2"), time.Minute)
	val, ok := c.Get("cache:programs:i1")
	assert.True(t, ok)
	assert.Equal(t, []byte("v2"), val)
}

func TestCacheProvider_ExpiredLifetimeDropsKey(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &cacheTestLogger{})

	c.Set("cache:coupon:SAVE10", []byte("old"), time.Minute)
	c.Set("cache:coupon:SAVE10", []byte("new"), 0)

	_, ok := c.Get("cache:coupon:SAVE10")
	assert.False(t, ok)
}

func TestCacheProvider_ExpireSeconds(t *testing.T) {
	c := &CacheProvider{maxTTL: 60}

	assert.Equal(t, 0, c.expireSeconds(-time.Second))
	assert.Equal(t, 0, c.expireSeconds(0))
	assert.Equal(t, 1, c.expireSeconds(10*time.Millisecond))
	assert.Equal(t, 3, c.expireSeconds(2500*time.Millisecond))
	assert.Equal(t, 60, c.expireSeconds(24*time.Hour))
}

func TestCacheProvider_DelAndClear(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &cacheTestLogger{})

	c.Set("a", []byte("1"), time.Minute)
	c.Set("b", []byte("2"), time.Minute)
	c.Del("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestNoopCache_AlwaysMiss(t *testing.T) {
	c := &noopCache{}
	c.Set("key1", []byte("value1"), time.Minute)

	val, ok := c.Get("key1")
	assert.False(t, ok)
	assert.Nil(t, val)
}

func TestCacheProvider_ShortLifetimeExpires(t *testing.T) {
	c := NewCacheProvider(cacheConfig(true, 1), &cacheTestLogger{})

	c.Set("key1", []byte("value1"), 500*time.Millisecond)
	_, ok := c.Get("key1")
	assert.True(t, ok)

	time.Sleep(2100 * time.Millisecond)

	_, ok = c.Get("key1")
	assert.False(t, ok)
}
