// Package query is the reactive query layer: an in-memory cache of fetched
// values keyed by Key, with stale-while-revalidate reads, request
// de-duplication, retries, prefix invalidation and subscriptions.
package query

import (
	"clarity/internal/providers"
	"clarity/internal/structures"
	"context"
	"errors"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/atomic"
	"golang.org/x/sync/singleflight"
)

var ErrNoFetcher = errors.New("query has no fetch function")

// Options control one query. A zero StaleTime makes every read stale.
// Retry < 0 disables retries.
type Options struct {
	StaleTime       time.Duration
	RefetchInterval time.Duration
	Retry           int
	RetryDelay      time.Duration
}

// FetchMeta tells a fetch function why it runs. Invalidated means the caller
// asked for fresh data; Refresh means the refetch interval elapsed. In both
// cases a cache-aside loader must not serve from its store.
type FetchMeta struct {
	Invalidated bool
	Refresh     bool

	servedAt *time.Time
}

// SkipStore reports whether the fetch must go to the source.
func (m FetchMeta) SkipStore() bool {
	return m.Invalidated || m.Refresh
}

// ServedFrom records that the value is a stored copy written at t. The query
// then ages from t instead of from the end of the fetch.
func (m FetchMeta) ServedFrom(t time.Time) {
	if m.servedAt != nil {
		*m.servedAt = t
	}
}

type FetchFunc[T any] func(ctx context.Context, meta FetchMeta) (T, error)

type anyFetch func(ctx context.Context, meta FetchMeta) (any, error)

type entry struct {
	key         Key
	data        any
	raw         json.RawMessage
	hasData     bool
	updatedAt   time.Time
	err         error
	invalidated bool
	fetching    bool
	gen         uint64
	options     Options
	fetch       anyFetch
	subs        map[uint64]func()
	stop        chan struct{}
}

type Client struct {
	mu       sync.Mutex
	entries  map[string]*entry
	group    singleflight.Group
	defaults Options
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   providers.Logger
	metrics  providers.MetricsProviderInterface
	nextID   atomic.Uint64
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewQueryClient(conf *structures.Config, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	return NewClient(Options{
		Retry:      conf.Query.Retry,
		RetryDelay: conf.Query.RetryDelay,
	}, logger, metrics)
}

func NewClient(defaults Options, logger providers.Logger, metrics providers.MetricsProviderInterface) *Client {
	if defaults.RetryDelay <= 0 {
		defaults.RetryDelay = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		entries:  make(map[string]*entry),
		defaults: defaults,
		now:      time.Now,
		sleep:    sleepCtx,
		logger:   logger,
		metrics:  metrics,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetClock replaces the time source and the retry sleep.
func (c *Client) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	c.now = now
	if sleep != nil {
		c.sleep = sleep
	}
}

// Options returns options with the client's retry policy.
func (c *Client) Options(staleTime, refetchInterval time.Duration) Options {
	return Options{
		StaleTime:       staleTime,
		RefetchInterval: refetchInterval,
		Retry:           c.defaults.Retry,
		RetryDelay:      c.defaults.RetryDelay,
	}
}

// Close stops refetch loops and waits for background fetches.
func (c *Client) Close() {
	c.cancel()
	c.mu.Lock()
	for _, e := range c.entries {
		stopLoop(e)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ensure returns the entry for key, registering fetch and opts when given.
// Caller holds c.mu.
func (c *Client) ensure(key Key, opts *Options, fetch anyFetch) *entry {
	k := key.String()
	e, ok := c.entries[k]
	if !ok {
		e = &entry{key: append(Key(nil), key...), subs: make(map[uint64]func())}
		c.entries[k] = e
		c.metrics.SetActiveQueries(len(c.entries))
	}
	if opts != nil {
		e.options = *opts
	}
	if fetch != nil {
		e.fetch = fetch
	}
	return e
}

func (e *entry) stale(now time.Time) bool {
	return e.invalidated || now.Sub(e.updatedAt) >= e.options.StaleTime
}

// listeners returns the subscriber callbacks of e. Caller holds c.mu.
func (e *entry) listeners() []func() {
	out := make([]func(), 0, len(e.subs))
	for _, fn := range e.subs {
		out = append(out, fn)
	}
	return out
}

func notifyAll(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}

func stopLoop(e *entry) {
	if e.stop != nil {
		close(e.stop)
		e.stop = nil
	}
}

// Invalidate marks every query under prefix as invalidated and refetches the
// subscribed ones. It returns how many queries matched.
func (c *Client) Invalidate(prefix Key) int {
	c.mu.Lock()
	var (
		matched  int
		refetch  []string
		notifies []func()
	)
	for k, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		matched++
		e.invalidated = true
		c.group.Forget(k)
		if len(e.subs) > 0 && e.fetch != nil {
			refetch = append(refetch, k)
		}
		notifies = append(notifies, e.listeners()...)
	}
	c.mu.Unlock()

	notifyAll(notifies)
	for _, k := range refetch {
		c.background(k)
	}
	c.logger.Debugf(providers.TypeCache, "Invalidated %d queries under %v", matched, prefix)
	return matched
}

// Remove drops cached data under prefix. Subscribed queries keep their
// registration but lose their data; the rest are deleted.
func (c *Client) Remove(prefix Key) int {
	c.mu.Lock()
	var (
		removed  int
		notifies []func()
	)
	for k, e := range c.entries {
		if !e.key.HasPrefix(prefix) {
			continue
		}
		removed++
		e.gen++
		c.group.Forget(k)
		if len(e.subs) > 0 {
			e.data, e.raw, e.hasData, e.err = nil, nil, false, nil
			e.updatedAt = time.Time{}
			e.invalidated = false
			e.fetching = false
			notifies = append(notifies, e.listeners()...)
			continue
		}
		stopLoop(e)
		delete(c.entries, k)
	}
	c.metrics.SetActiveQueries(len(c.entries))
	c.mu.Unlock()

	notifyAll(notifies)
	return removed
}

// Clear drops every cached query.
func (c *Client) Clear() int {
	return c.Remove(Key{})
}

// SetQueryData writes data under key as if it had just been fetched.
func SetQueryData[T any](c *Client, key Key, data T) {
	c.mu.Lock()
	e := c.ensure(key, nil, nil)
	e.data, e.raw, e.hasData = data, nil, true
	e.updatedAt = c.now()
	e.err = nil
	e.invalidated = false
	e.gen++
	c.group.Forget(key.String())
	fns := e.listeners()
	c.mu.Unlock()

	notifyAll(fns)
}

// GetQueryData returns the cached value under key without fetching.
func GetQueryData[T any](c *Client, key Key) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		var zero T
		return zero, false
	}
	return dataAs[T](e)
}

// dataAs returns e's data as T, decoding hydrated JSON on first use.
// Caller holds c.mu.
func dataAs[T any](e *entry) (T, bool) {
	var zero T
	if !e.hasData {
		return zero, false
	}
	if v, ok := e.data.(T); ok {
		return v, true
	}
	if e.raw != nil {
		var v T
		if err := json.Unmarshal(e.raw, &v); err == nil {
			e.data, e.raw = v, nil
			return v, true
		}
	}
	return zero, false
}

// Len returns the number of cached queries.
func (c *Client) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
