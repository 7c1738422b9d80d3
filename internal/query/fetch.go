package query

import (
	"clarity/internal/providers"
	"context"
	"errors"
	"time"
)

// State is what a reader sees for one query.
type State[T any] struct {
	Data       T         `json:"data"`
	HasData    bool      `json:"hasData"`
	IsLoading  bool      `json:"isLoading"`
	IsFetching bool      `json:"isFetching"`
	IsStale    bool      `json:"isStale"`
	Err        error     `json:"-"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// snapshot builds the State of e. Caller holds c.mu.
func snapshot[T any](c *Client, e *entry) State[T] {
	st := State[T]{IsFetching: e.fetching, Err: e.err}
	st.Data, st.HasData = dataAs[T](e)
	if st.HasData {
		st.UpdatedAt = e.updatedAt
		st.IsStale = e.stale(c.now())
	}
	st.IsLoading = e.fetching && !st.HasData
	return st
}

// Fetch reads key through the cache.
//
// Fresh data is returned without calling fn. Stale or invalidated data is
// returned at once while a background refetch runs. With no data the call
// blocks on fn. Concurrent callers of one key share a single call to fn.
func Fetch[T any](ctx context.Context, c *Client, key Key, opts Options, fn FetchFunc[T]) State[T] {
	k := key.String()

	c.mu.Lock()
	e := c.ensure(key, &opts, erase(fn))
	if e.hasData {
		st := snapshot[T](c, e)
		if st.HasData {
			if st.IsStale {
				e.fetching = true
				st.IsFetching = true
				c.mu.Unlock()
				c.background(k)
				return st
			}
			c.mu.Unlock()
			return st
		}
	}
	c.mu.Unlock()

	ch := c.group.DoChan(k, func() (any, error) {
		return c.execute(k, false)
	})
	select {
	case <-ctx.Done():
		return State[T]{IsLoading: true, IsFetching: true, Err: ctx.Err()}
	case <-ch:
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		return snapshot[T](c, e)
	}
	return State[T]{Err: ErrNoFetcher}
}

func erase[T any](fn FetchFunc[T]) anyFetch {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, meta FetchMeta) (any, error) {
		return fn(ctx, meta)
	}
}

func (c *Client) background(k string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _, _ = c.group.Do(k, func() (any, error) {
			return c.execute(k, false)
		})
	}()
}

// execute runs the registered fetch for k and stores the outcome. A failure
// keeps the previous data. Results of a fetch that raced a Remove are dropped.
// refresh is set by the refetch loop.
func (c *Client) execute(k string, refresh bool) (any, error) {
	c.mu.Lock()
	e, ok := c.entries[k]
	if !ok || e.fetch == nil {
		c.mu.Unlock()
		return nil, ErrNoFetcher
	}
	fetch, opts, gen := e.fetch, e.options, e.gen
	var servedAt time.Time
	meta := FetchMeta{Invalidated: e.invalidated, Refresh: refresh, servedAt: &servedAt}
	e.fetching = true
	c.mu.Unlock()

	v, err := c.attempt(c.ctx, fetch, opts, meta)

	c.mu.Lock()
	if cur, ok := c.entries[k]; !ok || cur != e {
		c.mu.Unlock()
		return v, err
	}
	e.fetching = false
	if e.gen != gen {
		fns := e.listeners()
		c.mu.Unlock()
		notifyAll(fns)
		return v, err
	}
	if err != nil {
		e.err = err
		c.logger.Warnf(providers.TypeCache, "Query %v failed: %s", e.key, err)
	} else {
		e.data, e.raw, e.hasData = v, nil, true
		e.err = nil
		e.updatedAt = c.now()
		if !servedAt.IsZero() && servedAt.Before(e.updatedAt) {
			e.updatedAt = servedAt
		}
		e.invalidated = false
	}
	fns := e.listeners()
	c.mu.Unlock()

	notifyAll(fns)
	return v, err
}

func (c *Client) attempt(ctx context.Context, fetch anyFetch, opts Options, meta FetchMeta) (any, error) {
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = c.defaults.RetryDelay
	}
	for i := 0; ; i++ {
		v, err := fetch(ctx, meta)
		if err == nil {
			return v, nil
		}
		if i >= opts.Retry || !Retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
}

// Retryable reports whether err is worth another attempt. Client errors
// (anything exposing a 4xx StatusCode) are not.
func Retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrNoFetcher) {
		return false
	}
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		s := sc.StatusCode()
		return s < 400 || s >= 500
	}
	return true
}
