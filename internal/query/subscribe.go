package query

import (
	"sync"
	"time"
)

// Subscription delivers the latest State of one query on C. Slow readers
// only miss intermediate states, never the latest one.
type Subscription[T any] struct {
	C <-chan State[T]

	ch     chan State[T]
	mu     sync.Mutex
	closed bool
	id     uint64
	key    string
	client *Client
}

// Subscribe registers interest in key. The current state is delivered at
// once and a fetch starts when the data is missing or stale. While at least
// one subscription is held, a query with a RefetchInterval is refetched on
// that cadence.
func Subscribe[T any](c *Client, key Key, opts Options, fn FetchFunc[T]) *Subscription[T] {
	k := key.String()
	ch := make(chan State[T], 1)
	sub := &Subscription[T]{
		C:      ch,
		ch:     ch,
		id:     c.nextID.Inc(),
		key:    k,
		client: c,
	}

	c.mu.Lock()
	e := c.ensure(key, &opts, erase(fn))
	e.subs[sub.id] = sub.push
	if opts.RefetchInterval > 0 && e.stop == nil {
		e.stop = make(chan struct{})
		c.startLoop(k, opts.RefetchInterval, e.stop)
	}
	needFetch := e.fetch != nil && (!e.hasData || e.stale(c.now()))
	if needFetch {
		e.fetching = true
	}
	c.mu.Unlock()

	sub.push()
	if needFetch {
		c.background(k)
	}
	return sub
}

// Current returns the query's state without waiting for an update.
func (s *Subscription[T]) Current() State[T] {
	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[s.key]; ok {
		return snapshot[T](c, e)
	}
	return State[T]{}
}

func (s *Subscription[T]) push() {
	s.send(s.Current())
}

func (s *Subscription[T]) send(st State[T]) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- st:
		return
	default:
	}
	select {
	case <-s.ch:
	default:
	}
	select {
	case s.ch <- st:
	default:
	}
}

// Unsubscribe closes C. The refetch loop stops with the last subscription.
func (s *Subscription[T]) Unsubscribe() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	s.mu.Unlock()

	c := s.client
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[s.key]; ok {
		delete(e.subs, s.id)
		if len(e.subs) == 0 {
			stopLoop(e)
		}
	}
}

// Subscribers returns how many subscriptions key currently has.
func (c *Client) Subscribers(key Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key.String()]; ok {
		return len(e.subs)
	}
	return 0
}

func (c *Client) startLoop(k string, every time.Duration, stop chan struct{}) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-c.ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				_, _, _ = c.group.Do(k, func() (any, error) {
					return c.execute(k, true)
				})
			}
		}
	}()
}
