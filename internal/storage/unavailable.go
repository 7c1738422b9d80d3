package storage

import (
	"context"
	"fmt"
)

// Unavailable is the backend used when no durable store can be opened. Every
// call fails fast so callers fall through to the network.
type Unavailable struct {
	Reason string
}

func (u *Unavailable) err() error {
	return fmt.Errorf("%w: %s", ErrUnavailable, u.Reason)
}

func (u *Unavailable) View(_ context.Context, _ func(tx Tx) error) error   { return u.err() }
func (u *Unavailable) Update(_ context.Context, _ func(tx Tx) error) error { return u.err() }
func (u *Unavailable) Close() error                                        { return nil }
