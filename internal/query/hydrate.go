package query

import (
	"clarity/internal/providers"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
)

const dehydrateVersion = 1

type dehydratedQuery struct {
	Key       Key             `json:"key"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt int64           `json:"updatedAt"`
}

type dehydratedState struct {
	Version int               `json:"version"`
	Queries []dehydratedQuery `json:"queries"`
}

// Dehydrate serializes every query that holds data. Errors and in-flight
// fetches are not kept.
func (c *Client) Dehydrate() ([]byte, error) {
	c.mu.Lock()
	state := dehydratedState{Version: dehydrateVersion, Queries: make([]dehydratedQuery, 0, len(c.entries))}
	for _, e := range c.entries {
		if !e.hasData {
			continue
		}
		raw := e.raw
		if raw == nil {
			b, err := json.Marshal(e.data)
			if err != nil {
				c.logger.Warnf(providers.TypeCache, "Skipping query %v on dehydrate: %s", e.key, err)
				continue
			}
			raw = b
		}
		state.Queries = append(state.Queries, dehydratedQuery{
			Key:       e.key,
			Data:      raw,
			UpdatedAt: e.updatedAt.UnixMilli(),
		})
	}
	c.mu.Unlock()

	return json.Marshal(state)
}

// Hydrate restores queries from a Dehydrate blob. Queries older than maxAge
// (when positive) are skipped, as are keys already holding newer data. Values
// are decoded lazily by the first typed reader.
func (c *Client) Hydrate(blob []byte, maxAge time.Duration) (int, error) {
	var state dehydratedState
	if err := json.Unmarshal(blob, &state); err != nil {
		return 0, fmt.Errorf("decode query state: %w", err)
	}
	if state.Version != dehydrateVersion {
		return 0, fmt.Errorf("unsupported query state version %d", state.Version)
	}

	now := c.now()
	restored := 0
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, q := range state.Queries {
		updatedAt := time.UnixMilli(q.UpdatedAt)
		if maxAge > 0 && now.Sub(updatedAt) > maxAge {
			continue
		}
		e := c.ensure(q.Key, nil, nil)
		if e.hasData && !e.updatedAt.Before(updatedAt) {
			continue
		}
		e.data, e.raw, e.hasData = nil, q.Data, true
		e.updatedAt = updatedAt
		restored++
	}
	return restored, nil
}
