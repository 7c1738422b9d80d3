package models

import json "github.com/goccy/go-json"

type GenericCacheEntry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	WrittenAt int64           `json:"writtenAt"`
	ExpiresAt int64           `json:"expiresAt"`
}

func (e *GenericCacheEntry) Expired(nowMs int64) bool {
	return e.ExpiresAt > 0 && nowMs >= e.ExpiresAt
}
