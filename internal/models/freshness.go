package models

import "time"

// NowMs returns t as epoch milliseconds, the unit every snapshot timestamp uses.
func NowMs(t time.Time) int64 {
	return t.UnixMilli()
}

// IsFresh reports whether a snapshot written at lastUpdated (epoch ms) is still
// inside its TTL window at now.
func IsFresh(lastUpdated int64, ttl time.Duration, now time.Time) bool {
	if lastUpdated <= 0 || ttl <= 0 {
		return false
	}
	return now.UnixMilli()-lastUpdated < ttl.Milliseconds()
}
