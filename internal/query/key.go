package query

import "strings"

// Key identifies a query, e.g. {"dashboard", "stats", "weekly", "inst-1"}.
// Invalidation works on key prefixes.
type Key []string

const keySep = "\x1f"

func NewKey(parts ...string) Key {
	return Key(parts)
}

func (k Key) String() string {
	return strings.Join(k, keySep)
}

func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i, p := range prefix {
		if k[i] != p {
			return false
		}
	}
	return true
}

func parseKey(s string) Key {
	if s == "" {
		return Key{}
	}
	return strings.Split(s, keySep)
}
