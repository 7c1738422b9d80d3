package api

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Payload adapters. The backend is inconsistent about field names between
// endpoints and versions, so every field is read through an ordered list of
// dotted paths and the first non-empty value wins.

type object = map[string]any

func decodeObject(raw json.RawMessage) (object, error) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("expected object, got null")
	}
	return obj, nil
}

func lookup(obj object, path string) (any, bool) {
	var cur any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

func pickString(obj object, paths ...string) string {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			return strconv.FormatBool(t)
		}
	}
	return ""
}

func pickNumber(obj object, paths ...string) (float64, bool) {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if n, ok := toNumber(v); ok {
			return n, true
		}
	}
	return 0, false
}

func toNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func pickBool(obj object, paths ...string) (bool, bool) {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case bool:
			return t, true
		case string:
			if b, err := strconv.ParseBool(t); err == nil {
				return b, true
			}
		}
	}
	return false, false
}

func pickStrings(obj object, paths ...string) []string {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return []string{s}
			}
		case []any:
			out := make([]string, 0, len(t))
			for _, item := range t {
				switch it := item.(type) {
				case string:
					if it != "" {
						out = append(out, it)
					}
				case map[string]any:
					if name := pickString(it, "programName", "name", "title"); name != "" {
						out = append(out, name)
					}
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// pickTimestamp reads an RFC 3339 string or a numeric epoch (seconds or ms)
// and returns epoch ms, 0 when nothing parses.
func pickTimestamp(obj object, paths ...string) int64 {
	for _, p := range paths {
		v, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if ms := toTimestamp(v); ms > 0 {
			return ms
		}
	}
	return 0
}

func toTimestamp(v any) int64 {
	switch t := v.(type) {
	case float64:
		return epochMs(int64(t))
	case string:
		s := strings.TrimSpace(t)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return epochMs(n)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UnixMilli()
			}
		}
	}
	return 0
}

func epochMs(n int64) int64 {
	// Anything before 2001-09-09 in ms is taken to be seconds.
	if n > 0 && n < 1e12 {
		return n * 1000
	}
	return n
}
