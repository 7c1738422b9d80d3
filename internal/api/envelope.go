package api

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	json "github.com/goccy/go-json"
)

const maxMessageLen = 300

// Envelope is a backend response reduced to one shape regardless of how the
// endpoint wraps it.
type Envelope struct {
	Success bool
	Status  int
	Data    json.RawMessage
	Message string
}

// Normalize never fails: unknown shapes degrade to a failed or data-less envelope.
//
//   - non-2xx is always a failure;
//   - "success": bool wins, then "status": "success"|"ok"|"error"|"fail", then the HTTP status;
//   - "data" is unwrapped when present, otherwise the whole body is the data;
//   - the message comes from "message", "error" or "msg";
//   - non-JSON bodies become the message, HTML reduced to its title or text.
func Normalize(status int, contentType string, body []byte) Envelope {
	ok := status >= 200 && status < 300
	env := Envelope{Status: status, Success: ok}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		if !ok {
			env.Message = defaultMessage(status)
		}
		return env
	}

	if looksLikeHTML(contentType, trimmed) {
		env.Message = htmlText(trimmed)
		return env
	}

	if !json.Valid(trimmed) {
		env.Message = truncate(string(trimmed))
		return env
	}

	if trimmed[0] != '{' {
		env.Data = trimmed
		return env
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		env.Message = truncate(string(trimmed))
		return env
	}

	if raw, found := obj["success"]; found {
		var flag bool
		if json.Unmarshal(raw, &flag) == nil {
			env.Success = ok && flag
		}
	} else if raw, found := obj["status"]; found {
		var s string
		if json.Unmarshal(raw, &s) == nil {
			switch strings.ToLower(s) {
			case "success", "ok":
				env.Success = ok
			case "error", "fail", "failed":
				env.Success = false
			}
		}
	}

	if raw, found := obj["data"]; found {
		env.Data = raw
	} else {
		env.Data = trimmed
	}

	env.Message = messageOf(obj)
	if !env.Success && env.Message == "" {
		env.Message = defaultMessage(status)
	}
	return env
}

func messageOf(obj map[string]json.RawMessage) string {
	for _, field := range []string{"message", "error", "msg"} {
		raw, found := obj[field]
		if !found {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil && s != "" {
			return truncate(s)
		}
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(raw, &nested) == nil && nested.Message != "" {
			return truncate(nested.Message)
		}
	}
	return ""
}

func looksLikeHTML(contentType string, body []byte) bool {
	if strings.Contains(strings.ToLower(contentType), "text/html") {
		return true
	}
	head := strings.ToLower(string(body[:min(len(body), 64)]))
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}

func htmlText(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "unexpected HTML response"
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return truncate(title)
	}
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	if text == "" {
		return "unexpected HTML response"
	}
	return truncate(text)
}

// truncate caps s at maxMessageLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxMessageLen {
		return s
	}
	cut := maxMessageLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
