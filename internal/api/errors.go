package api

import (
	"clarity/internal/models"
	"fmt"
	"net/http"
)

// FetchError is a failed backend call. Status is 0 for transport failures.
type FetchError struct {
	Status  int
	Message string
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *FetchError) StatusCode() int {
	return e.Status
}

// ResultError converts a failed Result into a *FetchError, nil when it succeeded.
func ResultError[T any](r models.Result[T]) error {
	if r.Success {
		return nil
	}
	msg := r.Message
	if msg == "" {
		msg = defaultMessage(r.Status)
	}
	return &FetchError{Status: r.Status, Message: msg}
}

func defaultMessage(status int) string {
	if status == 0 {
		return "network error"
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "request failed"
}
