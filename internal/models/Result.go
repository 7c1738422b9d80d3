package models

// Result is the tagged outcome of a backend call. Callers branch on Success;
// Data is only meaningful when Success is true.
type Result[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func Ok[T any](data T, status int) Result[T] {
	return Result[T]{Success: true, Data: data, Status: status}
}

func Fail[T any](status int, message string) Result[T] {
	return Result[T]{Success: false, Status: status, Message: message}
}
