package remote

import (
	"errors"
	"fmt"
)

// Ошибки протокола удалённого сервера.
var (
	// ErrCapacityExceeded — сервер достиг лимита runs, повторить позже.
	ErrCapacityExceeded = errors.New("server at capacity")

	// ErrNotFound — ресурс на сервере не найден (например, лога нет).
	ErrNotFound = errors.New("remote resource not found")

	// ErrRemote — прочая ошибка сервера.
	ErrRemote = errors.New("remote server error")
)

// StatusError — ответ сервера с неожиданным HTTP-кодом.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.Code, truncate(e.Body, 200))
}

// Unwrap позволяет errors.Is(err, ErrRemote).
func (e *StatusError) Unwrap() error {
	return ErrRemote
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
