package fetch

import "fmt"

// ErrorKind classifies fetch failures for callers that need to branch on them.
type ErrorKind string

const (
	// KindTransient marks retryable statuses and network faults.
	KindTransient ErrorKind = "transient"
	// KindTerminal marks non-HTML responses, non-retryable statuses, and
	// exhausted retries.
	KindTerminal ErrorKind = "terminal"
	// KindRender marks headless rendering failures.
	KindRender ErrorKind = "render"
)

// Error is the failure type surfaced by the Client.
type Error struct {
	Kind       ErrorKind
	URL        string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: %s (HTTP %d): %v", e.URL, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// retryableStatus reports whether a status code is worth another attempt.
func retryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	}
	return false
}
