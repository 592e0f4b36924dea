package fetcher

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrFetch matches every *FetchError via errors.Is.
var ErrFetch = errors.New("fetch failed")

// FetchError is returned once a fetch has given up.
type FetchError struct {
	URL        string
	Attempts   int
	StatusCode int // last HTTP status seen, 0 when no response arrived
	LastCause  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.LastCause)
}

func (e *FetchError) Unwrap() error { return e.LastCause }

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// StatusError reports a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code: %d %s", e.Code, http.StatusText(e.Code))
}

// Retryable reports whether a later attempt could plausibly succeed.
func (e *StatusError) Retryable() bool {
	return retryableStatus(e.Code)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests:
		return true
	}
	return code >= 500
}
