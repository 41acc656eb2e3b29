package jamf

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("jamf: not found")
	// ErrUnauthorized is returned when credentials are rejected.
	ErrUnauthorized = errors.New("jamf: unauthorized")
)

// APIError is a non-2xx response from the Jamf Pro server.
type APIError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("jamf: %s returned %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("jamf: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

// Unwrap maps well-known status codes onto the package sentinels so callers can
// use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	}
	return nil
}
