package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNetwork marks requests that never got an HTTP response.
	ErrNetwork = errors.New("network error")
	// ErrTimeout marks requests that hit the request timeout.
	ErrTimeout = errors.New("request timeout")
)

// HTTPError is returned for every non-2xx response.
type HTTPError struct {
	StatusCode int
	Message    string
	// Expired is the 401 body flag separating an expired credential from a bad one.
	Expired bool
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is lets callers match status classes with errors.Is.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrUnavailable:
		return e.StatusCode == http.StatusServiceUnavailable || e.StatusCode == http.StatusBadGateway
	}
	return false
}

// IsAuthExpired reports whether err is a 401 carrying expired=true.
func IsAuthExpired(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusUnauthorized && he.Expired
}
