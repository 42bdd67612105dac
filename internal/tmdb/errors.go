package tmdb

import (
	"fmt"
	"net/http"
)

// RequestFailedError is returned when TMDb answers with a non-2xx status.
type RequestFailedError struct {
	StatusCode int
	Status     string
}

func (e *RequestFailedError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("tmdb: request failed: %d", e.StatusCode)
	}
	return fmt.Sprintf("tmdb: request failed: %d %s", e.StatusCode, e.Status)
}

func newRequestFailed(code int) *RequestFailedError {
	return &RequestFailedError{StatusCode: code, Status: http.StatusText(code)}
}

// TransportError wraps network-level failures (DNS, connection, cancellation).
// The message never includes the request URL, which carries the API key.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("tmdb: transport failure (%s): %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
