package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when the backend rejects the supplied bearer
// credential with a 401
var ErrUnauthorized = errors.New("got 401 response from backend API")

// ErrMalformedResponse is returned when the backend answered, but the response body
// lacks a field the caller depends on (e.g. a token issuance response without a token)
var ErrMalformedResponse = errors.New("malformed response from backend API")

// ErrNetwork is returned when the request never produced an HTTP response: the
// connection was refused, the request timed out, etc.
var ErrNetwork = errors.New("backend API request failed")

// StatusError carries a non-2xx response from the backend. A 401 unwraps to
// ErrUnauthorized so callers can use errors.Is without inspecting the code.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend API error: %s %s returned status=%d, body=%s", e.Method, e.Path, e.Code, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.Code == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// malformedError unwraps to ErrMalformedResponse and describes what was missing
type malformedError struct {
	message string
}

func (e *malformedError) Error() string {
	return fmt.Sprintf("%v: %s", ErrMalformedResponse, e.message)
}

func (e *malformedError) Unwrap() error {
	return ErrMalformedResponse
}

// networkError unwraps to both ErrNetwork and the underlying transport error
type networkError struct {
	err error
}

func (e *networkError) Error() string {
	return fmt.Sprintf("%v: %v", ErrNetwork, e.err)
}

func (e *networkError) Unwrap() []error {
	return []error{ErrNetwork, e.err}
}

// StatusCode returns the HTTP status carried by err, or 0 if err did not originate
// from a backend response
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code
	}
	return 0
}
