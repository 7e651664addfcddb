package client

import (
	"errors"
	"fmt"
	"net/http"
)

// Transport-level sentinels. Every error returned by HTTPClient matches
// exactly one of them via errors.Is.
var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrServer       = errors.New("server error")
	ErrBadResponse  = errors.New("malformed response")
)

// APIError carries the HTTP status and the server's message of a non-2xx reply.
type APIError struct {
	StatusCode int
	Message    string
	kind       error
}

// NewAPIError builds the error for a reply with the given status.
func NewAPIError(status int, message string) *APIError {
	return &APIError{StatusCode: status, Message: message, kind: statusKind(status)}
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s (HTTP %d)", e.kind, e.StatusCode)
	}
	return fmt.Sprintf("%s (HTTP %d): %s", e.kind, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// statusKind maps an HTTP status to its sentinel.
func statusKind(code int) error {
	switch {
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusConflict:
		return ErrConflict
	case code == http.StatusBadRequest, code == http.StatusUnprocessableEntity:
		return ErrBadRequest
	case code == http.StatusServiceUnavailable, code == http.StatusBadGateway, code == http.StatusGatewayTimeout:
		return ErrUnavailable
	case code >= 500:
		return ErrServer
	default:
		return ErrBadResponse
	}
}
