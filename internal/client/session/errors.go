package session

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/reviewdesk/internal/client/client"
)

// Error kinds. Every *AuthError unwraps to exactly one of them.
var (
	ErrNetwork        = errors.New("network error")
	ErrAuthentication = errors.New("authentication error")
	ErrRateLimit      = errors.New("rate limit error")
	ErrValidation     = errors.New("validation error")
	ErrServer         = errors.New("server error")
	ErrSessionExpired = errors.New("session expired")
	// ErrSuperseded marks a result dropped because a newer login or a logout
	// started while it was in flight.
	ErrSuperseded = errors.New("operation superseded by a newer session")
)

// AuthError is what Login, Register and Refresh return. Message is stable
// and meant for the user; Err keeps the transport cause for logs.
type AuthError struct {
	Kind    error
	Message string
	Err     error
}

func (e *AuthError) Error() string { return e.Message }

func (e *AuthError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type operation int

const (
	opLogin operation = iota
	opRegister
	opRefresh
	opRestore
)

const (
	msgNetwork        = "Unable to reach the server. Check your connection and try again."
	msgBadCredentials = "Invalid email or password."
	msgRateLimited    = "Too many attempts. Please wait a moment and try again."
	msgLoginInvalid   = "Please enter a valid email and password."
	msgServer         = "The server encountered an error. Please try again later."
	msgEmailTaken     = "An account with this email already exists."
	msgRegisterBad    = "Some registration details are invalid. Please check the form and try again."
	msgLoginFailed    = "Login failed. Please try again."
	msgRegisterFailed = "Registration failed. Please try again."
	msgExpired        = "Your session has expired. Please log in again."
)

// classify turns a transport or local error into an *AuthError.
func classify(op operation, err error) *AuthError {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}

	if op == opRefresh || op == opRestore {
		return &AuthError{Kind: ErrSessionExpired, Message: msgExpired, Err: err}
	}

	switch {
	case errors.Is(err, ErrValidation):
		if op == opRegister {
			return &AuthError{Kind: ErrValidation, Message: msgRegisterBad, Err: err}
		}
		return &AuthError{Kind: ErrValidation, Message: msgLoginInvalid, Err: err}
	case errors.Is(err, client.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return &AuthError{Kind: ErrNetwork, Message: msgNetwork, Err: err}
	case errors.Is(err, client.ErrUnauthorized):
		return &AuthError{Kind: ErrAuthentication, Message: msgBadCredentials, Err: err}
	case errors.Is(err, client.ErrRateLimited):
		return &AuthError{Kind: ErrRateLimit, Message: msgRateLimited, Err: err}
	case errors.Is(err, client.ErrConflict) && op == opRegister:
		return &AuthError{Kind: ErrValidation, Message: msgEmailTaken, Err: err}
	case errors.Is(err, client.ErrBadRequest):
		if op == opRegister {
			return &AuthError{Kind: ErrValidation, Message: registerDetail(err), Err: err}
		}
		return &AuthError{Kind: ErrAuthentication, Message: msgBadCredentials, Err: err}
	case errors.Is(err, client.ErrServer):
		return &AuthError{Kind: ErrServer, Message: msgServer, Err: err}
	}

	if op == opRegister {
		return &AuthError{Kind: ErrServer, Message: msgRegisterFailed, Err: err}
	}
	return &AuthError{Kind: ErrServer, Message: msgLoginFailed, Err: err}
}

// registerDetail surfaces the server's validation message when it sent one.
func registerDetail(err error) string {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return msgRegisterBad
}
