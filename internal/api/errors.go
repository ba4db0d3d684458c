package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Error categories. Every error returned by Client matches exactly one of
// these with errors.Is.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTokenInvalid       = errors.New("access token rejected")
	ErrRefreshFailed      = errors.New("token refresh failed")
	ErrNetworkFailure     = errors.New("network error")
	ErrServerError        = errors.New("server error")
	ErrRequestFailed      = errors.New("request failed")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// StatusError is a non-2xx response from the API
type StatusError struct {
	Status  int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (%d): %s", e.Err, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%d)", e.Err, e.Status)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

// Message returns the server supplied message of err, or fallback
func Message(err error, fallback string) string {
	var se *StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}

// callKind selects how a failed status is categorized
type callKind int

const (
	kindCredentials callKind = iota // login, register
	kindRefresh
	kindPublic // forgot/reset password
	kindAuthed
)

func categorize(kind callKind, status int) error {
	if kind == kindRefresh {
		return ErrRefreshFailed
	}
	if status >= http.StatusInternalServerError {
		return ErrServerError
	}
	switch kind {
	case kindCredentials:
		return ErrInvalidCredentials
	case kindAuthed:
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			return ErrTokenInvalid
		}
	}
	return ErrRequestFailed
}
