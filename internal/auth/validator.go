// Package auth drives the session lifecycle: token validation, silent
// refresh, route guarding and the login/logout facade.
package auth

import (
	"context"
	"errors"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/model"
)

// Validation failure messages
const (
	MsgNoToken          = "No token provided"
	MsgValidationFailed = "Token validation failed"
	MsgNetworkError     = "Network error"
)

// Prober fetches the profile behind an access token
type Prober interface {
	Me(ctx context.Context, accessToken string) (*model.User, error)
}

// Result is the outcome of one validation probe
type Result struct {
	IsValid bool
	User    *model.User
	Error   string
}

// Validator checks an access token against the server
type Validator struct {
	prober Prober
}

// NewValidator creates a Validator
func NewValidator(p Prober) *Validator {
	return &Validator{prober: p}
}

// Validate probes the server with token. It never returns an error; every
// failure is folded into an invalid Result.
func (v *Validator) Validate(ctx context.Context, token string) Result {
	if token == "" {
		return Result{Error: MsgNoToken}
	}

	user, err := v.prober.Me(ctx, token)
	switch {
	case err == nil:
		return Result{IsValid: true, User: user}
	case errors.Is(err, api.ErrNetworkFailure):
		return Result{Error: MsgNetworkError}
	default:
		return Result{Error: MsgValidationFailed}
	}
}

// IsValid reports whether token currently passes validation
func (v *Validator) IsValid(ctx context.Context, token string) bool {
	return v.Validate(ctx, token).IsValid
}

// UserFromToken returns the profile behind token, or nil if it is invalid
func (v *Validator) UserFromToken(ctx context.Context, token string) *model.User {
	res := v.Validate(ctx, token)
	if !res.IsValid {
		return nil
	}
	return res.User
}
