package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/existflow/quizdesk/internal/model"
)

// authData accepts both the nested and the flat token layouts
type authData struct {
	User         *model.User      `json:"user"`
	Tokens       *model.TokenPair `json:"tokens"`
	AccessToken  string           `json:"accessToken"`
	RefreshToken string           `json:"refreshToken"`
}

func (d authData) normalize(kind callKind) (*model.AuthPayload, error) {
	pair := model.TokenPair{AccessToken: d.AccessToken, RefreshToken: d.RefreshToken}
	if d.Tokens != nil && d.Tokens.Complete() {
		pair = *d.Tokens
	}
	if !pair.Complete() {
		return nil, fmt.Errorf("%w: response carried no token pair", categorize(kind, http.StatusInternalServerError))
	}
	return &model.AuthPayload{User: d.User, Tokens: pair}, nil
}

// Login exchanges credentials for a token pair
func (c *Client) Login(ctx context.Context, email, password string) (*model.AuthPayload, error) {
	var data authData
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, c.anon, kindCredentials, http.MethodPost, "/auth/login", nil, body, &data); err != nil {
		return nil, err
	}
	return data.normalize(kindCredentials)
}

// Register creates an account and signs it in
func (c *Client) Register(ctx context.Context, name, email, password string) (*model.AuthPayload, error) {
	var data authData
	body := map[string]string{"name": name, "email": email, "password": password}
	if _, err := c.do(ctx, c.anon, kindCredentials, http.MethodPost, "/auth/register", nil, body, &data); err != nil {
		return nil, err
	}
	return data.normalize(kindCredentials)
}

// Refresh trades a refresh token for a new pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*model.AuthPayload, error) {
	var data authData
	body := map[string]string{"refreshToken": refreshToken}
	if _, err := c.do(ctx, c.anon, kindRefresh, http.MethodPost, "/auth/refresh", nil, body, &data); err != nil {
		return nil, err
	}
	return data.normalize(kindRefresh)
}

// ForgotPassword asks the server to mail a reset link. Returns the server message.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	env, err := c.do(ctx, c.anon, kindPublic, http.MethodPost, "/auth/forgot-password", nil,
		map[string]string{"email": email}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// ResetPassword sets a new password using a reset token. Returns the server message.
func (c *Client) ResetPassword(ctx context.Context, token, password string) (string, error) {
	env, err := c.do(ctx, c.anon, kindPublic, http.MethodPost, "/auth/reset-password", nil,
		map[string]string{"token": token, "password": password}, nil)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Me fetches the profile behind accessToken. The token is sent as given,
// independent of the client's token source.
func (c *Client) Me(ctx context.Context, accessToken string) (*model.User, error) {
	var raw json.RawMessage
	if _, err := c.do(ctx, c.withToken(accessToken), kindAuthed, http.MethodGet, "/auth/me", nil, nil, &raw); err != nil {
		return nil, err
	}

	var wrapped struct {
		User *model.User `json:"user"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.User != nil {
		return wrapped.User, nil
	}
	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %w", ErrServerError, err)
	}
	return &user, nil
}
