// Package api is the HTTP client for the assessment REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/existflow/quizdesk/internal/logger"
)

// RequestIDHeader is attached to every outgoing request
const RequestIDHeader = "X-Request-ID"

const maxBodySize = 4 << 20

// Client talks to the API. Anonymous calls go out as is; authenticated calls
// get a bearer token from the configured token source.
type Client struct {
	baseURL string
	timeout time.Duration
	source  oauth2.TokenSource
	base    http.RoundTripper
	anon    *http.Client
	authed  *http.Client

	onReject TokenRejectedFunc
}

// TokenRejectedFunc is called when the server rejects the access token of an
// authenticated call. rejected is the token that was sent. A nil return means
// a newer token is in place and the call is replayed once.
type TokenRejectedFunc func(ctx context.Context, rejected string) error

// Option configures a Client
type Option func(*Client)

// WithTokenSource sets where authenticated calls take their bearer token
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) { c.source = ts }
}

// WithTransport overrides the underlying round tripper
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// WithTokenRejected sets the hook run when an authenticated call gets 401/403
func WithTokenRejected(fn TokenRejectedFunc) Option {
	return func(c *Client) { c.onReject = fn }
}

// NewClient creates a client for baseURL
func NewClient(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		base:    http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}

	c.base = &requestIDTransport{base: c.base}
	c.anon = &http.Client{Timeout: timeout, Transport: c.base}
	if c.source != nil {
		c.authed = c.bearerClient(c.source)
	}
	return c
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

// OnTokenRejected sets the rejected-token hook after construction. It must be
// called before the client is shared.
func (c *Client) OnTokenRejected(fn TokenRejectedFunc) {
	c.onReject = fn
}

func (c *Client) bearerClient(ts oauth2.TokenSource) *http.Client {
	return &http.Client{
		Timeout:   c.timeout,
		Transport: &oauth2.Transport{Source: ts, Base: c.base},
	}
}

// withToken returns a client that authenticates as accessToken
func (c *Client) withToken(accessToken string) *http.Client {
	return c.bearerClient(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
}

func (c *Client) session() (*http.Client, error) {
	if c.authed == nil {
		return nil, ErrNotLoggedIn
	}
	return c.authed, nil
}

type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get(RequestIDHeader) == "" {
		req = req.Clone(req.Context())
		req.Header.Set(RequestIDHeader, uuid.NewString())
	}
	return t.base.RoundTrip(req)
}

// envelope is the standard response wrapper
type envelope struct {
	Success    *bool           `json:"success"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination json.RawMessage `json:"pagination"`
}

// payload returns data when present and the whole body otherwise
func (e *envelope) payload(raw []byte) []byte {
	if len(e.Data) > 0 && string(e.Data) != "null" {
		return e.Data
	}
	return raw
}

// do performs a request. Calls made with the session's token get one replay
// after a successful refresh when the token is rejected.
func (c *Client) do(ctx context.Context, hc *http.Client, kind callKind, method, path string, query url.Values, body, out interface{}) (*envelope, error) {
	if hc == nil || hc != c.authed || c.onReject == nil {
		return c.send(ctx, hc, kind, method, path, query, body, out)
	}

	var used string
	if tok, err := c.source.Token(); err == nil {
		used = tok.AccessToken
	}
	env, err := c.send(ctx, hc, kind, method, path, query, body, out)
	if err == nil || !errors.Is(err, ErrTokenInvalid) {
		return env, err
	}

	logger.Info("Access token rejected, refreshing", logger.F("method", method), logger.F("path", path))
	if rerr := c.onReject(ctx, used); rerr != nil {
		logger.Warn("Refresh after rejected token failed", logger.F("path", path), logger.F("error", rerr))
		return nil, err
	}
	return c.send(ctx, hc, kind, method, path, query, body, out)
}

// send performs one request and decodes the response into out
func (c *Client) send(ctx context.Context, hc *http.Client, kind callKind, method, path string, query url.Values, body, out interface{}) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			return nil, ErrNotLoggedIn
		}
		logger.Debug("API request failed", logger.F("method", method), logger.F("path", path), logger.F("error", err))
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", ErrNetworkFailure, err)
	}

	logger.Debug("API request",
		logger.F("method", method),
		logger.F("path", path),
		logger.F("status", resp.StatusCode),
		logger.F("duration_ms", time.Since(start).Milliseconds()),
	)

	var env envelope
	_ = json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			Status:  resp.StatusCode,
			Message: env.Message,
			Err:     categorize(kind, resp.StatusCode),
		}
	}
	if env.Success != nil && !*env.Success {
		return nil, &StatusError{
			Status:  resp.StatusCode,
			Message: env.Message,
			Err:     categorize(kind, http.StatusBadRequest),
		}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(env.payload(raw), out); err != nil {
			return nil, fmt.Errorf("%w: decode response: %w", categorize(kind, http.StatusInternalServerError), err)
		}
	}
	return &env, nil
}
