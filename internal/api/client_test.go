package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/existflow/quizdesk/internal/model"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newServer(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginNestedTokens(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@school.test", body["email"])

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "ok",
			"data": map[string]interface{}{
				"user":   map[string]string{"id": "u1", "name": "Ana", "email": "ana@school.test", "role": "student"},
				"tokens": map[string]string{"accessToken": "a1", "refreshToken": "r1"},
			},
		})
	})

	p, err := NewClient(srv.URL, time.Second).Login(context.Background(), "ana@school.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "a1", p.Tokens.AccessToken)
	assert.Equal(t, "r1", p.Tokens.RefreshToken)
	assert.Equal(t, "Ana", p.User.Name)
}

func TestRefreshFlatTokens(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"accessToken": "a2", "refreshToken": "r2"})
	})

	p, err := NewClient(srv.URL, time.Second).Refresh(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, model.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, p.Tokens)
}

func TestErrorCategories(t *testing.T) {
	tests := []struct {
		name   string
		status int
		call   func(c *Client) error
		want   error
	}{
		{"login 401", 401, func(c *Client) error {
			_, err := c.Login(context.Background(), "a@b.c", "x")
			return err
		}, ErrInvalidCredentials},
		{"register 409", 409, func(c *Client) error {
			_, err := c.Register(context.Background(), "n", "a@b.c", "x")
			return err
		}, ErrInvalidCredentials},
		{"login 500", 500, func(c *Client) error {
			_, err := c.Login(context.Background(), "a@b.c", "x")
			return err
		}, ErrServerError},
		{"refresh 500", 500, func(c *Client) error {
			_, err := c.Refresh(context.Background(), "r")
			return err
		}, ErrRefreshFailed},
		{"me 401", 401, func(c *Client) error {
			_, err := c.Me(context.Background(), "a")
			return err
		}, ErrTokenInvalid},
		{"forgot 404", 404, func(c *Client) error {
			_, err := c.ForgotPassword(context.Background(), "a@b.c")
			return err
		}, ErrRequestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tt.status, map[string]interface{}{"success": false, "message": "nope"})
			})
			err := tt.call(NewClient(srv.URL, time.Second))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)

			var se *StatusError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.status, se.Status)
			assert.Equal(t, "nope", Message(err, "fallback"))
		})
	}
}

func TestNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, time.Second).Me(context.Background(), "a1")
	assert.True(t, errors.Is(err, ErrNetworkFailure))
}

func TestSuccessFalseIsAnError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": false, "message": "Email not found"})
	})
	_, err := NewClient(srv.URL, time.Second).ForgotPassword(context.Background(), "a@b.c")
	require.Error(t, err)
	assert.Equal(t, "Email not found", Message(err, ""))
}

func TestMeAcceptsBareAndWrappedUser(t *testing.T) {
	for _, body := range []interface{}{
		map[string]interface{}{"success": true, "data": map[string]string{"id": "u1", "name": "Ana"}},
		map[string]interface{}{"success": true, "data": map[string]interface{}{"user": map[string]string{"id": "u1", "name": "Ana"}}},
	} {
		body := body
		srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, body)
		})
		u, err := NewClient(srv.URL, time.Second).Me(context.Background(), "tok")
		require.NoError(t, err)
		assert.Equal(t, "u1", u.ID)
		assert.Equal(t, "Ana", u.Name)
	}
}

func TestAuthenticatedCallsUseTokenSource(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer live", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": []interface{}{}})
	})

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "live"})
	_, err := NewClient(srv.URL, time.Second, WithTokenSource(ts)).TestHistory(context.Background())
	require.NoError(t, err)
}

func TestAuthenticatedCallWithoutSource(t *testing.T) {
	_, err := NewClient("http://unused.test", time.Second).TestHistory(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

// rotatingSource hands out whatever token it currently holds
type rotatingSource struct {
	mu    sync.Mutex
	token string
}

func (s *rotatingSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &oauth2.Token{AccessToken: s.token}, nil
}

func (s *rotatingSource) set(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func TestRejectedTokenRefreshesAndReplaysOnce(t *testing.T) {
	var submits atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		submits.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "abc", body["sessionId"])
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "jwt expired"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]float64{"score": 60}})
	})

	src := &rotatingSource{token: "stale"}
	var rejected []string
	c := NewClient(srv.URL, time.Second, WithTokenSource(src), WithTokenRejected(func(ctx context.Context, token string) error {
		rejected = append(rejected, token)
		src.set("fresh")
		return nil
	}))

	res, err := c.SubmitTest(context.Background(), "abc")
	require.NoError(t, err)
	require.NotNil(t, res.Score)
	assert.Equal(t, 60.0, *res.Score)
	assert.Equal(t, []string{"stale"}, rejected)
	assert.Equal(t, int32(2), submits.Load())
}

func TestRejectedTokenFailedRefreshKeepsOriginalError(t *testing.T) {
	var calls atomic.Int32
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusUnauthorized, map[string]interface{}{"success": false, "message": "jwt expired"})
	})

	c := NewClient(srv.URL, time.Second,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "dead"})),
		WithTokenRejected(func(ctx context.Context, token string) error {
			return ErrRefreshFailed
		}))

	_, err := c.TestHistory(context.Background())
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExplicitTokenCallsAreNotReplayed(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	hooked := false
	c := NewClient(srv.URL, time.Second,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "x"})),
		WithTokenRejected(func(ctx context.Context, token string) error {
			hooked = true
			return nil
		}))

	_, err := c.Me(context.Background(), "checked")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.False(t, hooked)
}
