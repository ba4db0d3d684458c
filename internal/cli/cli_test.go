package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/auth"
	"github.com/existflow/quizdesk/internal/config"
	"github.com/existflow/quizdesk/internal/testsession"
	"github.com/existflow/quizdesk/server"
)

func testConfig(t *testing.T, apiURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("QUIZDESK_HOME", dir)
	c := config.DefaultConfig()
	c.Storage.Path = filepath.Join(dir, "state.db")
	if apiURL != "" {
		c.API.BaseURL = apiURL
	}
	return c
}

func inputCmd(t *testing.T, flags map[string][]string) *cobra.Command {
	t.Helper()
	qCompetency, qLevel, qText, qOptions, qCorrect = "", "", "", nil, 0
	c := &cobra.Command{Use: "q"}
	addQuestionFlags(c)
	for name, values := range flags {
		for _, v := range values {
			require.NoError(t, c.Flags().Set(name, v))
		}
	}
	return c
}

func TestQuestionInputOnlySetsChangedFlags(t *testing.T) {
	in, err := questionInput(inputCmd(t, map[string][]string{"level": {"B1"}}))
	require.NoError(t, err)
	require.NotNil(t, in.Level)
	assert.Equal(t, "B1", *in.Level)
	assert.Nil(t, in.Competency)
	assert.Nil(t, in.QuestionText)
	assert.Nil(t, in.Options)
	assert.Nil(t, in.CorrectAnswer)
}

func TestQuestionInputValidation(t *testing.T) {
	_, err := questionInput(inputCmd(t, map[string][]string{"level": {"Z9"}}))
	assert.Error(t, err)

	_, err = questionInput(inputCmd(t, map[string][]string{"option": {"only"}}))
	assert.Error(t, err)

	_, err = questionInput(inputCmd(t, map[string][]string{"option": {"a", "b"}, "correct": {"2"}}))
	assert.Error(t, err)

	in, err := questionInput(inputCmd(t, map[string][]string{"option": {"a", "b"}, "correct": {"1"}}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, in.Options)
	assert.Equal(t, 1, *in.CorrectAnswer)
}

func TestExplain(t *testing.T) {
	cfg = testConfig(t, "http://api.test")

	err := explain(&auth.ValidationError{Field: "email", Message: "Email is required"})
	assert.EqualError(t, err, "Email is required")

	err = explain(&api.StatusError{Status: 401, Message: "Wrong password", Err: api.ErrInvalidCredentials})
	assert.EqualError(t, err, "Wrong password")

	err = explain(fmt.Errorf("%w: dial tcp", api.ErrNetworkFailure))
	assert.Contains(t, err.Error(), "http://api.test")

	other := errors.New("boom")
	assert.Equal(t, other, explain(other))
}

func TestRequireLoginWithoutStoredSession(t *testing.T) {
	a, err := openApp(testConfig(t, ""))
	require.NoError(t, err)
	defer a.Close()

	err = a.requireLogin(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quizdesk auth login")
}

func TestRequireLoginValidatesStoredToken(t *testing.T) {
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" || r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = io.WriteString(w, `{"success":true,"data":{"user":{"id":"u1","name":"Ada","email":"ada@school.test","role":"student"}}}`)
	}))
	defer apiSrv.Close()

	a, err := openApp(testConfig(t, apiSrv.URL))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()
	require.NoError(t, a.store.Save(ctx, "good", "refresh", nil))

	require.NoError(t, a.requireLogin(ctx))
	st := a.session.Snapshot()
	assert.True(t, st.IsAuthenticated())
	require.NotNil(t, st.User)
	assert.Equal(t, "Ada", st.User.Name)
}

type staticChecker map[string]bool

func (s staticChecker) IsValid(ctx context.Context, token string) bool { return s[token] }

// The cookie mirror written at login is what the gate sees
func TestCookieMirrorPassesGate(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "page")
	}))
	defer upstream.Close()

	srv, err := server.New(upstream.URL, staticChecker{"good": true})
	require.NoError(t, err)
	gate := httptest.NewServer(srv.Router())
	defer gate.Close()

	a, err := openApp(testConfig(t, ""))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()

	client := &http.Client{
		Jar: a.store.Jar(),
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Get(gate.URL + "/dashboard")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	require.NoError(t, a.store.Save(ctx, "good", "refresh", nil))
	resp, err = client.Get(gate.URL + "/dashboard")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, a.store.Clear(ctx))
	resp, err = client.Get(gate.URL + "/dashboard")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/login?redirect=%2Fdashboard", resp.Header.Get("Location"))
}

// A test call rejected for an expired token refreshes the session and the
// call goes through with the new token
func TestRejectedSubmitRefreshesAndCompletes(t *testing.T) {
	var refreshes, submits atomic.Int32
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/auth/refresh":
			refreshes.Add(1)
			_, _ = io.WriteString(w, `{"accessToken":"fresh","refreshToken":"r1"}`)
		case "/tests/abc":
			end := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
			_, _ = io.WriteString(w, `{"success":true,"data":{"sessionId":"abc","status":"in_progress","endTime":"`+end+
				`","questions":[{"id":"q1","questionId":{"questionText":"Q1","options":["a","b"]}}]}}`)
		case "/tests/abc/answer", "/tests/abc/submit":
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = io.WriteString(w, `{"success":false,"message":"jwt expired"}`)
				return
			}
			if r.URL.Path == "/tests/abc/submit" {
				submits.Add(1)
			}
			_, _ = io.WriteString(w, `{"success":true,"message":"Submitted","data":{"score":100}}`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer apiSrv.Close()

	a, err := openApp(testConfig(t, apiSrv.URL))
	require.NoError(t, err)
	defer a.Close()
	ctx := context.Background()
	require.NoError(t, a.store.Save(ctx, "stale", "r0", nil))
	_, err = a.session.Rehydrate(ctx)
	require.NoError(t, err)

	m := testsession.New(a.api, testsession.Options{})
	require.NoError(t, m.Load(ctx, "abc"))
	require.NoError(t, m.Submit(ctx))

	assert.Equal(t, testsession.Completed, m.State())
	assert.Equal(t, int32(1), refreshes.Load())
	assert.Equal(t, int32(1), submits.Load())
	assert.Equal(t, "fresh", a.session.Snapshot().AccessToken)

	snap, err := a.store.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fresh", snap.AccessToken)
	assert.Equal(t, "r1", snap.RefreshToken)
}
