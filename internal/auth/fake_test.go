package auth

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/db"
	"github.com/existflow/quizdesk/internal/model"
	"github.com/existflow/quizdesk/internal/session"
	"github.com/existflow/quizdesk/internal/tokenstore"
)

// fakeAPI is an in-memory auth server
type fakeAPI struct {
	mu           sync.Mutex
	users        map[string]*model.User // access token -> user
	meErr        error
	refreshErr   error
	refreshGate  chan struct{} // Refresh blocks until closed
	refreshIn    chan struct{} // signalled when Refresh is entered
	meGate       chan struct{}
	refreshCalls int
	meCalls      int
	loginCalls   int
	next         int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{users: map[string]*model.User{}}
}

func (f *fakeAPI) grant(token string, u *model.User) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[token] = u
}

func (f *fakeAPI) revoke(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, token)
}

func (f *fakeAPI) counts() (me, refresh int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.meCalls, f.refreshCalls
}

func (f *fakeAPI) Me(ctx context.Context, token string) (*model.User, error) {
	f.mu.Lock()
	f.meCalls++
	gate := f.meGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.meErr != nil {
		return nil, f.meErr
	}
	u, ok := f.users[token]
	if !ok {
		return nil, &api.StatusError{Status: 401, Err: api.ErrTokenInvalid}
	}
	return u, nil
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string) (*model.AuthPayload, error) {
	f.mu.Lock()
	f.refreshCalls++
	gate, in := f.refreshGate, f.refreshIn
	f.mu.Unlock()
	if in != nil {
		in <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.next++
	access := fmt.Sprintf("access-%d", f.next)
	u := &model.User{ID: "u1", Name: "Ana"}
	f.users[access] = u
	return &model.AuthPayload{
		User:   u,
		Tokens: model.TokenPair{AccessToken: access, RefreshToken: fmt.Sprintf("refresh-%d", f.next)},
	}, nil
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*model.AuthPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++
	if password != "secret1" {
		return nil, &api.StatusError{Status: 401, Message: "Invalid email or password", Err: api.ErrInvalidCredentials}
	}
	u := &model.User{ID: "u1", Name: "Ana", Email: email, Role: model.RoleStudent}
	f.users["login-access"] = u
	return &model.AuthPayload{User: u, Tokens: model.TokenPair{AccessToken: "login-access", RefreshToken: "login-refresh"}}, nil
}

func (f *fakeAPI) Register(ctx context.Context, name, email, password string) (*model.AuthPayload, error) {
	p, err := f.Login(ctx, email, "secret1")
	if err == nil {
		p.User.Name = name
	}
	return p, err
}

func (f *fakeAPI) ForgotPassword(ctx context.Context, email string) (string, error) {
	return "Reset link sent", nil
}

func (f *fakeAPI) ResetPassword(ctx context.Context, token, password string) (string, error) {
	return "Password updated", nil
}

// testStore is a token store that can also seed partial state
type testStore struct {
	*tokenstore.Store
	db *db.DB
}

func newTestStore(t *testing.T) *testStore {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return &testStore{Store: tokenstore.New(database), db: database}
}

// loggedIn returns a rehydrated session holding whichever tokens are non-empty
func loggedIn(t *testing.T, store *testStore, access, refresh string) *session.Session {
	t.Helper()
	ctx := context.Background()
	if access != "" && refresh != "" {
		require.NoError(t, store.Save(ctx, access, refresh, &model.User{ID: "u1", Name: "Ana"}))
	} else {
		for key, value := range map[string]string{tokenstore.AccessTokenKey: access, tokenstore.RefreshTokenKey: refresh} {
			if value == "" {
				continue
			}
			_, err := store.db.ExecContext(ctx,
				`INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, 0)`, key, value)
			require.NoError(t, err)
		}
	}

	sess := session.New(store)
	_, err := sess.Rehydrate(ctx)
	require.NoError(t, err)
	return sess
}
