package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/model"
	"github.com/existflow/quizdesk/internal/session"
)

// Login stores exactly the returned pair
func TestLoginPersistsReturnedPair(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(newFakeAPI(), session.New(store))

	u, err := svc.Login(context.Background(), "ana@school.test", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "login-access", snap.AccessToken)
	assert.Equal(t, "login-refresh", snap.RefreshToken)
	assert.Equal(t, "ana@school.test", snap.User.Email)
	assert.True(t, svc.Session().Snapshot().IsAuthenticated())
}

func TestLoginInvalidCredentialsLeavesSession(t *testing.T) {
	store := newTestStore(t)
	svc := NewService(newFakeAPI(), session.New(store))

	_, err := svc.Login(context.Background(), "ana@school.test", "wrong!")
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)
	assert.Equal(t, "Invalid email or password", api.Message(err, ""))
	assert.False(t, svc.Session().Snapshot().HasTokens())
}

func TestInputValidationSkipsNetwork(t *testing.T) {
	fake := newFakeAPI()
	svc := NewService(fake, session.New(newTestStore(t)))
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"login bad email", func() error { _, err := svc.Login(ctx, "not-an-email", "secret1"); return err }, "email"},
		{"login empty password", func() error { _, err := svc.Login(ctx, "a@b.co", ""); return err }, "password"},
		{"register short password", func() error { _, err := svc.Register(ctx, "Ana", "a@b.co", "12345"); return err }, "password"},
		{"register no name", func() error { _, err := svc.Register(ctx, " ", "a@b.co", "secret1"); return err }, "name"},
		{"reset mismatch", func() error { _, err := svc.ResetPassword(ctx, "tok", "secret1", "secret2"); return err }, "confirmPassword"},
		{"reset no token", func() error { _, err := svc.ResetPassword(ctx, "", "secret1", "secret1"); return err }, "token"},
		{"forgot bad email", func() error { _, err := svc.ForgotPassword(ctx, "x@"); return err }, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *ValidationError
			require.True(t, errors.As(tt.call(), &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	assert.Zero(t, fake.loginCalls)
}

func TestLogoutIsLocal(t *testing.T) {
	store := newTestStore(t)
	sess := loggedIn(t, store, "a1", "r1")
	svc := NewService(newFakeAPI(), sess)

	require.NoError(t, svc.Logout(context.Background()))
	assert.False(t, sess.Snapshot().HasTokens())
	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestBootstrap(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		fake := newFakeAPI()
		fake.grant("a1", &model.User{ID: "u1"})
		store := newTestStore(t)
		require.NoError(t, store.Save(context.Background(), "a1", "r1", &model.User{ID: "u1"}))
		svc := NewService(fake, session.New(store))

		ok, err := svc.Bootstrap(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.True(t, svc.Session().Snapshot().IsAuthenticated())
	})

	t.Run("expired refreshes", func(t *testing.T) {
		fake := newFakeAPI()
		store := newTestStore(t)
		require.NoError(t, store.Save(context.Background(), "old", "r1", &model.User{ID: "u1"}))
		svc := NewService(fake, session.New(store))

		ok, err := svc.Bootstrap(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "access-1", svc.Session().Snapshot().AccessToken)
	})

	t.Run("empty", func(t *testing.T) {
		svc := NewService(newFakeAPI(), session.New(newTestStore(t)))
		ok, err := svc.Bootstrap(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestWhoami(t *testing.T) {
	fake := newFakeAPI()
	fake.grant("a1", &model.User{ID: "u1", Name: "Ana"})
	sess := loggedIn(t, newTestStore(t), "a1", "r1")
	st := NewService(fake, sess).Whoami(context.Background())
	assert.True(t, st.LoggedIn)
	assert.True(t, st.Valid)
	assert.Equal(t, "Ana", st.User.Name)
	assert.True(t, st.ExpiresAt.IsZero())
}
