package session

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/db"
	"github.com/existflow/quizdesk/internal/model"
	"github.com/existflow/quizdesk/internal/tokenstore"
)

func newStore(t *testing.T) *tokenstore.Store {
	t.Helper()
	database, err := db.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return tokenstore.New(database)
}

func login(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.SetCredentials(context.Background(), &model.AuthPayload{
		User:   &model.User{ID: "u1", Name: "Ana"},
		Tokens: model.TokenPair{AccessToken: "a1", RefreshToken: "r1"},
	}))
}

func TestSetCredentialsPersistsAndAuthenticates(t *testing.T) {
	store := newStore(t)
	s := New(store)
	login(t, s)

	st := s.Snapshot()
	assert.True(t, st.IsAuthenticated())
	assert.Equal(t, uint64(1), st.Generation)

	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a1", snap.AccessToken)
	assert.Equal(t, "r1", snap.RefreshToken)
	assert.Equal(t, "u1", snap.User.ID)
}

func TestUpdateTokensDropsStaleGeneration(t *testing.T) {
	s := New(newStore(t))
	login(t, s)
	gen := s.Generation()

	applied, err := s.UpdateTokens(context.Background(), gen, model.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil)
	require.NoError(t, err)
	assert.True(t, applied)

	// A second result for the old generation must not overwrite a2/r2
	applied, err = s.UpdateTokens(context.Background(), gen, model.TokenPair{AccessToken: "a3", RefreshToken: "r3"}, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, "a2", s.Snapshot().AccessToken)
}

func TestUpdateTokensAfterLogoutIsDropped(t *testing.T) {
	s := New(newStore(t))
	login(t, s)
	gen := s.Generation()
	require.NoError(t, s.Clear(context.Background()))

	applied, err := s.UpdateTokens(context.Background(), gen, model.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.False(t, s.Snapshot().HasTokens())
}

func TestInvalidateSelfCorrectsFlag(t *testing.T) {
	s := New(newStore(t))
	login(t, s)
	s.Invalidate(s.Generation())
	assert.False(t, s.Snapshot().IsAuthenticated())
	s.MarkValid(s.Generation())
	assert.True(t, s.Snapshot().IsAuthenticated())
}

func TestClearEmptiesStore(t *testing.T) {
	store := newStore(t)
	s := New(store)
	login(t, s)
	require.NoError(t, s.Clear(context.Background()))

	st := s.Snapshot()
	assert.Nil(t, st.User)
	assert.Empty(t, st.AccessToken)
	snap, err := store.Read(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}

func TestRehydrateLoadsUnvalidated(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.Save(context.Background(), "a1", "r1", &model.User{ID: "u1"}))

	s := New(store)
	st, err := s.Rehydrate(context.Background())
	require.NoError(t, err)
	assert.True(t, st.HasTokens())
	assert.False(t, st.IsAuthenticated())
	assert.Equal(t, "u1", st.User.ID)
}

func TestSubscribeSeesLatestState(t *testing.T) {
	s := New(newStore(t))
	ch, cancel := s.Subscribe()
	defer cancel()

	login(t, s)
	require.NoError(t, s.Clear(context.Background()))

	st := <-ch
	assert.False(t, st.HasTokens())
	assert.Equal(t, uint64(2), st.Generation)
}

func TestTokenSource(t *testing.T) {
	s := New(newStore(t))
	_, err := s.Token()
	assert.ErrorIs(t, err, api.ErrNotLoggedIn)

	login(t, s)
	tok, err := s.Token()
	require.NoError(t, err)
	assert.Equal(t, "a1", tok.AccessToken)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := New(newStore(t))
	login(t, s)
	st := s.Snapshot()
	st.User.Name = "changed"
	assert.Equal(t, "Ana", s.Snapshot().User.Name)
}

func TestClearIfKeepsNewerIdentity(t *testing.T) {
	s := New(newStore(t))
	login(t, s)
	old := s.Generation()
	login(t, s)

	cleared, err := s.ClearIf(context.Background(), old)
	require.NoError(t, err)
	assert.False(t, cleared)
	assert.True(t, s.Snapshot().HasTokens())

	cleared, err = s.ClearIf(context.Background(), s.Generation())
	require.NoError(t, err)
	assert.True(t, cleared)
	assert.False(t, s.Snapshot().HasTokens())
}

// gatedStore holds the next Save until released
type gatedStore struct {
	*tokenstore.Store
	entered chan struct{}
	release chan struct{}
}

func (g *gatedStore) Save(ctx context.Context, access, refresh string, user *model.User) error {
	if g.entered != nil {
		close(g.entered)
		g.entered = nil
		<-g.release
	}
	return g.Store.Save(ctx, access, refresh, user)
}

func TestLogoutWinsOverInFlightSave(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: newStore(t)}
	s := New(store)
	login(t, s)

	entered := make(chan struct{})
	store.entered, store.release = entered, make(chan struct{})

	saved := make(chan error, 1)
	go func() {
		_, err := s.UpdateTokens(ctx, s.Generation(), model.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil)
		saved <- err
	}()
	<-entered
	before := s.Generation()

	cleared := make(chan error, 1)
	go func() { cleared <- s.Clear(ctx) }()
	require.Eventually(t, func() bool { return s.Generation() > before }, time.Second, 5*time.Millisecond)

	close(store.release)
	require.NoError(t, <-saved)
	require.NoError(t, <-cleared)

	assert.False(t, s.Snapshot().HasTokens())
	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())

	st, err := New(store).Rehydrate(ctx)
	require.NoError(t, err)
	assert.False(t, st.HasTokens())
}

func TestSupersededSaveIsSkipped(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	s := New(store)
	login(t, s)
	gen := s.Generation()
	require.NoError(t, s.Clear(ctx))

	require.NoError(t, s.persist(ctx, State{AccessToken: "a1", RefreshToken: "r1", Generation: gen}))
	snap, err := store.Read(ctx)
	require.NoError(t, err)
	assert.True(t, snap.Empty())
}
