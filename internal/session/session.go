// Package session holds the in-memory authentication state.
//
// The in-memory copy is authoritative; the token store is a mirror written
// through on every change and read back only by Rehydrate.
package session

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/model"
	"github.com/existflow/quizdesk/internal/tokenstore"
)

// Store is the persistence the session mirrors into
type Store interface {
	Save(ctx context.Context, accessToken, refreshToken string, user *model.User) error
	Read(ctx context.Context) (tokenstore.Snapshot, error)
	Clear(ctx context.Context) error
}

// State is a copy of the session at one point in time
type State struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
	Validated    bool   // access token passed its last check
	Generation   uint64 // bumped whenever identity or token pair changes
}

// IsAuthenticated requires both tokens and a successful last validation
func (s State) IsAuthenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != "" && s.Validated
}

// HasTokens returns true if both tokens are present
func (s State) HasTokens() bool {
	return s.AccessToken != "" && s.RefreshToken != ""
}

// Session is the explicit session context shared by the auth components
type Session struct {
	store Store

	mu    sync.RWMutex
	state State

	// persistMu orders writes to store. A write for a generation that is no
	// longer current is skipped.
	persistMu sync.Mutex

	subMu  sync.Mutex
	subs   map[int]chan State
	nextID int
}

// New creates an empty session backed by store
func New(store Store) *Session {
	return &Session{store: store, subs: make(map[int]chan State)}
}

// Snapshot returns a copy of the current state
func (s *Session) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := s.state
	if st.User != nil {
		u := *st.User
		st.User = &u
	}
	return st
}

// Generation returns the current generation
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Generation
}

// SetCredentials installs a freshly issued identity, as after login or register
func (s *Session) SetCredentials(ctx context.Context, p *model.AuthPayload) error {
	s.mu.Lock()
	s.state = State{
		User:         copyUser(p.User),
		AccessToken:  p.Tokens.AccessToken,
		RefreshToken: p.Tokens.RefreshToken,
		Validated:    true,
		Generation:   s.state.Generation + 1,
	}
	st := s.state
	s.mu.Unlock()

	s.publish(st)
	return s.persist(ctx, st)
}

// UpdateTokens installs a refreshed pair, but only if the session is still at
// generation gen. Returns false when the result is stale and was dropped.
func (s *Session) UpdateTokens(ctx context.Context, gen uint64, pair model.TokenPair, user *model.User) (bool, error) {
	s.mu.Lock()
	if s.state.Generation != gen || !s.state.HasTokens() {
		s.mu.Unlock()
		logger.Debug("Dropping stale token update", logger.F("generation", gen))
		return false, nil
	}
	s.state.AccessToken = pair.AccessToken
	s.state.RefreshToken = pair.RefreshToken
	s.state.Validated = true
	if user != nil {
		s.state.User = copyUser(user)
	}
	s.state.Generation++
	st := s.state
	s.mu.Unlock()

	s.publish(st)
	return true, s.persist(ctx, st)
}

// UpdateUser replaces the profile without touching the tokens
func (s *Session) UpdateUser(ctx context.Context, gen uint64, user *model.User) error {
	if user == nil {
		return nil
	}
	s.mu.Lock()
	if s.state.Generation != gen || !s.state.HasTokens() {
		s.mu.Unlock()
		return nil
	}
	s.state.User = copyUser(user)
	st := s.state
	s.mu.Unlock()

	return s.persist(ctx, st)
}

// MarkValid records that generation gen passed validation
func (s *Session) MarkValid(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation == gen && s.state.HasTokens() {
		s.state.Validated = true
	}
}

// Invalidate records that generation gen failed validation
func (s *Session) Invalidate(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Generation == gen {
		s.state.Validated = false
	}
}

// Clear destroys the session and everything persisted for it
func (s *Session) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.state = State{Generation: s.state.Generation + 1}
	st := s.state
	s.mu.Unlock()

	s.publish(st)
	return s.wipe(ctx)
}

// ClearIf clears the session only if it is still at generation gen.
// Returns false when a newer identity replaced it in the meantime.
func (s *Session) ClearIf(ctx context.Context, gen uint64) (bool, error) {
	s.mu.Lock()
	if s.state.Generation != gen {
		s.mu.Unlock()
		return false, nil
	}
	s.state = State{Generation: s.state.Generation + 1}
	st := s.state
	s.mu.Unlock()

	s.publish(st)
	return true, s.wipe(ctx)
}

// Rehydrate replaces the in-memory state with the persisted copy. The loaded
// tokens are unvalidated until checked.
func (s *Session) Rehydrate(ctx context.Context) (State, error) {
	snap, err := s.store.Read(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read token store: %w", err)
	}

	s.mu.Lock()
	s.state = State{
		User:         snap.User,
		AccessToken:  snap.AccessToken,
		RefreshToken: snap.RefreshToken,
		Generation:   s.state.Generation + 1,
	}
	st := s.state
	s.mu.Unlock()

	s.publish(st)
	return st, nil
}

// Token implements oauth2.TokenSource over the current access token
func (s *Session) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state.AccessToken == "" {
		return nil, api.ErrNotLoggedIn
	}
	return &oauth2.Token{AccessToken: s.state.AccessToken, TokenType: "Bearer"}, nil
}

// Subscribe delivers the state after every generation change. Slow readers
// only see the latest state. The returned func unsubscribes.
func (s *Session) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) publish(st State) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- st:
		default:
		}
	}
}

// persist writes the current state if it is still at st's generation
func (s *Session) persist(ctx context.Context, st State) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	cur := s.Snapshot()
	if cur.Generation != st.Generation {
		logger.Debug("Skipping save of superseded session", logger.F("generation", st.Generation))
		return nil
	}
	if !cur.HasTokens() {
		return nil
	}
	if err := s.store.Save(ctx, cur.AccessToken, cur.RefreshToken, cur.User); err != nil {
		logger.Error("Failed to persist session", logger.F("error", err))
		return fmt.Errorf("save token store: %w", err)
	}
	return nil
}

func (s *Session) wipe(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear token store: %w", err)
	}
	return nil
}

func copyUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
