package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"

	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/session"
)

// LoginPath is where unauthenticated users are sent
const LoginPath = "/login"

// GuardState is the decision of a Guard
type GuardState int

const (
	Validating GuardState = iota
	Authenticated
	Redirecting
)

func (s GuardState) String() string {
	switch s {
	case Validating:
		return "validating"
	case Authenticated:
		return "authenticated"
	case Redirecting:
		return "redirect"
	default:
		return "unknown"
	}
}

// Redirect describes where a rejected visitor goes
type Redirect struct {
	Path    string // login path
	From    string // originally requested path
	Expired bool
}

// URL renders the redirect target with its query parameters
func (r Redirect) URL() string {
	q := url.Values{}
	if r.From != "" {
		q.Set("redirect", r.From)
	}
	if r.Expired {
		q.Set("expired", "true")
	}
	if len(q) == 0 {
		return r.Path
	}
	return r.Path + "?" + q.Encode()
}

// Guard decides whether protected content may be shown. It starts out
// validating and never reports renderable until a check has passed.
type Guard struct {
	session   *session.Session
	validator *Validator
	refresher *Refresher

	mu       sync.RWMutex
	state    GuardState
	redirect Redirect
}

// NewGuard creates a Guard in the validating state
func NewGuard(sess *session.Session, v *Validator, r *Refresher) *Guard {
	return &Guard{session: sess, validator: v, refresher: r}
}

// State returns the current decision
func (g *Guard) State() GuardState {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.state
}

// Renderable is true only once the session is proven authenticated
func (g *Guard) Renderable() bool {
	return g.State() == Authenticated
}

// Redirect returns the redirect target when State is Redirecting
func (g *Guard) Redirect() (Redirect, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.redirect, g.state == Redirecting
}

// Check runs the guard for a visit to path and returns the final state
func (g *Guard) Check(ctx context.Context, path string) GuardState {
	g.set(Validating, Redirect{})

	st := g.session.Snapshot()
	if st.AccessToken == "" {
		return g.set(Redirecting, Redirect{Path: LoginPath, From: path})
	}

	res := g.validator.Validate(ctx, st.AccessToken)
	if res.IsValid {
		g.session.MarkValid(st.Generation)
		if err := g.session.UpdateUser(ctx, st.Generation, res.User); err != nil {
			logger.Warn("Failed to store refreshed profile", logger.F("error", err))
		}
		return g.set(Authenticated, Redirect{})
	}
	g.session.Invalidate(st.Generation)

	if st.RefreshToken != "" {
		_, err := g.refresher.Refresh(ctx)
		if err == nil {
			return g.set(Authenticated, Redirect{})
		}
		if errors.Is(err, ErrStaleRefresh) && g.session.Snapshot().IsAuthenticated() {
			return g.set(Authenticated, Redirect{})
		}
		logger.Info("Guard refresh failed", logger.F("error", err))
	}

	if _, err := g.session.ClearIf(ctx, st.Generation); err != nil {
		logger.Error("Failed to clear session", logger.F("error", err))
	}
	return g.set(Redirecting, Redirect{Path: LoginPath, From: path, Expired: true})
}

func (g *Guard) set(state GuardState, r Redirect) GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = state
	g.redirect = r
	return state
}
