package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/model"
	"github.com/existflow/quizdesk/internal/session"
)

// ErrStaleRefresh is returned when the session changed while a refresh was
// in flight and its result was discarded
var ErrStaleRefresh = errors.New("session changed during refresh")

// RefreshAPI exchanges refresh tokens
type RefreshAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*model.AuthPayload, error)
}

// Refresher performs at most one refresh per session generation. A rejected
// refresh tears the session down; a network failure leaves it intact.
type Refresher struct {
	api     RefreshAPI
	session *session.Session
	group   singleflight.Group
}

// NewRefresher creates a Refresher for sess
func NewRefresher(a RefreshAPI, sess *session.Session) *Refresher {
	return &Refresher{api: a, session: sess}
}

// Refresh exchanges the current refresh token. Concurrent callers for the
// same generation share one request and its result.
func (r *Refresher) Refresh(ctx context.Context) (session.State, error) {
	st := r.session.Snapshot()
	if st.RefreshToken == "" {
		return session.State{}, fmt.Errorf("%w: no refresh token", api.ErrRefreshFailed)
	}

	key := strconv.FormatUint(st.Generation, 10)
	v, err, shared := r.group.Do(key, func() (interface{}, error) {
		return r.refresh(context.WithoutCancel(ctx), st)
	})
	if shared {
		logger.Debug("Joined in-flight refresh", logger.F("generation", st.Generation))
	}
	if err != nil {
		return session.State{}, err
	}
	return v.(session.State), nil
}

// RefreshRejected refreshes after the server rejected the access token
// rejected. If the session already moved on to another token, nothing is
// exchanged and the caller can retry with the current one.
func (r *Refresher) RefreshRejected(ctx context.Context, rejected string) error {
	st := r.session.Snapshot()
	if st.HasTokens() && st.AccessToken != rejected {
		return nil
	}
	r.session.Invalidate(st.Generation)
	_, err := r.Refresh(ctx)
	return err
}

func (r *Refresher) refresh(ctx context.Context, st session.State) (session.State, error) {
	log := logger.WithFields(logger.F("component", "refresher"), logger.F("generation", st.Generation))

	p, err := r.api.Refresh(ctx, st.RefreshToken)
	if err != nil {
		if errors.Is(err, api.ErrNetworkFailure) {
			log.Warn("Token refresh could not reach the server", logger.F("error", err))
			return session.State{}, err
		}
		log.Warn("Token refresh rejected, ending session", logger.F("error", err))
		if _, cerr := r.session.ClearIf(ctx, st.Generation); cerr != nil {
			log.Error("Failed to clear session", logger.F("error", cerr))
		}
		if !errors.Is(err, api.ErrRefreshFailed) {
			err = fmt.Errorf("%w: %w", api.ErrRefreshFailed, err)
		}
		return session.State{}, err
	}

	applied, err := r.session.UpdateTokens(ctx, st.Generation, p.Tokens, p.User)
	if !applied {
		return session.State{}, ErrStaleRefresh
	}
	if err != nil {
		// The new pair is live in memory; only the mirror is behind
		log.Warn("Refreshed tokens not persisted", logger.F("error", err))
	}
	return r.session.Snapshot(), nil
}
