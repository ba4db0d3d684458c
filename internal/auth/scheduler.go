package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/existflow/quizdesk/internal/api"
	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/session"
)

// SchedulerConfig tunes the refresh cycle
type SchedulerConfig struct {
	Interval   time.Duration // unconditional refresh period
	Skew       time.Duration // fire this long before a JWT exp
	RetryDelay time.Duration // re-arm delay after a network failure
}

// Scheduler keeps the session fresh in the background. It holds at most one
// pending timer and restarts its cycle whenever the session generation
// changes.
type Scheduler struct {
	session   *session.Session
	validator *Validator
	refresher *Refresher
	cfg       SchedulerConfig
	now       func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	unsub   func()
	gen     uint64 // generation the active cycle belongs to
	ctx     context.Context
	cancel  context.CancelFunc
	timer   *time.Timer
	nextAt  time.Time
}

// NewScheduler creates a stopped Scheduler
func NewScheduler(sess *session.Session, v *Validator, r *Refresher, cfg SchedulerConfig) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Minute
	}
	return &Scheduler{session: sess, validator: v, refresher: r, cfg: cfg, now: time.Now}
}

// Start begins the cycle for the current session, validating first
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	updates, unsub := s.session.Subscribe()
	s.unsub = unsub
	stopCh := s.stopCh
	s.mu.Unlock()

	go s.watch(updates, stopCh)
	s.restart(s.session.Snapshot(), true)
}

// Stop cancels the pending timer and any in-flight cycle. Safe to call twice.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	close(s.stopCh)
	s.unsub()
	s.resetLocked()
}

// NextRefresh returns when the armed timer fires
func (s *Scheduler) NextRefresh() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextAt, s.timer != nil
}

func (s *Scheduler) watch(updates <-chan session.State, stopCh chan struct{}) {
	for {
		select {
		case st := <-updates:
			// Login and refresh hand over a pair that was just proven good
			s.restart(st, !st.Validated)
		case <-stopCh:
			return
		}
	}
}

// restart drops the current cycle and begins one for st
func (s *Scheduler) restart(st session.State, validate bool) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.resetLocked()
	s.gen = st.Generation
	if !st.HasTokens() {
		s.mu.Unlock()
		logger.Debug("Refresh scheduler idle, no session")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx, s.cancel = ctx, cancel
	s.mu.Unlock()

	if validate {
		go s.validate(ctx, st)
		return
	}
	s.arm(st.Generation, s.delayFor(st.AccessToken))
}

func (s *Scheduler) resetLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.cancel != nil {
		s.cancel()
		s.ctx, s.cancel = nil, nil
	}
	s.nextAt = time.Time{}
}

func (s *Scheduler) validate(ctx context.Context, st session.State) {
	res := s.validator.Validate(ctx, st.AccessToken)
	if ctx.Err() != nil {
		return
	}
	if res.IsValid {
		s.session.MarkValid(st.Generation)
		if err := s.session.UpdateUser(ctx, st.Generation, res.User); err != nil {
			logger.Warn("Failed to store refreshed profile", logger.F("error", err))
		}
		s.arm(st.Generation, s.delayFor(st.AccessToken))
		return
	}

	logger.Info("Access token invalid, refreshing now", logger.F("reason", res.Error))
	s.session.Invalidate(st.Generation)
	s.refresh(ctx, st.Generation)
}

// refresh runs one refresh. Success bumps the generation, which restarts
// the cycle through the subscription.
func (s *Scheduler) refresh(ctx context.Context, gen uint64) {
	if ctx.Err() != nil {
		return
	}
	_, err := s.refresher.Refresh(ctx)
	switch {
	case err == nil, errors.Is(err, ErrStaleRefresh):
	case errors.Is(err, api.ErrNetworkFailure):
		logger.Warn("Refresh failed, will retry", logger.F("retry_in", s.cfg.RetryDelay.String()))
		s.arm(gen, s.cfg.RetryDelay)
	default:
		logger.Warn("Session ended by failed refresh", logger.F("error", err))
	}
}

func (s *Scheduler) arm(gen uint64, d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.gen != gen || s.ctx == nil {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}

	s.nextAt = s.now().Add(d)
	s.timer = time.AfterFunc(d, func() { s.fire(gen) })
	logger.Debug("Refresh armed", logger.F("in", d.String()), logger.F("generation", gen))
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if !s.running || s.gen != gen || s.ctx == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.nextAt = time.Time{}
	ctx := s.ctx
	s.mu.Unlock()

	logger.Info("Scheduled token refresh")
	s.refresh(ctx, gen)
}

// delayFor picks the earlier of the fixed interval and the token's expiry
// minus skew
func (s *Scheduler) delayFor(accessToken string) time.Duration {
	d := s.cfg.Interval
	if exp, ok := TokenExpiry(accessToken); ok {
		untilExp := exp.Sub(s.now()) - s.cfg.Skew
		if untilExp < d {
			d = untilExp
		}
	}
	if d < 0 {
		d = 0
	}
	return d
}

// TokenExpiry reads the exp claim of a JWT without verifying it. The server
// stays the authority; this only schedules the refresh earlier.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
