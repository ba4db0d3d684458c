package auth

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/existflow/quizdesk/internal/logger"
	"github.com/existflow/quizdesk/internal/model"
	"github.com/existflow/quizdesk/internal/session"
)

// MinPasswordLength is enforced before any request is made
const MinPasswordLength = 6

// ValidationError is a rejected input, reported before reaching the server
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// AuthAPI is the part of the API the facade needs
type AuthAPI interface {
	Prober
	RefreshAPI
	Login(ctx context.Context, email, password string) (*model.AuthPayload, error)
	Register(ctx context.Context, name, email, password string) (*model.AuthPayload, error)
	ForgotPassword(ctx context.Context, email string) (string, error)
	ResetPassword(ctx context.Context, token, password string) (string, error)
}

// Service is the single entry point for authentication actions
type Service struct {
	api       AuthAPI
	session   *session.Session
	validator *Validator
	refresher *Refresher
}

// NewService wires the auth components around sess
func NewService(a AuthAPI, sess *session.Session) *Service {
	return &Service{
		api:       a,
		session:   sess,
		validator: NewValidator(a),
		refresher: NewRefresher(a, sess),
	}
}

// Session returns the underlying session
func (s *Service) Session() *session.Session { return s.session }

// Validator returns the shared validator
func (s *Service) Validator() *Validator { return s.validator }

// NewGuard returns a guard sharing this service's single-flight refresher
func (s *Service) NewGuard() *Guard {
	return NewGuard(s.session, s.validator, s.refresher)
}

// NewScheduler returns a scheduler sharing this service's refresher
func (s *Service) NewScheduler(cfg SchedulerConfig) *Scheduler {
	return NewScheduler(s.session, s.validator, s.refresher, cfg)
}

// Login signs in and installs the new session
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, &ValidationError{Field: "password", Message: "Password is required"}
	}

	p, err := s.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.session.SetCredentials(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("Logged in", logger.F("user_id", userID(p.User)))
	return p.User, nil
}

// Register creates an account and installs the new session
func (s *Service) Register(ctx context.Context, name, email, password string) (*model.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return nil, &ValidationError{Field: "name", Message: "Name is required"}
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}

	p, err := s.api.Register(ctx, name, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.session.SetCredentials(ctx, p); err != nil {
		return nil, err
	}
	logger.Info("Registered", logger.F("user_id", userID(p.User)))
	return p.User, nil
}

// Logout ends the session locally. No request is made.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.session.Clear(ctx); err != nil {
		return err
	}
	logger.Info("Logged out")
	return nil
}

// Refresh exchanges the refresh token for a new pair
func (s *Service) Refresh(ctx context.Context) (session.State, error) {
	return s.refresher.Refresh(ctx)
}

// RefreshRejected is the api.TokenRejectedFunc for the session's client
func (s *Service) RefreshRejected(ctx context.Context, rejected string) error {
	return s.refresher.RefreshRejected(ctx, rejected)
}

// ForgotPassword requests a reset mail
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	return s.api.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password with a reset token
func (s *Service) ResetPassword(ctx context.Context, token, password, confirm string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", &ValidationError{Field: "token", Message: "Invalid or missing reset token"}
	}
	if err := validatePassword(password); err != nil {
		return "", err
	}
	if password != confirm {
		return "", &ValidationError{Field: "confirmPassword", Message: "Passwords do not match"}
	}
	return s.api.ResetPassword(ctx, token, password)
}

// Bootstrap rehydrates the session from disk at startup. Returns true if it
// ends up authenticated.
func (s *Service) Bootstrap(ctx context.Context) (bool, error) {
	st, err := s.session.Rehydrate(ctx)
	if err != nil {
		return false, err
	}
	if st.AccessToken == "" {
		return false, nil
	}

	res := s.validator.Validate(ctx, st.AccessToken)
	if res.IsValid {
		s.session.MarkValid(st.Generation)
		if err := s.session.UpdateUser(ctx, st.Generation, res.User); err != nil {
			logger.Warn("Failed to store refreshed profile", logger.F("error", err))
		}
		return s.session.Snapshot().IsAuthenticated(), nil
	}

	s.session.Invalidate(st.Generation)
	if st.RefreshToken == "" {
		return false, nil
	}
	if _, err := s.refresher.Refresh(ctx); err != nil {
		logger.Info("Startup refresh failed", logger.F("error", err))
		return false, nil
	}
	return true, nil
}

// Status is what Whoami reports
type Status struct {
	User      *model.User
	LoggedIn  bool
	Valid     bool
	Reason    string
	ExpiresAt time.Time // zero when the token carries no exp
}

// Whoami probes the current token without changing the session
func (s *Service) Whoami(ctx context.Context) Status {
	st := s.session.Snapshot()
	status := Status{User: st.User, LoggedIn: st.HasTokens()}
	if st.AccessToken == "" {
		status.Reason = MsgNoToken
		return status
	}

	res := s.validator.Validate(ctx, st.AccessToken)
	status.Valid = res.IsValid
	status.Reason = res.Error
	if res.User != nil {
		status.User = res.User
	}
	if exp, ok := TokenExpiry(st.AccessToken); ok {
		status.ExpiresAt = exp
	}
	return status
}

func validateEmail(email string) error {
	if email == "" {
		return &ValidationError{Field: "email", Message: "Email is required"}
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return &ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return &ValidationError{
			Field:   "password",
			Message: fmt.Sprintf("Password must be at least %d characters", MinPasswordLength),
		}
	}
	return nil
}

func userID(u *model.User) string {
	if u == nil {
		return ""
	}
	return u.ID
}
