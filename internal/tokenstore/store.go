// Package tokenstore persists the session tokens and user profile.
//
// Values are kept in two places: a local_storage table read by the client
// and a cookie mirror read by request paths that only see cookies, such as
// the routing gate. Both are written in one transaction so the access and
// refresh tokens can never be observed mismatched.
package tokenstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/existflow/quizdesk/internal/db"
	"github.com/existflow/quizdesk/internal/model"
)

// Storage keys, shared by local_storage and the cookie mirror
const (
	AccessTokenKey  = "accessToken"
	RefreshTokenKey = "refreshToken"
	UserKey         = "user"
)

// Snapshot is whatever the store currently holds. Empty fields mean absent.
type Snapshot struct {
	AccessToken  string
	RefreshToken string
	User         *model.User
}

// Empty returns true if nothing is stored
func (s Snapshot) Empty() bool {
	return s.AccessToken == "" && s.RefreshToken == "" && s.User == nil
}

// Store is the durable token store
type Store struct {
	db     *db.DB
	sealer *Sealer
	now    func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithSealer encrypts values at rest
func WithSealer(s *Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// WithClock overrides time.Now, used for cookie expiry
func WithClock(now func() time.Time) Option {
	return func(st *Store) { st.now = now }
}

// New creates a Store on top of an open database
func New(database *db.DB, opts ...Option) *Store {
	s := &Store{db: database, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save writes both tokens and the user, and refreshes the cookie mirror
func (s *Store) Save(ctx context.Context, accessToken, refreshToken string, user *model.User) error {
	if accessToken == "" || refreshToken == "" {
		return errors.New("both tokens are required")
	}

	var userJSON []byte
	if user != nil {
		var err error
		userJSON, err = json.Marshal(user)
		if err != nil {
			return fmt.Errorf("marshal user: %w", err)
		}
	}

	now := s.now()
	values := map[string]string{
		AccessTokenKey:  accessToken,
		RefreshTokenKey: refreshToken,
	}
	if userJSON != nil {
		values[UserKey] = string(userJSON)
	}

	sealed := make(map[string]string, len(values))
	for k, v := range values {
		sv, err := s.seal(v)
		if err != nil {
			return fmt.Errorf("seal %s: %w", k, err)
		}
		sealed[k] = sv
	}

	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		for k, v := range sealed {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO local_storage (key, value, updated_at) VALUES (?, ?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
				k, v, now.Unix(),
			); err != nil {
				return fmt.Errorf("write %s: %w", k, err)
			}
		}
		if userJSON == nil {
			if _, err := tx.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, UserKey); err != nil {
				return fmt.Errorf("clear user: %w", err)
			}
		}

		if err := putCookie(ctx, tx, AccessTokenKey, sealed[AccessTokenKey], now.Add(AccessCookieTTL)); err != nil {
			return err
		}
		return putCookie(ctx, tx, RefreshTokenKey, sealed[RefreshTokenKey], now.Add(RefreshCookieTTL))
	})
}

// Read returns whatever is present
func (s *Store) Read(ctx context.Context) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM local_storage`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read local storage: %w", err)
	}
	defer rows.Close()

	var snap Snapshot
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Snapshot{}, err
		}
		value, err = s.open(value)
		if err != nil {
			return Snapshot{}, fmt.Errorf("open %s: %w", key, err)
		}
		switch key {
		case AccessTokenKey:
			snap.AccessToken = value
		case RefreshTokenKey:
			snap.RefreshToken = value
		case UserKey:
			var u model.User
			if err := json.Unmarshal([]byte(value), &u); err != nil {
				return Snapshot{}, fmt.Errorf("decode user: %w", err)
			}
			snap.User = &u
		}
	}
	return snap, rows.Err()
}

// Clear removes every persisted field from local storage and the cookie mirror
func (s *Store) Clear(ctx context.Context) error {
	return s.db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM local_storage WHERE key IN (?, ?, ?)`,
			AccessTokenKey, RefreshTokenKey, UserKey); err != nil {
			return fmt.Errorf("clear local storage: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE name IN (?, ?)`,
			AccessTokenKey, RefreshTokenKey); err != nil {
			return fmt.Errorf("clear cookies: %w", err)
		}
		return nil
	})
}

func (s *Store) seal(v string) (string, error) {
	if s.sealer == nil {
		return v, nil
	}
	return s.sealer.Seal(v)
}

func (s *Store) open(v string) (string, error) {
	if s.sealer == nil {
		return v, nil
	}
	return s.sealer.Open(v)
}
