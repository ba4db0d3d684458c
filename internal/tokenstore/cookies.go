package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/existflow/quizdesk/internal/logger"
)

// Cookie mirror lifetimes
const (
	AccessCookieTTL  = 24 * time.Hour
	RefreshCookieTTL = 7 * 24 * time.Hour
)

func putCookie(ctx context.Context, tx *sql.Tx, name, value string, expires time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO cookies (name, value, path, same_site, expires_at) VALUES (?, ?, '/', 'Strict', ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		name, value, expires.Unix(),
	)
	if err != nil {
		return fmt.Errorf("write cookie %s: %w", name, err)
	}
	return nil
}

// Cookies returns the unexpired mirror cookies
func (s *Store) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, value, path, expires_at FROM cookies WHERE expires_at > ? ORDER BY name`,
		s.now().Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	defer rows.Close()

	var cookies []*http.Cookie
	for rows.Next() {
		var name, value, path string
		var expires int64
		if err := rows.Scan(&name, &value, &path, &expires); err != nil {
			return nil, err
		}
		value, err = s.open(value)
		if err != nil {
			return nil, fmt.Errorf("open cookie %s: %w", name, err)
		}
		cookies = append(cookies, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     path,
			Expires:  time.Unix(expires, 0),
			SameSite: http.SameSiteStrictMode,
		})
	}
	return cookies, rows.Err()
}

// Jar exposes the cookie mirror to an http.Client
func (s *Store) Jar() http.CookieJar {
	return &mirrorJar{store: s}
}

// mirrorJar is a read-only jar; the mirror is only written by Save and Clear
type mirrorJar struct {
	store *Store
}

func (j *mirrorJar) SetCookies(u *url.URL, cookies []*http.Cookie) {}

func (j *mirrorJar) Cookies(u *url.URL) []*http.Cookie {
	cookies, err := j.store.Cookies(context.Background())
	if err != nil {
		logger.Warn("Failed to read cookie mirror", logger.F("error", err))
		return nil
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	var out []*http.Cookie
	for _, c := range cookies {
		if strings.HasPrefix(path, c.Path) {
			out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
		}
	}
	return out
}
