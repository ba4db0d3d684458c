package db

import "fmt"

// migrate runs all database migrations
func (db *DB) migrate() error {
	migrations := []string{
		migrationCreateLocalStorage,
		migrationCreateCookies,
	}

	for i, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

const migrationCreateLocalStorage = `
CREATE TABLE IF NOT EXISTS local_storage (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

const migrationCreateCookies = `
CREATE TABLE IF NOT EXISTS cookies (
    name TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    path TEXT NOT NULL DEFAULT '/',
    same_site TEXT NOT NULL DEFAULT 'Strict',
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cookies_expires ON cookies(expires_at);
`
