// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const jarSchema = `
CREATE TABLE IF NOT EXISTS cookies (
	name       TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	expires_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);`

// SQLiteStore is a persistent credential jar shared by every shraga
// process of the same user.
type SQLiteStore struct {
	db   *sql.DB
	path string
	ttl  time.Duration
	now  func() time.Time
}

// OpenSQLite opens (creating if needed) the jar at path. A non-positive
// ttl uses DefaultTTL.
func OpenSQLite(path string, ttl time.Duration) (*SQLiteStore, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	// SECURITY: The jar holds a bearer credential; keep its directory private.
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA busy_timeout=2000", jarSchema} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to initialize credential store: %w", err)
		}
	}
	if err := os.Chmod(path, 0600); err != nil && !errors.Is(err, os.ErrNotExist) {
		db.Close()
		return nil, fmt.Errorf("failed to secure credential store: %w", err)
	}

	return &SQLiteStore{db: db, path: path, ttl: ttl, now: time.Now}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Close releases the database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Credential returns the stored value, or "" when missing or expired.
// Expired entries are removed.
func (s *SQLiteStore) Credential() (string, error) {
	value, expires, err := s.lookup()
	if err != nil || value == "" {
		return "", err
	}
	if !s.now().Before(expires) {
		if err := s.SetCredential(""); err != nil {
			return "", err
		}
		return "", nil
	}
	return value, nil
}

// ExpiresAt reports when the stored credential lapses.
func (s *SQLiteStore) ExpiresAt() (time.Time, bool, error) {
	value, expires, err := s.lookup()
	if err != nil || value == "" {
		return time.Time{}, false, err
	}
	return expires, true, nil
}

// SetCredential stores cred for the store's lifetime; "" removes it.
func (s *SQLiteStore) SetCredential(cred string) error {
	now := s.now()
	if cred == "" {
		if _, err := s.db.Exec(`DELETE FROM cookies WHERE name = ?`, CookieName); err != nil {
			return fmt.Errorf("failed to clear credential: %w", err)
		}
		return nil
	}

	_, err := s.db.Exec(`
		INSERT INTO cookies (name, value, expires_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value,
			expires_at = excluded.expires_at, updated_at = excluded.updated_at`,
		CookieName, cred, now.Add(s.ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}
	return nil
}

func (s *SQLiteStore) lookup() (string, time.Time, error) {
	var value string
	var expiresMs int64
	err := s.db.QueryRow(`SELECT value, expires_at FROM cookies WHERE name = ?`, CookieName).
		Scan(&value, &expiresMs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to read credential: %w", err)
	}
	return value, time.UnixMilli(expiresMs), nil
}
