// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
)

// ErrUnauthenticated is returned when no credential is available.
var ErrUnauthenticated = errors.New("not authenticated")

// Backend is the subset of the API client the cache uses.
type Backend interface {
	ListHistory(ctx context.Context) ([]model.SessionRecord, error)
	DeleteHistory(ctx context.Context, chatID string) error
}

// CredentialSource supplies the cache key.
type CredentialSource interface {
	Credential() (string, error)
}

// Cache holds the last successful history listing.
type Cache struct {
	backend Backend
	creds   CredentialSource
	logger  *slog.Logger
	group   singleflight.Group

	mu       sync.Mutex
	key      string
	sessions []model.Session
	loaded   bool
	lastErr  error
	subs     map[int]func([]model.Session)
	nextSub  int
}

// NewCache creates an empty cache.
func NewCache(backend Backend, creds CredentialSource, logger *slog.Logger) *Cache {
	return &Cache{
		backend: backend,
		creds:   creds,
		logger:  logging.OrDefault(logger),
		subs:    make(map[int]func([]model.Session)),
	}
}

// Fetch returns the cached sessions for the current credential, loading
// them on first use or after the credential changed.
func (c *Cache) Fetch(ctx context.Context) ([]model.Session, error) {
	key, err := c.credential()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.loaded && c.key == key {
		out := cloneAll(c.sessions)
		c.mu.Unlock()
		return out, nil
	}
	c.mu.Unlock()

	return c.load(ctx, key)
}

// Refresh reloads from the server regardless of the cache state.
func (c *Cache) Refresh(ctx context.Context) ([]model.Session, error) {
	key, err := c.credential()
	if err != nil {
		return nil, err
	}
	return c.load(ctx, key)
}

// Remove deletes a persisted session and refreshes the listing.
func (c *Cache) Remove(ctx context.Context, chatID string) error {
	if _, err := c.credential(); err != nil {
		return err
	}
	if err := c.backend.DeleteHistory(ctx, chatID); err != nil {
		return err
	}
	if _, err := c.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh after delete: %w", err)
	}
	return nil
}

// Data returns the cached sessions and whether a listing has loaded.
func (c *Cache) Data() ([]model.Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAll(c.sessions), c.loaded
}

// Err returns the error of the most recent load, if it failed.
func (c *Cache) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Subscribe registers fn to receive every successful listing. The returned
// function unregisters it. fn runs without the cache lock held.
func (c *Cache) Subscribe(fn func([]model.Session)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// =============================================================================
// LOADING
// =============================================================================

func (c *Cache) credential() (string, error) {
	if c.creds == nil {
		return "", ErrUnauthenticated
	}
	key, err := c.creds.Credential()
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if key == "" {
		return "", ErrUnauthenticated
	}
	return key, nil
}

// load fetches once per key at a time; concurrent callers share the
// result. The caller that runs the request publishes it.
func (c *Cache) load(ctx context.Context, key string) ([]model.Session, error) {
	v, err, _ := c.group.Do(key, func() (any, error) {
		records, err := c.backend.ListHistory(ctx)
		if err != nil {
			c.mu.Lock()
			c.lastErr = err
			c.mu.Unlock()
			c.logger.Warn("history fetch failed", "error", err)
			return nil, err
		}
		sessions := model.NormalizeRecords(records)
		c.publish(key, sessions)
		return sessions, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneAll(v.([]model.Session)), nil
}

// publish stores a listing and notifies subscribers in registration order.
func (c *Cache) publish(key string, sessions []model.Session) {
	c.mu.Lock()
	c.key = key
	c.sessions = sessions
	c.loaded = true
	c.lastErr = nil
	ids := make([]int, 0, len(c.subs))
	for id := range c.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	subs := make([]func([]model.Session), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, c.subs[id])
	}
	c.mu.Unlock()

	c.logger.Debug("history loaded", "sessions", len(sessions))

	// Execute callbacks outside the lock.
	for _, fn := range subs {
		fn(cloneAll(sessions))
	}
}

func cloneAll(sessions []model.Session) []model.Session {
	if sessions == nil {
		return nil
	}
	out := make([]model.Session, len(sessions))
	for i, s := range sessions {
		out[i] = s.Clone()
	}
	return out
}
