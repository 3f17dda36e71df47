// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package credential

import (
	"errors"
	"sync"
	"time"
)

// DefaultTTL is the lifetime of a stored credential.
const DefaultTTL = 24 * time.Hour

// CookieName is the jar entry holding the credential.
const CookieName = "auth"

// ErrReadOnly is returned when writing to a fixed credential.
var ErrReadOnly = errors.New("credential is read-only")

// Accessor reads and writes the current credential. An empty credential
// means "not authenticated"; setting it to "" removes it.
type Accessor interface {
	Credential() (string, error)
	SetCredential(cred string) error
}

// =============================================================================
// STATIC
// =============================================================================

// Static is a fixed credential.
type Static string

// Credential returns the fixed value.
func (s Static) Credential() (string, error) { return string(s), nil }

// SetCredential always fails.
func (s Static) SetCredential(string) error { return ErrReadOnly }

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps the credential in process memory with an expiry.
type MemoryStore struct {
	mu      sync.Mutex
	value   string
	expires time.Time
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates an empty store. A non-positive ttl uses
// DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now}
}

// WithClock replaces the time source.
func (m *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	return m
}

// Credential returns the stored value, or "" once expired.
func (m *MemoryStore) Credential() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.value != "" && !m.now().Before(m.expires) {
		m.value = ""
	}
	return m.value, nil
}

// SetCredential stores cred for the store's lifetime.
func (m *MemoryStore) SetCredential(cred string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = cred
	m.expires = m.now().Add(m.ttl)
	return nil
}
