// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/turn"
)

var (
	// ErrSessionNotFound is returned for an unknown session id.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSelectedSession is returned when removing the selected session.
	ErrSelectedSession = errors.New("cannot remove the selected session")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Runner executes flow runs. Satisfied by *turn.Runner.
type Runner interface {
	Run(ctx context.Context, ledger turn.Ledger, req turn.Request) (turn.Outcome, error)
	Abort()
	CancelUnless(sessionID string)
	InFlight() (sessionID string, busy bool)
}

// History is the server-side session listing. Satisfied by *history.Cache.
type History interface {
	Fetch(ctx context.Context) ([]model.Session, error)
	Refresh(ctx context.Context) ([]model.Session, error)
	Remove(ctx context.Context, chatID string) error
	Subscribe(fn func([]model.Session)) func()
}

// Catalog is the flow catalog. Satisfied by *flows.Catalog.
type Catalog interface {
	Fetch(ctx context.Context) ([]model.Flow, error)
	Configs(ctx context.Context) (*model.UIConfig, error)
	Lookup(id string) (model.Flow, bool)
}

// =============================================================================
// STATE
// =============================================================================

// State is a point-in-time copy of the manager state.
type State struct {
	Sessions        []model.Session
	SelectedID      string
	HasUnseenUpdate bool
}

// Selected returns the selected session from the snapshot.
func (s State) Selected() (model.Session, bool) {
	if i := model.FindSession(s.Sessions, s.SelectedID); i >= 0 {
		return s.Sessions[i], true
	}
	return model.Session{}, false
}

// SendOptions carries the per-send direction flag and callbacks.
type SendOptions struct {
	RTL       bool
	OnSuccess func()
	OnError   func(error)
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager owns the client session list and the selection.
//
// All mutations happen under mu. Network calls and change callbacks run
// without it, and the manager never calls the runner while holding it.
type Manager struct {
	runner  Runner
	history History
	catalog Catalog
	logger  *slog.Logger

	mu         sync.Mutex
	sessions   []model.Session
	selectedID string
	unseen     bool
	// Sessions created by this client, kept until the server lists them.
	local     map[string]struct{}
	hydrated  bool
	hydrating bool
	onChange  func()

	// Pending change notification, coalesced to one.
	changes   chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	unsubscribe func()

	// Hooks for tests.
	now   func() time.Time
	newID func() string
}

// NewManager creates a manager and subscribes it to history updates.
func NewManager(runner Runner, history History, catalog Catalog, logger *slog.Logger) *Manager {
	m := &Manager{
		runner:  runner,
		history: history,
		catalog: catalog,
		logger:  logging.OrDefault(logger),
		local:   make(map[string]struct{}),
		changes: make(chan struct{}, 1),
		done:    make(chan struct{}),
		now:     time.Now,
		newID:   uuid.NewString,
	}
	m.unsubscribe = history.Subscribe(m.merge)
	go m.deliver()
	return m
}

// Close stops receiving history updates and delivering change callbacks.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.closeOnce.Do(func() { close(m.done) })
}

// SetChangeCallback registers fn to run after state changes. fn runs on the
// manager's own goroutine with no lock held, so it may call back into the
// manager. Bursts of changes coalesce into a single call; fn should re-read
// the Snapshot rather than count calls.
func (m *Manager) SetChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// notify never blocks. Ledger writes arrive with the runner lock held.
func (m *Manager) notify() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

func (m *Manager) deliver() {
	for {
		select {
		case <-m.done:
			return
		case <-m.changes:
		}
		m.mu.Lock()
		fn := m.onChange
		m.mu.Unlock()
		if fn != nil {
			fn()
		}
	}
}

// =============================================================================
// QUERIES
// =============================================================================

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	sessions := make([]model.Session, len(m.sessions))
	for i, s := range m.sessions {
		sessions[i] = s.Clone()
	}
	return State{
		Sessions:        sessions,
		SelectedID:      m.selectedID,
		HasUnseenUpdate: m.unseen,
	}
}

// Session returns a copy of the session with id.
func (m *Manager) Session(id string) (model.Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i := model.FindSession(m.sessions, id); i >= 0 {
		return m.sessions[i].Clone(), true
	}
	return model.Session{}, false
}

// Selected returns the selected session resolved against the catalog: the
// catalog flow replaces the stored one and Preferences hold the effective
// values.
func (m *Manager) Selected() (model.Session, bool) {
	m.mu.Lock()
	i := model.FindSession(m.sessions, m.selectedID)
	if i < 0 {
		m.mu.Unlock()
		return model.Session{}, false
	}
	s := m.sessions[i].Clone()
	m.mu.Unlock()

	return m.resolve(s), true
}

// CanReplyToBot reports whether the selected session's flow keeps a
// history window, so the bot can see earlier turns.
func (m *Manager) CanReplyToBot() bool {
	s, ok := m.Selected()
	if !ok {
		return false
	}
	return model.HistoryWindowEnabled(s.Preferences)
}

// AckUpdate clears the unseen-update flag.
func (m *Manager) AckUpdate() {
	m.mu.Lock()
	changed := m.unseen
	m.unseen = false
	m.mu.Unlock()
	if changed {
		m.notify()
	}
}

// resolve applies the catalog flow and its defaults to s. Preferences
// stored on the session override the defaults.
func (m *Manager) resolve(s model.Session) model.Session {
	base := model.Preferences{}
	if f, ok := m.catalog.Lookup(s.Flow.ID); ok {
		s.Flow = f
		base = model.ResolvePreferences(f.Preferences)
	}
	s.Preferences = model.MergePreferences(base, s.Preferences)
	return s
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// CreateSession aborts any in-flight run, then adds and selects a new
// draft session bound to flow.
func (m *Manager) CreateSession(flow model.Flow) string {
	return m.create(flow, model.ResolvePreferences(flow.Preferences))
}

// CreateSessionWithPreferences is CreateSession with user overrides on top
// of the flow defaults. Required preferences must end up non-empty.
func (m *Manager) CreateSessionWithPreferences(flow model.Flow, overrides model.Preferences) (string, error) {
	prefs := model.MergePreferences(model.ResolvePreferences(flow.Preferences), overrides)
	if err := model.ValidatePreferences(flow.Preferences, prefs); err != nil {
		return "", fmt.Errorf("session preferences: %w", err)
	}
	return m.create(flow, prefs), nil
}

func (m *Manager) create(flow model.Flow, prefs model.Preferences) string {
	m.runner.Abort()

	m.mu.Lock()
	s := model.NewDraftSession(m.newID(), flow, m.now())
	s.Preferences = prefs
	m.sessions = append([]model.Session{s}, m.sessions...)
	m.local[s.ID] = struct{}{}
	m.selectedID = s.ID
	m.mu.Unlock()

	m.logger.Debug("session created", "session_id", s.ID, "flow_id", flow.ID)
	m.notify()
	return s.ID
}

// SelectSession selects id. Selecting a session other than the one with
// the in-flight run aborts that run.
func (m *Manager) SelectSession(id string) error {
	m.mu.Lock()
	if model.FindSession(m.sessions, id) < 0 {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	m.selectedID = id
	m.mu.Unlock()

	m.notify()
	m.runner.CancelUnless(id)
	return nil
}

// RemoveSession deletes a session. The selected session cannot be removed.
// Drafts that never reached the server are dropped locally; others are
// deleted on the server and the history is refreshed.
func (m *Manager) RemoveSession(ctx context.Context, id string) error {
	m.mu.Lock()
	i := model.FindSession(m.sessions, id)
	if i < 0 {
		m.mu.Unlock()
		return ErrSessionNotFound
	}
	if id == m.selectedID {
		m.mu.Unlock()
		return ErrSelectedSession
	}
	if m.sessions[i].Draft {
		m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
		delete(m.local, id)
		m.mu.Unlock()
		m.notify()
		return nil
	}
	_, wasLocal := m.local[id]
	delete(m.local, id)
	m.mu.Unlock()

	if err := m.history.Remove(ctx, id); err != nil {
		if wasLocal {
			m.mu.Lock()
			m.local[id] = struct{}{}
			m.mu.Unlock()
		}
		return fmt.Errorf("remove session %s: %w", id, err)
	}

	m.mu.Lock()
	if j := model.FindSession(m.sessions, id); j >= 0 {
		m.sessions = append(m.sessions[:j], m.sessions[j+1:]...)
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// RefreshHistory reloads the server listing and merges it.
func (m *Manager) RefreshHistory(ctx context.Context) error {
	if _, err := m.history.Refresh(ctx); err != nil {
		return fmt.Errorf("refresh history: %w", err)
	}
	return nil
}

// =============================================================================
// SENDING
// =============================================================================

// Send runs one question on session id and invokes exactly one of the
// callbacks, unless the session disappears before the run finishes.
func (m *Manager) Send(ctx context.Context, text, id string, opts SendOptions) (turn.Outcome, error) {
	s, ok := m.Session(id)
	if !ok {
		if opts.OnError != nil {
			opts.OnError(ErrSessionNotFound)
		}
		return turn.OutcomeDiscarded, ErrSessionNotFound
	}
	s = m.resolve(s)

	outcome, err := m.runner.Run(ctx, m, turn.Request{Session: s, Text: text, RTL: opts.RTL})
	switch {
	case outcome.Succeeded():
		if opts.OnSuccess != nil {
			opts.OnSuccess()
		}
	case err != nil:
		if opts.OnError != nil {
			opts.OnError(err)
		}
	}
	return outcome, err
}

// Abort cancels the in-flight run, if any.
func (m *Manager) Abort() {
	m.runner.Abort()
}

// =============================================================================
// LEDGER
// =============================================================================

// AppendMessage adds msg to a session and moves the session to the front.
func (m *Manager) AppendMessage(sessionID string, msg model.Message) bool {
	m.mu.Lock()
	i := model.FindSession(m.sessions, sessionID)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	s := m.sessions[i]
	s.Messages = append(s.Messages, msg)
	m.sessions = append(m.sessions[:i], m.sessions[i+1:]...)
	m.sessions = append([]model.Session{s}, m.sessions...)
	m.unseen = true
	m.mu.Unlock()

	m.notify()
	return true
}

// RemoveMessage drops the message with localID from a session.
func (m *Manager) RemoveMessage(sessionID, localID string) bool {
	m.mu.Lock()
	i := model.FindSession(m.sessions, sessionID)
	if i < 0 {
		m.mu.Unlock()
		return false
	}
	s := &m.sessions[i]
	if j := s.FindMessage(localID); j >= 0 {
		s.Messages = append(s.Messages[:j:j], s.Messages[j+1:]...)
	}
	m.mu.Unlock()

	m.notify()
	return true
}

// ConfirmSession clears the draft flag after a successful round trip.
func (m *Manager) ConfirmSession(sessionID string) {
	m.mu.Lock()
	if i := model.FindSession(m.sessions, sessionID); i >= 0 {
		m.sessions[i].Draft = false
	}
	m.mu.Unlock()
}

// =============================================================================
// HISTORY MERGE
// =============================================================================

// merge folds a server listing into the session list. Server copies win
// on id collisions; drafts and sessions created here that the server does
// not list yet are kept. The session with a run in flight keeps its
// unconfirmed local messages on top of the server copy.
func (m *Manager) merge(server []model.Session) {
	// Runner first: lock order is runner then manager.
	runningID, running := m.runner.InFlight()

	m.mu.Lock()
	listed := make(map[string]struct{}, len(server))
	out := make([]model.Session, 0, len(server)+len(m.local))
	for _, s := range server {
		listed[s.ID] = struct{}{}
		if running && s.ID == runningID {
			if i := model.FindSession(m.sessions, s.ID); i >= 0 {
				s.Messages = carryPending(s.Messages, m.sessions[i].Messages)
			}
		}
		out = append(out, s)
	}
	for _, s := range m.sessions {
		if _, ok := listed[s.ID]; ok {
			continue
		}
		_, created := m.local[s.ID]
		if s.Draft || created {
			out = append(out, s)
		}
	}
	for id := range m.local {
		if _, ok := listed[id]; ok {
			delete(m.local, id)
		}
	}
	model.SortByRecency(out)
	m.sessions = out

	if m.selectedID != "" && model.FindSession(out, m.selectedID) < 0 {
		m.logger.Debug("selected session vanished after merge", "session_id", m.selectedID)
		m.selectedID = ""
	}
	m.mu.Unlock()

	m.notify()
}

// carryPending appends the trailing run of local-only messages, the ones
// the server has not seen yet, to a fresh copy of the server transcript.
func carryPending(server, local []model.Message) []model.Message {
	start := len(local)
	for start > 0 && local[start-1].LocalID != "" {
		start--
	}
	if start == len(local) {
		return server
	}
	out := make([]model.Message, 0, len(server)+len(local)-start)
	out = append(out, server...)
	return append(out, local[start:]...)
}
