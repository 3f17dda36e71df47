// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/shraga-tui/internal/model"
)

// =============================================================================
// STARTUP HYDRATION
// =============================================================================

// HydrateResult tells the caller what startup hydration did.
type HydrateResult int

const (
	// HydrateSkipped means hydration already ran or a session is selected.
	HydrateSkipped HydrateResult = iota
	// HydrateCreated means a draft session was created and selected.
	HydrateCreated
	// HydrateNeedsEditor means no flow could be chosen automatically; the
	// caller should let the user pick one.
	HydrateNeedsEditor
)

// String returns the result name used in logs.
func (r HydrateResult) String() string {
	switch r {
	case HydrateSkipped:
		return "skipped"
	case HydrateCreated:
		return "created"
	case HydrateNeedsEditor:
		return "needs_editor"
	default:
		return "unknown"
	}
}

// Hydration is the result of Hydrate.
type Hydration struct {
	Result    HydrateResult
	SessionID string
}

// Hydrate loads the flow catalog, UI configuration and history together
// and picks a starting session:
//
//   - with history, a new draft on the flow of the most recent session;
//   - otherwise a new draft on the single configured default flow, when
//     the catalog knows it;
//   - otherwise HydrateNeedsEditor.
//
// It runs once. A failed load leaves it free to run again.
func (m *Manager) Hydrate(ctx context.Context) (Hydration, error) {
	m.mu.Lock()
	if m.hydrated || m.hydrating || m.selectedID != "" {
		m.mu.Unlock()
		return Hydration{Result: HydrateSkipped}, nil
	}
	m.hydrating = true
	m.mu.Unlock()

	var (
		cfg     *model.UIConfig
		history []model.Session
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := m.catalog.Fetch(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		cfg, err = m.catalog.Configs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = m.history.Fetch(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		m.mu.Lock()
		m.hydrating = false
		m.mu.Unlock()
		return Hydration{}, fmt.Errorf("hydrate: %w", err)
	}

	m.merge(history)

	m.mu.Lock()
	m.hydrating = false
	if m.selectedID != "" {
		// The user picked a session while we were loading.
		m.hydrated = true
		m.mu.Unlock()
		return Hydration{Result: HydrateSkipped}, nil
	}
	m.hydrated = true
	m.mu.Unlock()

	flow, ok := m.startFlow(history, cfg)
	if !ok {
		m.logger.Info("no starting flow, session editor needed")
		return Hydration{Result: HydrateNeedsEditor}, nil
	}
	id := m.CreateSession(flow)
	m.logger.Info("hydrated", "session_id", id, "flow_id", flow.ID)
	return Hydration{Result: HydrateCreated, SessionID: id}, nil
}

func (m *Manager) startFlow(history []model.Session, cfg *model.UIConfig) (model.Flow, bool) {
	if len(history) > 0 {
		recent := append([]model.Session(nil), history...)
		model.SortByRecency(recent)
		id := recent[0].Flow.ID
		if f, ok := m.catalog.Lookup(id); ok {
			return f, true
		}
		return model.Flow{ID: id}, true
	}

	if cfg == nil || cfg.MultipleDefaultFlows() {
		return model.Flow{}, false
	}
	id, ok := cfg.SingleDefaultFlow()
	if !ok {
		return model.Flow{}, false
	}
	return m.catalog.Lookup(id)
}
