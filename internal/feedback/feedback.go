// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
)

var (
	// ErrNoPosition is returned for messages the server has not numbered.
	ErrNoPosition = errors.New("message has no position")

	// ErrInvalidVerdict is returned for verdicts other than thumbs up/down.
	ErrInvalidVerdict = errors.New("invalid verdict")
)

// Submitter posts feedback. Satisfied by *api.Client.
type Submitter interface {
	SubmitFeedback(ctx context.Context, req api.FeedbackRequest) error
}

// Options carries the callbacks of one submission.
type Options struct {
	OnSuccess func()
	OnError   func(error)
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator submits feedback for one message at a time.
type Orchestrator struct {
	submitter Submitter
	logger    *slog.Logger
}

// New creates an orchestrator.
func New(submitter Submitter, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{submitter: submitter, logger: logging.OrDefault(logger)}
}

// Submit rates msg of session s and calls exactly one of the callbacks.
// The returned error is the one passed to OnError.
func (o *Orchestrator) Submit(ctx context.Context, verdict model.Verdict, s model.Session, msg model.Message, opts Options, freeText string) error {
	err := o.submit(ctx, verdict, s, msg, strings.TrimSpace(freeText))
	if err != nil {
		logging.FromContext(ctx, o.logger).Warn("feedback failed",
			"session_id", s.ID, "verdict", string(verdict), "error", err)
		if opts.OnError != nil {
			opts.OnError(err)
		}
		return err
	}
	if opts.OnSuccess != nil {
		opts.OnSuccess()
	}
	return nil
}

func (o *Orchestrator) submit(ctx context.Context, verdict model.Verdict, s model.Session, msg model.Message, freeText string) error {
	if !verdict.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, verdict)
	}
	if msg.Position == nil {
		return ErrNoPosition
	}
	return o.submitter.SubmitFeedback(ctx, api.FeedbackRequest{
		ChatID:       s.ID,
		UserID:       s.UserID,
		FlowID:       s.Flow.ID,
		Position:     *msg.Position,
		Feedback:     verdict,
		FeedbackText: freeText,
	})
}

// =============================================================================
// OPTIMISTIC MARKS
// =============================================================================

type markKey struct {
	sessionID string
	position  int
}

// Marks holds verdicts shown before the server confirms them.
type Marks struct {
	mu    sync.Mutex
	marks map[markKey]model.Verdict
}

// NewMarks creates an empty set.
func NewMarks() *Marks {
	return &Marks{marks: make(map[markKey]model.Verdict)}
}

// Get returns the verdict shown for a message, or "".
func (m *Marks) Get(sessionID string, position int) model.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marks[markKey{sessionID, position}]
}

// Set records v and returns the previous verdict.
func (m *Marks) Set(sessionID string, position int, v model.Verdict) model.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := markKey{sessionID, position}
	prev := m.marks[k]
	m.marks[k] = v
	return prev
}

// Restore puts back a verdict returned by Set. An empty verdict clears
// the mark.
func (m *Marks) Restore(sessionID string, position int, prev model.Verdict) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := markKey{sessionID, position}
	if prev == "" {
		delete(m.marks, k)
		return
	}
	m.marks[k] = prev
}
