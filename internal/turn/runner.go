// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package turn

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
)

// DefaultTimeout is the ceiling for one flow run.
const DefaultTimeout = 300 * time.Second

// Texts of the in-band messages appended by the runner.
const (
	AbortedText     = "The request was aborted."
	TimedOutText    = "The server failed to respond in time. Please try again later."
	ServerErrorText = "An error occurred"
)

var (
	// ErrAborted is the cancellation cause of a run that was aborted or
	// displaced by a newer run.
	ErrAborted = errors.New("request aborted")

	// ErrTimeout is the cancellation cause of a run that hit the turn
	// ceiling.
	ErrTimeout = errors.New("request timed out")
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Ledger stores session transcripts. Methods report false when the
// session no longer exists.
type Ledger interface {
	AppendMessage(sessionID string, msg model.Message) bool
	RemoveMessage(sessionID, localID string) bool
	ConfirmSession(sessionID string)
}

// Transport performs the flow-run call.
type Transport interface {
	RunFlow(ctx context.Context, req api.RunRequest) (*api.RunResponse, error)
}

// Request is one question for one session.
//
// Session is a snapshot taken before the question is appended. Its
// Preferences are sent as-is, so callers pass effective preferences.
type Request struct {
	Session model.Session
	Text    string
	RTL     bool
}

// =============================================================================
// OUTCOME
// =============================================================================

// Outcome is how a run ended.
type Outcome int

const (
	// OutcomeReplied means the bot reply was appended.
	OutcomeReplied Outcome = iota
	// OutcomeServerError means an in-band error message was appended.
	OutcomeServerError
	// OutcomeAborted means the run was cancelled or displaced.
	OutcomeAborted
	// OutcomeTimedOut means the run hit the turn ceiling.
	OutcomeTimedOut
	// OutcomeClientError means the server rejected the question (HTTP 400).
	// The user message stays and nothing is appended.
	OutcomeClientError
	// OutcomeFailed means the call failed and the user message was
	// rolled back.
	OutcomeFailed
	// OutcomeDiscarded means the session vanished; nothing was recorded.
	OutcomeDiscarded
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeReplied:
		return "replied"
	case OutcomeServerError:
		return "server_error"
	case OutcomeAborted:
		return "aborted"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeClientError:
		return "client_error"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Succeeded reports whether the run ended on the success path, meaning
// something was appended to the session and the caller's success handler
// should run.
func (o Outcome) Succeeded() bool {
	switch o {
	case OutcomeReplied, OutcomeServerError, OutcomeAborted, OutcomeTimedOut:
		return true
	default:
		return false
	}
}

// =============================================================================
// RUNNER
// =============================================================================

// token identifies one in-flight run.
type token struct {
	id        uint64
	sessionID string
	cancel    context.CancelCauseFunc
}

// Runner owns the single in-flight flow run.
//
// RELIABILITY: ledger calls are made while holding mu so that a newer run
// always cancels an older one before the older one can record a reply.
// Lock order is runner then ledger; ledgers must never call back into the
// runner while holding their own locks.
type Runner struct {
	transport Transport
	timeout   time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	gen     uint64
	current *token

	// Hooks for tests.
	now   func() time.Time
	newID func() string
}

// NewRunner creates a runner. A non-positive timeout uses DefaultTimeout.
func NewRunner(transport Transport, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{
		transport: transport,
		timeout:   timeout,
		logger:    logging.OrDefault(logger),
		now:       time.Now,
		newID:     uuid.NewString,
	}
}

// Run sends req and records the result in ledger.
//
// The returned error is non-nil only for OutcomeClientError and
// OutcomeFailed.
func (r *Runner) Run(ctx context.Context, ledger Ledger, req Request) (Outcome, error) {
	sess := req.Session
	ctx = logging.WithAttrs(ctx, "session_id", sess.ID, "flow_id", sess.Flow.ID)
	log := logging.FromContext(ctx, r.logger)

	user := model.NewUserMessage(req.Text, req.RTL, r.now())
	user.LocalID = r.newID()
	position := sess.NextPosition()

	body := api.RunRequest{
		Question:    req.Text,
		FlowID:      sess.Flow.ID,
		Preferences: sess.Preferences,
		ChatID:      sess.ID,
		Position:    position,
		ChatHistory: model.HistoryOf(sess.Messages),
	}

	callCtx, tok, release := r.begin(ctx, ledger, sess.ID, user)
	if tok == nil {
		log.Debug("session gone before run started")
		return OutcomeDiscarded, nil
	}
	defer release()

	started := r.now()
	resp, err := r.transport.RunFlow(callCtx, body)

	outcome, err := r.complete(callCtx, ledger, tok, req, user.LocalID, position, resp, err)
	log.Info("flow run finished",
		"run", tok.id,
		"outcome", outcome.String(),
		"position", position,
		"duration", r.now().Sub(started).Round(time.Millisecond),
	)
	return outcome, err
}

// Abort cancels the in-flight run, if any.
func (r *Runner) Abort() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil {
		r.current.cancel(ErrAborted)
	}
}

// CancelUnless cancels the in-flight run unless it belongs to sessionID.
func (r *Runner) CancelUnless(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current != nil && r.current.sessionID != sessionID {
		r.current.cancel(ErrAborted)
	}
}

// InFlight returns the session of the in-flight run.
func (r *Runner) InFlight() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return "", false
	}
	return r.current.sessionID, true
}

// begin displaces the previous run, appends the optimistic user message
// and installs a new token. A nil token means the session is gone.
func (r *Runner) begin(ctx context.Context, ledger Ledger, sessionID string, user model.Message) (context.Context, *token, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.current != nil {
		r.current.cancel(ErrAborted)
		r.current = nil
	}
	if !ledger.AppendMessage(sessionID, user) {
		return nil, nil, nil
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	callCtx, stop := context.WithTimeoutCause(runCtx, r.timeout, ErrTimeout)

	r.gen++
	tok := &token{id: r.gen, sessionID: sessionID, cancel: cancel}
	r.current = tok

	return callCtx, tok, func() {
		stop()
		cancel(nil)
	}
}

// complete classifies a finished call and records it.
func (r *Runner) complete(
	ctx context.Context,
	ledger Ledger,
	tok *token,
	req Request,
	localID string,
	position int,
	resp *api.RunResponse,
	callErr error,
) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	displaced := r.current != tok
	if !displaced {
		r.current = nil
	}
	sessionID := tok.sessionID

	// A cancelled run never records a reply, even one that arrived.
	if cause := context.Cause(ctx); displaced || cause != nil {
		outcome, text := OutcomeAborted, AbortedText
		if errors.Is(cause, ErrTimeout) || errors.Is(cause, context.DeadlineExceeded) {
			outcome, text = OutcomeTimedOut, TimedOutText
		}
		return r.record(ledger, sessionID, outcome, r.errorMessage(text, req.RTL))
	}

	if callErr != nil {
		var apiErr *api.APIError
		if errors.As(callErr, &apiErr) {
			if apiErr.Status == http.StatusBadRequest {
				return OutcomeClientError, callErr
			}
			text := apiErr.Detail
			if text == "" {
				text = ServerErrorText
			}
			msg := r.errorMessage(text, req.RTL)
			msg.Trace = apiErr.Trace
			msg.Payload = apiErr.Payload
			return r.record(ledger, sessionID, OutcomeServerError, msg)
		}

		if !ledger.RemoveMessage(sessionID, localID) {
			return OutcomeDiscarded, nil
		}
		return OutcomeFailed, callErr
	}

	reply := model.NewSystemMessage(resp.ResponseText, position+1, r.now())
	reply.FlowID = req.Session.Flow.ID
	reply.RTL = req.RTL
	reply.AllowReply = resp.AllowReply
	reply.RetrievalResults = resp.RetrievalResults
	reply.Trace = resp.Trace
	reply.Payload = resp.Payload

	outcome, err := r.record(ledger, sessionID, OutcomeReplied, reply)
	if outcome == OutcomeReplied {
		ledger.ConfirmSession(sessionID)
	}
	return outcome, err
}

func (r *Runner) record(ledger Ledger, sessionID string, outcome Outcome, msg model.Message) (Outcome, error) {
	if !ledger.AppendMessage(sessionID, msg) {
		return OutcomeDiscarded, nil
	}
	return outcome, nil
}

func (r *Runner) errorMessage(text string, rtl bool) model.Message {
	return model.Message{
		Text:      text,
		Type:      model.MsgSystem,
		Timestamp: model.NewTimestamp(r.now()),
		RTL:       rtl,
		Error:     true,
	}
}
