// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shraga-tui/internal/export"
	"github.com/jeranaias/shraga-tui/internal/feedback"
	"github.com/jeranaias/shraga-tui/internal/model"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// These messages are sent by command handlers to update the application state.

// ShowHelpMsg triggers the help display.
type ShowHelpMsg struct {
	Topic string // Optional command for specific help
}

// StatusMsg is a transient one-line notice.
type StatusMsg struct {
	Text string
}

// ErrorMsg represents an error to display.
type ErrorMsg struct {
	Title   string
	Message string
	Tip     string
}

// SessionCreatedMsg indicates a new draft session was created and selected.
type SessionCreatedMsg struct {
	ID     string
	FlowID string
}

// SessionSelectedMsg indicates the selection changed.
type SessionSelectedMsg struct {
	ID string
}

// SessionRemovedMsg indicates a delete request finished.
type SessionRemovedMsg struct {
	ID    string
	Error error
}

// SessionListMsg carries the session list grouped by date.
type SessionListMsg struct {
	Groups     []model.DateGroup
	SelectedID string
}

// HistoryRefreshedMsg indicates a history reload finished.
type HistoryRefreshedMsg struct {
	Count int
	Error error
}

// ShowFlowsMsg carries the flow catalog.
type ShowFlowsMsg struct {
	Flows []model.Flow
	Error error
}

// PrefsMsg carries the effective preferences of the selected session.
type PrefsMsg struct {
	SessionID   string
	Flow        model.Flow
	Preferences model.Preferences
}

// ExportCompleteMsg indicates export completion.
type ExportCompleteMsg struct {
	Path  string
	Error error
}

// FeedbackCompleteMsg indicates a feedback submission finished.
type FeedbackCompleteMsg struct {
	SessionID string
	Position  int
	Verdict   model.Verdict
	Error     error
}

// ToggleTraceMsg flips trace rendering.
type ToggleTraceMsg struct{}

func errorCmd(title, message, tip string) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Title: title, Message: message, Tip: tip}
	}
}

func msgCmd(msg tea.Msg) tea.Cmd {
	return func() tea.Msg { return msg }
}

// requestTimeout bounds network calls made on behalf of a command.
func (c *Context) requestTimeout() time.Duration {
	if c.Config != nil && c.Config.Server.RequestTimeoutSecs > 0 {
		return c.Config.Server.RequestTimeout()
	}
	return 2 * time.Minute
}

func (c *Context) withTimeout() (context.Context, context.CancelFunc) {
	base := c.Ctx
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, c.requestTimeout())
}

// =============================================================================
// NAVIGATION
// =============================================================================

func handleHelp(ctx *Context, args []string) tea.Cmd {
	topic := ""
	if len(args) > 0 {
		topic = args[0]
	}
	return msgCmd(ShowHelpMsg{Topic: topic})
}

func handleQuit(ctx *Context, args []string) tea.Cmd {
	if ctx.Sessions != nil {
		ctx.Sessions.Abort()
	}
	return tea.Quit
}

// =============================================================================
// SESSIONS
// =============================================================================

// handleNew creates a draft session. With no flow argument it reuses the
// flow of the selected session, then falls back to the single default flow.
// Trailing key=value tokens override flow preferences.
func handleNew(ctx *Context, args []string) tea.Cmd {
	positional, assigns := splitAssignments(args)

	return func() tea.Msg {
		rctx, cancel := ctx.withTimeout()
		defer cancel()

		if _, err := ctx.Catalog.Fetch(rctx); err != nil {
			return ErrorMsg{Title: "Flows unavailable", Message: err.Error()}
		}

		flowID := ""
		if len(positional) > 0 {
			flowID = positional[0]
		} else if sel, ok := ctx.Sessions.Selected(); ok {
			flowID = sel.Flow.ID
		} else if cfg, err := ctx.Catalog.Configs(rctx); err == nil {
			flowID, _ = cfg.SingleDefaultFlow()
		}
		if flowID == "" {
			return ErrorMsg{Title: "No flow", Message: "no flow selected", Tip: "Usage: /new <flow>, see /flows"}
		}

		flow, ok := ctx.Catalog.Lookup(flowID)
		if !ok {
			return ErrorMsg{Title: "Unknown flow", Message: flowID, Tip: "See /flows for available flows"}
		}

		overrides, err := coerceOverrides(flow, assigns)
		if err != nil {
			return ErrorMsg{Title: "Invalid preference", Message: err.Error()}
		}
		id, err := ctx.Sessions.CreateSessionWithPreferences(flow, overrides)
		if err != nil {
			return ErrorMsg{Title: "Invalid preferences", Message: err.Error()}
		}
		return SessionCreatedMsg{ID: id, FlowID: flow.ID}
	}
}

func coerceOverrides(flow model.Flow, assigns map[string]string) (model.Preferences, error) {
	if len(assigns) == 0 {
		return nil, nil
	}
	out := make(model.Preferences, len(assigns))
	for key, raw := range assigns {
		spec, ok := flow.Preferences[key]
		if !ok {
			return nil, fmt.Errorf("flow %s has no preference %q", flow.ID, key)
		}
		v, err := model.CoercePreference(spec, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", key, err)
		}
		out[key] = v
	}
	return out, nil
}

func handleSessions(ctx *Context, args []string) tea.Cmd {
	state := ctx.Sessions.Snapshot()
	return msgCmd(SessionListMsg{
		Groups:     model.GroupByDate(state.Sessions, time.Now()),
		SelectedID: state.SelectedID,
	})
}

func handleSelect(ctx *Context, args []string) tea.Cmd {
	id, err := resolveSessionID(ctx, args[0])
	if err != nil {
		return errorCmd("Select failed", err.Error(), "See /sessions")
	}
	if err := ctx.Sessions.SelectSession(id); err != nil {
		return errorCmd("Select failed", err.Error(), "")
	}
	return msgCmd(SessionSelectedMsg{ID: id})
}

func handleRemove(ctx *Context, args []string) tea.Cmd {
	id, err := resolveSessionID(ctx, args[0])
	if err != nil {
		return errorCmd("Remove failed", err.Error(), "See /sessions")
	}
	return func() tea.Msg {
		rctx, cancel := ctx.withTimeout()
		defer cancel()
		return SessionRemovedMsg{ID: id, Error: ctx.Sessions.RemoveSession(rctx, id)}
	}
}

func handleRefresh(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		rctx, cancel := ctx.withTimeout()
		defer cancel()
		if err := ctx.Sessions.RefreshHistory(rctx); err != nil {
			return HistoryRefreshedMsg{Error: err}
		}
		return HistoryRefreshedMsg{Count: len(ctx.Sessions.Snapshot().Sessions)}
	}
}

// Session reference errors.
var (
	ErrNoMatch   = errors.New("no matching session")
	ErrAmbiguous = errors.New("ambiguous session reference")
)

// resolveSessionID accepts a full ID or a unique prefix.
func resolveSessionID(ctx *Context, ref string) (string, error) {
	var matches []string
	for _, s := range ctx.Sessions.Snapshot().Sessions {
		if s.ID == ref {
			return s.ID, nil
		}
		if strings.HasPrefix(s.ID, ref) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrNoMatch, ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%w: %q matches %d sessions", ErrAmbiguous, ref, len(matches))
	}
}

func handleExport(ctx *Context, args []string) tea.Cmd {
	format := "md"
	if len(args) > 0 {
		format = strings.ToLower(args[0])
	}
	sess, ok := ctx.Sessions.Selected()
	if !ok {
		return errorCmd("Export failed", "no session selected", "")
	}

	return func() tea.Msg {
		opts := export.DefaultOptions()
		if ctx.ExportDir != "" {
			opts.OutputDir = ctx.ExportDir
		}
		if ctx.Config != nil {
			opts.IncludeTrace = ctx.Config.UI.ShowTrace
		}
		exporter, err := export.ForFormat(format, opts)
		if err != nil {
			return ExportCompleteMsg{Error: err}
		}
		path, err := export.ToFile(sess, exporter, opts)
		return ExportCompleteMsg{Path: path, Error: err}
	}
}

// =============================================================================
// CONVERSATION
// =============================================================================

func handleAbort(ctx *Context, args []string) tea.Cmd {
	ctx.Sessions.Abort()
	return msgCmd(StatusMsg{Text: "Abort requested"})
}

// handleFeedback rates the latest bot reply that has a server position.
// The verdict is marked optimistically and restored when the submit fails.
func handleFeedback(ctx *Context, args []string) tea.Cmd {
	verdict := model.VerdictThumbsUp
	if strings.EqualFold(args[0], "down") {
		verdict = model.VerdictThumbsDown
	}
	comment := strings.Join(args[1:], " ")

	sess, ok := ctx.Sessions.Selected()
	if !ok {
		return errorCmd("Feedback failed", "no session selected", "")
	}
	msg, ok := latestRateable(sess)
	if !ok {
		return errorCmd("Feedback failed", "no bot reply to rate", "")
	}
	pos := *msg.Position

	var prev model.Verdict
	if ctx.Marks != nil {
		prev = ctx.Marks.Set(sess.ID, pos, verdict)
	}

	return func() tea.Msg {
		rctx, cancel := ctx.withTimeout()
		defer cancel()
		err := ctx.Feedback.Submit(rctx, verdict, sess, msg, feedback.Options{
			OnError: func(error) {
				if ctx.Marks != nil {
					ctx.Marks.Restore(sess.ID, pos, prev)
				}
			},
		}, comment)
		return FeedbackCompleteMsg{SessionID: sess.ID, Position: pos, Verdict: verdict, Error: err}
	}
}

func latestRateable(s model.Session) (model.Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if m.IsSystem() && !m.Error && m.Position != nil {
			return m, true
		}
	}
	return model.Message{}, false
}

func handleTrace(ctx *Context, args []string) tea.Cmd {
	return msgCmd(ToggleTraceMsg{})
}

// =============================================================================
// FLOWS
// =============================================================================

func handleFlows(ctx *Context, args []string) tea.Cmd {
	return func() tea.Msg {
		rctx, cancel := ctx.withTimeout()
		defer cancel()
		list, err := ctx.Catalog.Fetch(rctx)
		if err != nil {
			return ShowFlowsMsg{Error: err}
		}
		sorted := append([]model.Flow(nil), list...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
		return ShowFlowsMsg{Flows: sorted}
	}
}

func handlePrefs(ctx *Context, args []string) tea.Cmd {
	sess, ok := ctx.Sessions.Selected()
	if !ok {
		return errorCmd("No session", "no session selected", "Start one with /new")
	}
	return msgCmd(PrefsMsg{SessionID: sess.ID, Flow: sess.Flow, Preferences: sess.Preferences})
}

// =============================================================================
// HELP TEXT
// =============================================================================

var categoryOrder = []string{"Navigation", "Sessions", "Conversation", "Flows", "General"}

// GenerateHelpText renders help for one command, or for all of them when
// topic is empty.
func GenerateHelpText(r *Registry, topic string) string {
	if topic != "" {
		if !strings.HasPrefix(topic, "/") {
			topic = "/" + topic
		}
		cmd := r.Get(topic)
		if cmd == nil {
			return fmt.Sprintf("Unknown command: %s", topic)
		}
		return commandHelp(cmd)
	}

	var sb strings.Builder
	groups := r.ByCategory()
	for _, category := range categoryOrder {
		cmds := groups[category]
		if len(cmds) == 0 {
			continue
		}
		sb.WriteString(category + "\n")
		for _, cmd := range cmds {
			usage := cmd.Usage
			if usage == "" {
				usage = cmd.Name
			}
			sb.WriteString(fmt.Sprintf("  %-32s %s\n", usage, cmd.Description))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Start a message with // to send a literal slash.")
	return sb.String()
}

func commandHelp(cmd *Command) string {
	var sb strings.Builder
	sb.WriteString(cmd.Name + ": " + cmd.Description + "\n")
	if cmd.Usage != "" {
		sb.WriteString("Usage: " + cmd.Usage + "\n")
	}
	if len(cmd.Aliases) > 0 {
		sb.WriteString("Aliases: " + strings.Join(cmd.Aliases, ", ") + "\n")
	}
	for _, arg := range cmd.Args {
		req := "optional"
		if arg.Required {
			req = "required"
		}
		line := fmt.Sprintf("  %s (%s) %s", arg.Name, req, arg.Description)
		if len(arg.Values) > 0 {
			line += ": " + strings.Join(arg.Values, "|")
		}
		sb.WriteString(line + "\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
