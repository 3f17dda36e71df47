// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/shraga-tui/internal/commands"
	"github.com/jeranaias/shraga-tui/internal/history"
	"github.com/jeranaias/shraga-tui/internal/session"
	"github.com/jeranaias/shraga-tui/internal/turn"
	"github.com/jeranaias/shraga-tui/internal/util"
)

// Update handles messages and user input.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StateChangedMsg:
		m.syncState()
		return m, waitForChange(m.changes)

	case HydratedMsg:
		return m.handleHydrated(msg)

	case ConfigsMsg:
		m.uiConfig = msg.Config
		m.input.Placeholder = msg.Config.Placeholder()
		if m.deps.Config.UI.MaxInputLength == 0 {
			m.input.CharLimit = msg.Config.MaxInput()
		}
		return m, nil

	case SendDoneMsg:
		return m.handleSendDone(msg), nil

	case loadingTickMsg:
		if !m.pending || msg.gen != m.loadingGen {
			return m, nil
		}
		m.loadingStep++
		return m, loadingTick(msg.gen)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if handled, cmd := m.handleCommandMsg(msg); handled {
		return m, cmd
	}
	return m, nil
}

// =============================================================================
// STATE
// =============================================================================

func (m *Model) syncState() {
	prevSel := m.state.SelectedID
	m.state = m.deps.Sessions.Snapshot()
	m.canReply = m.deps.Sessions.CanReplyToBot()
	if m.state.SelectedID != prevSel {
		m.atBottom = true
	}
	m.refreshTranscript()
	if m.state.HasUnseenUpdate && m.atBottom {
		m.deps.Sessions.AckUpdate()
	}
}

func (m Model) handleHydrated(msg HydratedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.logger.Warn("hydration failed", "error", msg.Err)
		if errors.Is(msg.Err, history.ErrUnauthenticated) {
			m.setNotice("Not signed in. Run 'shraga auth set' and restart.", true)
		} else {
			m.setNotice("Could not load sessions: "+msg.Err.Error(), true)
		}
		return m, nil
	}

	m.syncState()
	switch msg.Hydration.Result {
	case session.HydrateCreated:
		if sel, ok := m.state.Selected(); ok {
			m.setNotice("Ready on flow "+sel.Flow.ID, false)
		}
	case session.HydrateNeedsEditor:
		m.setNotice("Pick a flow with /new <flow>", false)
		return m, m.registry.Execute(m.cmdCtx, "/flows")
	}
	return m, nil
}

func (m Model) handleSendDone(msg SendDoneMsg) Model {
	if msg.SessionID == m.pendingID {
		m.pending = false
		m.pendingID = ""
		m.loadingGen++
	}

	switch msg.Outcome {
	case turn.OutcomeReplied, turn.OutcomeServerError, turn.OutcomeDiscarded:
		m.clearNotice()
	case turn.OutcomeAborted:
		m.setNotice("Request aborted", false)
	case turn.OutcomeTimedOut:
		m.setNotice("Request timed out", true)
	case turn.OutcomeClientError:
		m.setNotice("Rejected: "+errText(msg.Err), true)
	case turn.OutcomeFailed:
		m.setNotice("Request failed: "+errText(msg.Err), true)
	}
	m.syncState()
	return m
}

func errText(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// =============================================================================
// KEYS
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.deps.Sessions.Abort()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Abort):
		switch {
		case m.completion.Visible:
			m.completion.Clear()
		case m.panel != "":
			m.panel = ""
			m.layout()
		case m.pending:
			m.deps.Sessions.Abort()
			m.setNotice("Aborting...", false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Complete):
		m.complete(false)
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.CompletePrv):
		m.complete(true)
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.completion.Visible && commands.GetPartialCommand(m.input.Value()) != "" {
			m.acceptCompletion()
			return m, nil
		}
		return m.submit()

	case key.Matches(msg, m.keys.NextSession):
		return m, m.cycleSession(1)

	case key.Matches(msg, m.keys.PrevSession):
		return m, m.cycleSession(-1)

	case key.Matches(msg, m.keys.NewSession):
		return m, m.registry.Execute(m.cmdCtx, "/new")

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		m.atBottom = m.viewport.AtBottom()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		m.atBottom = m.viewport.AtBottom()
		if m.atBottom && m.state.HasUnseenUpdate {
			m.deps.Sessions.AckUpdate()
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleTrace):
		m.toggleTrace()
		return m, nil

	case key.Matches(msg, m.keys.Help):
		if m.panel != "" {
			m.panel = ""
		} else {
			m.panel = commands.GenerateHelpText(m.registry, "") + "\n\n" + m.keyHelp()
		}
		m.layout()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.updateCompletion()
	m.layout()
	return m, cmd
}

// submit runs a slash command or sends the composer text to the selected
// session.
func (m Model) submit() (tea.Model, tea.Cmd) {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return m, nil
	}

	if commands.IsCommand(text) {
		m.input.Reset()
		m.completion.Clear()
		return m, m.registry.Execute(m.cmdCtx, text)
	}

	if m.pending {
		m.setNotice("Wait for the reply or press Esc to abort", true)
		return m, nil
	}
	sel, ok := m.state.Selected()
	if !ok {
		m.setNotice("No session. Start one with /new <flow>", true)
		return m, nil
	}

	text = commands.Unescape(text)
	m.input.Reset()
	m.clearNotice()
	m.pending = true
	m.pendingID = sel.ID
	m.loadingGen++
	m.loadingStep = 0
	m.atBottom = true
	m.layout()

	return m, tea.Batch(m.send(sel.ID, text, util.IsRTL(text)), loadingTick(m.loadingGen))
}

// cycleSession selects the next or previous session in list order.
func (m *Model) cycleSession(dir int) tea.Cmd {
	list := m.state.Sessions
	if len(list) == 0 {
		return nil
	}
	idx := 0
	for i, s := range list {
		if s.ID == m.state.SelectedID {
			idx = (i + dir + len(list)) % len(list)
			break
		}
	}
	id := list[idx].ID
	if err := m.deps.Sessions.SelectSession(id); err != nil {
		m.setNotice(err.Error(), true)
		return nil
	}
	m.panel = ""
	m.atBottom = true
	m.syncState()
	return nil
}

func (m *Model) toggleTrace() {
	m.showTrace = !m.showTrace
	if m.showTrace {
		m.setNotice("Traces shown", false)
	} else {
		m.setNotice("Traces hidden", false)
	}
	m.refreshTranscript()
}

// =============================================================================
// COMPLETION
// =============================================================================

func (m *Model) complete(prev bool) {
	if m.completion.Visible {
		if prev {
			m.completion.Prev()
		} else {
			m.completion.Next()
		}
		return
	}
	value := m.input.Value()
	comps := m.completer.Complete(value, m.input.Position())
	m.completion.Update(value, comps)
	if len(comps) == 1 {
		m.acceptCompletion()
	}
}

func (m *Model) updateCompletion() {
	if !m.completion.Visible {
		return
	}
	value := m.input.Value()
	if !commands.IsCommand(value) {
		m.completion.Clear()
		return
	}
	m.completion.Update(value, m.completer.Complete(value, m.input.Position()))
}

// acceptCompletion replaces the token under completion with the selected
// value.
func (m *Model) acceptCompletion() {
	choice := m.completion.Accept()
	if choice == "" {
		return
	}
	value := m.input.Value()
	prefix := ""
	if commands.GetPartialCommand(value) == "" {
		if i := strings.LastIndexAny(value, " \t"); i >= 0 {
			prefix = value[:i+1]
		}
	}
	m.input.SetValue(prefix + choice + " ")
	m.input.CursorEnd()
	m.completion.Clear()
}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

func (m *Model) handleCommandMsg(msg tea.Msg) (bool, tea.Cmd) {
	switch msg := msg.(type) {
	case commands.ShowHelpMsg:
		m.panel = commands.GenerateHelpText(m.registry, msg.Topic)
		if msg.Topic == "" {
			m.panel += "\n\n" + m.keyHelp()
		}

	case commands.StatusMsg:
		m.setNotice(msg.Text, false)

	case commands.ErrorMsg:
		text := msg.Title
		if msg.Message != "" {
			text += ": " + msg.Message
		}
		if msg.Tip != "" {
			text += " (" + msg.Tip + ")"
		}
		m.setNotice(text, true)

	case commands.SessionCreatedMsg:
		m.panel = ""
		m.setNotice("New session on "+msg.FlowID, false)
		m.syncState()

	case commands.SessionSelectedMsg:
		m.panel = ""
		m.syncState()

	case commands.SessionRemovedMsg:
		if msg.Error != nil {
			m.setNotice("Remove failed: "+msg.Error.Error(), true)
		} else {
			m.setNotice("Removed "+msg.ID, false)
		}

	case commands.HistoryRefreshedMsg:
		if msg.Error != nil {
			m.setNotice("Refresh failed: "+msg.Error.Error(), true)
		} else {
			m.setNotice(fmt.Sprintf("%d sessions", msg.Count), false)
		}

	case commands.SessionListMsg:
		m.panel = m.renderSessionList(msg)

	case commands.ShowFlowsMsg:
		if msg.Error != nil {
			m.setNotice("Flows unavailable: "+msg.Error.Error(), true)
			break
		}
		m.panel = renderFlows(msg.Flows)

	case commands.PrefsMsg:
		m.panel = renderPrefs(msg)

	case commands.ExportCompleteMsg:
		if msg.Error != nil {
			m.setNotice("Export failed: "+msg.Error.Error(), true)
		} else {
			m.setNotice("Exported to "+msg.Path, false)
		}

	case commands.FeedbackCompleteMsg:
		if msg.Error != nil {
			m.setNotice("Feedback failed: "+msg.Error.Error(), true)
		} else {
			m.setNotice("Thanks for the feedback", false)
		}
		m.refreshTranscript()

	case commands.ToggleTraceMsg:
		m.toggleTrace()

	default:
		return false, nil
	}
	m.layout()
	return true, nil
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

func (m *Model) clearNotice() {
	m.notice = ""
	m.noticeErr = false
}
