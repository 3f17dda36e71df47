// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/api/apitest"
	"github.com/jeranaias/shraga-tui/internal/commands"
	"github.com/jeranaias/shraga-tui/internal/credential"
	"github.com/jeranaias/shraga-tui/internal/feedback"
	"github.com/jeranaias/shraga-tui/internal/flows"
	"github.com/jeranaias/shraga-tui/internal/history"
	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/session"
	"github.com/jeranaias/shraga-tui/internal/turn"
	"github.com/jeranaias/shraga-tui/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *apitest.Server {
	t.Helper()
	srv := apitest.New(t)
	srv.SetFlows(
		model.Flow{ID: "f1", Description: "Knowledge base", Preferences: map[string]model.PreferenceSpec{
			model.HistoryWindowKey: {Default: 3},
		}},
		model.Flow{ID: "f0", Description: "Single shot"},
	)
	return srv
}

func newTestModel(t *testing.T, srv *apitest.Server) Model {
	t.Helper()
	client := api.NewClient(srv.URL, credential.Static("Bearer test"))
	catalog := flows.NewCatalog(client, nil)
	cache := history.NewCache(client, credential.Static("Bearer test"), nil)
	mgr := session.NewManager(turn.NewRunner(client, 0, nil), cache, catalog, nil)
	t.Cleanup(mgr.Close)

	m := New(styles.NewTheme("dark"), Deps{
		Ctx:      context.Background(),
		Sessions: mgr,
		Catalog:  catalog,
		Feedback: feedback.New(client, nil),
		User:     "tester",
	})
	return update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func hydrated(t *testing.T, srv *apitest.Server, flowID string) Model {
	t.Helper()
	srv.SetConfigs(model.UIConfig{DefaultFlow: model.FlowList{flowID}})
	m := newTestModel(t, srv)
	m = update(t, m, m.hydrate()())
	_, ok := m.state.Selected()
	require.True(t, ok, "hydration should select a session")
	return m
}

// submit types text and presses enter. It returns the send command of the
// resulting batch, or the command itself when text is a slash command.
func submit(t *testing.T, m Model, text string) (Model, tea.Cmd) {
	t.Helper()
	m.input.SetValue(text)
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	out := next.(Model)
	if cmd == nil {
		return out, nil
	}
	if commands.IsCommand(text) {
		return out, cmd
	}
	batch, ok := cmd().(tea.BatchMsg)
	require.True(t, ok, "send should batch the run with the loading ticker")
	require.NotEmpty(t, batch)
	return out, batch[0]
}

// =============================================================================
// HYDRATION
// =============================================================================

func TestHydrate_CreatesDefaultSession(t *testing.T) {
	srv := newTestServer(t)
	m := hydrated(t, srv, "f1")

	sel, _ := m.state.Selected()
	assert.Equal(t, "f1", sel.Flow.ID)
	assert.True(t, sel.Draft)
	assert.Contains(t, m.Notice(), "f1")
	assert.Contains(t, m.View(), "f1")
}

func TestHydrate_NeedsEditorShowsFlows(t *testing.T) {
	srv := newTestServer(t)
	srv.SetConfigs(model.UIConfig{ListFlows: true})
	m := newTestModel(t, srv)

	next, cmd := m.Update(m.hydrate()())
	m = next.(Model)
	require.NotNil(t, cmd)
	assert.Contains(t, m.Notice(), "/new")

	m = update(t, m, cmd())
	view := m.View()
	assert.Contains(t, view, "Flows:")
	assert.Contains(t, view, "Knowledge base")
}

func TestHydrate_Unauthenticated(t *testing.T) {
	srv := newTestServer(t)
	m := newTestModel(t, srv)

	m = update(t, m, HydratedMsg{Err: history.ErrUnauthenticated})
	assert.Contains(t, m.Notice(), "Not signed in")
	assert.True(t, m.noticeErr)
}

// =============================================================================
// SENDING
// =============================================================================

func TestSubmit_SendsAndRendersReply(t *testing.T) {
	srv := newTestServer(t)
	m := hydrated(t, srv, "f1")

	m, send := submit(t, m, "what is shraga")
	require.NotNil(t, send)
	assert.True(t, m.Pending())
	assert.Equal(t, "", m.input.Value())

	done, ok := send().(SendDoneMsg)
	require.True(t, ok)
	assert.Equal(t, turn.OutcomeReplied, done.Outcome)
	require.NoError(t, done.Err)

	m = update(t, m, done)
	assert.False(t, m.Pending())

	view := m.View()
	assert.Contains(t, view, "[User]")
	assert.Contains(t, view, "[Bot]")
	assert.Equal(t, 2, strings.Count(m.lastRender, "shraga"))

	runs := srv.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "f1", runs[0].FlowID)
}

func TestSubmit_WithoutSession(t *testing.T) {
	srv := newTestServer(t)
	m := newTestModel(t, srv)

	m, cmd := submit(t, m, "hello")
	assert.Nil(t, cmd)
	assert.Contains(t, m.Notice(), "/new")
	assert.Empty(t, srv.Runs())
}

func TestSubmit_WhilePending(t *testing.T) {
	srv := newTestServer(t)
	m := hydrated(t, srv, "f1")

	m, send := submit(t, m, "first")
	require.NotNil(t, send)

	m, again := submit(t, m, "second")
	assert.Nil(t, again)
	assert.Contains(t, m.Notice(), "Esc")
	assert.Equal(t, "second", m.input.Value())
}

func TestSubmit_EscapedSlash(t *testing.T) {
	srv := newTestServer(t)
	m := hydrated(t, srv, "f1")

	m, send := submit(t, m, "//etc/hosts")
	require.NotNil(t, send)
	m = update(t, m, send())

	runs := srv.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "/etc/hosts", runs[0].Question)
}

func TestEsc_AbortsPendingRun(t *testing.T) {
	srv := newTestServer(t)
	gate := apitest.NewGate(t)
	srv.SetRun(gate.Handler())
	m := hydrated(t, srv, "f1")

	m, send := submit(t, m, "slow question")
	require.NotNil(t, send)

	result := make(chan tea.Msg, 1)
	go func() { result <- send() }()

	select {
	case <-gate.Started:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached the server")
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	var done SendDoneMsg
	select {
	case msg := <-result:
		done = msg.(SendDoneMsg)
	case <-time.After(5 * time.Second):
		t.Fatal("abort did not finish the run")
	}
	assert.Equal(t, turn.OutcomeAborted, done.Outcome)

	m = update(t, m, done)
	assert.False(t, m.Pending())
	assert.Equal(t, "Request aborted", m.Notice())
}

func TestFollowUpWarning(t *testing.T) {
	tests := []struct {
		flow string
		warn bool
	}{
		{"f0", true},
		{"f1", false},
	}
	for _, tc := range tests {
		t.Run(tc.flow, func(t *testing.T) {
			srv := newTestServer(t)
			m := hydrated(t, srv, tc.flow)
			assert.NotContains(t, m.View(), followUpWarning)

			m, send := submit(t, m, "hello")
			require.NotNil(t, send)
			m = update(t, m, send())

			if tc.warn {
				assert.Contains(t, m.View(), followUpWarning)
			} else {
				assert.NotContains(t, m.View(), followUpWarning)
			}
		})
	}
}

// =============================================================================
// LOADING MESSAGES
// =============================================================================

func TestLoadingTick(t *testing.T) {
	srv := newTestServer(t)
	m := hydrated(t, srv, "f1")
	m = update(t, m, ConfigsMsg{Config: &model.UIConfig{LoadingMessages: []string{"Searching", "Reading"}}})

	// No run pending: ticks are dropped.
	_, cmd := m.Update(loadingTickMsg{gen: m.loadingGen})
	assert.Nil(t, cmd)

	gate := apitest.NewGate(t)
	srv.SetRun(gate.Handler())
	m, _ = submit(t, m, "q")
	assert.Contains(t, m.View(), "Searching")

	next, cmd := m.Update(loadingTickMsg{gen: m.loadingGen})
	m = next.(Model)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "Reading")

	// A tick from an earlier run does not advance the message.
	next, cmd = m.Update(loadingTickMsg{gen: m.loadingGen - 1})
	assert.Nil(t, cmd)
	assert.Equal(t, m.loadingStep, next.(Model).loadingStep)
}

func TestConfigsMsg_AppliesComposerSettings(t *testing.T) {
	srv := newTestServer(t)
	m := newTestModel(t, srv)

	m = update(t, m, ConfigsMsg{Config: &model.UIConfig{Name: "Atlas", QuestionLine: "Ask Atlas anything", InputMaxLength: 50}})
	assert.Equal(t, "Ask Atlas anything", m.input.Placeholder)
	assert.Equal(t, 50, m.input.CharLimit)
	assert.Contains(t, m.View(), "Atlas")
}

// =============================================================================
// COMMANDS AND NAVIGATION
// =============================================================================

func TestHelpPanel(t *testing.T) {
	srv := newTestServer(t)
	m := newTestModel(t, srv)

	m, cmd := submit(t, m, "/help")
	require.NotNil(t, cmd)
	m = update(t, m, cmd())

	view := m.View()
	assert.Contains(t, view, "/new")
	assert.Contains(t, view, "Keys:")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Empty(t, m.panel)
}

func TestCommandErrorsBecomeNotices(t *testing.T) {
	srv := newTestServer(t)
	m := newTestModel(t, srv)

	m, cmd := submit(t, m, "/nope")
	require.NotNil(t, cmd)
	m = update(t, m, cmd())
	assert.True(t, m.noticeErr)
	assert.Contains(t, m.Notice(), "Unknown command")
}

func TestCycleSessions(t *testing.T) {
	srv := newTestServer(t)
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	srv.SetHistory(
		model.SessionRecord{ID: "older", FlowID: "f1", Timestamp: model.Timestamp{Time: base},
			Messages: []model.Message{{Text: "old question", Type: model.MsgUser, Position: model.IntPtr(0)}}},
		model.SessionRecord{ID: "newer", FlowID: "f1", Timestamp: model.Timestamp{Time: base.Add(time.Hour)},
			Messages: []model.Message{{Text: "new question", Type: model.MsgUser, Position: model.IntPtr(0)}}},
	)
	m := newTestModel(t, srv)
	require.NoError(t, m.deps.Sessions.RefreshHistory(context.Background()))
	require.NoError(t, m.deps.Sessions.SelectSession("newer"))
	m = update(t, m, StateChangedMsg{})
	assert.Contains(t, m.lastRender, "new question")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	assert.Equal(t, "older", m.state.SelectedID)
	assert.Contains(t, m.lastRender, "old question")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlP})
	assert.Equal(t, "newer", m.state.SelectedID)
}

func TestToggleTrace(t *testing.T) {
	srv := newTestServer(t)
	m := newTestModel(t, srv)
	require.False(t, m.showTrace)

	m = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	assert.True(t, m.showTrace)
	m = update(t, m, commands.ToggleTraceMsg{})
	assert.False(t, m.showTrace)
}

func TestFeedbackMarkRendered(t *testing.T) {
	srv := newTestServer(t)
	m := hydrated(t, srv, "f1")

	m, send := submit(t, m, "rate me")
	require.NotNil(t, send)
	m = update(t, m, send())

	m, cmd := submit(t, m, "/feedback up")
	require.NotNil(t, cmd)
	m = update(t, m, cmd())

	assert.Equal(t, "Thanks for the feedback", m.Notice())
	assert.Contains(t, m.lastRender, styles.ThumbsUpMark)
	require.Len(t, srv.Feedback(), 1)
}
