// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/api/apitest"
	"github.com/jeranaias/shraga-tui/internal/config"
	"github.com/jeranaias/shraga-tui/internal/credential"
	"github.com/jeranaias/shraga-tui/internal/logging"
	"github.com/jeranaias/shraga-tui/internal/model"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	srv   *apitest.Server
	app   *App
	out   *bytes.Buffer
	store *credential.MemoryStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	srv := apitest.New(t)
	srv.SetFlows(
		model.Flow{ID: "f1", Description: "Knowledge base", Preferences: map[string]model.PreferenceSpec{
			model.HistoryWindowKey: {Default: 3, Type: model.PrefTypeInteger, Metadata: true},
		}},
		model.Flow{ID: "f0", Description: "Single shot"},
	)
	srv.SetConfigs(model.UIConfig{DefaultFlow: model.FlowList{"f1"}})

	cfg := config.Default()
	cfg.Server.BaseURL = srv.URL

	store := credential.NewMemoryStore(time.Hour)
	require.NoError(t, store.SetCredential("Bearer test"))

	out := &bytes.Buffer{}
	app := NewAppWithStore(cfg, logging.Discard(), store)
	app.Out = out
	app.Err = io.Discard
	t.Cleanup(func() { _ = app.Close() })

	prev := now
	now = func() time.Time { return testNow }
	t.Cleanup(func() { now = prev })

	return &env{srv: srv, app: app, out: out, store: store}
}

func (e *env) loadHistory(ids ...string) {
	base := testNow.Add(-2 * time.Hour)
	var records []model.SessionRecord
	for i, id := range ids {
		records = append(records, model.SessionRecord{
			ID:        id,
			FlowID:    "f1",
			Timestamp: model.Timestamp{Time: base.Add(time.Duration(i) * time.Minute)},
			Messages: []model.Message{
				{Text: "question " + id, Type: model.MsgUser, Position: model.IntPtr(0)},
				{Text: "answer " + id, Type: model.MsgSystem, Position: model.IntPtr(1)},
			},
		})
	}
	e.srv.SetHistory(records...)
}

// decode reads a JSONResponse from the output and unmarshals Data into v.
func (e *env) decode(t *testing.T, v any) JSONResponse {
	t.Helper()
	var raw struct {
		JSONResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(e.out.Bytes(), &raw), e.out.String())
	if v != nil {
		require.NoError(t, json.Unmarshal(raw.Data, v))
	}
	return raw.JSONResponse
}

// =============================================================================
// ASK
// =============================================================================

func TestAsk_UsesDefaultFlow(t *testing.T) {
	e := newEnv(t)
	e.srv.SetRun(apitest.Respond(api.RunResponse{
		ResponseText:     "Release 4 added feedback",
		RetrievalResults: []model.RetrievalResult{{Title: "Changelog", Link: "https://docs/changes"}},
	}))

	err := HandleAsk(context.Background(), e.app, Args{Query: "What changed?"})
	require.NoError(t, err)

	assert.Contains(t, e.out.String(), "Release 4 added feedback")
	assert.Contains(t, e.out.String(), "Changelog")
	runs := e.srv.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, "f1", runs[0].FlowID)
	assert.Equal(t, "What changed?", runs[0].Question)
}

func TestAsk_JSON(t *testing.T) {
	e := newEnv(t)

	err := HandleAsk(context.Background(), e.app, Args{Query: "echo me", Flow: "f0", JSON: true})
	require.NoError(t, err)

	var data AskData
	resp := e.decode(t, &data)
	assert.True(t, resp.Success)
	assert.Equal(t, "f0", data.FlowID)
	assert.Equal(t, "replied", data.Outcome)
	assert.Equal(t, "echo me", data.Answer)
}

func TestAsk_UnknownFlow(t *testing.T) {
	e := newEnv(t)

	err := HandleAsk(context.Background(), e.app, Args{Query: "hi", Flow: "nope"})
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
	assert.Empty(t, e.srv.Runs())
}

func TestAsk_NoDefaultFlowNeedsFlag(t *testing.T) {
	e := newEnv(t)
	e.srv.SetConfigs(model.UIConfig{DefaultFlow: model.FlowList{"f0", "f1"}})

	err := HandleAsk(context.Background(), e.app, Args{Query: "hi"})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestAsk_ServerErrorReply(t *testing.T) {
	e := newEnv(t)
	e.srv.SetRun(apitest.Error(500, "index offline", nil))

	err := HandleAsk(context.Background(), e.app, Args{Query: "hi", Flow: "f1"})
	require.Error(t, err)
	assert.Contains(t, e.out.String(), "index offline")
}

func TestAsk_MissingQuestion(t *testing.T) {
	e := newEnv(t)
	err := HandleAsk(context.Background(), e.app, Args{})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// HISTORY
// =============================================================================

func TestHistoryList_GroupsByDate(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111", "bbbb2222")

	require.NoError(t, HandleHistory(context.Background(), e.app, Args{Raw: []string{"list"}}))
	out := e.out.String()
	assert.Contains(t, out, model.GroupToday)
	assert.Contains(t, out, "question aaaa1111")
	assert.Contains(t, out, "bbbb2222")
}

func TestHistoryList_JSON(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111", "bbbb2222")

	require.NoError(t, HandleHistory(context.Background(), e.app, Args{JSON: true}))
	var rows []SessionSummary
	e.decode(t, &rows)
	require.Len(t, rows, 2)
	assert.Equal(t, "bbbb2222", rows[0].ID, "most recent first")
	assert.Equal(t, model.GroupToday, rows[0].Group)
	assert.Equal(t, 2, rows[0].Messages)
}

func TestHistoryList_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.SetCredential(""))

	err := HandleHistory(context.Background(), e.app, Args{})
	assert.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestHistoryShow_ByPrefix(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111", "bbbb2222")

	require.NoError(t, HandleHistory(context.Background(), e.app, Args{Raw: []string{"show", "bbbb"}}))
	assert.Contains(t, e.out.String(), "answer bbbb2222")
}

func TestHistoryShow_AmbiguousPrefix(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("abc1", "abc2")

	err := HandleHistory(context.Background(), e.app, Args{Raw: []string{"show", "abc"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHistoryDelete(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111", "bbbb2222")

	err := HandleHistory(context.Background(), e.app, Args{Raw: []string{"delete", "--confirm", "aaaa"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"aaaa1111"}, e.srv.Deleted())
	assert.Contains(t, e.out.String(), "Deleted aaaa1111")
}

func TestHistoryDelete_JSONRequiresConfirm(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111")

	err := HandleHistory(context.Background(), e.app, Args{JSON: true, Raw: []string{"delete", "aaaa1111"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
	assert.Empty(t, e.srv.Deleted())
}

func TestHistoryDelete_NotFound(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111")

	err := HandleHistory(context.Background(), e.app, Args{Raw: []string{"delete", "zzz", "--confirm"}})
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

func TestHistoryExport(t *testing.T) {
	e := newEnv(t)
	e.loadHistory("aaaa1111")
	dir := t.TempDir()

	err := HandleHistory(context.Background(), e.app, Args{
		Raw: []string{"export", "aaaa1111", "--format", "json", "--output", dir},
	})
	require.NoError(t, err)

	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	data, err := os.ReadFile(files[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "question aaaa1111")
	assert.Contains(t, e.out.String(), "Exported to")
}

func TestHistoryExport_UnsupportedFormat(t *testing.T) {
	e := newEnv(t)
	err := HandleHistory(context.Background(), e.app, Args{Raw: []string{"export", "x", "--format", "pdf"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestHistoryAnalytics_CountsByPosition(t *testing.T) {
	e := newEnv(t)
	// The analytics index tags every message as user; position decides.
	e.srv.SetHistory(model.SessionRecord{
		ID:        "s1",
		UserID:    "dana",
		FlowID:    "f1",
		Timestamp: model.Timestamp{Time: testNow.Add(-time.Hour)},
		Messages: []model.Message{
			{Text: "q1", Type: model.MsgUser, Position: model.IntPtr(0)},
			{Text: "a1", Type: model.MsgUser, Position: model.IntPtr(1), Feedback: model.VerdictThumbsUp},
			{Text: "q2", Type: model.MsgUser, Position: model.IntPtr(2)},
			{Text: "a2", Type: model.MsgUser, Position: model.IntPtr(3), Feedback: model.VerdictThumbsDown},
		},
	})

	require.NoError(t, HandleHistory(context.Background(), e.app, Args{JSON: true, Raw: []string{"analytics"}}))
	var rows []AnalyticsRow
	e.decode(t, &rows)
	require.Len(t, rows, 1)
	assert.Equal(t, "dana", rows[0].UserID)
	assert.Equal(t, 2, rows[0].Questions)
	assert.Equal(t, 2, rows[0].Answers)
	assert.Equal(t, 1, rows[0].ThumbsUp)
	assert.Equal(t, 1, rows[0].ThumbsDn)
	assert.Equal(t, 1, e.srv.Calls(api.PathAnalyticsHistory))
}

func TestDateRange_DefaultsToLastWeek(t *testing.T) {
	prev := now
	now = func() time.Time { return testNow }
	t.Cleanup(func() { now = prev })

	r, err := dateRange(NewArgParser([]string{"stats"}))
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(-7*24*time.Hour), r.Start)
	assert.True(t, r.End.IsZero())

	_, err = dateRange(NewArgParser([]string{"stats", "--since", "2025-05-10", "--until", "2025-05-01"}))
	assert.Error(t, err)
}

func TestHistoryStats(t *testing.T) {
	e := newEnv(t)
	stats := api.Statistics{
		Daily: []api.DailyStats{{Date: "2025-05-31", Latency: map[string]float64{"50.0": 1.25}}},
	}
	stats.Overall.TotalChats = 42
	stats.Overall.TotalUsers = 7
	stats.Overall.TotalMessages.User = 90
	stats.Overall.TotalMessages.Assistant = 88
	e.srv.SetStatistics(stats)

	require.NoError(t, HandleHistory(context.Background(), e.app, Args{Raw: []string{"stats"}}))
	out := e.out.String()
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "88")
	assert.Contains(t, out, "2025-05-31")
	assert.Contains(t, out, "1.25")
}

// =============================================================================
// FLOWS
// =============================================================================

func TestFlows_MarksDefault(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, HandleFlows(context.Background(), e.app, Args{JSON: true}))
	var rows []FlowData
	e.decode(t, &rows)
	require.Len(t, rows, 2)
	byID := map[string]FlowData{}
	for _, r := range rows {
		byID[r.ID] = r
	}
	assert.True(t, byID["f1"].Default)
	assert.False(t, byID["f0"].Default)
	assert.EqualValues(t, 3, byID["f1"].Preferences[model.HistoryWindowKey])
}

func TestFlows_ShowOne(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, HandleFlows(context.Background(), e.app, Args{Raw: []string{"f1"}}))
	assert.Contains(t, e.out.String(), "Knowledge base")
	assert.Contains(t, e.out.String(), model.HistoryWindowKey)

	err := HandleFlows(context.Background(), e.app, Args{Raw: []string{"missing"}})
	assert.Equal(t, ExitNotFoundError, GetExitCode(err))
}

// =============================================================================
// AUTH
// =============================================================================

func TestAuthStatus(t *testing.T) {
	e := newEnv(t)
	e.srv.SetUser(model.User{DisplayName: "Dana", Roles: []string{"admin"}, Version: "1.4"})

	require.NoError(t, HandleAuth(context.Background(), e.app, Args{JSON: true}))
	var data AuthStatusData
	e.decode(t, &data)
	assert.True(t, data.Authenticated)
	assert.Equal(t, "Dana", data.User)
	assert.Equal(t, []string{"admin"}, data.Roles)
	assert.Equal(t, "Bearer", data.Scheme)
	assert.Equal(t, "memory", data.Source)
	assert.NotContains(t, data.Credential, "test", "credential is masked")
}

func TestAuthStatus_NoCredential(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.SetCredential(""))

	require.NoError(t, HandleAuth(context.Background(), e.app, Args{Raw: []string{"status"}}))
	assert.Contains(t, e.out.String(), "shraga auth set")
}

func TestAuthSet_StoresBearerToken(t *testing.T) {
	e := newEnv(t)
	e.srv.RequireAuth("Bearer fresh-token")

	require.NoError(t, HandleAuth(context.Background(), e.app, Args{Raw: []string{"set", "fresh-token"}}))
	cred, err := e.store.Credential()
	require.NoError(t, err)
	assert.Equal(t, "Bearer fresh-token", cred)
}

func TestAuthSet_RejectedRestoresPrevious(t *testing.T) {
	e := newEnv(t)
	e.srv.RequireAuth("Bearer test")

	err := HandleAuth(context.Background(), e.app, Args{Raw: []string{"set", "Bearer wrong"}})
	assert.Equal(t, ExitAuthError, GetExitCode(err))

	cred, _ := e.store.Credential()
	assert.Equal(t, "Bearer test", cred)
}

func TestAuthSet_NoVerify(t *testing.T) {
	e := newEnv(t)
	e.srv.RequireAuth("Bearer test")

	require.NoError(t, HandleAuth(context.Background(), e.app, Args{Raw: []string{"set", "--no-verify", "offline"}}))
	cred, _ := e.store.Credential()
	assert.Equal(t, "Bearer offline", cred)
	assert.Zero(t, e.srv.Calls(api.PathWhoAmI))
}

func TestAuthClear(t *testing.T) {
	e := newEnv(t)

	require.NoError(t, HandleAuth(context.Background(), e.app, Args{Raw: []string{"clear"}}))
	cred, _ := e.store.Credential()
	assert.Empty(t, cred)
}

func TestAuth_StaticCredentialIsReadOnly(t *testing.T) {
	e := newEnv(t)
	e.app.Store = credential.Static("Bearer env")

	err := HandleAuth(context.Background(), e.app, Args{Raw: []string{"clear"}})
	assert.ErrorIs(t, err, credential.ErrReadOnly)
}

// =============================================================================
// CONFIG
// =============================================================================

func TestConfigShow_Formats(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()

	require.NoError(t, HandleConfig(&buf, cfg, Args{Raw: []string{"show"}}))
	assert.Contains(t, buf.String(), "base_url")

	buf.Reset()
	require.NoError(t, HandleConfig(&buf, cfg, Args{Raw: []string{"show", "--format", "yaml"}}))
	assert.Contains(t, buf.String(), "base_url: http://localhost:8000")

	buf.Reset()
	err := HandleConfig(&buf, cfg, Args{Raw: []string{"show", "--format", "ini"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestConfigInitAndSet(t *testing.T) {
	t.Setenv("SHRAGA_HOME", t.TempDir())
	var buf bytes.Buffer

	require.NoError(t, HandleConfig(&buf, config.Default(), Args{Raw: []string{"init"}}))
	err := HandleConfig(&buf, config.Default(), Args{Raw: []string{"init"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err), "init refuses to overwrite")

	require.NoError(t, HandleConfig(&buf, config.Default(),
		Args{Raw: []string{"set", "server.base_url", "https://shraga.example.com"}}))
	require.NoError(t, HandleConfig(&buf, config.Default(),
		Args{Raw: []string{"set", "ui.show_trace", "true"}}))

	paths, err := config.Paths()
	require.NoError(t, err)
	cfg, err := config.LoadFromPath(paths[0])
	require.NoError(t, err)
	assert.Equal(t, "https://shraga.example.com", cfg.Server.BaseURL)
	assert.True(t, cfg.UI.ShowTrace)
}

func TestConfigSet_Rejects(t *testing.T) {
	t.Setenv("SHRAGA_HOME", t.TempDir())
	var buf bytes.Buffer

	err := HandleConfig(&buf, config.Default(), Args{Raw: []string{"set", "server.colour", "blue"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = HandleConfig(&buf, config.Default(), Args{Raw: []string{"set", "ui.theme", "neon"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))

	err = HandleConfig(&buf, config.Default(), Args{Raw: []string{"set", "server.turn_timeout_secs", "soon"}})
	assert.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// CHAT REPL
// =============================================================================

type scriptReader struct {
	lines []string
}

func (s *scriptReader) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func TestREPL_SendsAndRunsCommands(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r := newREPL(ctx, e.app, Args{})
	err := r.run(ctx, &scriptReader{lines: []string{
		"hello there",
		"/flows",
		"//not a command",
		"/trace",
		"exit",
		"never sent",
	}})
	require.NoError(t, err)

	runs := e.srv.Runs()
	require.Len(t, runs, 2)
	assert.Equal(t, "hello there", runs[0].Question)
	assert.Equal(t, "/not a command", runs[1].Question)

	out := e.out.String()
	assert.Contains(t, out, "Flow: f1")
	assert.Contains(t, out, "Knowledge base")
	assert.Contains(t, out, "Trace on")
}

func TestREPL_FollowUpWarning(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r := newREPL(ctx, e.app, Args{Flow: "f0"})
	require.NoError(t, r.run(ctx, &scriptReader{lines: []string{"one question"}}))
	assert.Contains(t, e.out.String(), "Follow up questions are not supported")
}

func TestREPL_QuitCommand(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	r := newREPL(ctx, e.app, Args{Flow: "f1"})
	require.NoError(t, r.run(ctx, &scriptReader{lines: []string{"/quit", "after quit"}}))
	assert.Empty(t, e.srv.Runs())
}
