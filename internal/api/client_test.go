// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/api/apitest"
	"github.com/jeranaias/shraga-tui/internal/model"
)

type staticCred string

func (s staticCred) Credential() (string, error) { return string(s), nil }

func TestClient_SendsCredentialVerbatim(t *testing.T) {
	srv := apitest.New(t)
	client := api.NewClient(srv.URL, staticCred("Bearer tok"))

	_, err := client.ListFlows(context.Background())
	require.NoError(t, err)

	anon := api.NewClient(srv.URL, staticCred(""))
	_, err = anon.ListFlows(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"Bearer tok", ""}, srv.Authorizations())
}

func TestClient_ListHistoryNormalizesRecords(t *testing.T) {
	srv := apitest.New(t)
	srv.SetHistory(model.SessionRecord{
		ChatID:    "legacy",
		Timestamp: model.Timestamp{Time: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)},
		Messages:  []model.Message{{Text: "q", Type: model.MsgUser, FlowID: "search"}},
	})

	records, err := api.NewClient(srv.URL, nil).ListHistory(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	s := records[0].Normalize()
	assert.Equal(t, "legacy", s.ID)
	assert.Equal(t, "search", s.Flow.ID)
}

func TestClient_ErrorResponses(t *testing.T) {
	srv := apitest.New(t)
	client := api.NewClient(srv.URL, nil)
	ctx := context.Background()

	srv.Fail(api.PathFlows, http.StatusUnauthorized, `{"detail":"Not authenticated"}`)
	_, err := client.ListFlows(ctx)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
	assert.Equal(t, http.StatusUnauthorized, api.StatusOf(err))

	srv.Fail(api.PathFlows, http.StatusBadGateway, "<html>bad gateway</html>")
	_, err = client.ListFlows(ctx)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)
	assert.Zero(t, api.StatusOf(err))

	srv.Fail(api.PathFlows, http.StatusUnprocessableEntity, `{"detail":[{"loc":["body"],"msg":"field required"}]}`)
	_, err = client.ListFlows(ctx)
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, `[{"loc":["body"],"msg":"field required"}]`, apiErr.Detail)
}

func TestClient_EmptySuccessBodyIsMalformed(t *testing.T) {
	srv := apitest.New(t)
	client := api.NewClient(srv.URL, nil)
	ctx := context.Background()

	srv.Fail(api.PathHistory, http.StatusOK, "")
	_, err := client.ListHistory(ctx)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)

	srv.Fail(api.PathHistory, http.StatusOK, "null")
	_, err = client.ListHistory(ctx)
	assert.ErrorIs(t, err, api.ErrMalformedResponse)

	srv.Fail(api.PathHistory, 0, "")
	_, err = client.ListHistory(ctx)
	assert.NoError(t, err)
}

func TestClient_RunFlow(t *testing.T) {
	srv := apitest.New(t)
	client := api.NewClient(srv.URL, nil)

	srv.SetRun(apitest.Respond(api.RunResponse{
		ResponseText: "answer",
		AllowReply:   true,
		Trace:        json.RawMessage(`{"steps":2}`),
	}))

	resp, err := client.RunFlow(context.Background(), api.RunRequest{
		Question:    "why?",
		FlowID:      "search",
		ChatID:      "c1",
		Position:    2,
		Preferences: model.Preferences{"history_window": 3},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", resp.ResponseText)
	assert.True(t, resp.AllowReply)
	assert.JSONEq(t, `{"steps":2}`, string(resp.Trace))

	runs := srv.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, 2, runs[0].Position)
	assert.NotNil(t, runs[0].ChatHistory, "chat_history is sent as an empty list")
}

func TestClient_RunFlowServerError(t *testing.T) {
	srv := apitest.New(t)
	client := api.NewClient(srv.URL, nil)
	srv.SetRun(apitest.Error(http.StatusInternalServerError, "boom", json.RawMessage(`["t"]`)))

	_, err := client.RunFlow(context.Background(), api.RunRequest{FlowID: "f", ChatID: "c"})
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "boom", apiErr.Detail)
	assert.JSONEq(t, `["t"]`, string(apiErr.Trace))
}

func TestClient_RunFlowValidates(t *testing.T) {
	client := api.NewClient("http://127.0.0.1:1", nil)
	_, err := client.RunFlow(context.Background(), api.RunRequest{Question: "q"})
	assert.Error(t, err)
}

func TestClient_RunFlowIgnoresClientTimeout(t *testing.T) {
	srv := apitest.New(t)
	gate := apitest.NewGate(t)
	srv.SetRun(gate.Handler())
	client := api.NewClient(srv.URL, nil).WithTimeout(10 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		_, err := client.RunFlow(context.Background(), api.RunRequest{FlowID: "f", ChatID: "c"})
		done <- err
	}()

	<-gate.Started
	time.Sleep(50 * time.Millisecond)
	gate.Release(apitest.Reply("late", false))
	assert.NoError(t, <-done)
}

func TestClient_FeedbackAndDelete(t *testing.T) {
	srv := apitest.New(t)
	srv.SetHistory(model.SessionRecord{ID: "c1"}, model.SessionRecord{ID: "c2"})
	client := api.NewClient(srv.URL, nil)
	ctx := context.Background()

	require.NoError(t, client.SubmitFeedback(ctx, api.FeedbackRequest{
		ChatID: "c1", FlowID: "f", Position: 1, Feedback: model.VerdictThumbsDown, FeedbackText: "wrong",
	}))
	assert.Error(t, client.SubmitFeedback(ctx, api.FeedbackRequest{ChatID: "c1", Feedback: "meh"}))

	fb := srv.Feedback()
	require.Len(t, fb, 1)
	assert.Equal(t, "wrong", fb[0].FeedbackText)

	require.NoError(t, client.DeleteHistory(ctx, "c1"))
	records, err := client.ListHistory(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c2", records[0].ID)
}

func TestClient_RateLimit(t *testing.T) {
	srv := apitest.New(t)
	client := api.NewClient(srv.URL, nil).WithRateLimit(20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.WhoAmI(context.Background())
		require.NoError(t, err)
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_AnalyticsQuery(t *testing.T) {
	srv := apitest.New(t)
	srv.SetHistory(model.SessionRecord{ID: "a", FlowID: "search"})
	client := api.NewClient(srv.URL, nil)

	records, err := client.AnalyticsHistory(context.Background(), api.DateRange{
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "search", records[0].Normalize().Flow.ID)
	assert.Equal(t, 1, srv.Calls(api.PathAnalyticsHistory))
}
