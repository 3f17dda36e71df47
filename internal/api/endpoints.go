// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jeranaias/shraga-tui/internal/model"
)

// Backend paths.
const (
	PathHistory          = "/api/history/"
	PathFeedback         = "/api/history/feedback"
	PathFlows            = "/api/flows/"
	PathRunFlow          = "/api/flows/run/"
	PathUIConfigs        = "/api/ui/configs"
	PathWhoAmI           = "/api/whoami"
	PathAnalytics        = "/api/analytics/"
	PathAnalyticsHistory = "/api/analytics/chat-history"
)

// analyticsDate is the date format of analytics filters.
const analyticsDate = "2006-01-02"

// =============================================================================
// WIRE TYPES
// =============================================================================

// RunRequest is the body of a flow run.
type RunRequest struct {
	Question    string               `json:"question"`
	FlowID      string               `json:"flow_id"`
	Preferences model.Preferences    `json:"preferences"`
	ChatID      string               `json:"chat_id"`
	Position    int                  `json:"position"`
	ChatHistory []model.HistoryEntry `json:"chat_history"`
}

// Validate checks the fields the backend requires.
func (r RunRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.FlowID, validation.Required),
		validation.Field(&r.ChatID, validation.Required),
		validation.Field(&r.Position, validation.Min(0)),
	)
}

// RunResponse is a successful flow run.
type RunResponse struct {
	ResponseText     string                  `json:"response_text"`
	AllowReply       bool                    `json:"allow_reply"`
	RetrievalResults []model.RetrievalResult `json:"retrieval_results,omitempty"`
	Trace            json.RawMessage         `json:"trace,omitempty"`
	Payload          json.RawMessage         `json:"payload,omitempty"`
}

// FeedbackRequest rates one bot reply.
type FeedbackRequest struct {
	ChatID       string        `json:"chat_id"`
	UserID       string        `json:"user_id,omitempty"`
	FlowID       string        `json:"flow_id"`
	Position     int           `json:"position"`
	Feedback     model.Verdict `json:"feedback"`
	FeedbackText string        `json:"feedback_text,omitempty"`
}

// Validate checks the submission.
func (r FeedbackRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ChatID, validation.Required),
		validation.Field(&r.Feedback, validation.Required,
			validation.In(model.VerdictThumbsUp, model.VerdictThumbsDown)),
		validation.Field(&r.Position, validation.Min(0)),
	)
}

// DateRange filters analytics queries. Zero bounds are omitted.
type DateRange struct {
	Start time.Time
	End   time.Time
}

func (d DateRange) values() url.Values {
	q := url.Values{}
	if !d.Start.IsZero() {
		q.Set("start", d.Start.Format(analyticsDate))
	}
	if !d.End.IsZero() {
		q.Set("end", d.End.Format(analyticsDate))
	}
	return q
}

func (d DateRange) body() map[string]string {
	b := map[string]string{}
	for k, v := range d.values() {
		b[k] = v[0]
	}
	return b
}

// Statistics is the usage summary from the analytics endpoint.
type Statistics struct {
	Daily   []DailyStats `json:"daily"`
	Overall OverallStats `json:"overall"`
}

// DailyStats holds per-day percentiles keyed by percentile ("50.0").
type DailyStats struct {
	Date         string             `json:"date"`
	Latency      map[string]float64 `json:"latency,omitempty"`
	InputTokens  map[string]float64 `json:"input_tokens,omitempty"`
	OutputTokens map[string]float64 `json:"output_tokens,omitempty"`
	TimeTook     map[string]float64 `json:"time_took,omitempty"`
}

// OverallStats are totals across the range.
type OverallStats struct {
	TotalChats    int `json:"total_chats"`
	TotalUsers    int `json:"total_users"`
	TotalMessages struct {
		User      int `json:"user"`
		Assistant int `json:"assistant"`
	} `json:"total_messages"`
}

// =============================================================================
// ENDPOINTS
// =============================================================================

// ListHistory returns the caller's persisted sessions.
func (c *Client) ListHistory(ctx context.Context) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	if err := c.do(ctx, call{method: http.MethodGet, path: PathHistory, out: &records}); err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return records, nil
}

// DeleteHistory removes a persisted session.
func (c *Client) DeleteHistory(ctx context.Context, chatID string) error {
	if chatID == "" {
		return fmt.Errorf("delete history: empty chat id")
	}
	path := PathHistory + url.PathEscape(chatID)
	if err := c.do(ctx, call{method: http.MethodDelete, path: path}); err != nil {
		return fmt.Errorf("delete history %s: %w", chatID, err)
	}
	return nil
}

// SubmitFeedback records a verdict on a bot reply.
func (c *Client) SubmitFeedback(ctx context.Context, req FeedbackRequest) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	if err := c.do(ctx, call{method: http.MethodPost, path: PathFeedback, body: req}); err != nil {
		return fmt.Errorf("submit feedback: %w", err)
	}
	return nil
}

// ListFlows returns the flow catalog.
func (c *Client) ListFlows(ctx context.Context) ([]model.Flow, error) {
	var flows []model.Flow
	if err := c.do(ctx, call{method: http.MethodGet, path: PathFlows, out: &flows}); err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	return flows, nil
}

// RunFlow submits one question. Only ctx bounds the call. Errors from the
// server are returned unwrapped so callers can inspect *APIError directly.
func (c *Client) RunFlow(ctx context.Context, req RunRequest) (*RunResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("run flow: %w", err)
	}
	if req.ChatHistory == nil {
		req.ChatHistory = []model.HistoryEntry{}
	}
	if req.Preferences == nil {
		req.Preferences = model.Preferences{}
	}

	var resp RunResponse
	if err := c.do(ctx, call{method: http.MethodPost, path: PathRunFlow, body: req, out: &resp, unbounded: true}); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UIConfig returns the backend UI configuration.
func (c *Client) UIConfig(ctx context.Context) (*model.UIConfig, error) {
	var cfg model.UIConfig
	if err := c.do(ctx, call{method: http.MethodGet, path: PathUIConfigs, out: &cfg}); err != nil {
		return nil, fmt.Errorf("ui config: %w", err)
	}
	return &cfg, nil
}

// WhoAmI returns the authenticated user.
func (c *Client) WhoAmI(ctx context.Context) (*model.User, error) {
	var user model.User
	if err := c.do(ctx, call{method: http.MethodGet, path: PathWhoAmI, out: &user}); err != nil {
		return nil, fmt.Errorf("whoami: %w", err)
	}
	return &user, nil
}

// AnalyticsHistory returns every user's sessions in the range. Requires
// an administrative credential.
func (c *Client) AnalyticsHistory(ctx context.Context, r DateRange) ([]model.SessionRecord, error) {
	var records []model.SessionRecord
	if err := c.do(ctx, call{method: http.MethodGet, path: PathAnalyticsHistory, query: r.values(), out: &records}); err != nil {
		return nil, fmt.Errorf("analytics history: %w", err)
	}
	return records, nil
}

// Statistics returns usage statistics for the range.
func (c *Client) Statistics(ctx context.Context, r DateRange) (*Statistics, error) {
	var stats Statistics
	if err := c.do(ctx, call{method: http.MethodPost, path: PathAnalytics, body: r.body(), out: &stats}); err != nil {
		return nil, fmt.Errorf("statistics: %w", err)
	}
	return &stats, nil
}
