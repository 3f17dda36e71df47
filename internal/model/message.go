// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"time"
)

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// MessageType identifies who authored a message.
type MessageType string

const (
	// MsgUser is a message typed by the user.
	MsgUser MessageType = "user"

	// MsgSystem is a bot reply, including in-band error replies.
	MsgSystem MessageType = "system"
)

// Counts reports whether messages of this type take part in position
// numbering. Only user and system messages do.
func (t MessageType) Counts() bool {
	return t == MsgUser || t == MsgSystem
}

// Verdict is a thumbs-up or thumbs-down rating of a bot reply.
type Verdict string

const (
	VerdictThumbsUp   Verdict = "thumbs_up"
	VerdictThumbsDown Verdict = "thumbs_down"
)

// Valid reports whether v is a known verdict.
func (v Verdict) Valid() bool {
	return v == VerdictThumbsUp || v == VerdictThumbsDown
}

// Message is a single entry in a session transcript.
type Message struct {
	// Client-side identity used to roll back optimistic appends.
	// Never sent to the server.
	LocalID string `json:"-"`

	Text      string      `json:"text"`
	Type      MessageType `json:"msg_type"`
	Timestamp *Timestamp  `json:"timestamp,omitempty"`
	Position  *int        `json:"position,omitempty"`
	FlowID    string      `json:"flow_id,omitempty"`

	// Right-to-left rendering hint.
	RTL bool `json:"rtl,omitempty"`

	// Set on system replies when the bot accepts a follow-up.
	AllowReply bool `json:"allow_reply,omitempty"`

	// Set on in-band error replies.
	Error bool `json:"error,omitempty"`

	Trace            json.RawMessage   `json:"trace,omitempty"`
	Payload          json.RawMessage   `json:"payload,omitempty"`
	RetrievalResults []RetrievalResult `json:"retrieval_results,omitempty"`

	Feedback     Verdict `json:"feedback,omitempty"`
	FeedbackText string  `json:"feedback_text,omitempty"`
}

// NewUserMessage creates a user message stamped with now.
func NewUserMessage(text string, rtl bool, now time.Time) Message {
	return Message{
		Text:      text,
		Type:      MsgUser,
		Timestamp: NewTimestamp(now),
		RTL:       rtl,
	}
}

// NewSystemMessage creates a bot message at the given position.
func NewSystemMessage(text string, position int, now time.Time) Message {
	return Message{
		Text:      text,
		Type:      MsgSystem,
		Timestamp: NewTimestamp(now),
		Position:  IntPtr(position),
	}
}

// IsUser returns true if this is a user message.
func (m Message) IsUser() bool { return m.Type == MsgUser }

// IsSystem returns true if this is a bot message.
func (m Message) IsSystem() bool { return m.Type == MsgSystem }

// BotByPosition reports whether an analytics record message is a bot
// reply. Analytics listings are read by position: odd positions are
// replies.
func (m Message) BotByPosition() bool {
	return m.Position != nil && *m.Position%2 == 1
}

// Clone returns a copy that shares no mutable state with m.
func (m Message) Clone() Message {
	out := m
	if m.Timestamp != nil {
		ts := *m.Timestamp
		out.Timestamp = &ts
	}
	if m.Position != nil {
		out.Position = IntPtr(*m.Position)
	}
	if m.RetrievalResults != nil {
		out.RetrievalResults = append([]RetrievalResult(nil), m.RetrievalResults...)
	}
	return out
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int { return &n }

// =============================================================================
// CHAT HISTORY
// =============================================================================

// HistoryEntry is the reduced message form sent back to the server as
// chat_history on a flow run.
type HistoryEntry struct {
	Timestamp *Timestamp  `json:"timestamp,omitempty"`
	Text      string      `json:"text"`
	Type      MessageType `json:"msg_type"`
}

// HistoryOf reduces messages to the chat_history form.
func HistoryOf(messages []Message) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(messages))
	for _, m := range messages {
		out = append(out, HistoryEntry{
			Timestamp: m.Timestamp,
			Text:      m.Text,
			Type:      m.Type,
		})
	}
	return out
}

// =============================================================================
// RETRIEVAL RESULTS
// =============================================================================

// RetrievalResult is a document snippet the flow used to answer.
type RetrievalResult struct {
	ID          string          `json:"id,omitempty"`
	DocumentID  json.Number     `json:"document_id,omitempty"`
	Title       string          `json:"title,omitempty"`
	Link        string          `json:"link,omitempty"`
	Description string          `json:"description,omitempty"`
	Score       *float64        `json:"score,omitempty"`
	Date        string          `json:"date,omitempty"`
	Extra       *RetrievalExtra `json:"extra,omitempty"`
}

// RetrievalExtra carries optional geographic metadata for map rendering.
type RetrievalExtra struct {
	Coordinates  []float64 `json:"coordinates,omitempty"`
	RiskLevel    string    `json:"risk_level,omitempty"`
	IncidentType string    `json:"incident_type,omitempty"`
}
