// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"sort"
	"time"
)

// UnknownFlowID is the flow id given to history sessions whose messages
// carry no flow id.
const UnknownFlowID = "n/a"

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session is the client view of a chat session.
//
// Draft sessions were created locally and have not yet completed a server
// round-trip. Preferences hold the session's own effective values and may
// be empty for sessions loaded from history.
type Session struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id,omitempty"`
	Draft       bool        `json:"draft,omitempty"`
	Flow        Flow        `json:"flow"`
	Preferences Preferences `json:"preferences,omitempty"`
	Timestamp   time.Time   `json:"timestamp"`
	Messages    []Message   `json:"messages"`
}

// NewDraftSession creates a local draft bound to flow with the flow's
// resolved preferences.
func NewDraftSession(id string, flow Flow, now time.Time) Session {
	return Session{
		ID:          id,
		Draft:       true,
		Flow:        flow,
		Preferences: ResolvePreferences(flow.Preferences),
		Timestamp:   now,
		Messages:    []Message{},
	}
}

// Clone returns a deep copy of the session.
func (s Session) Clone() Session {
	out := s
	out.Preferences = s.Preferences.Clone()
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return out
}

// LastMessage returns the final message, or nil for an empty session.
func (s Session) LastMessage() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return &s.Messages[len(s.Messages)-1]
}

// Title is the text of the first user message, or the flow id.
func (s Session) Title() string {
	for _, m := range s.Messages {
		if m.IsUser() && m.Text != "" {
			return m.Text
		}
	}
	return s.Flow.ID
}

// NextPosition returns the position of the next user message.
//
// Positions count user and system messages only. The latest message that
// carries a position anchors the count; counted messages after it (such as
// an unanswered optimistic user message) advance it by one each. Without
// any positioned message the count of user and system messages is used, so
// an empty session starts at zero.
func (s Session) NextPosition() int {
	trailing := 0
	for i := len(s.Messages) - 1; i >= 0; i-- {
		m := s.Messages[i]
		if !m.Type.Counts() {
			continue
		}
		if m.Position != nil {
			return *m.Position + 1 + trailing
		}
		trailing++
	}
	return trailing
}

// FindMessage returns the index of the message with localID, or -1.
func (s Session) FindMessage(localID string) int {
	if localID == "" {
		return -1
	}
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].LocalID == localID {
			return i
		}
	}
	return -1
}

// LastActivity is the later of the session timestamp and the timestamp
// of its last message.
func (s Session) LastActivity() time.Time {
	latest := s.Timestamp
	if last := s.LastMessage(); last != nil && last.Timestamp != nil && last.Timestamp.After(latest) {
		latest = last.Timestamp.Time
	}
	return latest
}

// SortByRecency orders sessions by last activity, newest first. Sessions
// with equal activity keep their relative order.
func SortByRecency(sessions []Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastActivity().After(sessions[j].LastActivity())
	})
}

// FindSession returns the index of the session with id, or -1.
func FindSession(sessions []Session, id string) int {
	for i := range sessions {
		if sessions[i].ID == id {
			return i
		}
	}
	return -1
}
