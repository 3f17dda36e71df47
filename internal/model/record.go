// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

// SessionRecord is a history entry as the server returns it. Older
// backends identify sessions by chat_id rather than id.
type SessionRecord struct {
	ID        string    `json:"id,omitempty"`
	ChatID    string    `json:"chat_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	FlowID    string    `json:"flow_id,omitempty"`
	Timestamp Timestamp `json:"timestamp"`
	Messages  []Message `json:"messages"`
}

// SessionID returns id, falling back to chat_id.
func (r SessionRecord) SessionID() string {
	if r.ID != "" {
		return r.ID
	}
	return r.ChatID
}

// Normalize converts the record into a Session. The flow is taken from the
// first message's flow_id, then the record's own flow_id (analytics
// listings), or UnknownFlowID when neither is present.
func (r SessionRecord) Normalize() Session {
	flowID := UnknownFlowID
	switch {
	case len(r.Messages) > 0 && r.Messages[0].FlowID != "":
		flowID = r.Messages[0].FlowID
	case r.FlowID != "":
		flowID = r.FlowID
	}

	messages := make([]Message, len(r.Messages))
	for i, m := range r.Messages {
		messages[i] = m.Clone()
	}

	return Session{
		ID:        r.SessionID(),
		UserID:    r.UserID,
		Flow:      Flow{ID: flowID},
		Timestamp: r.Timestamp.Time,
		Messages:  messages,
	}
}

// NormalizeRecords converts a history listing, dropping records without
// any identifier.
func NormalizeRecords(records []SessionRecord) []Session {
	out := make([]Session, 0, len(records))
	for _, r := range records {
		if r.SessionID() == "" {
			continue
		}
		out = append(out, r.Normalize())
	}
	return out
}
