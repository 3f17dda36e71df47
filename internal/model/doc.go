// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the chat client.
//
// This package defines the domain types exchanged with the Shraga backend
// and held in client state: flows and their preference schemas, chat
// sessions, messages, retrieval results and the UI configuration record.
//
// # Key Types
//
//   - Flow: Server-side pipeline with an id, description and preference schema
//   - PreferenceSpec: One preference entry, either a raw value or metadata form
//   - Session: Client view of a chat session (id, flow, timestamp, messages)
//   - Message: Single user or system message with optional position and feedback
//   - SessionRecord: Raw history record as returned by the server
//   - UIConfig: Backend UI configuration (default flow, map settings)
//
// # Usage
//
// Resolve the effective preferences of a flow:
//
//	prefs := model.ResolvePreferences(flow.Preferences)
//	if model.HistoryWindowEnabled(prefs) {
//	    // replies carry chat history
//	}
//
// Compute the position for the next user message:
//
//	pos := session.NextPosition()
package model
