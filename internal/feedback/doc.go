// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package feedback submits thumbs-up/down verdicts on bot replies.
//
// Submitting feedback never touches the session list. Callers that show
// the verdict right away record it in a Marks set and roll it back from
// the error callback.
//
// # Key Types
//
//   - Orchestrator: validates and submits a verdict
//   - Options: success and error callbacks
//   - Marks: optimistic per-message verdicts for display
//
// # Usage
//
//	fb := feedback.New(client, logger)
//	prev := marks.Set(s.ID, *msg.Position, model.VerdictThumbsUp)
//	fb.Submit(ctx, model.VerdictThumbsUp, s, msg, feedback.Options{
//	    OnError: func(error) { marks.Restore(s.ID, *msg.Position, prev) },
//	}, "")
package feedback
