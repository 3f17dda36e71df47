// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package turn runs one question/answer exchange against a flow.
//
// A Runner owns the single in-flight request of the process. Starting a
// new run cancels the previous one, whatever session it belongs to, and
// every run ends in exactly one Outcome. The user message is appended
// optimistically before the network call and is rolled back only when
// the call fails at the transport level.
//
// # Key Types
//
//   - Runner: owns the in-flight token and classifies completions
//   - Ledger: where messages are appended and rolled back
//   - Transport: the flow-run call, satisfied by *api.Client
//   - Outcome: how a run ended
//
// # Usage
//
//	runner := turn.NewRunner(client, cfg.Server.TurnTimeout(), logger)
//	outcome, err := runner.Run(ctx, manager, turn.Request{Session: s, Text: "hello"})
//	if outcome.Succeeded() {
//	    // reply, in-band error, abort or timeout was appended
//	}
package turn
