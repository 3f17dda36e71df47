// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package commands provides the slash command system for the TUI.
//
// Commands act on the session manager, the flow catalog and the feedback
// orchestrator. Handlers return a tea.Cmd; anything that touches the
// network runs inside that command, never on the caller's goroutine.
//
// # Key Types
//
//   - Registry: Command registry with all available commands
//   - Context: Dependencies handed to every handler
//   - ParseResult: Parsed command with name and arguments
//   - Completer: Tab completion for commands, sessions and flows
//
// # Built-in Commands
//
//   - /new [flow] [key=value ...]: Start a draft session
//   - /sessions, /select, /remove, /refresh: Session navigation
//   - /abort: Cancel the pending request
//   - /feedback up|down [comment]: Rate the latest reply
//   - /flows, /prefs: Inspect flows and effective preferences
//   - /export [md|json]: Write the session to a file
//
// # Usage
//
// Execute a line typed into the composer:
//
//	if commands.IsCommand(input) {
//	    return registry.Execute(cmdCtx, input)
//	}
//
// Get completions:
//
//	completions := completer.Complete("/se", 3)
//	// Returns /select and /sessions
package commands
