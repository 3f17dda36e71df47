// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// shraga.
//
// # Key Types
//
//   - Command: Enumeration of the top-level commands
//   - Args: Parsed global and command-specific flags
//   - App: The wired client components every command works with
//   - ArgParser: Subcommand flag and positional parsing
//
// # Usage
//
// Parse, wire and dispatch:
//
//	cmd, args := cli.Parse()
//	app, err := cli.NewApp(cfg, logger)
//	defer app.Close()
//	switch cmd {
//	case cli.CmdAsk:
//	    err = cli.HandleAsk(ctx, app, args)
//	case cli.CmdHistory:
//	    err = cli.HandleHistory(ctx, app, args)
//	}
//	if err != nil {
//	    cli.DisplayError(os.Stderr, err, args.JSON)
//	    os.Exit(cli.GetExitCode(err))
//	}
//
// # Commands Overview
//
//   - ask: one question on a new session
//   - chat: line-editing REPL with the TUI slash commands
//   - history: list, show, delete, export, analytics, stats
//   - flows: flow catalog
//   - auth: credential status, set, clear
//   - config: show, path, init, set
//
// All commands support --json for scripting.
package cli
