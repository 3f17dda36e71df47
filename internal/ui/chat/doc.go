// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the main chat view of the Shraga TUI.

The view is a thin Bubble Tea front end over session.Manager. Every
network operation runs inside a tea.Cmd; the manager's change callback
wakes the model through a one-slot channel and the model re-reads a
snapshot of the session list.

# Key Components

## Model (model.go)

  - Deps wires the session manager, flow catalog and feedback orchestrator
  - Init starts hydration, loads the UI config and listens for changes
  - send runs a flow turn and reports a SendDoneMsg with its outcome

## Update Loop (update.go)

  - Slash commands go through the commands registry
  - Plain text is sent to the selected session
  - Esc closes completions and panels, then aborts the pending run
  - Ctrl+N / Ctrl+P cycle sessions

## View Rendering (view.go, markdown.go)

  - Header with the flow of the selected session and the unseen marker
  - Date-grouped session sidebar on wide terminals
  - Transcript with glamour-rendered replies, sources and optional traces
  - Rotating loading messages while a run is pending

# Usage

	m := chat.New(styles.NewTheme("auto"), chat.Deps{
	    Ctx:      ctx,
	    Config:   cfg,
	    Sessions: sessions,
	    Catalog:  catalog,
	    Feedback: fb,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	_, err := p.Run()
*/
package chat
