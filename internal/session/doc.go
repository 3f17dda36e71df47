// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the client's chat sessions and the selection.
//
// A single Manager is constructed at startup and handed to every consumer.
// It merges the server history into the local list, keeps drafts that the
// server does not know yet, and routes questions through the turn runner,
// which records replies back into the manager.
//
// # Key Types
//
//   - Manager: session list, selection and unseen-update flag
//   - State: point-in-time copy of the manager state
//   - SendOptions: direction flag and success/error callbacks for Send
//   - Hydration: what startup hydration did
//
// # Usage
//
//	mgr := session.NewManager(runner, historyCache, catalog, logger)
//	defer mgr.Close()
//
//	h, err := mgr.Hydrate(ctx)
//	if h.Result == session.HydrateNeedsEditor {
//	    // let the user pick a flow
//	}
//
//	mgr.Send(ctx, "hello", h.SessionID, session.SendOptions{
//	    OnError: func(err error) { ... },
//	})
//
// # Concurrency
//
// Every method is safe for concurrent use. Change callbacks run on the
// manager's own goroutine with no lock held and may call back into the
// manager. Bursts of changes coalesce into one call.
package session
