// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package history caches the current user's persisted chat sessions.
//
// The cache is keyed by credential: a different credential is a different
// user, so its first Fetch goes to the server. With no credential the
// cache refuses to fetch. Concurrent fetches for the same credential share
// one request.
//
// # Usage
//
//	cache := history.NewCache(client, store, logger)
//	unsubscribe := cache.Subscribe(func(sessions []model.Session) {
//	    // merge into client state
//	})
//	defer unsubscribe()
//
//	sessions, err := cache.Fetch(ctx)
//	if errors.Is(err, history.ErrUnauthenticated) {
//	    // prompt for a credential
//	}
package history
