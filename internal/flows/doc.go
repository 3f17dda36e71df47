// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package flows caches the backend's flow catalog and UI configuration.
//
// Both are fetched once and replaced wholesale on refresh; flows are
// never patched. Concurrent fetches share one request.
//
// # Usage
//
//	catalog := flows.NewCatalog(client, logger)
//	list, err := catalog.Fetch(ctx)
//	flow, ok := catalog.Lookup("search")
//	cfg, err := catalog.Configs(ctx)
package flows
