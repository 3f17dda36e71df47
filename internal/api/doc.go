// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package api is the HTTP client for the Shraga backend.
//
// Every request carries the stored credential verbatim in the
// Authorization header. Catalog, history and feedback calls are bounded by
// the client's request timeout; flow runs are bounded only by the caller's
// context so the turn runner can tag timeouts itself.
//
// # Key Types
//
//   - Client: Backend client with optional request pacing
//   - APIError: Non-success response with detail, trace and payload
//   - RunRequest, RunResponse: Flow run wire format
//   - FeedbackRequest: Thumbs-up/down submission
//
// # Usage
//
//	client := api.NewClient("https://shraga.example.com", store).
//	    WithTimeout(2 * time.Minute).
//	    WithRateLimit(5, 10)
//
//	flows, err := client.ListFlows(ctx)
//
//	resp, err := client.RunFlow(ctx, api.RunRequest{...})
//	var apiErr *api.APIError
//	if errors.As(err, &apiErr) && apiErr.Status == http.StatusBadRequest {
//	    // rejected input
//	}
package api
