// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output support for scripting.
//
// Every command accepts --json and then writes one JSONResponse to stdout.
// Human-readable messages go to stderr in that mode.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// JSONResponse is the envelope for all --json output.
type JSONResponse struct {
	Success   bool    `json:"success"`
	Data      any     `json:"data"`
	Error     *string `json:"error"`
	Timestamp string  `json:"timestamp"`
	Command   string  `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data any) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w with indentation.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// Print outputs the response to stdout.
func (r *JSONResponse) Print() error {
	return r.Write(os.Stdout)
}

// String returns the response as indented JSON.
func (r *JSONResponse) String() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf(`{"success":false,"error":"failed to marshal response: %s","timestamp":"%s"}`,
			err.Error(), time.Now().UTC().Format(time.RFC3339))
	}
	return string(data)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// SessionSummary is one row of `history list`.
type SessionSummary struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FlowID    string    `json:"flow_id"`
	Group     string    `json:"group"`
	Messages  int       `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FlowData is one row of `flows`.
type FlowData struct {
	ID          string         `json:"id"`
	Description string         `json:"description,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	Default     bool           `json:"default,omitempty"`
}

// AuthStatusData is the output of `auth status`.
type AuthStatusData struct {
	Authenticated bool      `json:"authenticated"`
	Source        string    `json:"source"`
	Credential    string    `json:"credential,omitempty"`
	Scheme        string    `json:"scheme,omitempty"`
	Subject       string    `json:"subject,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
	Expired       bool      `json:"expired,omitempty"`
	User          string    `json:"user,omitempty"`
	Roles         []string  `json:"roles,omitempty"`
	ServerVersion string    `json:"server_version,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// AskData is the output of `ask`.
type AskData struct {
	SessionID string          `json:"session_id"`
	FlowID    string          `json:"flow_id"`
	Outcome   string          `json:"outcome"`
	Answer    string          `json:"answer,omitempty"`
	Sources   []SourceData    `json:"sources,omitempty"`
	Trace     json.RawMessage `json:"trace,omitempty"`
}

// SourceData is a retrieval result shown under an answer.
type SourceData struct {
	Title string `json:"title"`
	Link  string `json:"link,omitempty"`
}
