// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/shraga-tui/internal/util"
)

// Error variables for common backend failures. APIError values match them
// with errors.Is.
var (
	// ErrUnauthorized indicates a missing, expired or rejected credential.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound indicates the addressed resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrBadRequest indicates the server rejected the request input.
	ErrBadRequest = errors.New("bad request")

	// ErrMalformedResponse indicates a body that could not be decoded.
	ErrMalformedResponse = errors.New("malformed response")
)

// APIError is a non-success response from the backend.
type APIError struct {
	Status int
	// Detail is the server's explanation, empty when none was given.
	Detail  string
	Trace   json.RawMessage
	Payload json.RawMessage
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("api error (HTTP %d): %s", e.Status, e.Detail)
	}
	return fmt.Sprintf("api error (HTTP %d)", e.Status)
}

// Is maps status codes to the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrBadRequest:
		return e.Status == http.StatusBadRequest
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Trace   json.RawMessage `json:"trace"`
	Payload json.RawMessage `json:"payload"`
}

// handleErrorResponse converts a non-success body into an *APIError.
// A body that is not JSON yields ErrMalformedResponse instead, since the
// server never produced a structured answer.
func handleErrorResponse(statusCode int, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &APIError{Status: statusCode}
	}

	var eb errorBody
	if err := json.Unmarshal(trimmed, &eb); err != nil {
		snippet := util.TruncateRunes(strings.TrimSpace(string(trimmed)), 200)
		return fmt.Errorf("%w: HTTP %d: %s", ErrMalformedResponse, statusCode, snippet)
	}

	return &APIError{
		Status:  statusCode,
		Detail:  detailText(eb.Detail),
		Trace:   nonNull(eb.Trace),
		Payload: nonNull(eb.Payload),
	}
}

// detailText renders detail as text. Strings are unquoted; structured
// details (validation error lists) are kept as compact JSON.
func detailText(raw json.RawMessage) string {
	raw = nonNull(raw)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}
