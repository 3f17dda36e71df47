// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
)

// FlowList decodes a JSON string or an array of strings.
type FlowList []string

// UnmarshalJSON accepts "flow", ["a", "b"] or null.
func (f *FlowList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*f = nil
		} else {
			*f = FlowList{s}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*f = list
	return nil
}

// MarshalJSON writes a single entry as a plain string.
func (f FlowList) MarshalJSON() ([]byte, error) {
	if len(f) == 1 {
		return json.Marshal(f[0])
	}
	return json.Marshal([]string(f))
}

// UIConfig is the backend's UI configuration.
type UIConfig struct {
	Name            string    `json:"name,omitempty"`
	SidebarText     string    `json:"sidebar_text,omitempty"`
	QuestionLine    string    `json:"question_line,omitempty"`
	DefaultFlow     FlowList  `json:"default_flow,omitempty"`
	ListFlows       bool      `json:"list_flows,omitempty"`
	LoadingMessages []string  `json:"loading_messages,omitempty"`
	InputMaxLength  int       `json:"input_max_length,omitempty"`
	MapAPIKey       string    `json:"map_api_key,omitempty"`
	MapCenter       []float64 `json:"map_center,omitempty"`
	MapZoom         float64   `json:"map_zoom,omitempty"`
}

// DefaultInputMaxLength applies when the backend sets no input limit.
const DefaultInputMaxLength = 1000

// DefaultLoadingMessage is shown while a flow run is pending.
const DefaultLoadingMessage = "Compiling analysis and sources"

// MaxInput returns the composer limit.
func (c *UIConfig) MaxInput() int {
	if c == nil || c.InputMaxLength <= 0 {
		return DefaultInputMaxLength
	}
	return c.InputMaxLength
}

// LoadingMessage returns the n-th loading message, cycling through the
// configured list.
func (c *UIConfig) LoadingMessage(n int) string {
	if c == nil || len(c.LoadingMessages) == 0 {
		return DefaultLoadingMessage
	}
	if n < 0 {
		n = -n
	}
	return c.LoadingMessages[n%len(c.LoadingMessages)]
}

// Placeholder is the composer prompt text.
func (c *UIConfig) Placeholder() string {
	switch {
	case c == nil:
		return "Ask Shraga"
	case c.QuestionLine != "":
		return c.QuestionLine
	case c.Name != "":
		return "Ask " + c.Name
	default:
		return "Ask Shraga"
	}
}

// WantsFlowPicker reports whether a new session should open the flow
// picker instead of using the default flow.
func (c *UIConfig) WantsFlowPicker() bool {
	return c != nil && (c.ListFlows || c.MultipleDefaultFlows())
}

// SingleDefaultFlow returns the configured default flow when exactly one
// is named.
func (c *UIConfig) SingleDefaultFlow() (string, bool) {
	if c == nil || len(c.DefaultFlow) != 1 {
		return "", false
	}
	return c.DefaultFlow[0], true
}

// MultipleDefaultFlows reports whether the user must choose among several
// configured default flows.
func (c *UIConfig) MultipleDefaultFlows() bool {
	return c != nil && len(c.DefaultFlow) > 1
}

// User is the authenticated-user record from /api/whoami.
type User struct {
	DisplayName string   `json:"display_name"`
	Roles       []string `json:"roles,omitempty"`
	Version     string   `json:"shraga_version,omitempty"`
}

// HasRole reports whether the user holds role.
func (u *User) HasRole(role string) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}
