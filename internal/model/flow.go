// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// HistoryWindowKey is the preference controlling how much chat history a
// flow considers. A positive value means the bot accepts follow-up replies.
const HistoryWindowKey = "history_window"

// Preference value types understood by the session editor.
const (
	PrefTypeInteger = "integer"
	PrefTypeBoolean = "boolean"
	PrefTypeString  = "string"
)

// =============================================================================
// FLOW TYPE
// =============================================================================

// Flow is a server-side pipeline the user can converse with.
type Flow struct {
	ID          string                    `json:"id"`
	Description string                    `json:"description,omitempty"`
	Preferences map[string]PreferenceSpec `json:"preferences,omitempty"`
}

// Preferences maps a preference name to its effective value.
type Preferences map[string]any

// Clone returns a shallow copy of the preference map.
func (p Preferences) Clone() Preferences {
	if p == nil {
		return nil
	}
	out := make(Preferences, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the preference names in sorted order.
func (p Preferences) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// PREFERENCE SPEC
// =============================================================================

// PreferenceSpec is one entry of a flow's preference schema.
//
// The server sends either a raw value ("history_window": 3) or a metadata
// object ({"default_value": 3, "type": "integer", ...}). Metadata reports
// which form was decoded so the entry round-trips unchanged.
type PreferenceSpec struct {
	Default         any
	Type            string
	AvailableValues []any
	Required        bool
	Description     string
	Metadata        bool
}

type preferenceMetadata struct {
	DefaultValue    any    `json:"default_value"`
	Type            string `json:"type,omitempty"`
	AvailableValues []any  `json:"available_values,omitempty"`
	Required        bool   `json:"required,omitempty"`
	Description     string `json:"description,omitempty"`
}

// UnmarshalJSON decodes either the raw or the metadata form.
func (p *PreferenceSpec) UnmarshalJSON(data []byte) error {
	*p = PreferenceSpec{}
	trimmed := bytes.TrimSpace(data)

	if len(trimmed) > 0 && trimmed[0] == '{' {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return err
		}
		if _, ok := probe["default_value"]; ok {
			var meta preferenceMetadata
			if err := json.Unmarshal(trimmed, &meta); err != nil {
				return err
			}
			p.Default = meta.DefaultValue
			p.Type = meta.Type
			p.AvailableValues = meta.AvailableValues
			p.Required = meta.Required
			p.Description = meta.Description
			p.Metadata = true
			return nil
		}
	}

	return json.Unmarshal(trimmed, &p.Default)
}

// MarshalJSON writes the entry back in the form it was decoded from.
func (p PreferenceSpec) MarshalJSON() ([]byte, error) {
	if !p.Metadata {
		return json.Marshal(p.Default)
	}
	return json.Marshal(preferenceMetadata{
		DefaultValue:    p.Default,
		Type:            p.Type,
		AvailableValues: p.AvailableValues,
		Required:        p.Required,
		Description:     p.Description,
	})
}

// ResolvePreferences flattens a preference schema to its effective values:
// the default_value of metadata entries and the raw value of the others.
func ResolvePreferences(schema map[string]PreferenceSpec) Preferences {
	out := make(Preferences, len(schema))
	for name, spec := range schema {
		out[name] = spec.Default
	}
	return out
}

// MergePreferences returns base overlaid with overrides.
func MergePreferences(base, overrides Preferences) Preferences {
	out := base.Clone()
	if out == nil {
		out = make(Preferences, len(overrides))
	}
	for k, v := range overrides {
		out[k] = v
	}
	return out
}

// HistoryWindowEnabled reports whether prefs carry a numeric history_window
// greater than zero. Missing and non-numeric values disable replies.
func HistoryWindowEnabled(prefs Preferences) bool {
	n, ok := numeric(prefs[HistoryWindowKey])
	return ok && n > 0
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// =============================================================================
// PREFERENCE EDITING
// =============================================================================

var integerPattern = regexp.MustCompile(`^(0|[1-9]\d*)$`)

// ErrInvalidPreference is returned when user input does not match the
// declared preference type.
var ErrInvalidPreference = errors.New("invalid preference value")

// CoercePreference converts editor input to the type declared by spec.
// An empty string clears the value.
func CoercePreference(spec PreferenceSpec, input string) (any, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", nil
	}

	switch spec.Type {
	case PrefTypeInteger:
		if !integerPattern.MatchString(input) {
			return nil, fmt.Errorf("%w: %q is not a non-negative integer", ErrInvalidPreference, input)
		}
		n, err := strconv.Atoi(input)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPreference, err)
		}
		return n, nil
	case PrefTypeBoolean:
		return strings.EqualFold(input, "true"), nil
	default:
		if spec.Type == "" {
			if _, ok := numeric(spec.Default); ok && integerPattern.MatchString(input) {
				n, _ := strconv.Atoi(input)
				return n, nil
			}
		}
		return input, nil
	}
}

// ValidatePreferences checks that every required entry of schema has a
// non-empty value in prefs. Zero and false are values, not emptiness.
func ValidatePreferences(schema map[string]PreferenceSpec, prefs Preferences) error {
	var keys []*validation.KeyRules
	for _, name := range sortedSchemaKeys(schema) {
		if schema[name].Required {
			keys = append(keys, validation.Key(name, validation.By(requiredValue)))
		}
	}
	if len(keys) == 0 {
		return nil
	}

	m := map[string]any(prefs)
	if m == nil {
		m = map[string]any{}
	}
	return validation.Validate(m, validation.Map(keys...).AllowExtraKeys())
}

func requiredValue(value any) error {
	if isEmptyValue(value) {
		return errors.New("is required")
	}
	return nil
}

func isEmptyValue(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return x == ""
	case []any:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	default:
		return false
	}
}

func sortedSchemaKeys(schema map[string]PreferenceSpec) []string {
	keys := make([]string, 0, len(schema))
	for k := range schema {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
