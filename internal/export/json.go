// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"

	"github.com/jeranaias/shraga-tui/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports sessions in the history record shape, so an export
// reads like a GET /api/history/ entry.
// NOTE: JSON exports always carry every field; Options do not filter them.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

// Export converts a session to indented JSON.
func (e *JSONExporter) Export(s model.Session) ([]byte, error) {
	if len(s.Messages) == 0 {
		return nil, ErrEmptySession
	}
	rec := model.SessionRecord{
		ID:        s.ID,
		UserID:    s.UserID,
		FlowID:    s.Flow.ID,
		Timestamp: model.Timestamp{Time: s.Timestamp},
		Messages:  s.Messages,
	}
	return json.MarshalIndent(rec, "", "  ")
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
