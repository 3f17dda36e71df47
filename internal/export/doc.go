// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes session transcripts to files.
//
// # Key Types
//
//   - Exporter: converts a session to one format
//   - Options: output directory and what to include
//
// # Supported Formats
//
//   - Markdown: YAML frontmatter, one section per message, cited sources
//   - JSON: the session as the history endpoint returns it
//
// # Usage
//
//	exporter, err := export.ForFormat("md", export.DefaultOptions())
//	path, err := export.ToFile(session, exporter, opts)
package export
