// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across the client.
//
// # Key Functions
//
// Text Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: Display-width aware truncation for terminal columns
//   - IsRTL: Detects right-to-left text from its first strong character
//
// File Operations:
//   - AtomicWriteFile: Crash-safe file writing with fsync
//
// # Usage
//
//	title := util.TruncateWidth(session.Title(), 30)
//	if util.IsRTL(input) {
//	    // render right-aligned
//	}
//	err := util.AtomicWriteFile(path, data, 0600)
package util
