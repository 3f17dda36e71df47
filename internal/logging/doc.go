// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the structured loggers used across shraga.
//
// Loggers are plain *slog.Logger values injected into each component.
// The TUI writes to a timestamped file under the log directory so the
// terminal stays clean; CLI commands log to stderr.
//
// # Usage
//
//	logger, closeFn, err := logging.Setup(cfg.Logging, logDir, true)
//	if err != nil {
//	    return err
//	}
//	defer closeFn()
//
//	ctx = logging.WithAttrs(ctx, "session_id", id)
//	logging.FromContext(ctx, logger).Info("turn started")
package logging
