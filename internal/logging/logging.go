// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/shraga-tui/internal/config"
)

// filePrefix names log files: shraga-2006-01-02T15-04-05.log.
const filePrefix = "shraga-"

// ParseLevel maps a config level name to a slog level. Unknown names
// yield info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a logger writing to w in the configured format.
func New(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup builds the process logger. With toFile set, output goes to a new
// file in dir and the returned close function closes it.
func Setup(cfg config.LoggingConfig, dir string, toFile bool) (*slog.Logger, func() error, error) {
	if !toFile {
		return New(cfg, os.Stderr), func() error { return nil }, nil
	}

	f, err := SetupLogFile(dir, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}
	return New(cfg, f), f.Close, nil
}

// SetupLogFile creates a timestamped log file in dir and removes the
// oldest files beyond maxFiles.
func SetupLogFile(dir string, maxFiles int) (*os.File, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	name := filepath.Join(dir, filePrefix+time.Now().Format("2006-01-02T15-04-05.000")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	if err := cleanupOldLogs(dir, maxFiles); err != nil {
		// Logging still works without cleanup.
		fmt.Fprintf(os.Stderr, "warning: failed to clean up old logs: %v\n", err)
	}
	return f, nil
}

// cleanupOldLogs keeps the maxFiles most recent log files. The timestamp
// in the name sorts chronologically.
func cleanupOldLogs(dir string, maxFiles int) error {
	if maxFiles <= 0 {
		return nil
	}
	files, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.log"))
	if err != nil {
		return err
	}
	if len(files) <= maxFiles {
		return nil
	}

	sort.Strings(files)
	for _, f := range files[:len(files)-maxFiles] {
		if err := os.Remove(f); err != nil {
			return fmt.Errorf("remove %s: %w", f, err)
		}
	}
	return nil
}

// =============================================================================
// CONTEXT FIELDS
// =============================================================================

type ctxKey struct{}

// WithAttrs returns a context carrying extra logger fields.
func WithAttrs(ctx context.Context, kv ...any) context.Context {
	prev, _ := ctx.Value(ctxKey{}).([]any)
	merged := make([]any, 0, len(prev)+len(kv))
	merged = append(merged, prev...)
	merged = append(merged, kv...)
	return context.WithValue(ctx, ctxKey{}, merged)
}

// FromContext returns base (or slog.Default when nil) with the context's
// fields attached.
func FromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if ctx == nil {
		return base
	}
	kv, _ := ctx.Value(ctxKey{}).([]any)
	if len(kv) == 0 {
		return base
	}
	return base.With(kv...)
}

// OrDefault returns l, or slog.Default when l is nil.
func OrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
