// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
//
// Subcommands:
//
//	show (default)      Display the effective configuration
//	path                Show the configuration file locations
//	init [--force]      Write the default configuration
//	set <key> <value>   Set a configuration value
//
// Flags:
//
//	--format toml|json|yaml   Output format for show (default: toml)
//
// Configuration Keys:
//
//	server.base_url             Backend root URL
//	server.request_timeout_secs Timeout for catalog, history and feedback calls
//	server.turn_timeout_secs    Timeout for one flow run
//	server.requests_per_second  Request pacing (0 = unlimited)
//	auth.ttl_hours              Stored credential lifetime
//	auth.watch_store            Refresh history when the credential changes
//	ui.theme                    auto, dark or light
//	ui.show_trace               Show bot traces
//	logging.level               debug, info, warn or error

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jeranaias/shraga-tui/internal/config"
)

// ConfigPathData is the JSON form of `config path`.
type ConfigPathData struct {
	Active     string   `json:"active,omitempty"`
	Candidates []string `json:"candidates"`
	Dir        string   `json:"dir"`
}

// HandleConfig handles "shraga config". cfg is the loaded configuration.
func HandleConfig(w io.Writer, cfg *config.Config, args Args) error {
	p := NewArgParser(args.Raw, "force", "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	switch p.Subcommand() {
	case "", "show":
		return configShow(w, cfg, p.FlagOrDefault("format", "toml"), jsonMode)
	case "path":
		return configPath(w, args.ConfigPath, jsonMode)
	case "init":
		return configInit(w, args.ConfigPath, p.BoolFlag("force"))
	case "set":
		if p.PositionalCount() < 3 {
			return ErrMissingArgument("key and value", "shraga config set server.base_url https://shraga.example.com")
		}
		return configSet(w, args.ConfigPath, p.Positional(1), strings.Join(p.PositionalFrom(2), " "))
	default:
		return NewValidationErrorWithExample("subcommand", p.Subcommand(),
			"unknown config subcommand", "shraga config show|path|init|set")
	}
}

func configShow(w io.Writer, cfg *config.Config, format string, jsonMode bool) error {
	if jsonMode {
		return NewJSONResponse("config show", cfg).Write(w)
	}
	format = strings.ToLower(format)
	if format == "yml" {
		format = "yaml"
	}
	data, err := config.Encode(cfg, format)
	if err != nil {
		return ErrUnsupportedFormat(format, []string{"toml", "json", "yaml"})
	}
	_, err = w.Write(data)
	return err
}

// activePath returns the file config would be loaded from, or "".
func activePath(explicit string) (string, []string, error) {
	paths, err := config.Paths()
	if err != nil {
		return "", nil, err
	}
	if explicit != "" {
		return explicit, paths, nil
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p, paths, nil
		}
	}
	return "", paths, nil
}

func configPath(w io.Writer, explicit string, jsonMode bool) error {
	active, paths, err := activePath(explicit)
	if err != nil {
		return &ConfigError{Err: err}
	}
	dir, _ := config.Dir()

	if jsonMode {
		return NewJSONResponse("config path", ConfigPathData{Active: active, Candidates: paths, Dir: dir}).Write(w)
	}
	if active == "" {
		fmt.Fprintf(w, "%s (none, using defaults)\n", RenderLabel("Active:"))
	} else {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Active:"), active)
	}
	for _, p := range paths {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Candidate:"), DimStyle.Render(p))
	}
	return nil
}

func configInit(w io.Writer, explicit string, force bool) error {
	active, paths, err := activePath(explicit)
	if err != nil {
		return &ConfigError{Err: err}
	}
	target := active
	if target == "" {
		target = paths[0]
	}
	if _, err := os.Stat(target); err == nil && !force {
		return NewValidationErrorWithExample("config", target, "already exists", "shraga config init --force")
	}
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return &ConfigError{Path: target, Err: err}
	}
	if err := config.Save(config.Default(), target); err != nil {
		return &ConfigError{Path: target, Err: err}
	}
	fmt.Fprintf(w, "%s Wrote %s\n", SuccessStyle.Render("[OK]"), target)
	return nil
}

// configSet loads the file config (not the environment-adjusted one),
// changes key and saves it back.
func configSet(w io.Writer, explicit, key, value string) error {
	active, paths, err := activePath(explicit)
	if err != nil {
		return &ConfigError{Err: err}
	}

	cfg := config.Default()
	target := active
	if target == "" {
		target = paths[0]
	} else if data, err := os.ReadFile(target); err == nil {
		cfg = &config.Config{}
		if err := config.Decode(cfg, data, config.FormatOf(target)); err != nil {
			return &ConfigError{Path: target, Err: err}
		}
		cfg.SetDefaults()
	}

	if err := setKey(cfg, key, value); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return NewValidationError(key, value, err.Error())
	}
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return &ConfigError{Path: target, Err: err}
	}
	if err := config.Save(cfg, target); err != nil {
		return &ConfigError{Path: target, Err: err}
	}
	fmt.Fprintf(w, "%s %s = %s\n", SuccessStyle.Render("[OK]"), key, value)
	return nil
}

func setKey(cfg *config.Config, key, value string) error {
	atoi := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return 0, NewValidationError(key, value, "expected a non-negative integer")
		}
		return n, nil
	}
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, NewValidationError(key, value, "expected true or false")
		}
		return b, nil
	}

	var err error
	switch strings.ToLower(key) {
	case "server.base_url":
		cfg.Server.BaseURL = value
	case "server.request_timeout_secs":
		cfg.Server.RequestTimeoutSecs, err = atoi()
	case "server.turn_timeout_secs":
		cfg.Server.TurnTimeoutSecs, err = atoi()
	case "server.requests_per_second":
		f, perr := strconv.ParseFloat(value, 64)
		if perr != nil || f < 0 {
			return NewValidationError(key, value, "expected a non-negative number")
		}
		cfg.Server.RequestsPerSecond = f
	case "auth.ttl_hours":
		cfg.Auth.TTLHours, err = atoi()
	case "auth.watch_store":
		cfg.Auth.WatchStore, err = parseBool()
	case "ui.theme":
		cfg.UI.Theme = strings.ToLower(value)
	case "ui.show_trace":
		cfg.UI.ShowTrace, err = parseBool()
	case "logging.level":
		cfg.Logging.Level = strings.ToLower(value)
	default:
		return NewValidationErrorWithExample("key", key, "unknown configuration key", "shraga help config")
	}
	return err
}
