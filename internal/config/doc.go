// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for shraga.
//
// Supports TOML, JSON and YAML configuration formats, with defaults,
// environment variable overrides (optionally read from a .env file), and
// validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - ServerConfig: Backend URL, timeouts and request pacing
//   - AuthConfig: Credential store location
//   - UIConfig: Terminal UI preferences
//   - LoggingConfig: Log level, format and log file rotation
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (SHRAGA_*), including those from ./.env
//   - ~/.shraga/config.toml
//   - ~/.shraga/config.json
//   - ~/.shraga/config.yaml
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(cfg.Server.BaseURL, creds).
//	    WithTimeout(cfg.Server.RequestTimeout())
package config
