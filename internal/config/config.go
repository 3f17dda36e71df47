// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/shraga-tui/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete shraga configuration.
type Config struct {
	Version string `toml:"version" json:"version" yaml:"version"`

	Server  ServerConfig  `toml:"server" json:"server" yaml:"server"`
	Auth    AuthConfig    `toml:"auth" json:"auth" yaml:"auth"`
	UI      UIConfig      `toml:"ui" json:"ui" yaml:"ui"`
	Logging LoggingConfig `toml:"logging" json:"logging" yaml:"logging"`
}

// ServerConfig describes the backend the client talks to.
type ServerConfig struct {
	// BaseURL is the backend root; API paths are joined onto it.
	BaseURL string `toml:"base_url" json:"base_url" yaml:"base_url"`
	// RequestTimeoutSecs bounds catalog, history and feedback requests.
	RequestTimeoutSecs int `toml:"request_timeout_secs" json:"request_timeout_secs" yaml:"request_timeout_secs"`
	// TurnTimeoutSecs bounds a single flow run.
	TurnTimeoutSecs int `toml:"turn_timeout_secs" json:"turn_timeout_secs" yaml:"turn_timeout_secs"`
	// RequestsPerSecond paces outgoing requests (0 = unlimited).
	RequestsPerSecond float64 `toml:"requests_per_second" json:"requests_per_second" yaml:"requests_per_second"`
	// Burst is the number of requests allowed above the steady rate.
	Burst int `toml:"burst" json:"burst" yaml:"burst"`
}

// AuthConfig describes where the credential lives.
type AuthConfig struct {
	// StorePath is the credential jar database (empty = ~/.shraga/auth.db).
	StorePath string `toml:"store_path" json:"store_path" yaml:"store_path"`
	// TTLHours is how long a stored credential stays valid.
	TTLHours int `toml:"ttl_hours" json:"ttl_hours" yaml:"ttl_hours"`
	// WatchStore refreshes history when another process changes the jar.
	WatchStore bool `toml:"watch_store" json:"watch_store" yaml:"watch_store"`

	// Credential is only ever set from SHRAGA_AUTH and is never persisted.
	Credential string `toml:"-" json:"-" yaml:"-"`
}

// UIConfig contains terminal UI preferences.
type UIConfig struct {
	Theme     string `toml:"theme" json:"theme" yaml:"theme"`
	ShowTrace bool   `toml:"show_trace" json:"show_trace" yaml:"show_trace"`
	// MaxInputLength caps the composer (0 = use the server setting).
	MaxInputLength int `toml:"max_input_length" json:"max_input_length" yaml:"max_input_length"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level  string `toml:"level" json:"level" yaml:"level"`
	Format string `toml:"format" json:"format" yaml:"format"`
	// Dir receives timestamped log files (empty = ~/.shraga/logs).
	Dir      string `toml:"dir" json:"dir" yaml:"dir"`
	MaxFiles int    `toml:"max_files" json:"max_files" yaml:"max_files"`
}

// RequestTimeout returns the generic request timeout.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// TurnTimeout returns the flow run timeout.
func (s ServerConfig) TurnTimeout() time.Duration {
	return time.Duration(s.TurnTimeoutSecs) * time.Second
}

// TTL returns the credential lifetime.
func (a AuthConfig) TTL() time.Duration {
	return time.Duration(a.TTLHours) * time.Hour
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			BaseURL:            "http://localhost:8000",
			RequestTimeoutSecs: 120,
			TurnTimeoutSecs:    300,
			RequestsPerSecond:  0,
			Burst:              4,
		},
		Auth: AuthConfig{
			TTLHours:   24,
			WatchStore: true,
		},
		UI: UIConfig{
			Theme: "auto",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			MaxFiles: 10,
		},
	}
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = d.Server.BaseURL
	}
	c.Server.BaseURL = strings.TrimRight(c.Server.BaseURL, "/")
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = d.Server.RequestTimeoutSecs
	}
	if c.Server.TurnTimeoutSecs == 0 {
		c.Server.TurnTimeoutSecs = d.Server.TurnTimeoutSecs
	}
	if c.Server.Burst == 0 {
		c.Server.Burst = d.Server.Burst
	}
	if c.Auth.TTLHours == 0 {
		c.Auth.TTLHours = d.Auth.TTLHours
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Logging.Level == "" {
		c.Logging.Level = d.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = d.Logging.Format
	}
	if c.Logging.MaxFiles == 0 {
		c.Logging.MaxFiles = d.Logging.MaxFiles
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the shraga configuration directory path.
func Dir() (string, error) {
	if dir := os.Getenv("SHRAGA_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".shraga"), nil
}

// Paths returns the candidate config files in load order.
func Paths() ([]string, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return []string{
		filepath.Join(dir, "config.toml"),
		filepath.Join(dir, "config.json"),
		filepath.Join(dir, "config.yaml"),
	}, nil
}

// StorePath returns the credential jar path, resolving the default.
func (c *Config) StorePath() (string, error) {
	if c.Auth.StorePath != "" {
		return c.Auth.StorePath, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "auth.db"), nil
}

// LogDir returns the log directory, resolving the default.
func (c *Config) LogDir() (string, error) {
	if c.Logging.Dir != "" {
		return c.Logging.Dir, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "logs"), nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load reads ./.env, then the first config file that exists, then applies
// environment overrides, defaults and validation. With no config file the
// defaults are used.
func Load() (*Config, error) {
	// A missing .env file is the common case.
	_ = godotenv.Load()

	paths, err := Paths()
	if err != nil {
		return nil, err
	}
	for _, path := range paths {
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFromPath(path)
		}
	}

	return finish(Default())
}

// LoadFromPath loads configuration from a specific file. The format is
// chosen by extension; anything other than .json, .yaml or .yml is TOML.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := Decode(cfg, data, FormatOf(path)); err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
	}
	return finish(cfg)
}

// Decode parses data in the given format ("toml", "json" or "yaml").
func Decode(cfg *Config, data []byte, format string) error {
	switch format {
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON: %w", err)
		}
	case "yaml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode YAML: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("failed to decode TOML: %w", err)
		}
	default:
		return fmt.Errorf("unknown config format %q", format)
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// FormatOf returns the config format implied by the extension of path.
func FormatOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "toml"
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to path in the format implied by its extension.
// SECURITY: Config files are written 0600.
func Save(cfg *Config, path string) error {
	data, err := Encode(cfg, FormatOf(path))
	if err != nil {
		return err
	}
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Encode renders cfg in the given format.
func Encode(cfg *Config, format string) ([]byte, error) {
	switch format {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return data, nil
	default:
		var buf bytes.Buffer
		buf.WriteString("# shraga configuration file\n\n")
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("failed to encode config: %w", err)
		}
		return buf.Bytes(), nil
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

var (
	validLevels  = []any{"debug", "info", "warn", "error"}
	validFormats = []any{"text", "json"}
	validThemes  = []any{"auto", "dark", "light"}
)

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	return validation.Errors{
		"server": validation.ValidateStruct(&c.Server,
			validation.Field(&c.Server.BaseURL, validation.Required, validation.By(httpURL)),
			validation.Field(&c.Server.RequestTimeoutSecs, validation.Min(1)),
			validation.Field(&c.Server.TurnTimeoutSecs, validation.Min(1)),
			validation.Field(&c.Server.RequestsPerSecond, validation.Min(0.0)),
			validation.Field(&c.Server.Burst, validation.Min(1)),
		),
		"auth": validation.ValidateStruct(&c.Auth,
			validation.Field(&c.Auth.TTLHours, validation.Min(1)),
		),
		"ui": validation.ValidateStruct(&c.UI,
			validation.Field(&c.UI.Theme, validation.In(validThemes...)),
			validation.Field(&c.UI.MaxInputLength, validation.Min(0)),
		),
		"logging": validation.ValidateStruct(&c.Logging,
			validation.Field(&c.Logging.Level, validation.In(validLevels...)),
			validation.Field(&c.Logging.Format, validation.In(validFormats...)),
			validation.Field(&c.Logging.MaxFiles, validation.Min(1)),
		),
	}.Filter()
}

func httpURL(value any) error {
	s, _ := value.(string)
	u, err := url.Parse(s)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.New("must be an http or https URL")
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - SHRAGA_SERVER_URL: overrides server.base_url
//   - SHRAGA_TURN_TIMEOUT: overrides server.turn_timeout_secs
//   - SHRAGA_RPS: overrides server.requests_per_second
//   - SHRAGA_AUTH: credential to use instead of the stored one
//   - SHRAGA_AUTH_STORE: overrides auth.store_path
//   - SHRAGA_THEME: overrides ui.theme
//   - SHRAGA_LOG_LEVEL, SHRAGA_LOG_FORMAT, SHRAGA_LOG_DIR: logging overrides
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SHRAGA_SERVER_URL"); v != "" {
		c.Server.BaseURL = v
	}
	if v := os.Getenv("SHRAGA_TURN_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.TurnTimeoutSecs = n
		}
	}
	if v := os.Getenv("SHRAGA_RPS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			c.Server.RequestsPerSecond = f
		}
	}
	if v := os.Getenv("SHRAGA_AUTH"); v != "" {
		c.Auth.Credential = v
	}
	if v := os.Getenv("SHRAGA_AUTH_STORE"); v != "" {
		c.Auth.StorePath = v
	}
	if v := os.Getenv("SHRAGA_THEME"); v != "" {
		c.UI.Theme = strings.ToLower(v)
	}
	if v := os.Getenv("SHRAGA_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	if v := os.Getenv("SHRAGA_LOG_FORMAT"); v != "" {
		c.Logging.Format = strings.ToLower(v)
	}
	if v := os.Getenv("SHRAGA_LOG_DIR"); v != "" {
		c.Logging.Dir = v
	}
}
