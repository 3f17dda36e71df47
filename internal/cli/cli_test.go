// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jeranaias/shraga-tui/internal/api"
	"github.com/jeranaias/shraga-tui/internal/history"
	"github.com/jeranaias/shraga-tui/internal/turn"
)

// =============================================================================
// ARG PARSER TESTS (args.go)
// =============================================================================

func TestArgParser_BasicParsing(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		switches []string
		wantSub  string
		validate func(*testing.T, *ArgParser)
	}{
		{
			name:    "simple subcommand",
			args:    []string{"list"},
			wantSub: "list",
		},
		{
			name:    "subcommand with flag",
			args:    []string{"export", "3f2a", "--format", "json"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("format") != "json" {
					t.Errorf("Flag(format) = %q, want %q", p.Flag("format"), "json")
				}
				if p.Positional(1) != "3f2a" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "3f2a")
				}
			},
		},
		{
			name:    "flag with equals",
			args:    []string{"analytics", "--since=2025-01-01"},
			wantSub: "analytics",
			validate: func(t *testing.T, p *ArgParser) {
				if p.Flag("since") != "2025-01-01" {
					t.Errorf("Flag(since) = %q, want %q", p.Flag("since"), "2025-01-01")
				}
			},
		},
		{
			name:    "trailing boolean flag",
			args:    []string{"delete", "3f2a", "--confirm"},
			wantSub: "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be true")
				}
			},
		},
		{
			name:     "switch does not swallow positional",
			args:     []string{"delete", "--confirm", "3f2a"},
			switches: []string{"confirm"},
			wantSub:  "delete",
			validate: func(t *testing.T, p *ArgParser) {
				if !p.BoolFlag("confirm") {
					t.Error("BoolFlag(confirm) should be true")
				}
				if p.Positional(1) != "3f2a" {
					t.Errorf("Positional(1) = %q, want %q", p.Positional(1), "3f2a")
				}
			},
		},
		{
			name:    "short alias",
			args:    []string{"export", "x", "-o", "/tmp/out"},
			wantSub: "export",
			validate: func(t *testing.T, p *ArgParser) {
				if got := p.FirstFlag("output", "o"); got != "/tmp/out" {
					t.Errorf("FirstFlag(output, o) = %q, want %q", got, "/tmp/out")
				}
			},
		},
		{
			name:    "multiple positional args",
			args:    []string{"set", "server.base_url", "http://a", "b"},
			wantSub: "set",
			validate: func(t *testing.T, p *ArgParser) {
				if p.PositionalCount() != 4 {
					t.Errorf("PositionalCount() = %d, want 4", p.PositionalCount())
				}
				joined := strings.Join(p.PositionalFrom(2), " ")
				if joined != "http://a b" {
					t.Errorf("PositionalFrom(2) joined = %q", joined)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewArgParser(tt.args, tt.switches...)
			if parser.Subcommand() != tt.wantSub {
				t.Errorf("Subcommand() = %q, want %q", parser.Subcommand(), tt.wantSub)
			}
			if tt.validate != nil {
				tt.validate(t, parser)
			}
		})
	}
}

func TestArgParser_EmptyArgs(t *testing.T) {
	p := NewArgParser(nil)
	if p.Subcommand() != "" || p.PositionalCount() != 0 || p.HasFlag("json") {
		t.Errorf("empty parser should have no subcommand, positionals or flags")
	}
	if p.Positional(3) != "" {
		t.Error("Positional out of range should be empty")
	}
	if got := p.FlagOrDefault("format", "md"); got != "md" {
		t.Errorf("FlagOrDefault = %q, want md", got)
	}
}

func TestArgParser_FlagDate(t *testing.T) {
	p := NewArgParser([]string{"stats", "--since", "2025-03-04", "--until", "tomorrow"})

	since, err := p.FlagDate("since")
	if err != nil {
		t.Fatalf("FlagDate(since) error: %v", err)
	}
	if since.Year() != 2025 || since.Month() != time.March || since.Day() != 4 {
		t.Errorf("FlagDate(since) = %v", since)
	}

	if _, err := p.FlagDate("until"); err == nil {
		t.Error("FlagDate(until) should reject a non-date")
	}

	missing, err := p.FlagDate("missing")
	if err != nil || !missing.IsZero() {
		t.Errorf("absent flag should give zero time, got %v, %v", missing, err)
	}
}

// =============================================================================
// COMMAND PARSING TESTS (cli.go)
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantCommand Command
		validate    func(*testing.T, Args)
	}{
		{
			name:        "no args starts the TUI",
			args:        nil,
			wantCommand: CmdTUI,
		},
		{
			name:        "ask command",
			args:        []string{"ask", "What", "is", "Shraga?"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Query != "What is Shraga?" {
					t.Errorf("Query = %q", a.Query)
				}
			},
		},
		{
			name:        "ask with flow and rtl",
			args:        []string{"a", "--flow", "docs", "--rtl", "שלום"},
			wantCommand: CmdAsk,
			validate: func(t *testing.T, a Args) {
				if a.Flow != "docs" || !a.RTL || a.Query != "שלום" {
					t.Errorf("got Flow=%q RTL=%v Query=%q", a.Flow, a.RTL, a.Query)
				}
			},
		},
		{
			name:        "flow with equals",
			args:        []string{"chat", "--flow=kb"},
			wantCommand: CmdChat,
			validate: func(t *testing.T, a Args) {
				if a.Flow != "kb" {
					t.Errorf("Flow = %q, want kb", a.Flow)
				}
			},
		},
		{
			name:        "history subcommand with global json",
			args:        []string{"--json", "history", "list"},
			wantCommand: CmdHistory,
			validate: func(t *testing.T, a Args) {
				if !a.JSON || a.Subcommand != "list" {
					t.Errorf("got JSON=%v Subcommand=%q", a.JSON, a.Subcommand)
				}
				if len(a.Raw) != 1 || a.Raw[0] != "list" {
					t.Errorf("Raw = %v", a.Raw)
				}
			},
		},
		{
			name:        "config path flag",
			args:        []string{"--config", "/etc/shraga.toml", "cfg", "show"},
			wantCommand: CmdConfig,
			validate: func(t *testing.T, a Args) {
				if a.ConfigPath != "/etc/shraga.toml" {
					t.Errorf("ConfigPath = %q", a.ConfigPath)
				}
			},
		},
		{
			name:        "auth alias",
			args:        []string{"login", "status"},
			wantCommand: CmdAuth,
		},
		{
			name:        "version flag",
			args:        []string{"--version"},
			wantCommand: CmdVersion,
		},
		{
			name:        "unknown command",
			args:        []string{"histroy"},
			wantCommand: CmdHelp,
			validate: func(t *testing.T, a Args) {
				if a.Unknown != "histroy" {
					t.Errorf("Unknown = %q", a.Unknown)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.args)
			if cmd != tt.wantCommand {
				t.Errorf("command = %v, want %v", cmd, tt.wantCommand)
			}
			if tt.validate != nil {
				tt.validate(t, args)
			}
		})
	}
}

func TestSuggestCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"histroy", "history"},
		{"flws", "flows"},
		{"hepl", "help"},
		{"confg", "config"},
		{"x", ""},
		{"zzzzzzzz", ""},
	}
	for _, tt := range tests {
		if got := SuggestCommand(tt.input); got != tt.want {
			t.Errorf("SuggestCommand(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHandleHelp_UnknownCommandSuggests(t *testing.T) {
	err := HandleHelp(Args{Unknown: "histroy"})
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
	if !strings.Contains(err.Error(), `"history"`) {
		t.Errorf("error should suggest history: %v", err)
	}
	if GetExitCode(err) != ExitUsageError {
		t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitUsageError)
	}
}

// =============================================================================
// ERROR TESTS (errors.go)
// =============================================================================

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"validation", NewValidationError("id", "", "missing"), ExitUsageError},
		{"config", &ConfigError{Path: "x", Err: errors.New("bad")}, ExitConfigError},
		{"unauthenticated", fmt.Errorf("list: %w", history.ErrUnauthenticated), ExitAuthError},
		{"unauthorized", &api.APIError{Status: 401}, ExitAuthError},
		{"not found", NewNotFoundError("session", "x"), ExitNotFoundError},
		{"api not found", &api.APIError{Status: 404}, ExitNotFoundError},
		{"timeout", fmt.Errorf("run: %w", turn.ErrTimeout), ExitTimeoutError},
		{"server error", &api.APIError{Status: 500}, ExitGeneralError},
		{"malformed", api.ErrMalformedResponse, ExitNetworkError},
		{"generic", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetExitCode(tt.err); got != tt.want {
				t.Errorf("GetExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDisplayError_AuthHint(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, fmt.Errorf("history: %w", history.ErrUnauthenticated), false)
	if !strings.Contains(buf.String(), "shraga auth set") {
		t.Errorf("missing auth hint: %q", buf.String())
	}

	buf.Reset()
	DisplayError(&buf, NewNotFoundError("flow", "kb"), true)
	if !strings.Contains(buf.String(), `"error_type": "not_found_error"`) {
		t.Errorf("JSON error missing type: %q", buf.String())
	}
}

// =============================================================================
// CONFIRMATION / TEXT HELPERS
// =============================================================================

func TestRequireConfirmation(t *testing.T) {
	yes, no := true, false

	ok, err := RequireConfirmation("delete", ConfirmationOptions{ConfirmFlag: true})
	if !ok || err != nil {
		t.Errorf("--confirm should proceed, got %v, %v", ok, err)
	}

	if _, err := RequireConfirmation("delete", ConfirmationOptions{JSONMode: true}); err == nil {
		t.Error("JSON mode without --confirm should fail")
	}

	if _, err := RequireConfirmation("delete", ConfirmationOptions{Interactive: &no}); err == nil {
		t.Error("non-interactive without --confirm should fail")
	}

	var out bytes.Buffer
	ok, err = RequireConfirmation("delete", ConfirmationOptions{
		Interactive: &yes, In: strings.NewReader("y\n"), Out: &out,
	})
	if !ok || err != nil {
		t.Errorf("answer y should confirm, got %v, %v", ok, err)
	}
	if !strings.Contains(out.String(), "Are you sure you want to delete?") {
		t.Errorf("prompt = %q", out.String())
	}

	ok, _ = RequireConfirmation("delete", ConfirmationOptions{
		Interactive: &yes, In: strings.NewReader("\n"), Out: &out,
	})
	if ok {
		t.Error("empty answer should decline")
	}
}

func TestWrapText(t *testing.T) {
	got := WrapText("one two three four five six", 14)
	for _, line := range strings.Split(got, "\n") {
		if len(line) > 12 {
			t.Errorf("line %q longer than 12", line)
		}
	}
	if strings.Join(strings.Fields(got), " ") != "one two three four five six" {
		t.Errorf("words changed: %q", got)
	}
}

func TestNormalizeCredential(t *testing.T) {
	tests := map[string]string{
		"abc":             "Bearer abc",
		"  Bearer abc  ":  "Bearer abc",
		"Basic dXNlcjpw": "Basic dXNlcjpw",
		"":                "",
	}
	for in, want := range tests {
		if got := normalizeCredential(in); got != want {
			t.Errorf("normalizeCredential(%q) = %q, want %q", in, got, want)
		}
	}
}
