// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// =============================================================================
// PARSER TESTS
// =============================================================================

func TestIsCommand(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"/help", true},
		{"/select 3f2a", true},
		{"  /help", true},
		{"hello", false},
		{"hello /help", false},
		{"", false},
		{"/", true},
		{"//etc/hosts is a path", false},
	}

	for _, tc := range tests {
		got := IsCommand(tc.input)
		if got != tc.want {
			t.Errorf("IsCommand(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestUnescape(t *testing.T) {
	if got := Unescape("//etc/hosts"); got != "/etc/hosts" {
		t.Errorf("Unescape = %q", got)
	}
	if got := Unescape("plain"); got != "plain" {
		t.Errorf("Unescape = %q", got)
	}
}

func TestExtractCommandName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/help", "/help"},
		{"/select abc", "/select"},
		{"  /help  ", "/help"},
		{"hello", ""},
		{"/", "/"},
	}

	for _, tc := range tests {
		got := ExtractCommandName(tc.input)
		if got != tc.want {
			t.Errorf("ExtractCommandName(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGetPartialCommand(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"/hel", "/hel"},
		{"/help", "/help"},
		{"/select ", ""},
		{"/select abc", ""},
		{"hello", ""},
	}

	for _, tc := range tests {
		got := GetPartialCommand(tc.input)
		if got != tc.want {
			t.Errorf("GetPartialCommand(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestGetPartialArg(t *testing.T) {
	tests := []struct {
		input       string
		wantIndex   int
		wantPartial string
	}{
		{"/select", 0, ""},
		{"/select ", 0, ""},
		{"/select ab", 0, "ab"},
		{"/feedback up ", 1, ""},
		{"/feedback up go", 1, "go"},
	}

	for _, tc := range tests {
		idx, partial := GetPartialArg(tc.input)
		if idx != tc.wantIndex || partial != tc.wantPartial {
			t.Errorf("GetPartialArg(%q) = (%d, %q), want (%d, %q)",
				tc.input, idx, partial, tc.wantIndex, tc.wantPartial)
		}
	}
}

func TestSplitCommandLine(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"a b  c", []string{"a", "b", "c"}},
		{`up "great answer"`, []string{"up", "great answer"}},
		{`down 'it said \'no\''`, []string{"down", "it said 'no'"}},
		{`x ""`, []string{"x", ""}},
		{"שלום עולם", []string{"שלום", "עולם"}},
		{`"מה שלומך" ok`, []string{"מה שלומך", "ok"}},
	}

	for _, tc := range tests {
		got := splitCommandLine(tc.input)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitCommandLine(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestSplitAssignments(t *testing.T) {
	pos, assigns := splitAssignments([]string{"kb", "history_window=5", "=x", "lang=he"})
	if !reflect.DeepEqual(pos, []string{"kb", "=x"}) {
		t.Errorf("positional = %q", pos)
	}
	if assigns["history_window"] != "5" || assigns["lang"] != "he" || len(assigns) != 2 {
		t.Errorf("assigns = %v", assigns)
	}
}

func TestParse(t *testing.T) {
	p := NewParser(NewRegistry())

	res := p.Parse(`/FB down "wrong source"`)
	if !res.IsCommand || res.Command == nil || res.Command.Name != "/feedback" {
		t.Fatalf("Parse did not resolve alias: %+v", res)
	}
	if !reflect.DeepEqual(res.Args, []string{"down", "wrong source"}) {
		t.Errorf("Args = %q", res.Args)
	}
	if res.RawArgs != `down "wrong source"` {
		t.Errorf("RawArgs = %q", res.RawArgs)
	}

	if res := p.Parse("hi there"); res.IsCommand {
		t.Error("plain text parsed as command")
	}
	if res := p.Parse("/nope"); !res.IsCommand || res.Command != nil {
		t.Errorf("unknown command: %+v", res)
	}
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidateArgs(t *testing.T) {
	r := NewRegistry()
	fb := r.Get("/feedback")

	if err := ValidateArgs(fb, nil); err == nil {
		t.Error("missing verdict accepted")
	}
	if err := ValidateArgs(fb, []string{"UP"}); err != nil {
		t.Errorf("enum is case-insensitive: %v", err)
	}

	err := ValidateArgs(fb, []string{"sideways"})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if verr.Got != "sideways" || !strings.Contains(verr.Error(), "up, down") {
		t.Errorf("unexpected error: %v", verr)
	}

	if err := ValidateArgs(nil, nil); err != nil {
		t.Errorf("nil command: %v", err)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{
		"/help", "/quit", "/new", "/sessions", "/select", "/remove",
		"/refresh", "/export", "/abort", "/feedback", "/trace", "/flows", "/prefs",
	} {
		cmd := r.Get(name)
		if cmd == nil {
			t.Errorf("missing builtin %s", name)
			continue
		}
		if cmd.Handler == nil {
			t.Errorf("%s has no handler", name)
		}
	}

	if r.Get("/q") != r.Get("/quit") {
		t.Error("alias /q does not resolve to /quit")
	}
	if r.Get("/missing") != nil {
		t.Error("unknown command resolved")
	}
}

func TestRegistryByCategory(t *testing.T) {
	r := NewRegistry()
	r.Register(&Command{Name: "/secret", Hidden: true})
	r.Register(&Command{Name: "/misc"})

	groups := r.ByCategory()
	for _, cmds := range groups {
		for _, c := range cmds {
			if c.Name == "/secret" {
				t.Error("hidden command listed")
			}
		}
	}
	if len(groups["General"]) != 1 || groups["General"][0].Name != "/misc" {
		t.Errorf("General = %v", groups["General"])
	}
}

func TestExecute_UnknownAndInvalid(t *testing.T) {
	r := NewRegistry()
	ctx := &Context{}

	msg := r.Execute(ctx, "/bogus")()
	em, ok := msg.(ErrorMsg)
	if !ok || em.Title != "Unknown command" {
		t.Errorf("unknown: %#v", msg)
	}

	msg = r.Execute(ctx, "/select")()
	em, ok = msg.(ErrorMsg)
	if !ok || em.Title != "Invalid arguments" {
		t.Errorf("invalid: %#v", msg)
	}

	if cmd := r.Execute(ctx, "just chatting"); cmd != nil {
		t.Error("plain text produced a command")
	}
}

func TestGenerateHelpText(t *testing.T) {
	r := NewRegistry()

	full := GenerateHelpText(r, "")
	for _, want := range []string{"Sessions", "/select <session>", "/feedback <up|down> [comment]", "//"} {
		if !strings.Contains(full, want) {
			t.Errorf("help missing %q", want)
		}
	}

	one := GenerateHelpText(r, "feedback")
	if !strings.Contains(one, "Aliases: /fb") || !strings.Contains(one, "up|down") {
		t.Errorf("command help = %q", one)
	}

	if got := GenerateHelpText(r, "/nope"); !strings.HasPrefix(got, "Unknown command") {
		t.Errorf("unknown topic = %q", got)
	}
}
