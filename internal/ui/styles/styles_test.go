// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestLayoutMode(t *testing.T) {
	theme := NewTheme("dark")

	tests := []struct {
		width   int
		mode    LayoutMode
		sidebar int
	}{
		{40, LayoutNarrow, 0},
		{59, LayoutNarrow, 0},
		{60, LayoutMedium, 24},
		{99, LayoutMedium, 24},
		{100, LayoutWide, 32},
	}
	for _, tc := range tests {
		theme.SetSize(tc.width, 30)
		if got := theme.GetLayoutMode(); got != tc.mode {
			t.Errorf("width %d: mode = %v, want %v", tc.width, got, tc.mode)
		}
		if got := theme.SidebarWidth(); got != tc.sidebar {
			t.Errorf("width %d: sidebar = %d, want %d", tc.width, got, tc.sidebar)
		}
	}
}

func TestThemeModes(t *testing.T) {
	if !NewTheme("dark").IsDark {
		t.Error("dark theme reports light")
	}
	if NewTheme("LIGHT").IsDark {
		t.Error("light theme reports dark")
	}
}

func TestRenderHelpersKeepIndicators(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{RenderSuccess("saved"), "[OK] saved"},
		{RenderError("failed"), "[X] failed"},
		{RenderWarning("slow"), "[!] slow"},
		{RenderInfo("note"), "[i] note"},
	}
	for _, tc := range tests {
		if !strings.Contains(tc.got, tc.want) {
			t.Errorf("%q does not contain %q", tc.got, tc.want)
		}
	}
}
