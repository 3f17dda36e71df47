// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds all the styled components for the application.
// It detects the terminal's color capability and adjusts accordingly.
type Theme struct {
	// Terminal capabilities
	IsDark       bool
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// FRAME
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderFlow  lipgloss.Style
	StatusBar   lipgloss.Style

	// ==========================================================================
	// SESSION LIST
	// ==========================================================================

	Sidebar      lipgloss.Style
	GroupLabel   lipgloss.Style
	SessionItem  lipgloss.Style
	SessionSel   lipgloss.Style
	UnseenMarker lipgloss.Style

	// ==========================================================================
	// MESSAGES
	// ==========================================================================

	UserLabel  lipgloss.Style
	UserBody   lipgloss.Style
	BotLabel   lipgloss.Style
	BotBody    lipgloss.Style
	ErrorLabel lipgloss.Style
	ErrorBody  lipgloss.Style
	Timestamp  lipgloss.Style
	Source     lipgloss.Style
	Trace      lipgloss.Style
	Pending    lipgloss.Style

	// ==========================================================================
	// INPUT AND FEEDBACK
	// ==========================================================================

	InputContainer lipgloss.Style
	InputPrompt    lipgloss.Style
	Completion     lipgloss.Style
	CompletionSel  lipgloss.Style
	ThumbsUp       lipgloss.Style
	ThumbsDown     lipgloss.Style
	Notice         lipgloss.Style
	ErrorNotice    lipgloss.Style
	Muted          lipgloss.Style
}

// NewTheme creates a theme. mode is "dark", "light" or "auto".
func NewTheme(mode string) *Theme {
	colorProfile := termenv.ColorProfile()

	isDark := true
	switch strings.ToLower(mode) {
	case "light":
		isDark = false
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	default:
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		IsDark:       isDark,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)
	t.HeaderTitle = lipgloss.NewStyle().Bold(true).Foreground(Purple)
	t.HeaderFlow = lipgloss.NewStyle().Foreground(Cyan)
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		PaddingRight(1)
	t.GroupLabel = lipgloss.NewStyle().Foreground(TextMuted).Bold(true)
	t.SessionItem = lipgloss.NewStyle().Foreground(TextPrimary)
	t.SessionSel = lipgloss.NewStyle().
		Foreground(TextPrimary).
		Background(SelectionBg).
		Bold(true)
	t.UnseenMarker = lipgloss.NewStyle().Foreground(Amber).Bold(true)

	t.UserLabel = lipgloss.NewStyle().Foreground(UserBorder).Bold(true)
	t.UserBody = lipgloss.NewStyle().
		Foreground(UserFg).
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)
	t.BotLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	t.BotBody = lipgloss.NewStyle().
		Foreground(BotFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(BotBorder).
		PaddingLeft(1)
	t.ErrorLabel = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.ErrorBody = lipgloss.NewStyle().
		Foreground(ErrorFg).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ErrorBorder).
		PaddingLeft(1)
	t.Timestamp = lipgloss.NewStyle().Foreground(TextMuted)
	t.Source = lipgloss.NewStyle().Foreground(LinkColor)
	t.Trace = lipgloss.NewStyle().Foreground(TextMuted).Italic(true)
	t.Pending = lipgloss.NewStyle().Foreground(Amber).Italic(true)

	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(0, 1)
	t.InputPrompt = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.Completion = lipgloss.NewStyle().Foreground(TextSecondary)
	t.CompletionSel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	t.ThumbsUp = lipgloss.NewStyle().Foreground(Emerald)
	t.ThumbsDown = lipgloss.NewStyle().Foreground(Rose)
	t.Notice = lipgloss.NewStyle().Foreground(Cyan)
	t.ErrorNotice = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	t.Muted = lipgloss.NewStyle().Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth is the session list width for the current layout, or 0
// when the list is hidden.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutWide:
		return 32
	case LayoutMedium:
		return 24
	default:
		return 0
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
