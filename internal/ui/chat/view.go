// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/shraga-tui/internal/commands"
	"github.com/jeranaias/shraga-tui/internal/model"
	"github.com/jeranaias/shraga-tui/internal/ui/styles"
	"github.com/jeranaias/shraga-tui/internal/util"
)

const (
	// maxTraceRunes caps the pretty-printed trace shown under a reply.
	maxTraceRunes = 4000

	// maxCompletionRows is how many completions are listed at once.
	maxCompletionRows = 6

	followUpWarning = "Follow up questions are not supported"
)

// =============================================================================
// LAYOUT
// =============================================================================

// layout sizes the viewport to the space left by the header and footer.
func (m *Model) layout() {
	if !m.ready {
		return
	}
	m.theme.SetSize(m.width, m.height)

	w := m.width - m.theme.SidebarWidth()
	if w < 10 {
		w = 10
	}
	h := m.height - 1 - lipgloss.Height(m.renderFooter())
	if h < 1 {
		h = 1
	}
	m.viewport.Width = w
	m.viewport.Height = h
	if m.atBottom {
		m.viewport.GotoBottom()
	}
}

// refreshTranscript re-renders the selected session into the viewport.
func (m *Model) refreshTranscript() {
	content := m.renderTranscript()
	if content == m.lastRender {
		return
	}
	m.lastRender = content
	m.viewport.SetContent(content)
	if m.atBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View renders the chat interface.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}

	var main string
	if m.panel != "" {
		main = lipgloss.NewStyle().
			Width(m.viewport.Width).
			Height(bodyHeight).
			MaxHeight(bodyHeight).
			Render(m.panel)
	} else {
		vp := m.viewport
		vp.Height = bodyHeight
		main = vp.View()
	}

	body := main
	if sw := m.theme.SidebarWidth(); sw > 0 {
		sidebar := m.theme.Sidebar.
			Width(sw - 2).
			Height(bodyHeight).
			MaxHeight(bodyHeight).
			Render(m.renderSidebar(sw - 2))
		body = lipgloss.JoinHorizontal(lipgloss.Top, sidebar, main)
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader() string {
	title := "Shraga"
	if m.uiConfig != nil && m.uiConfig.Name != "" {
		title = m.uiConfig.Name
	}
	parts := []string{m.theme.HeaderTitle.Render(title)}

	if sel, ok := m.state.Selected(); ok {
		flow := sel.Flow.ID
		if sel.Draft {
			flow += " (new)"
		}
		parts = append(parts, m.theme.HeaderFlow.Render(flow))
	}
	if m.deps.User != "" {
		parts = append(parts, m.theme.Muted.Render(m.deps.User))
	}
	if m.state.HasUnseenUpdate {
		parts = append(parts, m.theme.UnseenMarker.Render(styles.StatusIndicators.Unseen+" new reply"))
	}

	return m.theme.Header.Width(m.width).MaxHeight(1).Render(strings.Join(parts, "  "))
}

func (m Model) renderFooter() string {
	var lines []string

	if m.completion.Visible {
		lines = append(lines, m.renderCompletions())
	}
	if m.pending {
		msg := m.uiConfig.LoadingMessage(m.loadingStep)
		lines = append(lines, m.theme.Pending.Render(m.spinner.View()+" "+msg))
	}
	if m.hasBotReply() && !m.canReply {
		lines = append(lines, styles.RenderWarning(followUpWarning))
	}
	if m.notice != "" {
		style := m.theme.Notice
		if m.noticeErr {
			style = m.theme.ErrorNotice
		}
		lines = append(lines, style.Render(util.TruncateWidth(m.notice, m.width)))
	}

	inputWidth := m.width - 4
	if inputWidth < 10 {
		inputWidth = 10
	}
	lines = append(lines, m.theme.InputContainer.Width(inputWidth).Render(m.input.View()))
	lines = append(lines, m.renderStatusBar())

	return strings.Join(lines, "\n")
}

func (m Model) hasBotReply() bool {
	sel, ok := m.state.Selected()
	if !ok {
		return false
	}
	for _, msg := range sel.Messages {
		if msg.IsSystem() && !msg.Error {
			return true
		}
	}
	return false
}

func (m Model) renderStatusBar() string {
	var parts []string
	for _, b := range m.keys.ShortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+" "+h.Desc)
	}
	if m.showTrace {
		parts = append(parts, "traces on")
	}
	text := util.TruncateWidth(strings.Join(parts, " | "), m.width-2)
	return m.theme.StatusBar.Width(m.width).Render(text)
}

func (m Model) renderCompletions() string {
	comps := m.completion.Completions
	start := 0
	if m.completion.Selected >= maxCompletionRows {
		start = m.completion.Selected - maxCompletionRows + 1
	}
	end := start + maxCompletionRows
	if end > len(comps) {
		end = len(comps)
	}

	var b strings.Builder
	for i := start; i < end; i++ {
		c := comps[i]
		line := c.Display
		if c.Description != "" {
			line += "  " + c.Description
		}
		line = util.TruncateWidth(line, m.width-2)
		if i == m.completion.Selected {
			b.WriteString(m.theme.CompletionSel.Render("> " + line))
		} else {
			b.WriteString(m.theme.Completion.Render("  " + line))
		}
		if i < end-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// =============================================================================
// SIDEBAR
// =============================================================================

func (m Model) renderSidebar(width int) string {
	if len(m.state.Sessions) == 0 {
		return m.theme.Muted.Render("No sessions")
	}

	var b strings.Builder
	for gi, g := range model.GroupByDate(m.state.Sessions, time.Now()) {
		if gi > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(m.theme.GroupLabel.Render(g.Label))
		b.WriteByte('\n')
		for _, s := range g.Sessions {
			title := util.TruncateWidth(s.Title(), width-2)
			if s.ID == m.state.SelectedID {
				b.WriteString(m.theme.SessionSel.Render("> " + title))
			} else {
				b.WriteString(m.theme.SessionItem.Render("  " + title))
			}
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

func (m *Model) renderTranscript() string {
	sel, ok := m.state.Selected()
	if !ok {
		return m.theme.Muted.Render("No session selected. Start one with /new <flow>.")
	}

	width := m.viewport.Width - 2
	if width < 20 {
		width = 20
	}

	if len(sel.Messages) == 0 {
		var b strings.Builder
		b.WriteString(m.theme.HeaderFlow.Render(sel.Flow.ID))
		if sel.Flow.Description != "" {
			b.WriteString("\n")
			b.WriteString(m.theme.Muted.Render(sel.Flow.Description))
		}
		if m.uiConfig != nil && m.uiConfig.SidebarText != "" {
			b.WriteString("\n\n")
			b.WriteString(m.uiConfig.SidebarText)
		}
		return b.String()
	}

	blocks := make([]string, 0, len(sel.Messages))
	for _, msg := range sel.Messages {
		blocks = append(blocks, m.renderMessage(sel.ID, msg, width))
	}
	return strings.Join(blocks, "\n\n")
}

func (m *Model) renderMessage(sessionID string, msg model.Message, width int) string {
	stamp := ""
	if msg.Timestamp != nil && !msg.Timestamp.IsZero() {
		stamp = " " + m.theme.Timestamp.Render(msg.Timestamp.Local().Format("15:04"))
	}

	switch {
	case msg.IsUser():
		label := m.theme.UserLabel.Render("[User]") + stamp
		body := m.theme.UserBody.Width(width).Render(msg.Text)
		if msg.RTL {
			label = lipgloss.PlaceHorizontal(width, lipgloss.Right, label)
			body = m.theme.UserBody.Width(width).Align(lipgloss.Right).Render(msg.Text)
		}
		return label + "\n" + body

	case msg.Error:
		label := m.theme.ErrorLabel.Render("[Bot] (error)") + stamp
		return label + "\n" + m.theme.ErrorBody.Width(width).Render(msg.Text)
	}

	label := m.theme.BotLabel.Render("[Bot]") + stamp + m.renderMark(sessionID, msg)

	var text string
	if msg.RTL || util.IsRTL(msg.Text) {
		text = lipgloss.NewStyle().Width(width - 2).Align(lipgloss.Right).Render(msg.Text)
	} else {
		text = m.markdown.Render(msg.Text, width-2)
	}

	parts := []string{label, m.theme.BotBody.Render(text)}
	if src := m.renderSources(msg.RetrievalResults, width); src != "" {
		parts = append(parts, src)
	}
	if m.showTrace && len(msg.Trace) > 0 {
		parts = append(parts, m.renderTrace(msg.Trace))
	}
	return strings.Join(parts, "\n")
}

// renderMark shows the rating of a reply. A local mark set this session
// wins over the one loaded from history.
func (m *Model) renderMark(sessionID string, msg model.Message) string {
	v := msg.Feedback
	if msg.Position != nil {
		if local := m.deps.Marks.Get(sessionID, *msg.Position); local != "" {
			v = local
		}
	}
	switch v {
	case model.VerdictThumbsUp:
		return " " + m.theme.ThumbsUp.Render(styles.ThumbsUpMark)
	case model.VerdictThumbsDown:
		return " " + m.theme.ThumbsDown.Render(styles.ThumbsDownMark)
	}
	return ""
}

func (m *Model) renderSources(results []model.RetrievalResult, width int) string {
	if len(results) == 0 {
		return ""
	}
	lines := []string{m.theme.Muted.Render("Sources:")}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.ID
		}
		line := fmt.Sprintf("  [%d] %s", i+1, title)
		if r.Link != "" {
			line += " " + r.Link
		}
		lines = append(lines, m.theme.Source.Render(util.TruncateWidth(line, width)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderTrace(raw json.RawMessage) string {
	var buf bytes.Buffer
	text := string(raw)
	if err := json.Indent(&buf, raw, "  ", "  "); err == nil {
		text = buf.String()
	}
	return m.theme.Trace.Render("  trace: " + util.TruncateRunes(text, maxTraceRunes))
}

// =============================================================================
// PANELS
// =============================================================================

func (m Model) keyHelp() string {
	var b strings.Builder
	b.WriteString("Keys:\n")
	for _, group := range m.keys.FullHelp() {
		for _, kb := range group {
			h := kb.Help()
			fmt.Fprintf(&b, "  %-8s %s\n", h.Key, h.Desc)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderSessionList(msg commands.SessionListMsg) string {
	if len(msg.Groups) == 0 {
		return "No sessions yet. Start one with /new <flow>."
	}
	var b strings.Builder
	b.WriteString("Sessions:\n")
	for _, g := range msg.Groups {
		b.WriteString("\n" + m.theme.GroupLabel.Render(g.Label) + "\n")
		for _, s := range g.Sessions {
			marker := "  "
			if s.ID == msg.SelectedID {
				marker = "> "
			}
			fmt.Fprintf(&b, "%s%-10s %s\n", marker, util.TruncateRunes(s.ID, 10), s.Title())
		}
	}
	b.WriteString("\nUse /select <session> to switch.")
	return b.String()
}

func renderFlows(flows []model.Flow) string {
	if len(flows) == 0 {
		return "No flows available."
	}
	var b strings.Builder
	b.WriteString("Flows:\n\n")
	for _, f := range flows {
		fmt.Fprintf(&b, "  %-20s %s\n", f.ID, util.FirstLine(f.Description))
	}
	b.WriteString("\nStart a session with /new <flow>.")
	return b.String()
}

func renderPrefs(msg commands.PrefsMsg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Preferences for %s (flow %s):\n\n", msg.SessionID, msg.Flow.ID)
	if len(msg.Preferences) == 0 {
		b.WriteString("  (none)")
		return b.String()
	}
	keys := msg.Preferences.Keys()
	sort.Strings(keys)
	for _, k := range keys {
		line := fmt.Sprintf("  %-20s %v", k, msg.Preferences[k])
		if spec, ok := msg.Flow.Preferences[k]; ok && spec.Description != "" {
			line += "  " + util.FirstLine(spec.Description)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
