// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/shraga-tui/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports sessions to Markdown.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// frontmatter is marshalled with yaml so titles never break the block.
type frontmatter struct {
	Title     string `yaml:"title"`
	Session   string `yaml:"session"`
	Flow      string `yaml:"flow"`
	Date      string `yaml:"date,omitempty"`
	Messages  int    `yaml:"messages"`
	Exported  string `yaml:"exported"`
	Generator string `yaml:"generator"`
}

// Export converts a session to Markdown.
func (e *MarkdownExporter) Export(s model.Session) ([]byte, error) {
	if len(s.Messages) == 0 {
		return nil, ErrEmptySession
	}

	var sb strings.Builder
	title := s.Title()

	if e.options.IncludeMetadata {
		fm := frontmatter{
			Title:     title,
			Session:   s.ID,
			Flow:      s.Flow.ID,
			Messages:  len(s.Messages),
			Exported:  e.options.now().Format(time.RFC3339),
			Generator: "shraga-tui",
		}
		if !s.Timestamp.IsZero() {
			fm.Date = s.Timestamp.Format(time.RFC3339)
		}
		data, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("frontmatter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(data)
		sb.WriteString("---\n\n")
	}

	sb.WriteString(fmt.Sprintf("# %s\n\n", escapeMarkdown(title)))

	if e.options.IncludeMetadata {
		sb.WriteString("## Session Information\n\n")
		sb.WriteString(fmt.Sprintf("- **Flow**: %s\n", s.Flow.ID))
		if !s.Timestamp.IsZero() {
			sb.WriteString(fmt.Sprintf("- **Started**: %s\n", formatTimestamp(s.Timestamp)))
		}
		sb.WriteString(fmt.Sprintf("- **Messages**: %d\n", len(s.Messages)))
		for _, key := range s.Preferences.Keys() {
			sb.WriteString(fmt.Sprintf("- **%s**: %v\n", key, s.Preferences[key]))
		}
		sb.WriteString("\n---\n\n")
	}

	sb.WriteString("## Conversation\n\n")

	for i, msg := range s.Messages {
		label := roleLabel(msg)
		if e.options.IncludeTimestamps && msg.Timestamp != nil && !msg.Timestamp.IsZero() {
			sb.WriteString(fmt.Sprintf("### %s <sub>%s</sub>\n\n", label, formatShortTimestamp(msg.Timestamp.Time)))
		} else {
			sb.WriteString(fmt.Sprintf("### %s\n\n", label))
		}

		sb.WriteString(strings.TrimSpace(msg.Text))
		sb.WriteString("\n\n")

		if sources := formatSources(msg.RetrievalResults); sources != "" {
			sb.WriteString(sources)
			sb.WriteString("\n")
		}
		if msg.Feedback != "" {
			sb.WriteString(fmt.Sprintf("<sub>Feedback: %s</sub>\n\n", feedbackLabel(msg.Feedback, msg.FeedbackText)))
		}
		if e.options.IncludeTrace && len(msg.Trace) > 0 {
			sb.WriteString("<details><summary>Trace</summary>\n\n```json\n")
			sb.WriteString(indentJSON(msg.Trace))
			sb.WriteString("\n```\n\n</details>\n\n")
		}

		if i < len(s.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	sb.WriteString("\n---\n\n")
	sb.WriteString(fmt.Sprintf("*Exported from Shraga on %s*\n",
		e.options.now().Format("January 2, 2006 at 3:04 PM")))

	return []byte(sb.String()), nil
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func roleLabel(msg model.Message) string {
	switch {
	case msg.IsUser():
		return "[User]"
	case msg.IsSystem() && msg.Error:
		return "[Bot] (error)"
	case msg.IsSystem():
		return "[Bot]"
	case msg.Type == "":
		return "Unknown"
	default:
		runes := []rune(string(msg.Type))
		return strings.ToUpper(string(runes[0])) + string(runes[1:])
	}
}

func formatSources(results []model.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("**Sources**:\n\n")
	for i, r := range results {
		name := r.Title
		if name == "" {
			name = r.ID
		}
		if name == "" {
			name = fmt.Sprintf("Document %d", i+1)
		}
		if r.Link != "" {
			sb.WriteString(fmt.Sprintf("%d. [%s](%s)", i+1, escapeMarkdown(name), r.Link))
		} else {
			sb.WriteString(fmt.Sprintf("%d. %s", i+1, escapeMarkdown(name)))
		}
		if r.Score != nil {
			sb.WriteString(fmt.Sprintf(" <sub>score %.2f</sub>", *r.Score))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func feedbackLabel(v model.Verdict, text string) string {
	label := "thumbs up"
	if v == model.VerdictThumbsDown {
		label = "thumbs down"
	}
	if text != "" {
		label += " (" + text + ")"
	}
	return label
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// =============================================================================
// ESCAPING HELPERS
// =============================================================================

// escapeMarkdown escapes special Markdown characters in plain text.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
