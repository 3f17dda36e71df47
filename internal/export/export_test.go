// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/shraga-tui/internal/model"
)

var fixedNow = time.Date(2025, 6, 18, 12, 30, 0, 0, time.UTC)

func sampleSession() model.Session {
	score := 0.87
	return model.Session{
		ID:          "chat-1",
		Flow:        model.Flow{ID: "kb"},
		Preferences: model.Preferences{"history_window": 3},
		Timestamp:   fixedNow.Add(-time.Hour),
		Messages: []model.Message{
			model.NewUserMessage("Where is the *manual*?", false, fixedNow.Add(-time.Hour)),
			{
				Text:      "See the install guide.",
				Type:      model.MsgSystem,
				Timestamp: model.NewTimestamp(fixedNow.Add(-59 * time.Minute)),
				Position:  model.IntPtr(1),
				RetrievalResults: []model.RetrievalResult{
					{Title: "Install guide", Link: "https://docs.example/install", Score: &score},
					{ID: "doc-9"},
				},
				Trace:        json.RawMessage(`{"step":"retrieve"}`),
				Feedback:     model.VerdictThumbsDown,
				FeedbackText: "outdated",
			},
			{Text: "The request was aborted.", Type: model.MsgSystem, Error: true},
		},
	}
}

func testOptions(dir string) *Options {
	opts := DefaultOptions()
	opts.OutputDir = dir
	opts.Now = func() time.Time { return fixedNow }
	return opts
}

func TestMarkdownExporter(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.IncludeTrace = true

	out, err := NewMarkdownExporter(opts).Export(sampleSession())
	require.NoError(t, err)
	md := string(out)

	assert.Contains(t, md, `# Where is the \*manual\*?`)
	assert.Contains(t, md, "- **Flow**: kb")
	assert.Contains(t, md, "- **history_window**: 3")
	assert.Contains(t, md, "### [User] <sub>")
	assert.Contains(t, md, "### [Bot] <sub>")
	assert.Contains(t, md, "### [Bot] (error)")
	assert.Contains(t, md, "1. [Install guide](https://docs.example/install) <sub>score 0.87</sub>")
	assert.Contains(t, md, "2. doc-9")
	assert.Contains(t, md, "Feedback: thumbs down (outdated)")
	assert.Contains(t, md, `"step": "retrieve"`)
}

func TestMarkdownExporter_FrontmatterIsValidYAML(t *testing.T) {
	s := sampleSession()
	s.Messages[0].Text = "Title: with colon\ninjected: true"

	out, err := NewMarkdownExporter(testOptions(t.TempDir())).Export(s)
	require.NoError(t, err)

	parts := strings.SplitN(string(out), "---\n", 3)
	require.Len(t, parts, 3)

	var fm frontmatter
	require.NoError(t, yaml.Unmarshal([]byte(parts[1]), &fm))
	assert.Equal(t, s.Messages[0].Text, fm.Title)
	assert.Equal(t, "chat-1", fm.Session)
	assert.Equal(t, 3, fm.Messages)
	assert.Equal(t, "shraga-tui", fm.Generator)
}

func TestMarkdownExporter_WithoutMetadata(t *testing.T) {
	opts := testOptions(t.TempDir())
	opts.IncludeMetadata = false
	opts.IncludeTimestamps = false

	out, err := NewMarkdownExporter(opts).Export(sampleSession())
	require.NoError(t, err)
	md := string(out)
	assert.False(t, strings.HasPrefix(md, "---"))
	assert.NotContains(t, md, "Session Information")
	assert.Contains(t, md, "### [User]\n")
	assert.NotContains(t, md, "Trace")
}

func TestJSONExporter(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleSession())
	require.NoError(t, err)

	var rec model.SessionRecord
	require.NoError(t, json.Unmarshal(out, &rec))
	assert.Equal(t, "chat-1", rec.ID)
	assert.Equal(t, "kb", rec.FlowID)
	require.Len(t, rec.Messages, 3)
	assert.Equal(t, model.VerdictThumbsDown, rec.Messages[1].Feedback)

	s := rec.Normalize()
	assert.Equal(t, "kb", s.Flow.ID)
}

func TestExportersRejectEmptySessions(t *testing.T) {
	empty := model.Session{ID: "x"}
	_, err := NewMarkdownExporter(nil).Export(empty)
	assert.ErrorIs(t, err, ErrEmptySession)
	_, err = NewJSONExporter(nil).Export(empty)
	assert.ErrorIs(t, err, ErrEmptySession)
}

func TestForFormat(t *testing.T) {
	for _, name := range []string{"md", "Markdown", "json"} {
		_, err := ForFormat(name, nil)
		assert.NoError(t, err, name)
	}
	_, err := ForFormat("html", nil)
	assert.Error(t, err)
}

func TestToFile(t *testing.T) {
	dir := t.TempDir()
	opts := testOptions(filepath.Join(dir, "nested"))

	path, err := ToFile(sampleSession(), NewJSONExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "nested", "shraga_Where_is_the_-manual--_20250618_123000.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "a-b_c", sanitizeFilename("a/b c"))
	assert.Equal(t, "first", sanitizeFilename("first\nsecond"))
	assert.Equal(t, "session", sanitizeFilename(""))
}
