// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/shraga-tui/internal/ui/styles"
)

// maxCachedRenders bounds the rendered-markdown cache.
const maxCachedRenders = 256

// markdownCache renders bot replies with glamour and remembers the output
// per width so scrolling and state syncs do not re-render every message.
type markdownCache struct {
	style    string
	width    int
	renderer *glamour.TermRenderer
	rendered map[string]string
}

func newMarkdownCache(theme *styles.Theme) *markdownCache {
	style := "dark"
	if theme != nil && !theme.IsDark {
		style = "light"
	}
	return &markdownCache{style: style, rendered: make(map[string]string)}
}

// Render returns text as styled terminal markdown wrapped at width. It
// falls back to the raw text when glamour fails.
func (c *markdownCache) Render(text string, width int) string {
	if width < 20 {
		width = 20
	}
	if c.renderer == nil || c.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(c.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return text
		}
		c.renderer = r
		c.width = width
		c.rendered = make(map[string]string)
	}

	if out, ok := c.rendered[text]; ok {
		return out
	}
	out, err := c.renderer.Render(text)
	if err != nil {
		return text
	}
	out = strings.Trim(out, "\n")

	if len(c.rendered) >= maxCachedRenders {
		c.rendered = make(map[string]string)
	}
	c.rendered[text] = out
	return out
}
