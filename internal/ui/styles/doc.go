// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the shraga TUI.

All colors use Lip Gloss AdaptiveColor so they follow the terminal
background. Every status color is paired with an ASCII indicator
([OK], [X], [!], [i]) for readers who cannot tell the colors apart.

# Key Types

  - Theme: Styles for the header, session list, transcript and composer
  - LayoutMode: Narrow, medium or wide layout chosen from terminal width
  - StatusIndicatorSet: Shape indicators used alongside colors

# Usage

	theme := styles.NewTheme(cfg.UI.Theme)
	theme.SetSize(width, height)
	if w := theme.SidebarWidth(); w > 0 {
	    // render the session list
	}
	fmt.Println(styles.RenderError("request failed"))
*/
package styles
