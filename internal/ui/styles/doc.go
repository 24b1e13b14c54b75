// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the calmchat TUI.

All colors use Lip Gloss AdaptiveColor. Which variant is rendered is decided
by the user's Mode rather than terminal detection: Mode.Apply calls
lipgloss.SetHasDarkBackground, and NewTheme applies the mode it is given.

# Colors (colors.go)

  - Teal - brand, prompt and header
  - Sky / UserBubble* - user messages
  - Lavender / BotBubble* - bot messages and analysis
  - Amber - quota warnings
  - Rose - errors, backend unavailable, high risk

EmotionColor maps a classifier label to a chip color.

# Theme (theme.go)

Theme groups the lipgloss styles for the header, bubbles, notices, input,
status bar and login screen, plus responsive helpers (SetSize,
GetLayoutMode, BubbleWidth).

# ThemeStore (mode.go)

ThemeStore keeps the dark/light preference in a localstore.Store under the
"theme" key:

	themes := styles.NewThemeStore(store, styles.ModeDark)
	mode, err := themes.Toggle()
	theme := styles.NewTheme(mode)
*/
package styles
