// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - Shared styles for CLI output.

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/calmchat/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(styles.Teal).
			MarginBottom(1)

	// LabelStyle is used for field labels
	LabelStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(styles.TextPrimary)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// DimStyle is used for hints and secondary text
	DimStyle = lipgloss.NewStyle().
			Foreground(styles.TextMuted)

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(styles.Overlay)

	// PromptStyle renders the REPL prompt
	PromptStyle = lipgloss.NewStyle().
			Foreground(styles.Sky).
			Bold(true)

	// BotNameStyle renders the "Bot" label in the REPL
	BotNameStyle = lipgloss.NewStyle().
			Foreground(styles.Lavender).
			Bold(true)
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule of width cells (default 40).
func RenderSeparator(width ...int) string {
	w := 40
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("─", w))
}

// RenderStatus renders "[OK]", "[FAIL]", "[WARN]" or the upper-cased status.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderLabel renders a fixed-width label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}

// RenderAnalysis renders "Emotion: X | Confidence: Y" with the emotion in its
// palette color.
func RenderAnalysis(emotion, confidence string) string {
	chip := lipgloss.NewStyle().Foreground(styles.EmotionColor(emotion)).Render(emotion)
	return DimStyle.Render("Emotion: ") + chip + DimStyle.Render(" | Confidence: "+confidence)
}
