// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// PendingSpinner is the typing indicator shown while a reply is awaited.
var PendingSpinner = spinner.Spinner{
	Frames: []string{".  ", ".. ", "...", " ..", "  .", "   "},
	FPS:    time.Second / 6,
}

// Theme holds all the styled components for the application.
type Theme struct {
	// Terminal capabilities
	Mode         Mode
	HasTrueColor bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// HEADER STYLES
	// ==========================================================================

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style
	HeaderHint  lipgloss.Style

	// ==========================================================================
	// MESSAGE BUBBLE STYLES
	// ==========================================================================

	UserBubble lipgloss.Style
	BotBubble  lipgloss.Style
	SenderName lipgloss.Style
	Timestamp  lipgloss.Style
	Analysis   lipgloss.Style
	Unanswered lipgloss.Style

	// ==========================================================================
	// NOTICE STYLES
	// ==========================================================================

	Notice         lipgloss.Style
	NoticeBlocking lipgloss.Style

	// ==========================================================================
	// INPUT AREA STYLES
	// ==========================================================================

	InputContainer   lipgloss.Style
	InputPrompt      lipgloss.Style
	InputPlaceholder lipgloss.Style

	// ==========================================================================
	// STATUS BAR STYLES
	// ==========================================================================

	StatusBar    lipgloss.Style
	StatusUser   lipgloss.Style
	StatusGuest  lipgloss.Style
	QuotaOK      lipgloss.Style
	QuotaLow     lipgloss.Style
	QuotaOut     lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Spinner      lipgloss.Style
	PendingText  lipgloss.Style

	// ==========================================================================
	// LOGIN SCREEN STYLES
	// ==========================================================================

	LoginBox   lipgloss.Style
	LoginTitle lipgloss.Style
	LoginLabel lipgloss.Style
	LoginError lipgloss.Style
	LoginInfo  lipgloss.Style
}

// NewTheme creates a theme for the given mode. The mode is also applied to
// lipgloss so adaptive colors resolve to the chosen variant.
func NewTheme(mode Mode) *Theme {
	colorProfile := termenv.ColorProfile()
	mode.Apply()

	t := &Theme{
		Mode:         mode,
		HasTrueColor: colorProfile == termenv.TrueColor,
		ColorProfile: colorProfile,
	}
	t.initStyles()
	return t
}

// initStyles initializes all the lip gloss styles.
func (t *Theme) initStyles() {
	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal)

	t.HeaderHint = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Message bubbles
	t.UserBubble = lipgloss.NewStyle().
		Foreground(UserBubbleFg).
		Background(UserBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(UserBubbleBorder).
		Padding(0, 1).
		MarginLeft(4)

	t.BotBubble = lipgloss.NewStyle().
		Foreground(BotBubbleFg).
		Background(BotBubbleBg).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(BotBubbleBorder).
		Padding(0, 1).
		MarginRight(4)

	t.SenderName = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextSecondary)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Analysis = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	t.Unanswered = lipgloss.NewStyle().
		Foreground(Rose).
		Italic(true)

	// Notices
	t.Notice = lipgloss.NewStyle().
		Foreground(NoticeFg).
		Background(NoticeBg).
		Padding(0, 1)

	t.NoticeBlocking = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(Rose).
		BorderLeft(true).
		PaddingLeft(1)

	// Input area
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderTop(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.InputPrompt = lipgloss.NewStyle().
		Foreground(Teal).
		Bold(true)

	t.InputPlaceholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Background(SurfaceDim).
		Foreground(TextSecondary).
		Padding(0, 1)

	t.StatusUser = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	t.StatusGuest = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Bold(true)

	t.QuotaOK = lipgloss.NewStyle().
		Foreground(TextSecondary)

	t.QuotaLow = lipgloss.NewStyle().
		Foreground(Amber).
		Bold(true)

	t.QuotaOut = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Teal)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Lavender)

	t.PendingText = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Login screen
	t.LoginBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Teal).
		Padding(1, 3)

	t.LoginTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Teal).
		MarginBottom(1)

	t.LoginLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(10)

	t.LoginError = lipgloss.NewStyle().
		Foreground(Rose)

	t.LoginInfo = lipgloss.NewStyle().
		Foreground(Emerald)
}

// QuotaStyle picks the style for a remaining-messages count.
func (t *Theme) QuotaStyle(remaining, warnAt int) lipgloss.Style {
	switch {
	case remaining <= 0:
		return t.QuotaOut
	case remaining <= warnAt:
		return t.QuotaLow
	default:
		return t.QuotaOK
	}
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

// BubbleWidth returns the maximum width of a message bubble.
func (t *Theme) BubbleWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return max(t.Width-6, 10)
	case LayoutMedium:
		return t.Width * 3 / 4
	default:
		return t.Width * 2 / 3
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // > 100 columns
)
