// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// =============================================================================
// PRIMARY ACCENT COLORS
// =============================================================================

// Teal - Brand color, prompt, header
var Teal = lipgloss.AdaptiveColor{Light: "#0F766E", Dark: "#5EEAD4"}

// Lavender - Bot accents, analysis chips
var Lavender = lipgloss.AdaptiveColor{Light: "#6D28D9", Dark: "#C4B5FD"}

// Sky - User accents
var Sky = lipgloss.AdaptiveColor{Light: "#0369A1", Dark: "#7DD3FC"}

// =============================================================================
// SEMANTIC COLORS
// =============================================================================

// Rose - Errors, backend unavailable, high risk
var Rose = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}

// Amber - Warnings, quota running low
var Amber = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}

// Emerald - Signed in, success
var Emerald = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}

// =============================================================================
// SURFACE AND TEXT COLORS
// =============================================================================

var SurfaceDim = lipgloss.AdaptiveColor{Light: "#F5F5F5", Dark: "#181825"}
var Overlay = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}

var TextPrimary = lipgloss.AdaptiveColor{Light: "#1F2937", Dark: "#CDD6F4"}
var TextSecondary = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
var TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}

// =============================================================================
// MESSAGE BUBBLE COLORS
// =============================================================================

// User message bubble - Blue tones
var UserBubbleBg = lipgloss.AdaptiveColor{Light: "#E0F2FE", Dark: "#1E3A5F"}
var UserBubbleFg = lipgloss.AdaptiveColor{Light: "#0C4A6E", Dark: "#E0F2FE"}
var UserBubbleBorder = lipgloss.AdaptiveColor{Light: "#38BDF8", Dark: "#38BDF8"}

// Bot message bubble - Soft violet, kept low saturation
var BotBubbleBg = lipgloss.AdaptiveColor{Light: "#F5F3FF", Dark: "#3B3655"}
var BotBubbleFg = lipgloss.AdaptiveColor{Light: "#4C1D95", Dark: "#EDE9FE"}
var BotBubbleBorder = lipgloss.AdaptiveColor{Light: "#C4B5FD", Dark: "#A78BFA"}

// Notice banner - Amber tones
var NoticeBg = lipgloss.AdaptiveColor{Light: "#FEF3C7", Dark: "#78350F"}
var NoticeFg = lipgloss.AdaptiveColor{Light: "#92400E", Dark: "#FEF3C7"}

// =============================================================================
// EMOTION COLORS
// =============================================================================

var emotionColors = map[string]lipgloss.AdaptiveColor{
	"joy":       {Light: "#A16207", Dark: "#FDE047"},
	"happy":     {Light: "#A16207", Dark: "#FDE047"},
	"love":      {Light: "#BE185D", Dark: "#F9A8D4"},
	"surprise":  {Light: "#0E7490", Dark: "#67E8F9"},
	"sadness":   {Light: "#1D4ED8", Dark: "#93C5FD"},
	"sad":       {Light: "#1D4ED8", Dark: "#93C5FD"},
	"fear":      {Light: "#7E22CE", Dark: "#D8B4FE"},
	"anger":     {Light: "#C2410C", Dark: "#FDBA74"},
	"angry":     {Light: "#C2410C", Dark: "#FDBA74"},
	"neutral":   TextSecondary,
	"high risk": Rose,
}

// EmotionColor returns the chip color for an emotion label.
// Unknown labels get the bot accent.
func EmotionColor(emotion string) lipgloss.AdaptiveColor {
	if c, ok := emotionColors[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return c
	}
	return Lavender
}
