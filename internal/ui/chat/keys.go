// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines all keyboard bindings for the chat and login screens.
type KeyMap struct {
	Submit   key.Binding
	NewChat  key.Binding
	Theme    key.Binding
	Logout   key.Binding
	Login    key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Quit     key.Binding

	// Login screen
	Back           key.Binding
	NextField      key.Binding
	PrevField      key.Binding
	ToggleRegister key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("ctrl+n"),
			key.WithHelp("C-n", "new chat"),
		),
		Theme: key.NewBinding(
			key.WithKeys("ctrl+t"),
			key.WithHelp("C-t", "theme"),
		),
		Logout: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "logout"),
		),
		Login: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("C-l", "sign in"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc"),
			key.WithHelp("Esc/C-c", "quit"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "back to chat"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("Tab", "next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("S-Tab", "previous field"),
		),
		ToggleRegister: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("C-r", "sign in / register"),
		),
	}
}

// ChatHelp returns the bindings shown in the chat status bar.
func (k KeyMap) ChatHelp(signedIn bool) []key.Binding {
	account := k.Login
	if signedIn {
		account = k.Logout
	}
	return []key.Binding{k.Submit, k.NewChat, k.Theme, account, k.Quit}
}

// LoginHelp returns the bindings shown on the login screen.
func (k KeyMap) LoginHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Submit, k.ToggleRegister, k.Back}
}
