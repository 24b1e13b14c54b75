// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/calmchat/internal/localstore"
)

// Mode is the light/dark preference.
type Mode string

const (
	ModeDark  Mode = "dark"
	ModeLight Mode = "light"
)

// ThemeKey is the localstore key holding the persisted mode.
const ThemeKey = "theme"

// ParseMode parses "dark" or "light".
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeDark, ModeLight:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown theme %q", s)
}

// Toggled returns the other mode.
func (m Mode) Toggled() Mode {
	if m == ModeLight {
		return ModeDark
	}
	return ModeLight
}

// IsDark reports whether m is the dark mode.
func (m Mode) IsDark() bool { return m != ModeLight }

// Apply makes lipgloss resolve adaptive colors for m.
func (m Mode) Apply() {
	lipgloss.SetHasDarkBackground(m.IsDark())
}

// ThemeStore persists the user's mode under ThemeKey.
type ThemeStore struct {
	mu       sync.Mutex
	store    localstore.Store
	fallback Mode
}

// NewThemeStore creates a ThemeStore. fallback is used until the user
// toggles for the first time.
func NewThemeStore(store localstore.Store, fallback Mode) *ThemeStore {
	if _, err := ParseMode(string(fallback)); err != nil {
		fallback = ModeDark
	}
	return &ThemeStore{store: store, fallback: fallback}
}

// Get returns the persisted mode, or the fallback when none is stored or
// the stored value is unreadable.
func (s *ThemeStore) Get() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get()
}

func (s *ThemeStore) get() Mode {
	raw, err := s.store.Get(ThemeKey)
	if err != nil {
		return s.fallback
	}
	m, err := ParseMode(raw)
	if err != nil {
		return s.fallback
	}
	return m
}

// Set persists m.
func (s *ThemeStore) Set(m Mode) error {
	if _, err := ParseMode(string(m)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Set(ThemeKey, string(m))
}

// Toggle flips and persists the mode, returning the new one. On a storage
// failure the new mode is still returned so the session can use it.
func (s *ThemeStore) Toggle() (Mode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.get().Toggled()
	if err := s.store.Set(ThemeKey, string(next)); err != nil {
		return next, errors.Join(errors.New("theme not saved"), err)
	}
	return next, nil
}
