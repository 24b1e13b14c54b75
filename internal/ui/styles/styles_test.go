// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/calmchat/internal/localstore"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("light")
	require.NoError(t, err)
	require.Equal(t, ModeLight, m)

	_, err = ParseMode("neon")
	require.Error(t, err)

	require.Equal(t, ModeLight, ModeDark.Toggled())
	require.Equal(t, ModeDark, ModeLight.Toggled())
}

func TestThemeStore_FallbackUntilToggled(t *testing.T) {
	store := localstore.NewMemoryStore()
	themes := NewThemeStore(store, ModeLight)

	require.Equal(t, ModeLight, themes.Get())

	next, err := themes.Toggle()
	require.NoError(t, err)
	require.Equal(t, ModeDark, next)
	require.Equal(t, ModeDark, themes.Get())

	raw, err := store.Get(ThemeKey)
	require.NoError(t, err)
	require.Equal(t, "dark", raw)
}

func TestThemeStore_PersistsAcrossInstances(t *testing.T) {
	store := localstore.NewFileStore(t.TempDir())

	_, err := NewThemeStore(store, ModeDark).Toggle()
	require.NoError(t, err)

	require.Equal(t, ModeLight, NewThemeStore(store, ModeDark).Get())
}

func TestThemeStore_CorruptValueUsesFallback(t *testing.T) {
	store := localstore.NewMemoryStore()
	require.NoError(t, store.Set(ThemeKey, "purple"))

	require.Equal(t, ModeDark, NewThemeStore(store, ModeDark).Get())
}

func TestThemeStore_InvalidFallbackIsDark(t *testing.T) {
	themes := NewThemeStore(localstore.NewMemoryStore(), Mode("sepia"))
	require.Equal(t, ModeDark, themes.Get())
	require.Error(t, themes.Set(Mode("sepia")))
}

func TestThemeStore_ToggleStorageFailure(t *testing.T) {
	store := localstore.NewMemoryStore()
	store.FailSet = errors.New("disk full")
	themes := NewThemeStore(store, ModeDark)

	next, err := themes.Toggle()
	require.Error(t, err)
	require.Equal(t, ModeLight, next)
}

func TestEmotionColor(t *testing.T) {
	require.Equal(t, Rose, EmotionColor("High Risk"))
	require.Equal(t, EmotionColor("joy"), EmotionColor(" Joy "))
	require.Equal(t, Lavender, EmotionColor("wistful"))
}

func TestTheme_QuotaStyle(t *testing.T) {
	theme := NewTheme(ModeDark)
	require.Equal(t, theme.QuotaOut.GetForeground(), theme.QuotaStyle(0, 2).GetForeground())
	require.Equal(t, theme.QuotaLow.GetForeground(), theme.QuotaStyle(2, 2).GetForeground())
	require.Equal(t, theme.QuotaOK.GetForeground(), theme.QuotaStyle(5, 2).GetForeground())
}

func TestTheme_LayoutModes(t *testing.T) {
	theme := NewTheme(ModeLight)
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{80, LayoutMedium},
		{140, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 30)
		require.Equal(t, tt.want, theme.GetLayoutMode(), "width %d", tt.width)
		require.Less(t, theme.BubbleWidth(), tt.width)
	}
}
