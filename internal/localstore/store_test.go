// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package localstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s := NewFileStore(dir)

	_, err := s.Get("freeCount")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set("freeCount", "3"))
	v, err := s.Get("freeCount")
	require.NoError(t, err)
	require.Equal(t, "3", v)

	info, err := os.Stat(s.Path("freeCount"))
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0600), info.Mode().Perm())

	require.NoError(t, s.Remove("freeCount"))
	_, err = s.Get("freeCount")
	require.ErrorIs(t, err, ErrNotFound)

	// Removing twice is fine.
	require.NoError(t, s.Remove("freeCount"))
}

func TestFileStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, NewFileStore(dir).Set("theme", "dark"))

	v, err := NewFileStore(dir).Get("theme")
	require.NoError(t, err)
	require.Equal(t, "dark", v)
}

func TestFileStore_InvalidKey(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, key := range []string{"", "..", "a/b", "../escape", "has space"} {
		require.ErrorIs(t, s.Set(key, "x"), ErrInvalidKey, key)
		_, err := s.Get(key)
		require.ErrorIs(t, err, ErrInvalidKey, key)
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()
	require.NoError(t, m.Set("k", "v"))
	v, err := m.Get("k")
	require.NoError(t, err)
	require.Equal(t, "v", v)

	boom := errors.New("boom")
	m.FailGet = boom
	_, err = m.Get("k")
	require.ErrorIs(t, err, boom)

	m.FailGet = nil
	require.NoError(t, m.Remove("k"))
	_, err = m.Get("k")
	require.ErrorIs(t, err, ErrNotFound)
}
