// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package localstore provides a small persistent key/value store for
// client-side state such as the free-message counter and the UI theme.
//
// Values are plain strings. FileStore keeps one file per key under a state
// directory and writes atomically, so a crash never leaves a torn value.
package localstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/jeranaias/calmchat/internal/util"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("localstore: key not found")

// ErrInvalidKey is returned for keys that cannot be used as file names.
var ErrInvalidKey = errors.New("localstore: invalid key")

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,64}$`)

// Store is a string key/value store.
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Remove(key string) error
}

// ValidKey reports whether key is usable with any Store.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && key != "." && key != ".."
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists each key as a file in Dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// NewFileStore returns a store rooted at dir. The directory is created lazily
// on first write.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory backing the store.
func (s *FileStore) Dir() string {
	return s.dir
}

// Path returns the file backing key.
func (s *FileStore) Path(key string) string {
	return filepath.Join(s.dir, key)
}

// Get returns the stored value for key.
func (s *FileStore) Get(key string) (string, error) {
	if !ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("localstore: read %s: %w", key, err)
	}
	return string(data), nil
}

// Set stores value under key. The write is durable when Set returns.
func (s *FileStore) Set(key, value string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := util.AtomicWriteFile(s.Path(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("localstore: write %s: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing a missing key is not an error.
func (s *FileStore) Remove(key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("localstore: remove %s: %w", key, err)
	}
	return nil
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore is an in-process Store, used by tests and ephemeral sessions.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string

	// FailGet and FailSet force errors for exercising failure paths.
	FailGet error
	FailSet error
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// Get returns the stored value for key.
func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailGet != nil {
		return "", m.FailGet
	}
	v, ok := m.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

// Set stores value under key.
func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSet != nil {
		return m.FailSet
	}
	m.values[key] = value
	return nil
}

// Remove deletes key.
func (m *MemoryStore) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailSet != nil {
		return m.FailSet
	}
	delete(m.values, key)
	return nil
}
