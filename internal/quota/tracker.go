// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package quota tracks the free messages consumed by a visitor who has not
// signed in.
//
// The count lives in a localstore under a fixed key and survives restarts.
// Every storage problem is treated as "quota exhausted": a broken store makes
// the client ask for a login rather than hand out unlimited free messages.
package quota

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/jeranaias/calmchat/internal/localstore"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// FreeLimit is the number of messages a guest may send.
	FreeLimit = 10

	// WarnAt is the remaining count at which a guest is warned. The check is an
	// exact match, so it fires once over the life of the quota.
	WarnAt = 2

	// CounterKey is the localstore key holding the consumed count.
	CounterKey = "freeCount"
)

// ErrStorageUnavailable is returned when the counter cannot be read or written.
var ErrStorageUnavailable = errors.New("quota: storage unavailable")

// =============================================================================
// TRACKER
// =============================================================================

// Tracker reads and updates the consumed-message counter.
type Tracker struct {
	store  localstore.Store
	logger zerolog.Logger

	mu       sync.Mutex
	observer func(remaining int)
}

// NewTracker creates a tracker over store.
func NewTracker(store localstore.Store, logger zerolog.Logger) *Tracker {
	return &Tracker{store: store, logger: logger}
}

// SetObserver registers fn to be called with the new remaining count after
// every successful Increment or Reset.
func (t *Tracker) SetObserver(fn func(remaining int)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = fn
}

// Consumed returns the stored count. A missing key counts as zero.
func (t *Tracker) Consumed() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.consumedLocked()
}

func (t *Tracker) consumedLocked() (int, error) {
	raw, err := t.store.Get(CounterKey)
	if err != nil {
		if errors.Is(err, localstore.ErrNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: corrupt counter %q", ErrStorageUnavailable, raw)
	}
	return n, nil
}

// Remaining returns FreeLimit minus the consumed count. It may be negative.
// When the counter cannot be read it reports 0.
func (t *Tracker) Remaining() int {
	n, err := t.Consumed()
	if err != nil {
		t.logger.Warn().Err(err).Msg("QUOTA_READ_FAILED")
		return 0
	}
	return FreeLimit - n
}

// Exhausted reports whether a guest must sign in before sending.
func (t *Tracker) Exhausted() bool {
	return t.Remaining() <= 0
}

// ShouldWarn reports whether exactly WarnAt messages remain.
func (t *Tracker) ShouldWarn() bool {
	return t.Remaining() == WarnAt
}

// Increment durably adds one to the consumed count.
func (t *Tracker) Increment() error {
	t.mu.Lock()
	n, err := t.consumedLocked()
	if err == nil {
		if serr := t.store.Set(CounterKey, strconv.Itoa(n+1)); serr != nil {
			err = fmt.Errorf("%w: %v", ErrStorageUnavailable, serr)
		}
	}
	observer := t.observer
	t.mu.Unlock()

	if err != nil {
		t.logger.Error().Err(err).Msg("QUOTA_INCREMENT_FAILED")
		return err
	}

	t.logger.Debug().Int("consumed", n+1).Msg("QUOTA_INCREMENT")
	if observer != nil {
		observer(FreeLimit - (n + 1))
	}
	return nil
}

// Reset sets the consumed count back to zero.
func (t *Tracker) Reset() error {
	t.mu.Lock()
	err := t.store.Set(CounterKey, "0")
	observer := t.observer
	t.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		t.logger.Error().Err(err).Msg("QUOTA_RESET_FAILED")
		return err
	}

	t.logger.Info().Msg("QUOTA_RESET")
	if observer != nil {
		observer(FreeLimit)
	}
	return nil
}
