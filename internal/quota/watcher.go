// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package quota

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/jeranaias/calmchat/internal/localstore"
)

// =============================================================================
// COUNTER WATCHER
// =============================================================================

// Watch calls fn whenever the counter file in store changes on disk, for
// instance because another calmchat process consumed a free message. It
// returns once the watch is established and stops when ctx is done.
//
// Watch never mutates the counter.
func Watch(ctx context.Context, store *localstore.FileStore, logger zerolog.Logger, fn func()) error {
	if err := os.MkdirAll(store.Dir(), 0700); err != nil {
		return fmt.Errorf("quota watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("quota watch: %w", err)
	}

	// Watch the directory, not the file: atomic writes replace the file.
	if err := watcher.Add(store.Dir()); err != nil {
		watcher.Close()
		return fmt.Errorf("quota watch: %w", err)
	}

	target := filepath.Clean(store.Path(CounterKey))
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
					event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
					fn()
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("QUOTA_WATCH_ERROR")
			}
		}
	}()

	return nil
}
