// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for calmchat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - BackendConfig: Conversation backend location and timeout
//   - KeepaliveConfig: Warm-up ping schedule
//   - StorageConfig: Where signed-in exchanges are persisted
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CALMCHAT_*)
//   - the file named by CALMCHAT_CONFIG, if set
//   - ~/.calmchat/config.toml
//   - ~/.calmchat/config.json
//   - Built-in defaults
//
// CALMCHAT_HOME relocates the state directory, which also holds the
// session file, the quota counter, the local database and the log.
//
// # Usage
//
//	cfg, err := config.Load() // cfg is usable even when err is not nil
//	client := backend.NewClientWithConfig(&backend.ClientConfig{
//	    BaseURL: cfg.Backend.URL,
//	    Timeout: cfg.BackendTimeout(),
//	})
package config
