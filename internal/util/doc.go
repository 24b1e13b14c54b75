// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small file and string helpers shared by calmchat packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file replacement (temp file + fsync + rename)
//   - TruncateWidth: column-aware truncation for terminal display
//   - SingleLine: flatten multi-line text for one-row previews
//
// # Usage
//
//	err := util.AtomicWriteFile(path, []byte("3"), 0600)
//	preview := util.TruncateWidth(util.SingleLine(msg.Text), 60)
package util
