// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")
	data := []byte("hello, world!")

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", string(content), string(data))
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "test.txt")

	if err := AtomicWriteFile(path, []byte("test data"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.txt")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content = %q, want 'updated'", string(content))
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("Directory has %d entries, want 1", len(entries))
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateWidth(t *testing.T) {
	if got := TruncateWidth("hello", 10); got != "hello" {
		t.Errorf("TruncateWidth short = %q, want 'hello'", got)
	}
	if got := TruncateWidth("hello world", 8); got != "hello..." {
		t.Errorf("TruncateWidth = %q, want 'hello...'", got)
	}
	// Each CJK character is two columns wide
	if got := TruncateWidth("日本語テキスト", 7); got != "日本..." {
		t.Errorf("TruncateWidth CJK = %q, want '日本...'", got)
	}
	if got := TruncateWidth("x", 0); got != "" {
		t.Errorf("TruncateWidth zero = %q, want empty", got)
	}
}

func TestSingleLine(t *testing.T) {
	if got := SingleLine("a\r\nb\nc"); got != "a b c" {
		t.Errorf("SingleLine = %q, want 'a b c'", got)
	}
}
