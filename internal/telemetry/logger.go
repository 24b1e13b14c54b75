// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// LOGGING
// =============================================================================

// LogConfig selects the log level and destination.
type LogConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string

	// File is the log path. Empty discards all output.
	File string
}

// ParseLevel maps a config level onto zerolog. Unknown levels are an error.
func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return zerolog.InfoLevel, nil
	case "debug":
		return zerolog.DebugLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

// NewLogger builds the process logger. The terminal belongs to the UI, so
// output goes to a file. The returned closer releases it.
func NewLogger(cfg LogConfig) (zerolog.Logger, io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, err
	}

	if cfg.File == "" {
		return zerolog.Nop(), nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.File), 0700); err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("failed to open log file: %w", err)
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	logger := zerolog.New(f).Level(level).With().Timestamp().Str("app", "calmchat").Logger()
	return logger, f, nil
}

// NewWriterLogger builds a logger on w, used by tests and the status command.
func NewWriterLogger(w io.Writer, level string) zerolog.Logger {
	lvl, err := ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
