// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// =============================================================================
// SQLITE CONNECTION
// =============================================================================

// OpenSQLite opens (creating if needed) the local SQLite database at path and
// applies the connection settings every calmchat table relies on.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return db, nil
}

// =============================================================================
// SQLITE RECORD STORE
// =============================================================================

const sqliteChatsSchema = `
CREATE TABLE IF NOT EXISTS chats (
    id TEXT PRIMARY KEY,
    conversation_id TEXT NOT NULL,
    user_id TEXT NOT NULL,
    sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
    message TEXT NOT NULL,
    emotion TEXT,
    confidence REAL,
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, created_at);
`

// SQLiteStore writes chat records to a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the chats table on db if needed.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.Exec(sqliteChatsSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// InsertRecords writes all records in one transaction.
func (s *SQLiteStore) InsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrWriteFailed, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chats (id, conversation_id, user_id, sender, message, emotion, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrWriteFailed, err)
	}
	defer stmt.Close()

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID, r.ConversationID, r.UserID, r.Sender, r.Message,
			r.Emotion, r.Confidence, r.CreatedAt.UnixMilli(),
		); err != nil {
			return fmt.Errorf("%w: insert: %v", ErrWriteFailed, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrWriteFailed, err)
	}
	return nil
}

// RecentRecords returns the latest limit records for userID in chronological order.
func (s *SQLiteStore) RecentRecords(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, user_id, sender, message, emotion, confidence, created_at
		FROM chats WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r         Record
			createdAt int64
		)
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.UserID, &r.Sender, &r.Message,
			&r.Emotion, &r.Confidence, &createdAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	reverse(out)
	return out, nil
}

// Close is a no-op: the database handle belongs to the caller.
func (s *SQLiteStore) Close() error {
	return nil
}
