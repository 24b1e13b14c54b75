// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// =============================================================================
// POSTGRES RECORD STORE
// =============================================================================

// PostgresStore writes chat records to PostgreSQL. The table layout matches
// the hosted "chats" table, plus conversation and timestamp columns.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and ensures the schema exists.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS chats (
			id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			sender TEXT NOT NULL CHECK (sender IN ('user', 'bot')),
			message TEXT NOT NULL,
			emotion TEXT,
			confidence DOUBLE PRECISION,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chats_user_created ON chats (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

// InsertRecords writes all records in one transaction.
func (s *PostgresStore) InsertRecords(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if err := r.Validate(); err != nil {
			return err
		}
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, r := range records {
			batch.Queue(
				`INSERT INTO chats (id, conversation_id, user_id, sender, message, emotion, confidence, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				r.ID, r.ConversationID, r.UserID, r.Sender, r.Message, r.Emotion, r.Confidence, r.CreatedAt,
			)
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// RecentRecords returns the latest limit records for userID in chronological order.
func (s *PostgresStore) RecentRecords(ctx context.Context, userID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, conversation_id, user_id, sender, message, emotion, confidence, created_at
		 FROM chats WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0, limit)
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.ConversationID, &r.UserID, &r.Sender, &r.Message,
			&r.Emotion, &r.Confidence, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	reverse(items)
	return items, nil
}

// Close releases the connection pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
