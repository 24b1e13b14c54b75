// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists completed exchanges of signed-in users.
//
// Each exchange becomes two rows in a "chats" table, one per message, with
// the emotion analysis set on the bot row only. SQLite is the default
// backend; Postgres (for example a Supabase project) is used when a database
// URL is configured.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/calmchat/internal/model"
)

// DefaultRecentLimit caps RecentRecords when no limit is given.
const DefaultRecentLimit = 20

var (
	// ErrWriteFailed wraps any failure to commit records.
	ErrWriteFailed = errors.New("storage: write failed")

	// ErrInvalidRecord is returned for records missing required fields.
	ErrInvalidRecord = errors.New("storage: invalid record")
)

// =============================================================================
// RECORD
// =============================================================================

// Record is one persisted chat message.
type Record struct {
	ID             string
	ConversationID string
	UserID         string
	Sender         string
	Message        string
	Emotion        *string
	Confidence     *float64
	CreatedAt      time.Time
}

// Validate checks the fields every backend requires.
func (r Record) Validate() error {
	switch {
	case r.ID == "":
		return fmt.Errorf("%w: missing id", ErrInvalidRecord)
	case r.UserID == "":
		return fmt.Errorf("%w: missing user id", ErrInvalidRecord)
	case !model.Sender(r.Sender).Valid():
		return fmt.Errorf("%w: sender %q", ErrInvalidRecord, r.Sender)
	}
	return nil
}

// RecordsFromExchange builds the user and bot rows for one exchange.
func RecordsFromExchange(userID string, ex model.Exchange) []Record {
	now := time.Now().UTC()

	user := Record{
		ID:             uuid.NewString(),
		ConversationID: ex.ConversationID,
		UserID:         userID,
		Sender:         string(model.SenderUser),
		Message:        ex.User.Text,
		CreatedAt:      now,
	}

	bot := Record{
		ID:             uuid.NewString(),
		ConversationID: ex.ConversationID,
		UserID:         userID,
		Sender:         string(model.SenderBot),
		Message:        ex.Bot.Text,
		Confidence:     ex.Bot.Confidence.Ptr(),
		// Keeps the bot row ordered after the user row at millisecond precision.
		CreatedAt: now.Add(time.Millisecond),
	}
	if ex.Bot.Emotion != "" {
		emotion := ex.Bot.Emotion
		bot.Emotion = &emotion
	}

	return []Record{user, bot}
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store writes and reads chat records.
type Store interface {
	// InsertRecords writes all records atomically.
	InsertRecords(ctx context.Context, records []Record) error

	// RecentRecords returns the latest records for a user, oldest first.
	RecentRecords(ctx context.Context, userID string, limit int) ([]Record, error)

	Close() error
}

// NopStore discards writes. It backs the "none" storage driver.
type NopStore struct{}

func (NopStore) InsertRecords(context.Context, []Record) error { return nil }

func (NopStore) RecentRecords(context.Context, string, int) ([]Record, error) { return nil, nil }

func (NopStore) Close() error { return nil }

// =============================================================================
// FACTORY
// =============================================================================

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// Options selects and configures a Store.
type Options struct {
	Driver string

	// SQLite is the local database handle used by the sqlite driver.
	SQLite *sql.DB

	// DatabaseURL is the connection string used by the postgres driver.
	DatabaseURL string
}

// Open returns the Store for opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		if opts.SQLite == nil {
			return nil, errors.New("storage: sqlite driver needs a database handle")
		}
		return NewSQLiteStore(opts.SQLite)
	case DriverPostgres:
		if opts.DatabaseURL == "" {
			return nil, errors.New("storage: postgres driver needs a database url")
		}
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case DriverNone:
		return NopStore{}, nil
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", opts.Driver)
	}
}

func reverse(records []Record) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}
