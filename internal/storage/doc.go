// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage saves signed-in users' chat messages.
//
// Each completed exchange becomes two rows in the chats table, one per
// sender, carrying the bot's emotion and confidence on the bot row.
//
// # Key Types
//
//   - Store: insert and list records
//   - Record: one stored message
//   - SQLiteStore: the local database (modernc.org/sqlite)
//   - PostgresStore: a shared database (pgx)
//   - NopStore: history disabled
//
// # Usage
//
//	db, err := storage.OpenSQLite(path)
//	store, err := storage.Open(ctx, storage.Options{Driver: "sqlite", SQLite: db})
//	err = store.InsertRecords(ctx, storage.RecordsFromExchange(userID, ex))
//	recent, err := store.RecentRecords(ctx, userID, 20)
//
// Guests are never stored. The caller decides that; the store does not
// look at authentication.
package storage
