// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat messages and transcripts.
//
// # Key Types
//
//   - Message: Immutable transcript entry (sender, text, optional emotion analysis)
//   - Sender: Message origin enumeration (user, bot)
//   - Confidence: Tolerant decoding of the backend's confidence field
//   - Transcript: Append-only, alternating message list for one conversation
//   - Exchange: A user message paired with the bot reply that answered it
//
// # Usage
//
//	t := model.NewTranscript()
//	if err := t.Append(model.NewUserMessage("hello")); err != nil {
//	    return err
//	}
//	_ = t.Append(model.NewBotMessage("hi there", "joy", model.NumericConfidence(91.2)))
package model
