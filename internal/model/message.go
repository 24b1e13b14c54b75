// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// SENDER TYPE
// =============================================================================

// Sender identifies who produced a message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// String returns the wire representation of the sender.
func (s Sender) String() string {
	return string(s)
}

// DisplayName returns a human-readable label for the sender.
func (s Sender) DisplayName() string {
	switch s {
	case SenderUser:
		return "You"
	case SenderBot:
		return "Bot"
	default:
		return string(s)
	}
}

// Valid reports whether s is one of the known senders.
func (s Sender) Valid() bool {
	return s == SenderUser || s == SenderBot
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single transcript entry. It is a value type: once built it is
// never mutated, and copies handed to presenters cannot affect the transcript.
type Message struct {
	ID        string    `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`

	// Bot-side analysis; always zero on user messages.
	Emotion    string     `json:"emotion,omitempty"`
	Confidence Confidence `json:"confidence,omitempty"`
}

// NewUserMessage creates a user message.
func NewUserMessage(text string) Message {
	return Message{
		ID:        uuid.NewString(),
		Sender:    SenderUser,
		Text:      text,
		Timestamp: time.Now(),
	}
}

// NewBotMessage creates a bot message carrying the backend's emotion analysis.
func NewBotMessage(text, emotion string, confidence Confidence) Message {
	return Message{
		ID:         uuid.NewString(),
		Sender:     SenderBot,
		Text:       text,
		Timestamp:  time.Now(),
		Emotion:    emotion,
		Confidence: confidence,
	}
}

// HasAnalysis reports whether the message carries emotion metadata worth showing.
func (m Message) HasAnalysis() bool {
	return m.Sender == SenderBot && m.Emotion != "" && !m.Confidence.IsZero()
}

// Analysis formats the emotion metadata as shown under a bot reply.
func (m Message) Analysis() string {
	if !m.HasAnalysis() {
		return ""
	}
	return fmt.Sprintf("Emotion: %s | Confidence: %s", m.Emotion, m.Confidence.Percent())
}

// =============================================================================
// EXCHANGE TYPE
// =============================================================================

// Exchange is one user message and the bot message that answered it.
type Exchange struct {
	ConversationID string
	User           Message
	Bot            Message
}
