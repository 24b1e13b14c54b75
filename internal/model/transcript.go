// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrOutOfOrder is returned when an append would break user/bot alternation.
var ErrOutOfOrder = errors.New("transcript: message out of order")

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is the ordered, append-only message list for the current
// conversation. Only Reset removes messages.
//
// Messages alternate user, bot, user, bot. The one exception is a user
// message that never got a reply because the backend failed: it is marked
// unanswered and the next user message may follow it directly.
type Transcript struct {
	mu         sync.RWMutex
	id         string
	messages   []Message
	unanswered map[string]bool
}

// NewTranscript creates an empty transcript with a fresh conversation id.
func NewTranscript() *Transcript {
	return &Transcript{
		id:         uuid.NewString(),
		unanswered: make(map[string]bool),
	}
}

// ID returns the conversation id. It changes on every Reset.
func (t *Transcript) ID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.id
}

// Append adds msg to the end of the transcript.
func (t *Transcript) Append(msg Message) error {
	if !msg.Sender.Valid() {
		return fmt.Errorf("%w: unknown sender %q", ErrOutOfOrder, msg.Sender)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkOrderLocked(msg.Sender); err != nil {
		return err
	}
	t.messages = append(t.messages, msg)
	return nil
}

func (t *Transcript) checkOrderLocked(next Sender) error {
	if len(t.messages) == 0 {
		if next != SenderUser {
			return fmt.Errorf("%w: transcript must start with a user message", ErrOutOfOrder)
		}
		return nil
	}

	last := t.messages[len(t.messages)-1]
	switch {
	case next == SenderBot && last.Sender == SenderUser:
		if t.unanswered[last.ID] {
			return fmt.Errorf("%w: message %s was marked unanswered", ErrOutOfOrder, last.ID)
		}
		return nil
	case next == SenderUser && last.Sender == SenderBot:
		return nil
	case next == SenderUser && t.unanswered[last.ID]:
		return nil
	default:
		return fmt.Errorf("%w: %s after %s", ErrOutOfOrder, next, last.Sender)
	}
}

// MarkUnanswered flags the trailing user message as one the backend failed
// to answer. It is a no-op unless the last message is that user message.
func (t *Transcript) MarkUnanswered(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.messages) == 0 {
		return false
	}
	last := t.messages[len(t.messages)-1]
	if last.ID != id || last.Sender != SenderUser {
		return false
	}
	t.unanswered[id] = true
	return true
}

// IsUnanswered reports whether the message with id was marked unanswered.
func (t *Transcript) IsUnanswered(id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.unanswered[id]
}

// Messages returns a copy of the transcript.
func (t *Transcript) Messages() []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len returns the number of messages.
func (t *Transcript) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.messages)
}

// Last returns the most recent message, if any.
func (t *Transcript) Last() (Message, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if len(t.messages) == 0 {
		return Message{}, false
	}
	return t.messages[len(t.messages)-1], true
}

// Reset empties the transcript and starts a new conversation id.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.id = uuid.NewString()
	t.messages = nil
	t.unanswered = make(map[string]bool)
}
