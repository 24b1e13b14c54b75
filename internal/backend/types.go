// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"github.com/jeranaias/calmchat/internal/model"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// HistoryEntry is one message of the backend-held conversation.
type HistoryEntry struct {
	Sender string `json:"sender"`
	Text   string `json:"text"`
}

// ChatResponse is the body returned by POST /chat.
type ChatResponse struct {
	Reply      string           `json:"reply"`
	Emotion    *string          `json:"emotion"`
	Confidence model.Confidence `json:"confidence"`
	History    []HistoryEntry   `json:"history"`
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// ChatResult is a decoded, validated /chat response.
type ChatResult struct {
	// Reply is the bot's answer to the message just sent.
	Reply      string
	Emotion    string
	Confidence model.Confidence

	// History is the conversation as the backend sees it after this turn.
	History []HistoryEntry
}

// BotMessage builds the transcript message for the reply.
func (r *ChatResult) BotMessage() model.Message {
	return model.NewBotMessage(r.Reply, r.Emotion, r.Confidence)
}

// replyFrom picks the bot reply: the last history entry when it is a bot
// message, otherwise the top-level reply field.
func replyFrom(resp *ChatResponse) (string, bool) {
	if n := len(resp.History); n > 0 {
		last := resp.History[n-1]
		if last.Sender == string(model.SenderBot) && last.Text != "" {
			return last.Text, true
		}
	}
	if resp.Reply != "" {
		return resp.Reply, true
	}
	return "", false
}
