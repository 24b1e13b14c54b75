// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/session"
)

// =============================================================================
// PRESENTER MESSAGES
// =============================================================================

// appendMsg adds a message to the visible transcript.
type appendMsg struct {
	Message model.Message
}

// pendingMsg shows or hides the typing indicator.
type pendingMsg struct {
	Visible bool
}

// clearTranscriptMsg empties the visible transcript.
type clearTranscriptMsg struct{}

// clearInputMsg empties the input field.
type clearInputMsg struct{}

// noticeMsg shows a notice above the input.
type noticeMsg struct {
	Notice session.Notice
}

// redirectLoginMsg switches to the login screen.
type redirectLoginMsg struct{}

// =============================================================================
// COMMAND RESULTS
// =============================================================================

// submitDoneMsg is sent when a submission cycle returns.
type submitDoneMsg struct {
	Result session.Result
}

// newChatDoneMsg is sent when a new chat has been set up.
type newChatDoneMsg struct{}

// statusMsg carries fresh auth and quota state for the status bar.
type statusMsg struct {
	Who       auth.State
	Remaining int
}

// authDoneMsg is the outcome of a login, register or logout.
type authDoneMsg struct {
	Action string
	User   *auth.User
	Err    error
}

// QuotaChangedMsg tells the model the quota counter changed on disk.
// It is sent from outside the program by the quota watcher.
type QuotaChangedMsg struct{}
