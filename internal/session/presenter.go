// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"fmt"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/backend"
	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/storage"
)

// =============================================================================
// PORTS
// =============================================================================

// Gateway is the subset of the backend client the controller uses.
type Gateway interface {
	Send(ctx context.Context, message string) (*backend.ChatResult, error)
	Reset(ctx context.Context) error
}

// QuotaTracker is the guest message counter.
type QuotaTracker interface {
	Remaining() int
	Increment() error
}

// AuthSource reports who is signed in. It is asked once per submission.
type AuthSource interface {
	Current(ctx context.Context) (auth.State, error)
}

// RecordStore persists completed exchanges.
type RecordStore interface {
	InsertRecords(ctx context.Context, records []storage.Record) error
}

// Observer records submission outcomes (metrics).
type Observer interface {
	ObserveSubmission(outcome string)
}

// Presenter renders controller output. Calls for a cycle that has been
// superseded by NewChat are never made, and calls are never concurrent.
type Presenter interface {
	AppendMessage(msg model.Message)
	ShowPending()
	HidePending()
	ClearTranscript()
	ClearInput()
	Notify(n Notice)
	RedirectToLogin()
}

// =============================================================================
// NOTICES
// =============================================================================

// NoticeKind classifies a user-visible notice.
type NoticeKind int

const (
	// NoticeQuotaWarning is the non-blocking "few messages left" warning.
	NoticeQuotaWarning NoticeKind = iota

	// NoticeQuotaExhausted accompanies a blocked submission.
	NoticeQuotaExhausted

	// NoticeBackendUnavailable reports a failed send.
	NoticeBackendUnavailable

	// NoticePersistFailed reports that a completed exchange was not saved.
	NoticePersistFailed
)

// String returns a short label for logs.
func (k NoticeKind) String() string {
	switch k {
	case NoticeQuotaWarning:
		return "quota_warning"
	case NoticeQuotaExhausted:
		return "quota_exhausted"
	case NoticeBackendUnavailable:
		return "backend_unavailable"
	case NoticePersistFailed:
		return "persist_failed"
	default:
		return "unknown"
	}
}

// Blocking reports whether the notice stops the user from continuing.
func (k NoticeKind) Blocking() bool {
	return k == NoticeQuotaExhausted
}

// Notice is a message for the user.
type Notice struct {
	Kind NoticeKind
	Text string
}

func warningNotice(remaining int) Notice {
	return Notice{
		Kind: NoticeQuotaWarning,
		Text: fmt.Sprintf("Only %d free messages left. Sign in to keep chatting.", remaining),
	}
}

var (
	exhaustedNotice = Notice{
		Kind: NoticeQuotaExhausted,
		Text: fmt.Sprintf("You've used all %d free messages. Please sign in to continue.", quota.FreeLimit),
	}
	backendNotice = Notice{
		Kind: NoticeBackendUnavailable,
		Text: "Backend not connected. Please try again in a moment.",
	}
	timeoutNotice = Notice{
		Kind: NoticeBackendUnavailable,
		Text: "The backend took too long to answer. Please try again.",
	}
	persistNotice = Notice{
		Kind: NoticePersistFailed,
		Text: "Your last exchange could not be saved to your history.",
	}
)

// NopPresenter discards all output.
type NopPresenter struct{}

func (NopPresenter) AppendMessage(model.Message) {}
func (NopPresenter) ShowPending()                {}
func (NopPresenter) HidePending()                {}
func (NopPresenter) ClearTranscript()            {}
func (NopPresenter) ClearInput()                 {}
func (NopPresenter) Notify(Notice)               {}
func (NopPresenter) RedirectToLogin()            {}
