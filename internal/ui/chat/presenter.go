// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/session"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Presenter adapts the session controller's output to bubbletea messages.
//
// The controller calls it from the goroutine running a submission, never from
// Update, so the blocking Send is safe. Calls made before Bind are dropped.
type Presenter struct {
	mu     sync.RWMutex
	sender Sender
}

var _ session.Presenter = (*Presenter)(nil)

// NewPresenter returns an unbound presenter.
func NewPresenter() *Presenter {
	return &Presenter{}
}

// Bind attaches the program that receives presenter output.
func (p *Presenter) Bind(s Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sender = s
}

func (p *Presenter) send(msg tea.Msg) {
	p.mu.RLock()
	s := p.sender
	p.mu.RUnlock()
	if s != nil {
		s.Send(msg)
	}
}

func (p *Presenter) AppendMessage(msg model.Message) { p.send(appendMsg{Message: msg}) }
func (p *Presenter) ShowPending()                    { p.send(pendingMsg{Visible: true}) }
func (p *Presenter) HidePending()                    { p.send(pendingMsg{Visible: false}) }
func (p *Presenter) ClearTranscript()                { p.send(clearTranscriptMsg{}) }
func (p *Presenter) ClearInput()                     { p.send(clearInputMsg{}) }
func (p *Presenter) Notify(n session.Notice)         { p.send(noticeMsg{Notice: n}) }
func (p *Presenter) RedirectToLogin()                { p.send(redirectLoginMsg{}) }
