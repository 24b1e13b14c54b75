// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/util"
)

// View renders the active screen.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.screen == ScreenLogin {
		return m.loginView()
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.indicatorView(),
		m.theme.InputContainer.Width(m.width).Render(m.input.View()),
		m.statusView(),
	)
}

// =============================================================================
// CHAT SCREEN
// =============================================================================

func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render("calmchat")
	hint := m.theme.HeaderHint.Render("  a quiet place to talk")
	return m.theme.Header.Width(m.width).Render(title + hint)
}

// indicatorView is the single line between the transcript and the input:
// the typing indicator, else the current notice, else any flash message.
func (m Model) indicatorView() string {
	switch {
	case m.pending:
		return m.spinner.View() + m.theme.PendingText.Render(" Bot is typing")
	case m.notice != nil && m.notice.Kind.Blocking():
		return m.theme.NoticeBlocking.Render(m.notice.Text)
	case m.notice != nil:
		return m.theme.Notice.Render(m.notice.Text)
	case m.flash != "":
		return m.theme.Notice.Render(m.flash)
	}
	return ""
}

func (m Model) statusView() string {
	var who string
	if m.who.Authenticated {
		who = m.theme.StatusUser.Render(util.TruncateWidth(m.who.Email, 32))
	} else {
		left := fmt.Sprintf("%d free messages left", m.remaining)
		who = m.theme.StatusGuest.Render("Guest") + "  " +
			m.theme.QuotaStyle(m.remaining, m.cfg.WarnAt).Render(left)
	}
	return m.theme.StatusBar.Width(m.width).Render(who + "   " + m.helpView(m.keys.ChatHelp(m.who.Authenticated)))
}

func (m Model) helpView(bindings []key.Binding) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}

// renderTranscript renders every visible message.
func (m Model) renderTranscript() string {
	if len(m.messages) == 0 {
		return m.theme.HeaderHint.Render("Say hello. Press Enter to send.")
	}
	var transcript interface{ IsUnanswered(string) bool }
	if m.cfg.Conversation != nil {
		transcript = m.cfg.Conversation.Transcript()
	}

	blocks := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		unanswered := transcript != nil && msg.Sender == model.SenderUser && transcript.IsUnanswered(msg.ID)
		blocks = append(blocks, m.renderMessage(msg, unanswered))
	}
	return strings.Join(blocks, "\n")
}

func (m Model) renderMessage(msg model.Message, unanswered bool) string {
	width := m.theme.BubbleWidth()
	if width <= 0 {
		width = 60
	}

	header := m.theme.SenderName.Render(msg.Sender.DisplayName()) + " " +
		m.theme.Timestamp.Render(msg.Timestamp.Format("15:04"))

	var bubble string
	if msg.Sender == model.SenderUser {
		bubble = m.theme.UserBubble.Width(width).Render(msg.Text)
	} else {
		bubble = m.theme.BotBubble.Width(width).Render(msg.Text)
	}

	lines := []string{header, bubble}
	if a := msg.Analysis(); a != "" {
		lines = append(lines, m.theme.Analysis.Render(a))
	}
	if unanswered {
		lines = append(lines, m.theme.Unanswered.Render("not answered"))
	}

	block := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if msg.Sender == model.SenderUser && m.width > 0 {
		return lipgloss.PlaceHorizontal(m.width, lipgloss.Right, block)
	}
	return block
}

// =============================================================================
// LOGIN SCREEN
// =============================================================================

func (m Model) loginView() string {
	f := m.login
	rows := []string{
		m.theme.LoginTitle.Render(f.title()),
		m.theme.LoginLabel.Render("Email") + f.email.View(),
		m.theme.LoginLabel.Render("Password") + f.password.View(),
	}

	switch {
	case f.busy:
		rows = append(rows, "", m.theme.PendingText.Render("Please wait..."))
	case f.err != "":
		rows = append(rows, "", m.theme.LoginError.Render(f.err))
	case f.info != "":
		rows = append(rows, "", m.theme.LoginInfo.Render(f.info))
	}

	box := m.theme.LoginBox.Render(lipgloss.JoinVertical(lipgloss.Left, rows...))

	var top string
	if m.notice != nil {
		top = m.theme.NoticeBlocking.Render(m.notice.Text)
	}

	body := lipgloss.JoinVertical(lipgloss.Center, top, box, "", m.helpView(m.keys.LoginHelp()))
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}
