// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/ui/styles"
)

const (
	actionLogin    = "login"
	actionRegister = "register"
	actionLogout   = "logout"
)

const (
	fieldEmail = iota
	fieldPassword
)

// loginForm is the email/password screen used for both sign-in and
// registration.
type loginForm struct {
	email    textinput.Model
	password textinput.Model
	focus    int
	register bool
	busy     bool
	err      string
	info     string
}

func newLoginForm() loginForm {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.Prompt = ""
	email.CharLimit = 254

	password := textinput.New()
	password.Placeholder = "at least 6 characters"
	password.Prompt = ""
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '*'
	password.CharLimit = 128

	return loginForm{email: email, password: password}
}

func (f *loginForm) setWidth(width int) {
	w := min(max(width-24, 10), 40)
	f.email.Width = w
	f.password.Width = w
}

func (f *loginForm) applyTheme(t *styles.Theme) {
	f.email.PlaceholderStyle = t.InputPlaceholder
	f.password.PlaceholderStyle = t.InputPlaceholder
}

// focusField moves focus to field i.
func (f *loginForm) focusField(i int) tea.Cmd {
	f.focus = i
	if i == fieldEmail {
		f.password.Blur()
		return f.email.Focus()
	}
	f.email.Blur()
	return f.password.Focus()
}

// reset clears everything except the email, which is kept for convenience.
func (f *loginForm) reset() {
	f.password.Reset()
	f.busy = false
	f.err = ""
	f.info = ""
	f.register = false
}

func (f *loginForm) title() string {
	if f.register {
		return "Create an account"
	}
	return "Sign in"
}

func (f *loginForm) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if f.focus == fieldEmail {
		f.email, cmd = f.email.Update(msg)
	} else {
		f.password, cmd = f.password.Update(msg)
	}
	return cmd
}

// =============================================================================
// MODEL INTEGRATION
// =============================================================================

func (m *Model) openLogin() tea.Cmd {
	m.screen = ScreenLogin
	m.input.Blur()
	m.login.reset()
	if m.login.email.Value() != "" {
		return m.login.focusField(fieldPassword)
	}
	return m.login.focusField(fieldEmail)
}

func (m *Model) closeLogin() tea.Cmd {
	m.screen = ScreenChat
	m.login.email.Blur()
	m.login.password.Blur()
	return m.input.Focus()
}

// updateLogin processes keys on the login screen.
func (m Model) updateLogin(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	switch {
	case msg.Type == tea.KeyCtrlC:
		return m, tea.Quit

	case key.Matches(msg, m.keys.Back):
		cmd := m.closeLogin()
		return m, cmd

	case key.Matches(msg, m.keys.ToggleRegister):
		f.register = !f.register
		f.err = ""
		f.info = ""
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		cmd := f.focusField((f.focus + 1) % 2)
		return m, cmd

	case key.Matches(msg, m.keys.PrevField):
		cmd := f.focusField((f.focus + 1) % 2)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		if f.focus == fieldEmail {
			cmd := f.focusField(fieldPassword)
			return m, cmd
		}
		if f.busy {
			return m, nil
		}
		f.busy = true
		f.err = ""
		f.info = ""
		return m, m.authenticate(f.register, f.email.Value(), f.password.Value())
	}

	cmd := f.update(msg)
	return m, cmd
}

func (m Model) authenticate(register bool, email, password string) tea.Cmd {
	account, ctx := m.cfg.Account, m.ctx
	return func() tea.Msg {
		if register {
			user, err := account.Register(ctx, email, password)
			return authDoneMsg{Action: actionRegister, User: user, Err: err}
		}
		user, err := account.Login(ctx, email, password)
		return authDoneMsg{Action: actionLogin, User: user, Err: err}
	}
}

func (m Model) handleAuthDone(msg authDoneMsg) (tea.Model, tea.Cmd) {
	f := &m.login
	f.busy = false

	switch msg.Action {
	case actionLogout:
		if msg.Err != nil {
			m.logger.Error().Err(msg.Err).Msg("TUI_LOGOUT_FAILED")
			m.flash = "Could not sign out. Please try again."
			return m, nil
		}
		m.flash = "Signed out."
		return m, m.refreshStatus()

	case actionRegister:
		if msg.Err != nil {
			f.err = authErrorText(msg.Err)
			return m, nil
		}
		// Registration does not sign in.
		f.register = false
		f.password.Reset()
		f.info = fmt.Sprintf("Account created for %s. Sign in to continue.", msg.User.Email)
		cmd := f.focusField(fieldPassword)
		return m, cmd

	default:
		if msg.Err != nil {
			f.err = authErrorText(msg.Err)
			f.password.Reset()
			return m, nil
		}
		m.notice = nil
		m.flash = "Signed in as " + msg.User.Email + "."
		f.reset()
		cmd := m.closeLogin()
		return m, tea.Batch(cmd, m.refreshStatus())
	}
}

// authErrorText turns provider errors into something a user can act on.
func authErrorText(err error) string {
	switch {
	case errors.Is(err, auth.ErrInvalidEmail):
		return "Enter a valid email address."
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Sprintf("Password must be at least %d characters.", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrEmailTaken):
		return "That email is already registered. Sign in instead."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Email or password is incorrect."
	default:
		return "Something went wrong. Please try again."
	}
}
