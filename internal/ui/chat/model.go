// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/session"
	"github.com/jeranaias/calmchat/internal/ui/styles"
)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Conversation is the session controller as seen by the TUI.
type Conversation interface {
	Submit(ctx context.Context, input string) session.Result
	NewChat(ctx context.Context)
	Transcript() *model.Transcript
}

// Account is the identity provider as seen by the TUI.
type Account interface {
	Current(ctx context.Context) (auth.State, error)
	Login(ctx context.Context, email, password string) (*auth.User, error)
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Logout(ctx context.Context) error
}

// QuotaReader reports the guest messages left.
type QuotaReader interface {
	Remaining() int
}

// Config wires the TUI to the rest of the application.
type Config struct {
	Conversation Conversation
	Account      Account
	Quota        QuotaReader

	// Themes persists the dark/light toggle (optional).
	Themes *styles.ThemeStore

	// WarnAt highlights the quota in the status bar at or below this count.
	WarnAt int

	Logger zerolog.Logger
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Screen is the active screen.
type Screen int

const (
	ScreenChat Screen = iota
	ScreenLogin
)

// Model is the Bubble Tea model for the calmchat TUI.
//
// Submissions, new chats and account actions run as commands; the session
// controller reports back through a Presenter bound to the same program.
type Model struct {
	ctx    context.Context
	cfg    Config
	keys   KeyMap
	theme  *styles.Theme
	logger zerolog.Logger

	screen Screen
	width  int
	height int
	ready  bool

	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	login    loginForm

	messages   []model.Message
	pending    bool
	submitting bool
	resetting  bool
	notice     *session.Notice
	flash      string

	who       auth.State
	remaining int
}

// New creates the TUI model. ctx bounds every command the model starts.
func New(ctx context.Context, cfg Config) Model {
	mode := styles.ModeDark
	if cfg.Themes != nil {
		mode = cfg.Themes.Get()
	}

	input := textinput.New()
	input.Placeholder = "Type a message..."
	input.Prompt = "> "
	input.CharLimit = 2000
	input.Focus()

	m := Model{
		ctx:      ctx,
		cfg:      cfg,
		keys:     DefaultKeyMap(),
		theme:    styles.NewTheme(mode),
		logger:   cfg.Logger,
		input:    input,
		viewport: viewport.New(80, 20),
		spinner:  spinner.New(spinner.WithSpinner(styles.PendingSpinner)),
		login:    newLoginForm(),
	}
	m.applyTheme()
	return m
}

// Init starts the cursor blink and loads the status bar.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.refreshStatus())
}

// Screen returns the active screen.
func (m Model) Screen() Screen { return m.screen }

// Pending reports whether the typing indicator is visible.
func (m Model) Pending() bool { return m.pending }

// Messages returns the visible transcript.
func (m Model) Messages() []model.Message { return m.messages }

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.screen == ScreenLogin {
			return m.updateLogin(msg)
		}
		return m.handleKey(msg)

	// Presenter output
	case appendMsg:
		m.messages = append(m.messages, msg.Message)
		m.refreshViewport()
		return m, nil

	case pendingMsg:
		m.pending = msg.Visible
		if m.pending {
			return m, m.spinner.Tick
		}
		return m, nil

	case clearTranscriptMsg:
		m.messages = nil
		m.notice = nil
		m.refreshViewport()
		return m, nil

	case clearInputMsg:
		m.input.Reset()
		return m, nil

	case noticeMsg:
		n := msg.Notice
		m.notice = &n
		return m, nil

	case redirectLoginMsg:
		cmd := m.openLogin()
		return m, cmd

	// Command results
	case submitDoneMsg:
		m.submitting = false
		if msg.Result.Outcome == session.OutcomeFailed {
			// The last user message is now marked unanswered.
			m.refreshViewport()
		}
		return m, m.refreshStatus()

	case newChatDoneMsg:
		m.resetting = false
		return m, m.refreshStatus()

	case statusMsg:
		m.who = msg.Who
		m.remaining = msg.Remaining
		return m, nil

	case authDoneMsg:
		return m.handleAuthDone(msg)

	case QuotaChangedMsg:
		return m, m.refreshStatus()

	case spinner.TickMsg:
		if !m.pending {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateFocused(msg)
}

// handleKey processes keys on the chat screen.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Submit):
		// One exchange at a time; the controller would answer Busy anyway.
		if m.submitting || m.pending || m.resetting {
			return m, nil
		}
		text := m.input.Value()
		if strings.TrimSpace(text) == "" {
			return m, nil
		}
		m.submitting = true
		m.flash = ""
		return m, m.submit(text)

	case key.Matches(msg, m.keys.NewChat):
		if m.resetting {
			return m, nil
		}
		m.resetting = true
		m.notice = nil
		m.flash = ""
		return m, m.newChat()

	case key.Matches(msg, m.keys.Theme):
		m.toggleTheme()
		return m, nil

	case key.Matches(msg, m.keys.Logout):
		if !m.who.Authenticated {
			return m, nil
		}
		return m, m.logout()

	case key.Matches(msg, m.keys.Login):
		if m.who.Authenticated {
			return m, nil
		}
		cmd := m.openLogin()
		return m, cmd

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updateFocused forwards other messages (cursor blink) to the focused input.
func (m Model) updateFocused(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if m.screen == ScreenLogin {
		cmd = m.login.update(msg)
		return m, cmd
	}
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// =============================================================================
// COMMANDS
// =============================================================================

func (m Model) submit(text string) tea.Cmd {
	conv, ctx := m.cfg.Conversation, m.ctx
	return func() tea.Msg {
		return submitDoneMsg{Result: conv.Submit(ctx, text)}
	}
}

func (m Model) newChat() tea.Cmd {
	conv, ctx := m.cfg.Conversation, m.ctx
	return func() tea.Msg {
		conv.NewChat(ctx)
		return newChatDoneMsg{}
	}
}

func (m Model) refreshStatus() tea.Cmd {
	account, quota, ctx, logger := m.cfg.Account, m.cfg.Quota, m.ctx, m.logger
	return func() tea.Msg {
		var st statusMsg
		if account != nil {
			who, err := account.Current(ctx)
			if err != nil {
				logger.Warn().Err(err).Msg("TUI_AUTH_READ_FAILED")
			}
			st.Who = who
		}
		if quota != nil {
			st.Remaining = quota.Remaining()
		}
		return st
	}
}

func (m Model) logout() tea.Cmd {
	account, ctx := m.cfg.Account, m.ctx
	return func() tea.Msg {
		return authDoneMsg{Action: actionLogout, Err: account.Logout(ctx)}
	}
}

// =============================================================================
// HELPERS
// =============================================================================

func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	m.theme.SetSize(width, height)

	// header + indicator line + input (2) + status bar
	chrome := 5
	m.viewport.Width = width
	m.viewport.Height = max(height-chrome, 1)
	m.input.Width = max(width-6, 10)
	m.login.setWidth(width)
	m.ready = true
	m.refreshViewport()
}

func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m *Model) applyTheme() {
	m.input.PromptStyle = m.theme.InputPrompt
	m.input.PlaceholderStyle = m.theme.InputPlaceholder
	m.spinner.Style = m.theme.Spinner
	m.login.applyTheme(m.theme)
}

func (m *Model) toggleTheme() {
	if m.cfg.Themes == nil {
		m.theme = styles.NewTheme(m.theme.Mode.Toggled())
	} else {
		mode, err := m.cfg.Themes.Toggle()
		if err != nil {
			m.logger.Warn().Err(err).Msg("THEME_SAVE_FAILED")
			m.flash = "Theme changed for this session only."
		}
		m.theme = styles.NewTheme(mode)
	}
	m.theme.SetSize(m.width, m.height)
	m.applyTheme()
	m.refreshViewport()
}
