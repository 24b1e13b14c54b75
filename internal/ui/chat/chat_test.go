// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/backend"
	"github.com/jeranaias/calmchat/internal/localstore"
	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/session"
	"github.com/jeranaias/calmchat/internal/ui/styles"
)

// =============================================================================
// FAKES
// =============================================================================

type recorder struct {
	mu   sync.Mutex
	msgs []tea.Msg
}

func (r *recorder) Send(msg tea.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
}

func (r *recorder) drain() []tea.Msg {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.msgs
	r.msgs = nil
	return out
}

type fakeGateway struct {
	err error
}

func (g *fakeGateway) Send(_ context.Context, message string) (*backend.ChatResult, error) {
	if g.err != nil {
		return nil, g.err
	}
	return &backend.ChatResult{
		Reply:      "I hear you: " + message,
		Emotion:    "joy",
		Confidence: model.ParseConfidence("91.2%"),
	}, nil
}

func (g *fakeGateway) Reset(context.Context) error { return nil }

type fakeAccount struct {
	mu      sync.Mutex
	users   map[string]string
	current auth.State
}

func newFakeAccount() *fakeAccount {
	return &fakeAccount{users: map[string]string{}}
}

func (a *fakeAccount) Current(context.Context) (auth.State, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current, nil
}

func (a *fakeAccount) Register(_ context.Context, email, password string) (*auth.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(password) < auth.MinPasswordLength {
		return nil, auth.ErrWeakPassword
	}
	if _, ok := a.users[email]; ok {
		return nil, auth.ErrEmailTaken
	}
	a.users[email] = password
	return &auth.User{ID: "u-" + email, Email: email}, nil
}

func (a *fakeAccount) Login(_ context.Context, email, password string) (*auth.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if pw, ok := a.users[email]; !ok || pw != password {
		return nil, auth.ErrInvalidCredentials
	}
	a.current = auth.State{Authenticated: true, UserID: "u-" + email, Email: email}
	return &auth.User{ID: "u-" + email, Email: email}, nil
}

func (a *fakeAccount) Logout(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.current = auth.Guest
	return nil
}

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	model   Model
	rec     *recorder
	gateway *fakeGateway
	account *fakeAccount
	store   *localstore.MemoryStore
	tracker *quota.Tracker
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		rec:     &recorder{},
		gateway: &fakeGateway{},
		account: newFakeAccount(),
		store:   localstore.NewMemoryStore(),
	}
	h.tracker = quota.NewTracker(h.store, zerolog.Nop())

	presenter := NewPresenter()
	presenter.Bind(h.rec)
	ctrl, err := session.NewController(session.Config{
		Gateway:   h.gateway,
		Quota:     h.tracker,
		Auth:      h.account,
		Presenter: presenter,
	})
	require.NoError(t, err)

	h.model = New(context.Background(), Config{
		Conversation: ctrl,
		Account:      h.account,
		Quota:        h.tracker,
		Themes:       styles.NewThemeStore(h.store, styles.ModeDark),
		WarnAt:       quota.WarnAt,
	})
	h.feed(tea.WindowSizeMsg{Width: 100, Height: 30})
	h.refresh()
	return h
}

// refresh loads the status bar the way Init and command results do.
func (h *harness) refresh() {
	h.feed(h.model.refreshStatus()())
}

// feed runs msgs through Update, discarding returned commands.
func (h *harness) feed(msgs ...tea.Msg) {
	for _, msg := range msgs {
		next, _ := h.model.Update(msg)
		h.model = next.(Model)
	}
}

// press sends one key and returns the command it produced.
func (h *harness) press(msg tea.KeyMsg) tea.Cmd {
	next, cmd := h.model.Update(msg)
	h.model = next.(Model)
	return cmd
}

func (h *harness) typeText(s string) {
	h.feed(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// run executes cmd, replays everything the presenter sent, then cmd's own result.
func (h *harness) run(cmd tea.Cmd) {
	if cmd == nil {
		return
	}
	result := cmd()
	h.feed(h.rec.drain()...)
	if result != nil {
		h.feed(result)
	}
	h.refresh()
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	tab   = tea.KeyMsg{Type: tea.KeyTab}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
)

// =============================================================================
// PRESENTER TESTS
// =============================================================================

func TestPresenter_DropsUntilBound(t *testing.T) {
	p := NewPresenter()
	p.ShowPending()

	rec := &recorder{}
	p.Bind(rec)
	p.ShowPending()
	p.AppendMessage(model.NewUserMessage("hi"))
	p.HidePending()
	p.ClearInput()
	p.ClearTranscript()
	p.Notify(session.Notice{Kind: session.NoticeQuotaWarning, Text: "low"})
	p.RedirectToLogin()

	msgs := rec.drain()
	require.Len(t, msgs, 7)
	require.Equal(t, pendingMsg{Visible: true}, msgs[0])
	require.IsType(t, appendMsg{}, msgs[1])
	require.Equal(t, pendingMsg{Visible: false}, msgs[2])
	require.IsType(t, clearInputMsg{}, msgs[3])
	require.IsType(t, clearTranscriptMsg{}, msgs[4])
	require.IsType(t, noticeMsg{}, msgs[5])
	require.IsType(t, redirectLoginMsg{}, msgs[6])
}

// =============================================================================
// CHAT SCREEN TESTS
// =============================================================================

func TestModel_SubmitCycle(t *testing.T) {
	h := newHarness(t)
	h.typeText("hello there")

	cmd := h.press(enter)
	require.NotNil(t, cmd)
	h.run(cmd)

	msgs := h.model.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, model.SenderUser, msgs[0].Sender)
	require.Equal(t, "I hear you: hello there", msgs[1].Text)
	require.False(t, h.model.Pending())
	require.Empty(t, h.model.input.Value())

	view := h.model.View()
	require.Contains(t, view, "Emotion: joy | Confidence: 91.2%")
	require.Contains(t, view, "9 free messages left")
}

func TestModel_EnterIgnoredWhilePending(t *testing.T) {
	h := newHarness(t)
	h.feed(pendingMsg{Visible: true})
	h.typeText("again")

	require.Nil(t, h.press(enter))
	require.Contains(t, h.model.View(), "Bot is typing")
}

func TestModel_EmptyInputNotSubmitted(t *testing.T) {
	h := newHarness(t)
	h.typeText("   ")
	require.Nil(t, h.press(enter))
}

func TestModel_FailedSendShowsNoticeAndUnanswered(t *testing.T) {
	h := newHarness(t)
	h.gateway.err = errors.New("connection refused")
	h.typeText("anyone?")

	h.run(h.press(enter))

	require.Len(t, h.model.Messages(), 1)
	view := h.model.View()
	require.Contains(t, view, "Backend not connected")
	require.Contains(t, view, "not answered")
	require.Equal(t, 10, h.tracker.Remaining())
}

func TestModel_BlockedRedirectsToLogin(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(quota.CounterKey, "10"))
	h.typeText("one more")

	h.run(h.press(enter))

	require.Equal(t, ScreenLogin, h.model.Screen())
	require.Empty(t, h.model.Messages())
	require.Equal(t, "one more", h.model.input.Value())
	require.Contains(t, h.model.View(), "used all 10 free messages")

	h.feed(esc)
	require.Equal(t, ScreenChat, h.model.Screen())
}

func TestModel_NewChatClearsTranscript(t *testing.T) {
	h := newHarness(t)
	h.typeText("first")
	h.run(h.press(enter))
	require.Len(t, h.model.Messages(), 2)

	cmd := h.press(tea.KeyMsg{Type: tea.KeyCtrlN})
	require.NotNil(t, cmd)
	h.run(cmd)

	require.Empty(t, h.model.Messages())
	require.Equal(t, 9, h.tracker.Remaining())
}

func TestModel_ThemeTogglePersists(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, styles.ModeDark, h.model.theme.Mode)

	h.feed(tea.KeyMsg{Type: tea.KeyCtrlT})

	require.Equal(t, styles.ModeLight, h.model.theme.Mode)
	raw, err := h.store.Get(styles.ThemeKey)
	require.NoError(t, err)
	require.Equal(t, "light", raw)
}

func TestModel_QuotaChangedRefreshesStatus(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.Set(quota.CounterKey, "8"))

	next, cmd := h.model.Update(QuotaChangedMsg{})
	h.model = next.(Model)
	h.run(cmd)

	require.Contains(t, h.model.View(), "2 free messages left")
}

// =============================================================================
// LOGIN SCREEN TESTS
// =============================================================================

func TestModel_LoginFlow(t *testing.T) {
	h := newHarness(t)
	h.account.users["sam@example.com"] = "secret1"

	h.press(tea.KeyMsg{Type: tea.KeyCtrlL})
	require.Equal(t, ScreenLogin, h.model.Screen())

	h.typeText("sam@example.com")
	h.feed(enter)
	h.typeText("wrong!")
	h.run(h.press(enter))
	require.Equal(t, ScreenLogin, h.model.Screen())
	require.Contains(t, h.model.View(), "Email or password is incorrect.")

	h.typeText("secret1")
	h.run(h.press(enter))
	require.Equal(t, ScreenChat, h.model.Screen())
	require.True(t, h.model.who.Authenticated)
	require.Contains(t, h.model.View(), "sam@example.com")

	h.run(h.press(tea.KeyMsg{Type: tea.KeyCtrlO}))
	require.False(t, h.model.who.Authenticated)
	require.Contains(t, h.model.View(), "Guest")
}

func TestModel_RegisterDoesNotSignIn(t *testing.T) {
	h := newHarness(t)
	h.press(tea.KeyMsg{Type: tea.KeyCtrlL})
	h.feed(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.Contains(t, h.model.View(), "Create an account")

	h.typeText("new@example.com")
	h.feed(tab)
	h.typeText("abc")
	h.run(h.press(enter))
	require.Contains(t, h.model.View(), "at least 6 characters")

	h.typeText("defghi")
	h.run(h.press(enter))

	require.Equal(t, ScreenLogin, h.model.Screen())
	require.Contains(t, h.model.View(), "Account created for new@example.com")
	require.False(t, h.model.who.Authenticated)
	require.Contains(t, h.model.View(), "Sign in")
}

func TestAuthErrorText(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{auth.ErrInvalidEmail, "valid email"},
		{auth.ErrWeakPassword, "at least 6"},
		{auth.ErrEmailTaken, "already registered"},
		{auth.ErrInvalidCredentials, "incorrect"},
		{errors.New("disk"), "Something went wrong"},
	}
	for _, tt := range tests {
		require.True(t, strings.Contains(authErrorText(tt.err), tt.want), tt.err.Error())
	}
}
