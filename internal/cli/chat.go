// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-oriented chat for terminals without the full-screen UI.
//
// Uses liner for input history and line editing, glamour for bot replies.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"
	"github.com/peterh/liner"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/session"
	"github.com/jeranaias/calmchat/internal/storage"
	"github.com/jeranaias/calmchat/internal/ui/styles"
	"github.com/jeranaias/calmchat/internal/util"
)

// =============================================================================
// INPUT
// =============================================================================

// LineReader reads user input.
type LineReader interface {
	Prompt(prompt string) (string, error)
	PasswordPrompt(prompt string) (string, error)
}

// ChatCLI wraps liner with a history file.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a liner-backed reader whose history lives in dir.
func NewChatCLI(dir string) *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(dir, "chat_history"),
	}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// Prompt reads a line and adds it to the history.
func (c *ChatCLI) Prompt(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" && !strings.HasPrefix(input, "/login") {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// PasswordPrompt reads a line without echo. It is never added to history.
func (c *ChatCLI) PasswordPrompt(prompt string) (string, error) {
	return c.line.PasswordPrompt(prompt)
}

// Close writes the history file (0600) and restores the terminal.
func (c *ChatCLI) Close() error {
	if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		_, _ = c.line.WriteHistory(f)
		f.Close()
	}
	return c.line.Close()
}

// isAbort reports whether err ends the session (Ctrl+C or Ctrl+D).
func isAbort(err error) bool {
	return errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF)
}

// =============================================================================
// MARKDOWN
// =============================================================================

// Renderer turns reply markdown into terminal text.
type Renderer interface {
	Render(in string) (string, error)
}

// NewMarkdownRenderer returns a glamour renderer matching mode, or a plain
// style when colors are off.
func NewMarkdownRenderer(mode styles.Mode, width int) (Renderer, error) {
	style := "dark"
	switch {
	case !ColorsEnabled():
		style = "notty"
	case !mode.IsDark():
		style = "light"
	}
	if width <= 0 {
		width = GetTerminalWidth()
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(width-4),
	)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// =============================================================================
// PRESENTER
// =============================================================================

// LinePresenter prints controller output as plain lines.
type LinePresenter struct {
	out         io.Writer
	term        *termenv.Output
	interactive bool

	mu       sync.Mutex
	renderer Renderer
	redirect bool
}

// NewLinePresenter writes to out. When interactive is set the typing
// indicator is erased in place instead of left in the scrollback.
func NewLinePresenter(out io.Writer, renderer Renderer, interactive bool) *LinePresenter {
	return &LinePresenter{
		out:         out,
		term:        termenv.NewOutput(out),
		interactive: interactive,
		renderer:    renderer,
	}
}

// SetRenderer swaps the markdown renderer (theme changes).
func (p *LinePresenter) SetRenderer(r Renderer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.renderer = r
}

// AppendMessage prints bot replies. The user's own line is already on screen.
func (p *LinePresenter) AppendMessage(msg model.Message) {
	if msg.Sender != model.SenderBot {
		return
	}

	p.mu.Lock()
	r := p.renderer
	p.mu.Unlock()

	text := WrapText(msg.Text, GetTerminalWidth()-2)
	if r != nil {
		if rendered, err := r.Render(msg.Text); err == nil {
			text = strings.Trim(rendered, "\n")
		}
	}

	fmt.Fprintln(p.out, BotNameStyle.Render(model.SenderBot.DisplayName()+":"))
	fmt.Fprintln(p.out, text)
	if msg.HasAnalysis() {
		fmt.Fprintln(p.out, RenderAnalysis(msg.Emotion, msg.Confidence.Percent()))
	}
	fmt.Fprintln(p.out)
}

func (p *LinePresenter) ShowPending() {
	if p.interactive {
		fmt.Fprint(p.out, DimStyle.Render("Bot is typing..."))
		return
	}
	fmt.Fprintln(p.out, DimStyle.Render("Bot is typing..."))
}

func (p *LinePresenter) HidePending() {
	if p.interactive {
		p.term.ClearLine()
		fmt.Fprint(p.out, "\r")
	}
}

func (p *LinePresenter) ClearTranscript() {
	fmt.Fprintln(p.out, DimStyle.Render("[New chat started]"))
}

func (p *LinePresenter) ClearInput() {}

func (p *LinePresenter) Notify(n session.Notice) {
	switch {
	case n.Kind.Blocking(), n.Kind == session.NoticeBackendUnavailable:
		fmt.Fprintln(p.out, ErrorStyle.Render(n.Text))
	default:
		fmt.Fprintln(p.out, WarningStyle.Render(n.Text))
	}
}

// RedirectToLogin marks that the REPL should offer to sign in.
func (p *LinePresenter) RedirectToLogin() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.redirect = true
}

// takeRedirect returns and clears the redirect request.
func (p *LinePresenter) takeRedirect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.redirect
	p.redirect = false
	return r
}

// =============================================================================
// REPL
// =============================================================================

// Conversation is the controller surface the REPL drives.
type Conversation interface {
	Submit(ctx context.Context, input string) session.Result
	NewChat(ctx context.Context)
	Transcript() *model.Transcript
}

// Account is the sign-in surface.
type Account interface {
	Current(ctx context.Context) (auth.State, error)
	Register(ctx context.Context, email, password string) (*auth.User, error)
	Login(ctx context.Context, email, password string) (*auth.User, error)
	Logout(ctx context.Context) error
}

// QuotaReader reports free messages left.
type QuotaReader interface {
	Remaining() int
}

// HistoryReader reads stored messages.
type HistoryReader interface {
	RecentRecords(ctx context.Context, userID string, limit int) ([]storage.Record, error)
}

// REPLConfig wires a REPL.
type REPLConfig struct {
	Conversation Conversation
	Account      Account
	Quota        QuotaReader
	History      HistoryReader
	Presenter    *LinePresenter
	Themes       *styles.ThemeStore
	Input        LineReader
	Out          io.Writer

	// BackendURL is shown in the banner.
	BackendURL string

	// HandleSignals cancels an in-flight message on Ctrl+C.
	HandleSignals bool

	// Quiet skips the banner and the goodbye line.
	Quiet bool
}

// REPL is an interactive line-oriented chat session.
type REPL struct {
	cfg REPLConfig

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewREPL creates a REPL.
func NewREPL(cfg REPLConfig) *REPL {
	if cfg.Out == nil {
		cfg.Out = os.Stdout
	}
	return &REPL{cfg: cfg}
}

// Run reads lines until /quit, Ctrl+C at the prompt or end of input.
func (r *REPL) Run(ctx context.Context) error {
	if r.cfg.HandleSignals {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		go r.cancelOnSignal(ctx, sigCh)
	}

	if !r.cfg.Quiet {
		r.printWelcome(ctx)
	}

	for {
		input, err := r.cfg.Input.Prompt(PromptStyle.Render("you> "))
		if err != nil {
			fmt.Fprintln(r.cfg.Out)
			if isAbort(err) {
				r.printGoodbye()
				return nil
			}
			return err
		}

		line := strings.TrimSpace(input)
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			r.printGoodbye()
			return nil
		case strings.HasPrefix(line, "/"):
			cont, err := r.handleSlashCommand(ctx, line)
			if err != nil {
				fmt.Fprintf(r.cfg.Out, "%s %v\n", ErrorStyle.Render("[ERROR]"), err)
			}
			if !cont {
				r.printGoodbye()
				return nil
			}
			continue
		}

		r.send(ctx, input)
	}
}

func (r *REPL) cancelOnSignal(ctx context.Context, sigCh <-chan os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			r.mu.Lock()
			if r.cancel != nil {
				r.cancel()
				r.cancel = nil
				fmt.Fprintln(r.cfg.Out, "\n"+WarningStyle.Render("[Cancelled]"))
			}
			r.mu.Unlock()
		}
	}
}

// send submits one message and offers to sign in when the quota blocks it.
func (r *REPL) send(ctx context.Context, input string) {
	sendCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	res := r.cfg.Conversation.Submit(sendCtx, input)

	r.mu.Lock()
	r.cancel = nil
	r.mu.Unlock()
	cancel()

	if res.Outcome == session.OutcomeBusy {
		fmt.Fprintln(r.cfg.Out, WarningStyle.Render("Still waiting for the last reply."))
	}
	if r.cfg.Presenter != nil && r.cfg.Presenter.takeRedirect() {
		fmt.Fprintln(r.cfg.Out, DimStyle.Render("Sign in to continue, or type /quit."))
		if err := r.login(ctx); err != nil {
			fmt.Fprintf(r.cfg.Out, "%s %s\n", ErrorStyle.Render("[ERROR]"), authErrorText(err))
		}
	}
}

// handleSlashCommand runs a REPL command. It returns false to end the session.
func (r *REPL) handleSlashCommand(ctx context.Context, line string) (bool, error) {
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	switch command {
	case "/help", "/h", "/?":
		r.printHelp()

	case "/new", "/clear":
		r.cfg.Conversation.NewChat(ctx)

	case "/login":
		if err := r.login(ctx); err != nil {
			return true, errors.New(authErrorText(err))
		}

	case "/register":
		if err := r.register(ctx); err != nil {
			return true, errors.New(authErrorText(err))
		}

	case "/logout":
		if err := r.cfg.Account.Logout(ctx); err != nil {
			return true, err
		}
		fmt.Fprintln(r.cfg.Out, SuccessStyle.Render("Signed out."))

	case "/whoami", "/me":
		fmt.Fprintln(r.cfg.Out, r.whoLine(ctx))

	case "/quota":
		fmt.Fprintln(r.cfg.Out, r.quotaLine(ctx))

	case "/theme":
		return true, r.toggleTheme()

	case "/history":
		limit := 10
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n <= 0 {
				return true, &UsageError{Message: "limit must be a positive number", Example: "/history 20"}
			}
			limit = n
		}
		return true, r.printHistory(ctx, limit)

	case "/quit", "/q", "/exit":
		return false, nil

	default:
		if hint := suggest(command, slashCommands); hint != "" {
			return true, &UsageError{Message: "unknown command " + command + ", did you mean " + hint + "?"}
		}
		return true, &UsageError{Message: "unknown command " + command, Example: "/help"}
	}
	return true, nil
}

func (r *REPL) login(ctx context.Context) error {
	email, err := r.cfg.Input.Prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := r.cfg.Input.PasswordPrompt("Password: ")
	if err != nil {
		return err
	}
	user, err := r.cfg.Account.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.cfg.Out, SuccessStyle.Render("Signed in as "+user.Email+"."))
	return nil
}

func (r *REPL) register(ctx context.Context) error {
	email, err := r.cfg.Input.Prompt("Email: ")
	if err != nil {
		return err
	}
	password, err := r.cfg.Input.PasswordPrompt("Password: ")
	if err != nil {
		return err
	}
	confirm, err := r.cfg.Input.PasswordPrompt("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errPasswordMismatch
	}
	user, err := r.cfg.Account.Register(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.cfg.Out, "%s\n", SuccessStyle.Render("Account created for "+user.Email+". Sign in to continue with /login."))
	return nil
}

func (r *REPL) toggleTheme() error {
	if r.cfg.Themes == nil {
		return nil
	}
	mode, err := r.cfg.Themes.Toggle()
	mode.Apply()
	if r.cfg.Presenter != nil {
		if renderer, rerr := NewMarkdownRenderer(mode, 0); rerr == nil {
			r.cfg.Presenter.SetRenderer(renderer)
		}
	}
	fmt.Fprintf(r.cfg.Out, "%s\n", DimStyle.Render("Theme: "+string(mode)))
	return err
}

func (r *REPL) printHistory(ctx context.Context, limit int) error {
	if r.cfg.History == nil {
		return nil
	}
	who, err := r.cfg.Account.Current(ctx)
	if err != nil || !who.Authenticated {
		return errors.New("sign in to see your saved history")
	}
	records, err := r.cfg.History.RecentRecords(ctx, who.UserID, limit)
	if err != nil {
		return err
	}
	printRecords(r.cfg.Out, records, GetTerminalWidth())
	return nil
}

// printRecords writes one line per stored message, truncated to width.
func printRecords(w io.Writer, records []storage.Record, width int) {
	if len(records) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No saved messages yet."))
		return
	}
	for _, rec := range records {
		name := model.Sender(rec.Sender).DisplayName()
		prefix := rec.CreatedAt.Local().Format("Jan 02 15:04") + "  " + name + ": "
		text := util.TruncateWidth(util.SingleLine(rec.Message), max(width-len(prefix), 20))
		line := DimStyle.Render(prefix) + text
		if rec.Emotion != nil {
			line += DimStyle.Render("  (" + *rec.Emotion + ")")
		}
		fmt.Fprintln(w, line)
	}
}

func (r *REPL) whoLine(ctx context.Context) string {
	who, err := r.cfg.Account.Current(ctx)
	if err == nil && who.Authenticated {
		return SuccessStyle.Render("Signed in as " + who.Email)
	}
	return DimStyle.Render("Guest")
}

func (r *REPL) quotaLine(ctx context.Context) string {
	if who, err := r.cfg.Account.Current(ctx); err == nil && who.Authenticated {
		return DimStyle.Render("Signed in: no message limit.")
	}
	if r.cfg.Quota == nil {
		return ""
	}
	remaining := r.cfg.Quota.Remaining()
	text := fmt.Sprintf("%d free messages left.", remaining)
	switch {
	case remaining == 0:
		return ErrorStyle.Render(text)
	case remaining <= quota.WarnAt:
		return WarningStyle.Render(text)
	default:
		return DimStyle.Render(text)
	}
}

func (r *REPL) printWelcome(ctx context.Context) {
	out := r.cfg.Out
	fmt.Fprintln(out, TitleStyle.Render("calmchat"))
	fmt.Fprintln(out, RenderSeparator())
	if r.cfg.BackendURL != "" {
		fmt.Fprintf(out, "%s%s\n", RenderLabel("Backend:"), ValueStyle.Render(r.cfg.BackendURL))
	}
	fmt.Fprintf(out, "%s%s\n", RenderLabel("Account:"), r.whoLine(ctx))
	if q := r.quotaLine(ctx); q != "" {
		fmt.Fprintf(out, "%s%s\n", RenderLabel("Quota:"), q)
	}
	fmt.Fprintln(out, DimStyle.Render("Type /help for commands, /quit to leave."))
	fmt.Fprintln(out)
}

func (r *REPL) printHelp() {
	fmt.Fprint(r.cfg.Out, `Commands:
  /new            Start a new chat
  /login          Sign in
  /register       Create an account
  /logout         Sign out
  /whoami         Show who is signed in
  /quota          Show free messages left
  /history [N]    Show your last N saved messages
  /theme          Switch between dark and light
  /quit           Leave
`)
}

func (r *REPL) printGoodbye() {
	if r.cfg.Quiet {
		return
	}
	if n := r.cfg.Conversation.Transcript().Len(); n > 0 {
		fmt.Fprintln(r.cfg.Out, DimStyle.Render(fmt.Sprintf("%d messages this session.", n)))
	}
	fmt.Fprintln(r.cfg.Out, DimStyle.Render("Take care."))
}

// =============================================================================
// COMMAND HANDLER
// =============================================================================

// HandleChat runs the line-oriented chat.
func HandleChat(ctx context.Context, app *App, args Args) error {
	mode := app.Themes.Get()
	mode.Apply()
	renderer, err := NewMarkdownRenderer(mode, 0)
	if err != nil {
		app.Logger.Warn().Err(err).Msg("MARKDOWN_RENDERER_FAILED")
		renderer = nil
	}

	presenter := NewLinePresenter(os.Stdout, renderer, IsStdoutTTY())
	ctrl, err := app.NewController(presenter)
	if err != nil {
		return err
	}
	if _, err := app.StartBackground(ctx); err != nil {
		app.Logger.Warn().Err(err).Msg("BACKGROUND_START_FAILED")
	}

	input := NewChatCLI(app.State.Dir())
	defer input.Close()

	return NewREPL(REPLConfig{
		Conversation:  ctrl,
		Account:       app.Auth,
		Quota:         app.Quota,
		History:       app.Store,
		Presenter:     presenter,
		Themes:        app.Themes,
		Input:         input,
		Out:           os.Stdout,
		BackendURL:    app.Config.Backend.URL,
		HandleSignals: true,
		Quiet:         args.Quiet,
	}).Run(ctx)
}
