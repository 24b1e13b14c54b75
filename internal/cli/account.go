// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// account.go - register, login, logout, whoami, quota and history commands.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/storage"
)

var errPasswordMismatch = errors.New("passwords do not match")

// authErrorText maps account errors to what the user should read.
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
	case errors.Is(err, errPasswordMismatch):
		return "Passwords do not match."
	case isAbort(err):
		return "Cancelled."
	default:
		return err.Error()
	}
}

// =============================================================================
// PROMPTS
// =============================================================================

// TermPrompter reads answers from a terminal, or line by line when input is
// piped. Passwords are read without echo on a terminal.
type TermPrompter struct {
	in     *os.File
	out    io.Writer
	reader *bufio.Reader
}

// NewTermPrompter prompts on out and reads from in.
func NewTermPrompter(in *os.File, out io.Writer) *TermPrompter {
	return &TermPrompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// Prompt prints prompt and reads one line.
func (p *TermPrompter) Prompt(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// PasswordPrompt reads a line without echo when in is a terminal.
func (p *TermPrompter) PasswordPrompt(prompt string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return p.Prompt(prompt)
	}
	fmt.Fprint(p.out, prompt)
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

// =============================================================================
// COMMANDS
// =============================================================================

// accountCmd holds what the account commands share.
type accountCmd struct {
	account Account
	quota   *quota.Tracker
	history HistoryReader
	prompt  LineReader
	out     io.Writer
	json    bool
	quiet   bool
}

func newAccountCmd(app *App, args Args) *accountCmd {
	return &accountCmd{
		account: app.Auth,
		quota:   app.Quota,
		history: app.Store,
		prompt:  NewTermPrompter(os.Stdin, os.Stderr),
		out:     os.Stdout,
		json:    args.JSON,
		quiet:   args.Quiet,
	}
}

// HandleRegister creates an account. It does not sign in.
func HandleRegister(ctx context.Context, app *App, args Args) error {
	return newAccountCmd(app, args).register(ctx, args.Email)
}

// HandleLogin signs in, which also resets the guest counter.
func HandleLogin(ctx context.Context, app *App, args Args) error {
	return newAccountCmd(app, args).login(ctx, args.Email)
}

// HandleLogout signs out.
func HandleLogout(ctx context.Context, app *App, args Args) error {
	return newAccountCmd(app, args).logout(ctx)
}

// HandleWhoami shows who is signed in.
func HandleWhoami(ctx context.Context, app *App, args Args) error {
	return newAccountCmd(app, args).whoami(ctx)
}

// HandleQuota shows the guest counter.
func HandleQuota(ctx context.Context, app *App, args Args) error {
	return newAccountCmd(app, args).showQuota(ctx)
}

// HandleHistory lists the signed-in user's stored messages.
func HandleHistory(ctx context.Context, app *App, args Args) error {
	return newAccountCmd(app, args).showHistory(ctx, args.Limit)
}

func (c *accountCmd) askEmail(email string) (string, error) {
	if email != "" {
		return email, nil
	}
	line, err := c.prompt.Prompt("Email: ")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (c *accountCmd) register(ctx context.Context, email string) error {
	email, err := c.askEmail(email)
	if err != nil {
		return err
	}
	password, err := c.prompt.PasswordPrompt("Password: ")
	if err != nil {
		return err
	}
	confirm, err := c.prompt.PasswordPrompt("Confirm password: ")
	if err != nil {
		return err
	}
	if password != confirm {
		return errPasswordMismatch
	}

	user, err := c.account.Register(ctx, email, password)
	if err != nil {
		return err
	}
	if c.json {
		return NewJSONResponse("register", WhoamiData{UserID: user.ID, Email: user.Email}).Write(c.out)
	}
	fmt.Fprintln(c.out, SuccessStyle.Render("Account created for "+user.Email+"."))
	if !c.quiet {
		fmt.Fprintln(c.out, DimStyle.Render("Sign in with: calmchat login --email "+user.Email))
	}
	return nil
}

func (c *accountCmd) login(ctx context.Context, email string) error {
	email, err := c.askEmail(email)
	if err != nil {
		return err
	}
	password, err := c.prompt.PasswordPrompt("Password: ")
	if err != nil {
		return err
	}

	user, err := c.account.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if c.json {
		return NewJSONResponse("login", WhoamiData{SignedIn: true, UserID: user.ID, Email: user.Email}).Write(c.out)
	}
	fmt.Fprintln(c.out, SuccessStyle.Render("Signed in as "+user.Email+"."))
	return nil
}

func (c *accountCmd) logout(ctx context.Context) error {
	if err := c.account.Logout(ctx); err != nil {
		return err
	}
	if c.json {
		return NewJSONResponse("logout", WhoamiData{}).Write(c.out)
	}
	fmt.Fprintln(c.out, SuccessStyle.Render("Signed out."))
	return nil
}

func (c *accountCmd) currentUser(ctx context.Context) WhoamiData {
	who, err := c.account.Current(ctx)
	if err != nil || !who.Authenticated {
		return WhoamiData{}
	}
	return WhoamiData{SignedIn: true, UserID: who.UserID, Email: who.Email}
}

func (c *accountCmd) whoami(ctx context.Context) error {
	data := c.currentUser(ctx)
	if c.json {
		return NewJSONResponse("whoami", data).Write(c.out)
	}
	if data.SignedIn {
		fmt.Fprintln(c.out, data.Email)
		return nil
	}
	fmt.Fprintln(c.out, DimStyle.Render("Not signed in (guest)."))
	return nil
}

func (c *accountCmd) quotaData(ctx context.Context) (QuotaData, error) {
	used, err := c.quota.Consumed()
	data := QuotaData{
		Limit:     quota.FreeLimit,
		Used:      used,
		Remaining: c.quota.Remaining(),
		Exhausted: c.quota.Exhausted(),
		Applies:   !c.currentUser(ctx).SignedIn,
	}
	return data, err
}

func (c *accountCmd) showQuota(ctx context.Context) error {
	data, err := c.quotaData(ctx)
	if err != nil {
		return err
	}
	if c.json {
		return NewJSONResponse("quota", data).Write(c.out)
	}

	if c.quiet {
		fmt.Fprintln(c.out, data.Remaining)
		return nil
	}
	fmt.Fprintf(c.out, "%s%d of %d\n", RenderLabel("Free messages:"), data.Remaining, data.Limit)
	if !data.Applies {
		fmt.Fprintln(c.out, DimStyle.Render("You are signed in, so the limit does not apply."))
	} else if data.Exhausted {
		fmt.Fprintln(c.out, WarningStyle.Render("No free messages left. Sign in to keep chatting."))
	}
	return nil
}

func (c *accountCmd) showHistory(ctx context.Context, limit int) error {
	who := c.currentUser(ctx)
	if !who.SignedIn {
		return auth.ErrNotSignedIn
	}
	if limit <= 0 {
		limit = storage.DefaultRecentLimit
	}

	records, err := c.history.RecentRecords(ctx, who.UserID, limit)
	if err != nil {
		return err
	}

	if c.json {
		data := HistoryData{Email: who.Email, Messages: make([]HistoryRecord, 0, len(records))}
		for _, r := range records {
			data.Messages = append(data.Messages, HistoryRecord{
				Sender:     r.Sender,
				Message:    r.Message,
				Emotion:    r.Emotion,
				Confidence: r.Confidence,
				CreatedAt:  r.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		return NewJSONResponse("history", data).Write(c.out)
	}

	printRecords(c.out, records, GetTerminalWidth())
	return nil
}
