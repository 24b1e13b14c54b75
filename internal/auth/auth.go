// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package auth is the local identity provider: account registration,
// sign-in and sign-out, and the "who is signed in" query.
//
// Accounts live in SQLite. The signed-in session is a small JSON file in
// the state directory that is re-read on every query, so signing in from one
// terminal is visible to a chat running in another.
package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jeranaias/calmchat/internal/util"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 6

var (
	ErrInvalidEmail       = errors.New("auth: invalid email address")
	ErrWeakPassword       = fmt.Errorf("auth: password must be at least %d characters", MinPasswordLength)
	ErrEmailTaken         = errors.New("auth: an account with this email already exists")
	ErrInvalidCredentials = errors.New("auth: invalid email or password")
	ErrNotSignedIn        = errors.New("auth: not signed in")
)

// =============================================================================
// TYPES
// =============================================================================

// User is a registered account.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// State is the authentication state observed at one instant.
type State struct {
	Authenticated bool
	UserID        string
	Email         string
}

// Guest is the unauthenticated state.
var Guest = State{}

// LoginHook runs after every successful sign-in.
type LoginHook func(ctx context.Context, user User) error

// sessionFile is the on-disk signed-in session.
type sessionFile struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	SignedIn  time.Time `json:"signed_in_at"`
}

const usersSchema = `
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    created_at INTEGER NOT NULL
);
`

// =============================================================================
// PROVIDER
// =============================================================================

// Config configures a LocalProvider.
type Config struct {
	// DB holds the users table.
	DB *sql.DB

	// SessionPath is the signed-in session file.
	SessionPath string

	// Iterations overrides the PBKDF2 work factor (tests).
	Iterations int

	Logger zerolog.Logger
}

// LocalProvider implements registration and sign-in against a local database.
type LocalProvider struct {
	db          *sql.DB
	sessionPath string
	iterations  int
	logger      zerolog.Logger

	mu    sync.Mutex
	hooks []LoginHook
}

// NewLocalProvider prepares the users table and returns a provider.
func NewLocalProvider(cfg Config) (*LocalProvider, error) {
	if cfg.DB == nil {
		return nil, errors.New("auth: database handle required")
	}
	if cfg.SessionPath == "" {
		return nil, errors.New("auth: session path required")
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}

	if _, err := cfg.DB.Exec(usersSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize users schema: %w", err)
	}

	return &LocalProvider{
		db:          cfg.DB,
		sessionPath: cfg.SessionPath,
		iterations:  cfg.Iterations,
		logger:      cfg.Logger,
	}, nil
}

// OnLogin registers a hook run after every successful Login.
func (p *LocalProvider) OnLogin(hook LoginHook) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = append(p.hooks, hook)
}

// Register creates an account. It does not sign the user in.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	hash, err := hashPassword(password, p.iterations)
	if err != nil {
		return nil, err
	}

	user := &User{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: time.Now().UTC(),
	}

	var exists int
	err = p.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM users WHERE email = ?", email).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("auth: lookup: %w", err)
	}
	if exists > 0 {
		return nil, ErrEmailTaken
	}

	_, err = p.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.ID, user.Email, hash, user.CreatedAt.UnixMilli(),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("auth: insert user: %w", err)
	}

	p.logger.Info().Str("user_id", user.ID).Msg("AUTH_REGISTER")
	return user, nil
}

// Login verifies credentials, writes the session file and runs login hooks.
func (p *LocalProvider) Login(ctx context.Context, email, password string) (*User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var (
		user      User
		hash      string
		createdAt int64
	)
	err = p.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = ?", email,
	).Scan(&user.ID, &user.Email, &hash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		p.logger.Info().Msg("AUTH_LOGIN_REJECTED")
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: lookup: %w", err)
	}
	user.CreatedAt = time.UnixMilli(createdAt)

	if !verifyPassword(password, hash) {
		p.logger.Info().Str("user_id", user.ID).Msg("AUTH_LOGIN_REJECTED")
		return nil, ErrInvalidCredentials
	}

	sess := sessionFile{
		SessionID: uuid.NewString(),
		UserID:    user.ID,
		Email:     user.Email,
		SignedIn:  time.Now().UTC(),
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("auth: encode session: %w", err)
	}
	if err := util.AtomicWriteFile(p.sessionPath, data, 0600); err != nil {
		return nil, fmt.Errorf("auth: write session: %w", err)
	}

	p.logger.Info().Str("user_id", user.ID).Msg("AUTH_LOGIN")

	p.mu.Lock()
	hooks := make([]LoginHook, len(p.hooks))
	copy(hooks, p.hooks)
	p.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx, user); err != nil {
			p.logger.Error().Err(err).Str("user_id", user.ID).Msg("AUTH_LOGIN_HOOK_FAILED")
		}
	}

	return &user, nil
}

// Logout removes the session file. Logging out while signed out is not an error.
func (p *LocalProvider) Logout(ctx context.Context) error {
	if err := os.Remove(p.sessionPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("auth: remove session: %w", err)
	}
	p.logger.Info().Msg("AUTH_LOGOUT")
	return nil
}

// Current reads the session file and returns the signed-in state. A missing
// file is Guest with no error.
func (p *LocalProvider) Current(ctx context.Context) (State, error) {
	data, err := os.ReadFile(p.sessionPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Guest, nil
		}
		return Guest, fmt.Errorf("auth: read session: %w", err)
	}

	var sess sessionFile
	if err := json.Unmarshal(data, &sess); err != nil {
		return Guest, fmt.Errorf("auth: corrupt session: %w", err)
	}
	if sess.UserID == "" {
		return Guest, fmt.Errorf("auth: corrupt session: missing user id")
	}

	// The account may have been removed since the session was written.
	var email string
	err = p.db.QueryRowContext(ctx, "SELECT email FROM users WHERE id = ?", sess.UserID).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return Guest, nil
	}
	if err != nil {
		return Guest, fmt.Errorf("auth: lookup: %w", err)
	}

	return State{Authenticated: true, UserID: sess.UserID, Email: email}, nil
}

// RequireUser returns the signed-in state or ErrNotSignedIn.
func (p *LocalProvider) RequireUser(ctx context.Context) (State, error) {
	st, err := p.Current(ctx)
	if err != nil {
		return Guest, err
	}
	if !st.Authenticated {
		return Guest, ErrNotSignedIn
	}
	return st, nil
}

// SessionPath returns the session file location.
func (p *LocalProvider) SessionPath() string {
	return p.sessionPath
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return "", ErrInvalidEmail
	}
	return email, nil
}
