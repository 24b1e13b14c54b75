// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/backend"
	"github.com/jeranaias/calmchat/internal/model"
	"github.com/jeranaias/calmchat/internal/quota"
	"github.com/jeranaias/calmchat/internal/storage"
)

// ErrBusy is returned in a Result when a submission arrives while another
// cycle or a reset is running.
var ErrBusy = errors.New("session: a message is already in flight")

// =============================================================================
// STATE AND OUTCOME
// =============================================================================

// State is the controller's position in the submission cycle.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateAwaitingBackend
	StateSettling
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateAwaitingBackend:
		return "awaiting_backend"
	case StateSettling:
		return "settling"
	case StateResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// Outcome is how a submission ended.
type Outcome int

const (
	// OutcomeIgnored: empty or whitespace-only input.
	OutcomeIgnored Outcome = iota
	// OutcomeBusy: another cycle or a reset was running.
	OutcomeBusy
	// OutcomeBlocked: guest quota exhausted, backend not contacted.
	OutcomeBlocked
	// OutcomeCompleted: the bot replied and the exchange was settled.
	OutcomeCompleted
	// OutcomeFailed: the backend call failed, nothing was charged or saved.
	OutcomeFailed
	// OutcomeDiscarded: a new chat superseded this cycle.
	OutcomeDiscarded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeBusy:
		return "busy"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeCompleted:
		return "completed"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Result describes one Submit call.
type Result struct {
	Outcome Outcome

	// Warned is set when the low-quota warning was shown for this submission.
	Warned bool

	// Reply is the bot message when Outcome is OutcomeCompleted.
	Reply model.Message

	// Err carries the backend error for OutcomeFailed, ErrBusy for
	// OutcomeBusy, or a settle error (persist or quota write) for an
	// otherwise completed exchange.
	Err error
}

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	DefaultSendTimeout    = 30 * time.Second
	DefaultResetTimeout   = 10 * time.Second
	DefaultPersistTimeout = 10 * time.Second
)

// Config wires a Controller to its collaborators.
type Config struct {
	Gateway   Gateway
	Quota     QuotaTracker
	Auth      AuthSource
	Store     RecordStore
	Presenter Presenter

	// Transcript defaults to a fresh transcript.
	Transcript *model.Transcript

	// SendTimeout bounds each backend send (default: 30s)
	SendTimeout time.Duration

	// ResetTimeout bounds the best-effort backend reset (default: 10s)
	ResetTimeout time.Duration

	// PersistTimeout bounds the record write (default: 10s)
	PersistTimeout time.Duration

	Logger   zerolog.Logger
	Observer Observer
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs the submission state machine for one transcript.
//
// At most one exchange is in flight at a time. NewChat may be called at any
// point; it supersedes the running cycle, whose late response is then
// dropped without touching the transcript, the quota or the store.
type Controller struct {
	gateway    Gateway
	quota      QuotaTracker
	auth       AuthSource
	store      RecordStore
	presenter  Presenter
	transcript *model.Transcript
	observer   Observer
	logger     zerolog.Logger

	sendTimeout    time.Duration
	resetTimeout   time.Duration
	persistTimeout time.Duration

	mu    sync.Mutex
	state State
	cycle uint64

	// uiMu serializes presenter calls and orders them against NewChat.
	uiMu sync.Mutex
}

// NewController validates cfg and returns an idle controller.
func NewController(cfg Config) (*Controller, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("session: gateway required")
	}
	if cfg.Quota == nil {
		return nil, errors.New("session: quota tracker required")
	}
	if cfg.Auth == nil {
		return nil, errors.New("session: auth source required")
	}
	if cfg.Store == nil {
		cfg.Store = storage.NopStore{}
	}
	if cfg.Presenter == nil {
		cfg.Presenter = NopPresenter{}
	}
	if cfg.Transcript == nil {
		cfg.Transcript = model.NewTranscript()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultSendTimeout
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultResetTimeout
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = DefaultPersistTimeout
	}

	return &Controller{
		gateway:        cfg.Gateway,
		quota:          cfg.Quota,
		auth:           cfg.Auth,
		store:          cfg.Store,
		presenter:      cfg.Presenter,
		transcript:     cfg.Transcript,
		observer:       cfg.Observer,
		logger:         cfg.Logger,
		sendTimeout:    cfg.SendTimeout,
		resetTimeout:   cfg.ResetTimeout,
		persistTimeout: cfg.PersistTimeout,
	}, nil
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy reports whether a submission would be rejected right now.
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

// Transcript returns the transcript the controller appends to.
func (c *Controller) Transcript() *model.Transcript {
	return c.transcript
}

// NormalizeInput trims surrounding whitespace and composes the text to NFC.
func NormalizeInput(input string) string {
	return norm.NFC.String(strings.TrimSpace(input))
}

// =============================================================================
// SUBMIT
// =============================================================================

// Submit runs one submission cycle for input and blocks until it settles.
func (c *Controller) Submit(ctx context.Context, input string) Result {
	res := c.submit(ctx, input)
	if c.observer != nil {
		c.observer.ObserveSubmission(res.Outcome.String())
	}
	return res
}

func (c *Controller) submit(ctx context.Context, input string) Result {
	text := NormalizeInput(input)
	if text == "" {
		return Result{Outcome: OutcomeIgnored}
	}

	// Idle -> Validating
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug().Str("state", state.String()).Msg("SUBMIT_BUSY")
		return Result{Outcome: OutcomeBusy, Err: ErrBusy}
	}
	c.state = StateValidating
	cycle := c.cycle
	c.mu.Unlock()

	// Auth is captured once here and not re-read after the network call.
	who := c.currentAuth(ctx)

	var warned bool
	if !who.Authenticated {
		remaining := c.quota.Remaining()
		if remaining <= 0 {
			c.finishCycle(cycle)
			c.logger.Info().Int("remaining", remaining).Msg("SUBMIT_BLOCKED")
			c.present(cycle, func(p Presenter) {
				p.Notify(exhaustedNotice)
				p.RedirectToLogin()
			})
			return Result{Outcome: OutcomeBlocked}
		}
		if remaining == quota.WarnAt {
			warned = c.present(cycle, func(p Presenter) {
				p.Notify(warningNotice(remaining))
			})
		}
	}

	// Validating -> AwaitingBackend
	userMsg := model.NewUserMessage(text)
	c.mu.Lock()
	if c.cycle != cycle {
		c.mu.Unlock()
		return c.discarded(warned)
	}
	if err := c.transcript.Append(userMsg); err != nil {
		c.state = StateIdle
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("SUBMIT_TRANSCRIPT_REJECTED")
		return Result{Outcome: OutcomeFailed, Warned: warned, Err: err}
	}
	c.state = StateAwaitingBackend
	c.mu.Unlock()

	if !c.present(cycle, func(p Presenter) {
		p.ClearInput()
		p.AppendMessage(userMsg)
		p.ShowPending()
	}) {
		return c.discarded(warned)
	}

	sendCtx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	reply, err := c.gateway.Send(sendCtx, text)
	cancel()

	// AwaitingBackend -> Settling
	c.mu.Lock()
	if c.cycle != cycle {
		c.mu.Unlock()
		return c.discarded(warned)
	}
	c.state = StateSettling

	if err != nil {
		c.transcript.MarkUnanswered(userMsg.ID)
		c.state = StateIdle
		c.mu.Unlock()

		// The caller gave up, so the backend is not to blame and no notice is shown.
		if canceled(err) {
			c.logger.Info().Bool("authenticated", who.Authenticated).Msg("SUBMIT_CANCELED")
			c.present(cycle, func(p Presenter) {
				p.HidePending()
			})
			return Result{Outcome: OutcomeFailed, Warned: warned, Err: err}
		}

		c.logger.Warn().Err(err).Bool("authenticated", who.Authenticated).Msg("SUBMIT_BACKEND_FAILED")
		notice := backendNotice
		if backend.IsTimeout(err) {
			notice = timeoutNotice
		}
		c.present(cycle, func(p Presenter) {
			p.HidePending()
			p.Notify(notice)
		})
		return Result{Outcome: OutcomeFailed, Warned: warned, Err: err}
	}

	botMsg := reply.BotMessage()
	if err := c.transcript.Append(botMsg); err != nil {
		c.transcript.MarkUnanswered(userMsg.ID)
		c.state = StateIdle
		c.mu.Unlock()
		c.logger.Error().Err(err).Msg("SUBMIT_TRANSCRIPT_REJECTED")
		c.present(cycle, func(p Presenter) {
			p.HidePending()
			p.Notify(backendNotice)
		})
		return Result{Outcome: OutcomeFailed, Warned: warned, Err: err}
	}
	exchange := model.Exchange{
		ConversationID: c.transcript.ID(),
		User:           userMsg,
		Bot:            botMsg,
	}
	c.mu.Unlock()

	c.present(cycle, func(p Presenter) {
		p.HidePending()
		p.AppendMessage(botMsg)
	})

	// The exchange is committed, so it is settled even if a new chat starts now.
	settleErr := c.settle(ctx, cycle, who, exchange)

	c.finishCycle(cycle)
	return Result{Outcome: OutcomeCompleted, Warned: warned, Reply: botMsg, Err: settleErr}
}

// settle charges the guest quota or persists the signed-in user's exchange.
// Exactly one of the two happens.
func (c *Controller) settle(ctx context.Context, cycle uint64, who auth.State, ex model.Exchange) error {
	if !who.Authenticated {
		if err := c.quota.Increment(); err != nil {
			c.logger.Error().Err(err).Msg("SETTLE_QUOTA_FAILED")
			return err
		}
		c.logger.Info().Str("conversation_id", ex.ConversationID).Msg("SUBMIT_COMPLETED_GUEST")
		return nil
	}

	// The write outlives a caller that stops waiting.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.persistTimeout)
	defer cancel()

	records := storage.RecordsFromExchange(who.UserID, ex)
	if err := c.store.InsertRecords(pctx, records); err != nil {
		c.logger.Error().Err(err).Str("user_id", who.UserID).Msg("SETTLE_PERSIST_FAILED")
		c.present(cycle, func(p Presenter) {
			p.Notify(persistNotice)
		})
		return err
	}
	c.logger.Info().Str("user_id", who.UserID).Str("conversation_id", ex.ConversationID).Msg("SUBMIT_COMPLETED_USER")
	return nil
}

func canceled(err error) bool {
	return backend.TypeOf(err) == backend.ErrTypeCanceled || errors.Is(err, context.Canceled)
}

func (c *Controller) currentAuth(ctx context.Context) auth.State {
	who, err := c.auth.Current(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("AUTH_READ_FAILED")
		return auth.Guest
	}
	return who
}

func (c *Controller) discarded(warned bool) Result {
	c.logger.Info().Msg("SUBMIT_DISCARDED")
	return Result{Outcome: OutcomeDiscarded, Warned: warned}
}

// finishCycle returns to Idle unless a new chat has taken over.
func (c *Controller) finishCycle(cycle uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cycle == cycle {
		c.state = StateIdle
	}
}

// present runs fn against the presenter if cycle is still current.
func (c *Controller) present(cycle uint64, fn func(Presenter)) bool {
	c.uiMu.Lock()
	defer c.uiMu.Unlock()

	c.mu.Lock()
	current := c.cycle == cycle
	c.mu.Unlock()
	if !current {
		return false
	}

	fn(c.presenter)
	return true
}

// =============================================================================
// NEW CHAT
// =============================================================================

// NewChat supersedes any running cycle, asks the backend to forget the
// conversation and clears the transcript. The transcript is cleared even when
// the backend reset fails. Quota and auth state are untouched.
func (c *Controller) NewChat(ctx context.Context) {
	c.mu.Lock()
	c.cycle++
	cycle := c.cycle
	c.state = StateResetting
	c.mu.Unlock()

	rctx, cancel := context.WithTimeout(ctx, c.resetTimeout)
	if err := c.gateway.Reset(rctx); err != nil {
		c.logger.Warn().Err(err).Msg("NEW_CHAT_RESET_FAILED")
	}
	cancel()

	c.uiMu.Lock()
	defer c.uiMu.Unlock()

	// A newer NewChat owns the transcript now and clears it itself.
	c.mu.Lock()
	if c.cycle != cycle {
		c.mu.Unlock()
		return
	}
	c.transcript.Reset()
	c.state = StateIdle
	c.mu.Unlock()

	c.presenter.HidePending()
	c.presenter.ClearTranscript()
	c.logger.Info().Msg("NEW_CHAT")
}
