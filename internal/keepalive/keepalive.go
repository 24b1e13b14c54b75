// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package keepalive pings the conversation backend so it stays warm.
//
// One probe fires at startup, then a health ping fires on a fixed interval
// until the context ends. Failures are logged and counted, never surfaced.
package keepalive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// =============================================================================
// CONFIGURATION
// =============================================================================

const (
	// DefaultInterval is the time between periodic health pings.
	DefaultInterval = 10 * time.Minute

	// DefaultTimeout bounds one ping.
	DefaultTimeout = 30 * time.Second
)

// Startup probe kinds.
const (
	ProbeWarmup = "warmup"
	ProbeHealth = "health"
)

// Ping kinds reported to the Observer.
const (
	KindStartup  = "startup"
	KindPeriodic = "periodic"
)

// Pinger is the backend surface the scheduler uses.
type Pinger interface {
	Health(ctx context.Context) error
	Warmup(ctx context.Context) error
}

// Observer records ping outcomes (metrics).
type Observer interface {
	ObservePing(kind, result string)
}

// Config configures a Scheduler.
type Config struct {
	// Interval between health pings (default: 10m)
	Interval time.Duration

	// StartupProbe is "warmup" (default) or "health".
	StartupProbe string

	// Timeout for a single ping (default: 30s)
	Timeout time.Duration

	Logger   zerolog.Logger
	Observer Observer
}

// =============================================================================
// SCHEDULER
// =============================================================================

// Scheduler fires the startup probe and periodic health pings.
type Scheduler struct {
	pinger Pinger
	cfg    Config

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. Zero config fields take defaults.
func New(p Pinger, cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.StartupProbe != ProbeHealth {
		cfg.StartupProbe = ProbeWarmup
	}
	return &Scheduler{pinger: p, cfg: cfg}
}

// Start runs the scheduler in the background. Calling Start on a running
// scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		s.Run(ctx)
	}(s.done)
}

// Stop cancels a started scheduler and waits for it to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Run fires the startup probe, then pings every Interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.ping(ctx, KindStartup)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.ping(ctx, KindPeriodic)
		}
	}
}

// ping fires one probe. A panicking pinger is recovered here so the ticker
// loop keeps running.
func (s *Scheduler) ping(ctx context.Context, kind string) {
	if ctx.Err() != nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			s.cfg.Logger.Error().Str("kind", kind).Interface("panic", r).Msg("KEEPALIVE_PANIC")
			if s.cfg.Observer != nil {
				s.cfg.Observer.ObservePing(kind, "panic")
			}
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var err error
	probe := ProbeHealth
	if kind == KindStartup && s.cfg.StartupProbe == ProbeWarmup {
		probe = ProbeWarmup
		err = s.pinger.Warmup(pctx)
	} else {
		err = s.pinger.Health(pctx)
	}

	result := "ok"
	if err != nil {
		result = "error"
		s.cfg.Logger.Debug().Str("kind", kind).Str("probe", probe).Err(err).Msg("KEEPALIVE_PING_FAILED")
	} else {
		s.cfg.Logger.Debug().Str("kind", kind).Str("probe", probe).Msg("KEEPALIVE_PING")
	}

	if s.cfg.Observer != nil {
		s.cfg.Observer.ObservePing(kind, result)
	}
}
