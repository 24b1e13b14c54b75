// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package keepalive

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakePinger struct {
	mu      sync.Mutex
	health  int
	warmups int
	err     error
	panics  int // number of Health calls that panic before pings succeed
}

func (f *fakePinger) Health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health++
	if f.health <= f.panics {
		panic("boom")
	}
	return f.err
}

func (f *fakePinger) Warmup(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.warmups++
	return f.err
}

func (f *fakePinger) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.warmups, f.health
}

type pingLog struct {
	mu   sync.Mutex
	seen []string
}

func (p *pingLog) ObservePing(kind, result string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, kind+"="+result)
}

func TestScheduler_StartupWarmupThenHealth(t *testing.T) {
	p := &fakePinger{}
	obs := &pingLog{}
	s := New(p, Config{Interval: 10 * time.Millisecond, Observer: obs})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		_, h := p.counts()
		return h >= 2
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	w, _ := p.counts()
	require.Equal(t, 1, w, "exactly one startup warmup")

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, "startup=ok", obs.seen[0])
	require.Equal(t, "periodic=ok", obs.seen[1])
}

func TestScheduler_HealthStartupProbe(t *testing.T) {
	p := &fakePinger{}
	s := New(p, Config{Interval: time.Hour, StartupProbe: ProbeHealth})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, h := p.counts()
		return h == 1
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	w, _ := p.counts()
	require.Zero(t, w)
}

func TestScheduler_FailuresAreSwallowed(t *testing.T) {
	p := &fakePinger{err: errors.New("cold")}
	obs := &pingLog{}
	s := New(p, Config{Interval: 5 * time.Millisecond, Observer: obs})

	s.Start(context.Background())
	require.Eventually(t, func() bool {
		_, h := p.counts()
		return h >= 3
	}, 2*time.Second, 5*time.Millisecond)
	s.Stop()

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, "startup=error", obs.seen[0])
}

func TestScheduler_PingsContinueAfterPanic(t *testing.T) {
	p := &fakePinger{panics: 1}
	obs := &pingLog{}
	s := New(p, Config{StartupProbe: ProbeHealth, Interval: 10 * time.Millisecond, Observer: obs})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		_, health := p.counts()
		return health >= 3
	}, 2*time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("Run returned while its context was live")
	default:
	}

	cancel()
	<-done

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Equal(t, "startup=panic", obs.seen[0])
	require.Equal(t, "periodic=ok", obs.seen[1])
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s := New(&fakePinger{}, Config{Interval: time.Hour})
	s.Stop()
	s.Start(context.Background())
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}

func TestNew_Defaults(t *testing.T) {
	s := New(&fakePinger{}, Config{StartupProbe: "bogus"})
	require.Equal(t, DefaultInterval, s.cfg.Interval)
	require.Equal(t, DefaultTimeout, s.cfg.Timeout)
	require.Equal(t, ProbeWarmup, s.cfg.StartupProbe)
}
