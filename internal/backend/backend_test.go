// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBackend mimics the conversation service: history lives in a cookie
// session keyed by the "session" cookie.
type fakeBackend struct {
	mu       sync.Mutex
	sessions map[string][]HistoryEntry
	nextID   int
	chats    atomic.Int32
	resets   atomic.Int32
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{sessions: make(map[string][]HistoryEntry)}
}

func (f *fakeBackend) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "OK"})
	})
	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {
		f.resets.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/chat", func(w http.ResponseWriter, r *http.Request) {
		f.chats.Add(1)
		var req ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}

		f.mu.Lock()
		id := ""
		if c, err := r.Cookie("session"); err == nil {
			id = c.Value
		}
		if _, ok := f.sessions[id]; !ok || id == "" {
			f.nextID++
			id = string(rune('a' + f.nextID))
			http.SetCookie(w, &http.Cookie{Name: "session", Value: id, Path: "/"})
		}
		hist := append(f.sessions[id],
			HistoryEntry{Sender: "user", Text: req.Message},
			HistoryEntry{Sender: "bot", Text: "echo: " + req.Message},
		)
		f.sessions[id] = hist
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"reply":"echo: ` + req.Message + `","emotion":"neutral","confidence":"61.5%","history":` + mustJSON(hist) + `}`))
	})
	return mux
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClientWithConfig(&ClientConfig{BaseURL: srv.URL + "/", Timeout: 2 * time.Second}), srv
}

// =============================================================================
// SEND
// =============================================================================

func TestClient_SendKeepsConversationCookie(t *testing.T) {
	fb := newFakeBackend()
	c, _ := newTestClient(t, fb.handler())

	res, err := c.Send(context.Background(), "hi")
	require.NoError(t, err)
	require.Equal(t, "echo: hi", res.Reply)
	require.Equal(t, "neutral", res.Emotion)
	require.True(t, res.Confidence.Numeric)
	require.InDelta(t, 61.5, res.Confidence.Value, 0.001)
	require.Len(t, res.History, 2)

	res, err = c.Send(context.Background(), "again")
	require.NoError(t, err)
	require.Len(t, res.History, 4, "second send should reuse the cookie session")

	bot := res.BotMessage()
	require.Equal(t, "echo: again", bot.Text)
	require.Equal(t, "neutral", bot.Emotion)
}

func TestClient_ResetDropsCookies(t *testing.T) {
	fb := newFakeBackend()
	c, _ := newTestClient(t, fb.handler())

	_, err := c.Send(context.Background(), "one")
	require.NoError(t, err)
	require.NoError(t, c.Reset(context.Background()))
	require.Equal(t, int32(1), fb.resets.Load())

	res, err := c.Send(context.Background(), "two")
	require.NoError(t, err)
	require.Len(t, res.History, 2, "reset should start a new backend session")
}

func TestClient_ResetDropsCookiesOnFailure(t *testing.T) {
	fb := newFakeBackend()
	mux := http.NewServeMux()
	mux.Handle("/chat", fb.handler())
	mux.HandleFunc("/reset", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	c, _ := newTestClient(t, mux)

	_, err := c.Send(context.Background(), "one")
	require.NoError(t, err)

	err = c.Reset(context.Background())
	require.Error(t, err)
	require.Equal(t, ErrTypeHTTPStatus, TypeOf(err))

	res, err := c.Send(context.Background(), "two")
	require.NoError(t, err)
	require.Len(t, res.History, 2)
}

func TestClient_WarmupIsCookieless(t *testing.T) {
	fb := newFakeBackend()
	c, _ := newTestClient(t, fb.handler())

	_, err := c.Send(context.Background(), "hello")
	require.NoError(t, err)
	require.NoError(t, c.Warmup(context.Background()))

	res, err := c.Send(context.Background(), "next")
	require.NoError(t, err)
	require.Len(t, res.History, 4, "warmup must not land in the user's conversation")
}

func TestClient_ReplyFallbacks(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		reply   string
		emotion string
		wantErr bool
	}{
		{
			name:  "end of conversation uses reply field",
			body:  `{"reply":"Conversation ended","emotion":null,"confidence":null,"history":[]}`,
			reply: "Conversation ended",
		},
		{
			name:    "crisis label confidence",
			body:    `{"reply":"Please reach out","emotion":"crisis","confidence":"High Risk","history":[{"sender":"user","text":"x"},{"sender":"bot","text":"Please reach out"}]}`,
			reply:   "Please reach out",
			emotion: "crisis",
		},
		{
			name:  "history without trailing bot",
			body:  `{"reply":"fallback","history":[{"sender":"user","text":"x"}]}`,
			reply: "fallback",
		},
		{
			name:    "no reply anywhere",
			body:    `{"history":[]}`,
			wantErr: true,
		},
		{
			name:    "not json",
			body:    `<html>`,
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tc.body))
			}))

			res, err := c.Send(context.Background(), "x")
			if tc.wantErr {
				require.Error(t, err)
				require.Equal(t, ErrTypeInvalidResponse, TypeOf(err))
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.reply, res.Reply)
			require.Equal(t, tc.emotion, res.Emotion)
		})
	}
}

// =============================================================================
// ERRORS
// =============================================================================

func TestClient_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	// Cleanups run last-in first-out: the handler is released before Close waits on it.
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	_, err := c.Send(context.Background(), "slow")
	require.Error(t, err)
	require.True(t, IsTimeout(err), "got %v", err)
	require.True(t, errors.Is(err, ErrTimeout))
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClientWithConfig(&ClientConfig{BaseURL: url, Timeout: time.Second})
	err := c.Health(context.Background())
	require.Error(t, err)
	require.Equal(t, ErrTypeConnection, TypeOf(err))
}

func TestClient_NoRetryOnServerError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := c.Send(context.Background(), "x")
	require.Error(t, err)

	var ce *ClientError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, http.StatusInternalServerError, ce.StatusCode)
	require.Equal(t, int32(1), calls.Load())
}

func TestClient_Canceled(t *testing.T) {
	fb := newFakeBackend()
	c, _ := newTestClient(t, fb.handler())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Send(ctx, "x")
	require.Equal(t, ErrTypeCanceled, TypeOf(err))
}

// =============================================================================
// OBSERVER
// =============================================================================

type recordingObserver struct {
	mu   sync.Mutex
	seen []string
}

func (r *recordingObserver) ObserveRequest(op, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, op+"="+result)
}

func TestClient_Observer(t *testing.T) {
	fb := newFakeBackend()
	srv := httptest.NewServer(fb.handler())
	defer srv.Close()

	obs := &recordingObserver{}
	c := NewClientWithConfig(&ClientConfig{BaseURL: srv.URL, Observer: obs})
	require.Equal(t, DefaultTimeout, c.Timeout())

	_, err := c.Send(context.Background(), "x")
	require.NoError(t, err)
	require.NoError(t, c.Health(context.Background()))

	require.Equal(t, []string{"chat=ok", "health=ok"}, obs.seen)
}

func TestClient_LateResponseAfterResetDoesNotLeakCookie(t *testing.T) {
	fb := newFakeBackend()
	inner := fb.handler()

	entered := make(chan struct{})
	release := make(chan struct{})
	var first atomic.Bool
	first.Store(true)

	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chat" && first.CompareAndSwap(true, false) {
			close(entered)
			<-release
		}
		inner.ServeHTTP(w, r)
	}))

	done := make(chan error, 1)
	go func() {
		_, err := c.Send(context.Background(), "slow")
		done <- err
	}()

	<-entered
	require.NoError(t, c.Reset(context.Background()))
	close(release)
	require.NoError(t, <-done)

	res, err := c.Send(context.Background(), "fresh")
	require.NoError(t, err)
	require.Len(t, res.History, 2)
}
