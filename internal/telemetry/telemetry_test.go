// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Observers(t *testing.T) {
	m := NewMetrics()
	m.ObserveSubmission("completed")
	m.ObserveSubmission("completed")
	m.ObserveSubmission("blocked")
	m.ObserveRequest("chat", "ok", 120*time.Millisecond)
	m.ObservePing("startup", "error")
	m.SetQuotaRemaining(7)

	out := scrape(t, m)
	require.Contains(t, out, `calmchat_submissions_total{outcome="completed"} 2`)
	require.Contains(t, out, `calmchat_submissions_total{outcome="blocked"} 1`)
	require.Contains(t, out, `calmchat_backend_requests_total{op="chat",result="ok"} 1`)
	require.Contains(t, out, `calmchat_backend_latency_ms_count{op="chat"} 1`)
	require.Contains(t, out, `calmchat_keepalive_pings_total{kind="startup",result="error"} 1`)
	require.Contains(t, out, `calmchat_quota_remaining 7`)

	// A second instance must not collide with the first.
	require.NotPanics(t, func() { NewMetrics() })
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestServer_Routes(t *testing.T) {
	m := NewMetrics()
	m.ObserveSubmission("completed")
	s := NewServer(m, zerolog.Nop())

	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	resp.Body.Close()
	require.Equal(t, "ok", body["status"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	require.Contains(t, string(raw), `calmchat_submissions_total{outcome="completed"} 1`)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer(NewMetrics(), zerolog.Nop())
	addr, err := s.Start("127.0.0.1:0")
	require.NoError(t, err)

	resp, err := http.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"WARN":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "calmchat.log")
	logger, closer, err := NewLogger(LogConfig{Level: "info", File: path})
	require.NoError(t, err)

	logger.Debug().Msg("HIDDEN")
	logger.Info().Str("k", "v").Msg("SHOWN")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `"message":"SHOWN"`)
	require.NotContains(t, string(data), "HIDDEN")
}

func TestNewLogger_NoFileDiscards(t *testing.T) {
	logger, closer, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	defer closer.Close()
	logger.Info().Msg("nowhere")
}

func TestNewWriterLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, "warn")
	logger.Info().Msg("quiet")
	logger.Warn().Msg("LOUD")
	require.False(t, strings.Contains(buf.String(), "quiet"))
	require.Contains(t, buf.String(), "LOUD")
}
