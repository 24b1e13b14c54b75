// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ClientError represents an error from the backend client.
type ClientError struct {
	Type       ErrorType
	Op         string
	StatusCode int
	Message    string
	Cause      error
}

func (e *ClientError) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches another ClientError by Type so the sentinels below work with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Type == e.Type
}

// ErrorType categorizes client errors for handling.
type ErrorType int

const (
	ErrTypeUnknown ErrorType = iota
	ErrTypeTimeout
	ErrTypeCanceled
	ErrTypeConnection
	ErrTypeHTTPStatus
	ErrTypeInvalidResponse
)

// String returns a short label for metrics and logs.
func (t ErrorType) String() string {
	switch t {
	case ErrTypeTimeout:
		return "timeout"
	case ErrTypeCanceled:
		return "canceled"
	case ErrTypeConnection:
		return "connection"
	case ErrTypeHTTPStatus:
		return "http_status"
	case ErrTypeInvalidResponse:
		return "invalid_response"
	default:
		return "unknown"
	}
}

// Sentinel errors for easy checking.
var (
	ErrTimeout  = &ClientError{Type: ErrTypeTimeout, Message: "request timed out"}
	ErrCanceled = &ClientError{Type: ErrTypeCanceled, Message: "request canceled"}
)

// TypeOf returns the ErrorType of err, or ErrTypeUnknown.
func TypeOf(err error) ErrorType {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Type
	}
	return ErrTypeUnknown
}

// IsTimeout reports whether err is a backend timeout.
func IsTimeout(err error) bool {
	return TypeOf(err) == ErrTypeTimeout
}

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

const (
	// DefaultBaseURL is the backend's local development address.
	DefaultBaseURL = "http://127.0.0.1:5000"

	// DefaultTimeout bounds every request.
	DefaultTimeout = 30 * time.Second

	// WarmupMessage is the throwaway text sent by Warmup.
	WarmupMessage = "warmup"

	maxResponseBytes = 1 << 20
)

// Operation names used in errors, logs and metrics.
const (
	OpChat   = "chat"
	OpReset  = "reset"
	OpHealth = "health"
	OpWarmup = "warmup"
)

// Observer receives one call per completed request.
type Observer interface {
	ObserveRequest(op, result string, elapsed time.Duration)
}

// ClientConfig holds configuration options for the backend client.
type ClientConfig struct {
	// BaseURL is the backend root (default: http://127.0.0.1:5000)
	BaseURL string

	// Timeout for every request (default: 30s)
	Timeout time.Duration

	// Transport overrides the HTTP transport (tests).
	Transport http.RoundTripper

	// Logger receives request-level events. Zero value logs nothing.
	Logger zerolog.Logger

	// Observer records request outcomes (optional).
	Observer Observer
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
		Logger:  zerolog.Nop(),
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client talks to the conversation backend.
//
// The backend keeps the conversation in a cookie session, so the client
// carries a cookie jar. Reset discards it. Requests are never retried: a
// retried /chat could record the same message twice.
//
// The Client is safe for concurrent use.
type Client struct {
	config    *ClientConfig
	transport http.RoundTripper

	// conv carries the conversation cookie and is replaced on Reset, so a
	// response still in flight from before the reset cannot write into the
	// new conversation's jar.
	mu   sync.RWMutex
	conv *http.Client

	// bare never carries cookies.
	bare *http.Client
}

// NewClient creates a client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	transport := config.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	return &Client{
		config:    config,
		transport: transport,
		conv:      newConversationClient(transport, config.Timeout),
		bare: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
	}
}

func (c *Client) conversation() *http.Client {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conv
}

func (c *Client) dropConversation() {
	fresh := newConversationClient(c.transport, c.config.Timeout)
	c.mu.Lock()
	c.conv = fresh
	c.mu.Unlock()
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.config.Timeout
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Send posts message to /chat within the user's conversation.
func (c *Client) Send(ctx context.Context, message string) (*ChatResult, error) {
	return c.chat(ctx, c.conversation(), OpChat, message)
}

// Warmup posts a throwaway message outside the user's conversation to wake a
// cold backend.
func (c *Client) Warmup(ctx context.Context) error {
	_, err := c.chat(ctx, c.bare, OpWarmup, WarmupMessage)
	return err
}

// Reset asks the backend to forget the conversation. The local cookie jar is
// cleared whatever the outcome.
func (c *Client) Reset(ctx context.Context) error {
	hc := c.conversation()
	defer c.dropConversation()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/reset", nil)
	if err != nil {
		return c.finish(OpReset, start, &ClientError{Type: ErrTypeConnection, Op: OpReset, Message: "failed to create request", Cause: err})
	}

	resp, err := hc.Do(req)
	if err != nil {
		return c.finish(OpReset, start, classify(OpReset, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return c.finish(OpReset, start, checkStatus(OpReset, resp))
}

// Health pings GET /health. Any 2xx is healthy.
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return c.finish(OpHealth, start, &ClientError{Type: ErrTypeConnection, Op: OpHealth, Message: "failed to create request", Cause: err})
	}

	resp, err := c.bare.Do(req)
	if err != nil {
		return c.finish(OpHealth, start, classify(OpHealth, err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	return c.finish(OpHealth, start, checkStatus(OpHealth, resp))
}

func (c *Client) chat(ctx context.Context, hc *http.Client, op, message string) (*ChatResult, error) {
	start := time.Now()

	body, err := json.Marshal(ChatRequest{Message: message})
	if err != nil {
		return nil, c.finish(op, start, &ClientError{Type: ErrTypeInvalidResponse, Op: op, Message: "failed to marshal request", Cause: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, c.finish(op, start, &ClientError{Type: ErrTypeConnection, Op: op, Message: "failed to create request", Cause: err})
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return nil, c.finish(op, start, classify(op, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(op, resp); err != nil {
		return nil, c.finish(op, start, err)
	}

	var decoded ChatResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, c.finish(op, start, &ClientError{Type: ErrTypeInvalidResponse, Op: op, Message: "failed to decode response", Cause: err})
	}

	reply, ok := replyFrom(&decoded)
	if !ok {
		return nil, c.finish(op, start, &ClientError{Type: ErrTypeInvalidResponse, Op: op, Message: "response carried no bot reply"})
	}

	result := &ChatResult{
		Reply:      reply,
		Confidence: decoded.Confidence,
		History:    decoded.History,
	}
	if decoded.Emotion != nil {
		result.Emotion = *decoded.Emotion
	}
	return result, c.finish(op, start, nil)
}

// finish logs and records one request outcome and passes err through.
func (c *Client) finish(op string, start time.Time, err error) error {
	elapsed := time.Since(start)
	result := "ok"
	if err != nil {
		result = TypeOf(err).String()
	}

	if c.config.Observer != nil {
		c.config.Observer.ObserveRequest(op, result, elapsed)
	}

	if err != nil {
		c.config.Logger.Warn().Str("op", op).Str("result", result).Dur("elapsed", elapsed).Err(err).Msg("BACKEND_REQUEST_FAILED")
	} else {
		c.config.Logger.Debug().Str("op", op).Dur("elapsed", elapsed).Msg("BACKEND_REQUEST")
	}
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return &ClientError{Type: ErrTypeCanceled, Op: op, Message: "request canceled", Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ClientError{Type: ErrTypeTimeout, Op: op, Message: "request timed out", Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ClientError{Type: ErrTypeTimeout, Op: op, Message: "request timed out", Cause: err}
	}
	return &ClientError{Type: ErrTypeConnection, Op: op, Message: "backend not reachable", Cause: err}
}

func checkStatus(op string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return &ClientError{
		Type:       ErrTypeHTTPStatus,
		Op:         op,
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("unexpected status %s", resp.Status),
	}
}

// =============================================================================
// COOKIE JAR
// =============================================================================

// newConversationClient returns an HTTP client with an empty cookie jar.
func newConversationClient(transport http.RoundTripper, timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never returns an error.
		panic(err)
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}
}
