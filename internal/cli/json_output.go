// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for --json.

package cli

import (
	"encoding/json"
	"io"
	"time"
)

// JSONResponse is the envelope every --json command prints.
type JSONResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`

	// Error is the error message if Success is false, null otherwise
	Error *string `json:"error"`

	Timestamp string `json:"timestamp"`
	Command   string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write encodes the response to w, indented.
func (r *JSONResponse) Write(w io.Writer) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// =============================================================================
// COMMAND DATA
// =============================================================================

// StatusData is returned by the status command.
type StatusData struct {
	Backend StatusBackendInfo `json:"backend"`
	Account WhoamiData        `json:"account"`
	Quota   QuotaData         `json:"quota"`
	Storage StatusStorageInfo `json:"storage"`
	Config  string            `json:"config_path"`
}

// StatusBackendInfo describes the backend health check.
type StatusBackendInfo struct {
	URL       string `json:"url"`
	Reachable bool   `json:"reachable"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// StatusStorageInfo describes where chat history goes.
type StatusStorageInfo struct {
	Driver string `json:"driver"`
	Target string `json:"target"`
}

// WhoamiData is returned by the whoami command.
type WhoamiData struct {
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
}

// QuotaData is returned by the quota command.
type QuotaData struct {
	Limit     int  `json:"limit"`
	Used      int  `json:"used"`
	Remaining int  `json:"remaining"`
	Exhausted bool `json:"exhausted"`

	// Applies is false when signed in; the limit only binds guests.
	Applies bool `json:"applies"`
}

// HistoryData is returned by the history command.
type HistoryData struct {
	Email    string          `json:"email"`
	Messages []HistoryRecord `json:"messages"`
}

// HistoryRecord is one stored message.
type HistoryRecord struct {
	Sender     string   `json:"sender"`
	Message    string   `json:"message"`
	Emotion    *string  `json:"emotion"`
	Confidence *float64 `json:"confidence"`
	CreatedAt  string   `json:"created_at"`
}

// VersionData is returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
