// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error display and exit codes for CLI commands.
//
// Commands always return errors; main decides how to show them.

package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/calmchat/internal/auth"
	"github.com/jeranaias/calmchat/internal/backend"
	"github.com/jeranaias/calmchat/internal/config"
	"github.com/jeranaias/calmchat/internal/quota"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a failed sign-in or a command that needs one
	ExitAuthError = 4
	// ExitNetworkError indicates the backend could not be reached
	ExitNetworkError = 5
	// ExitQuotaError indicates the guest counter could not be read or written
	ExitQuotaError = 6
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "config")
	Action  string // Action being performed (e.g., "set")
	Reason  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError is returned for malformed command lines.
type UsageError struct {
	Message string
	Example string
}

func (e *UsageError) Error() string {
	if e.Example != "" {
		return fmt.Sprintf("%s\nExample: %s", e.Message, e.Example)
	}
	return e.Message
}

// NewCommandError creates a command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ErrMissingArgument reports a missing required argument.
func ErrMissingArgument(argName, example string) error {
	return &UsageError{Message: "missing argument: " + argName, Example: example}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to stderr, or as JSON to stdout in JSON mode.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = writeErrorJSON(os.Stdout, err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

func writeErrorJSON(w io.Writer, err error) error {
	output := map[string]interface{}{
		"success":    false,
		"error":      err.Error(),
		"error_type": errorType(err),
		"exit_code":  GetExitCode(err),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

func errorType(err error) string {
	var usage *UsageError
	var cmd *CommandError
	switch {
	case errors.As(err, &usage):
		return "usage_error"
	case backend.TypeOf(err) != backend.ErrTypeUnknown:
		return "backend_" + backend.TypeOf(err).String()
	case errors.As(err, &cmd):
		return "command_error"
	default:
		return "generic_error"
	}
}

// HandleErrorAndExit displays err and exits with its exit code.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	DisplayError(err, jsonMode)
	os.Exit(GetExitCode(err))
}

// GetExitCode maps an error to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErr config.ValidateErrors
	var fieldErr config.ValidationError
	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &cfgErr), errors.As(err, &fieldErr):
		return ExitConfigError
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrNotSignedIn),
		errors.Is(err, auth.ErrEmailTaken),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword):
		return ExitAuthError
	case errors.Is(err, quota.ErrStorageUnavailable):
		return ExitQuotaError
	}

	switch backend.TypeOf(err) {
	case backend.ErrTypeTimeout:
		return ExitTimeoutError
	case backend.ErrTypeConnection, backend.ErrTypeHTTPStatus, backend.ErrTypeInvalidResponse:
		return ExitNetworkError
	}
	return ExitGeneralError
}
