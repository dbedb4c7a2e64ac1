// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitAuthError     = 4
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
	ExitInterrupted   = 130
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s %s: %v", e.Command, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// UsageError reports bad arguments.
type UsageError struct {
	Reason string
	Usage  string
}

func (e *UsageError) Error() string {
	if e.Usage != "" {
		return e.Reason + "\nUsage: " + e.Usage
	}
	return e.Reason
}

// NotFoundError represents a resource not found error.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func wrap(command, action string, err error) error {
	if err == nil {
		return nil
	}
	return &CommandError{Command: command, Action: action, Err: err}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// ExitCode maps an error onto a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		usageErr    *UsageError
		notFoundErr *NotFoundError
		importErr   *export.ImportError
		transport   *cloud.TransportError
		cfgErrs     config.ValidateErrors
	)

	switch {
	case errors.As(err, &usageErr):
		return ExitUsageError
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, context.DeadlineExceeded):
		return ExitTimeoutError
	case errors.As(err, &cfgErrs), errors.Is(err, config.ErrUnknownKey),
		errors.Is(err, config.ErrUnsupportedFormat), errors.Is(err, storage.ErrUnknownBackend):
		return ExitConfigError
	case errors.Is(err, cloud.ErrNotConfigured), errors.Is(err, cloud.ErrAuthFailed),
		errors.Is(err, storage.ErrDecrypt), errors.Is(err, storage.ErrNoPassphrase),
		errors.Is(err, storage.ErrCorruptSalt):
		return ExitAuthError
	case errors.As(err, &notFoundErr), errors.Is(err, app.ErrNoSession),
		errors.Is(err, cloud.ErrModelNotFound):
		return ExitNotFoundError
	case errors.As(err, &importErr):
		return ExitUsageError
	case errors.As(err, &transport):
		if transport.Status == 0 {
			return ExitNetworkError
		}
	}
	return ExitGeneralError
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as a JSON object in JSON mode.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]interface{}{
			"success": false,
			"error":   err.Error(),
			"code":    ExitCode(err),
		})
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}
