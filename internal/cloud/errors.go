// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error variables for common provider failures.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrModelNotFound indicates the requested model does not exist.
	ErrModelNotFound = errors.New("model not found")
)

// TransportError is returned for non-2xx responses and network failures.
// Status is zero for network failures.
type TransportError struct {
	Status  int
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	var b strings.Builder
	b.WriteString("completion API error")
	if e.Code != "" {
		fmt.Fprintf(&b, " [%s]", e.Code)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.Status)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying network error, if any.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// Is maps well-known statuses onto the sentinel errors.
func (e *TransportError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrModelNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// ParseError describes a stream frame that was not valid JSON.
// Such frames are skipped and only ever logged.
type ParseError struct {
	Frame string
	Err   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed stream frame %q: %v", truncate(e.Frame, 80), e.Err)
}

// Unwrap returns the JSON error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// apiErrorResponse is the provider's error body. Some providers nest the
// fields under "error", others put message at the top level.
type apiErrorResponse struct {
	Error *struct {
		Code    json.RawMessage `json:"code"`
		Message string          `json:"message"`
		Type    string          `json:"type"`
	} `json:"error"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// handleErrorResponse converts an HTTP error response to a *TransportError,
// using the provider's message when the body carries one.
func handleErrorResponse(status int, body []byte) error {
	te := &TransportError{Status: status}

	var apiErr apiErrorResponse
	if err := json.Unmarshal(body, &apiErr); err == nil {
		switch {
		case apiErr.Error != nil && apiErr.Error.Message != "":
			te.Message = apiErr.Error.Message
			te.Code = codeString(apiErr.Error.Code)
			if te.Code == "" {
				te.Code = apiErr.Error.Type
			}
		case apiErr.Message != "":
			te.Message = apiErr.Message
			te.Code = apiErr.Type
		}
	}

	if te.Message == "" {
		te.Message = genericMessage(status)
	}
	return te
}

// codeString accepts both string and numeric error codes.
func codeString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func genericMessage(status int) string {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return "invalid or missing API key"
	case http.StatusTooManyRequests:
		return "too many requests, try again later"
	case http.StatusNotFound:
		return "model or endpoint not found"
	}
	if text := http.StatusText(status); text != "" {
		return strings.ToLower(text)
	}
	return "request failed"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
