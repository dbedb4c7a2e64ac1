// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// COLLECTION EXPORT / IMPORT
// =============================================================================

// Sessions serializes a session collection as an indented JSON array. All
// fields are kept, IDs and timestamps included, so ParseSessions restores
// an equal collection.
func Sessions(sessions []model.ChatSession) ([]byte, error) {
	if sessions == nil {
		sessions = []model.ChatSession{}
	}
	return json.MarshalIndent(sessions, "", "  ")
}

// ImportError describes a rejected import payload. Index is the offending
// session's position, or -1 when the payload as a whole is malformed.
type ImportError struct {
	Index  int
	Reason string
	Err    error
}

func (e *ImportError) Error() string {
	msg := "import failed"
	if e.Index >= 0 {
		msg = fmt.Sprintf("import failed at session %d", e.Index)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// ParseSessions decodes the JSON produced by Sessions. The payload must be
// an array of sessions, each with an id and with every message carrying an
// id and a known role. On any failure it returns nil and an *ImportError.
func ParseSessions(data []byte) ([]model.ChatSession, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ImportError{Index: -1, Reason: "empty payload"}
	}
	if trimmed[0] != '[' {
		return nil, &ImportError{Index: -1, Reason: "expected a JSON array of sessions"}
	}

	var sessions []model.ChatSession
	if err := json.Unmarshal(trimmed, &sessions); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, &ImportError{Index: -1, Reason: fmt.Sprintf("wrong type for field %q", typeErr.Field), Err: err}
		}
		return nil, &ImportError{Index: -1, Reason: "malformed JSON", Err: err}
	}

	for i := range sessions {
		if reason := validateSession(&sessions[i]); reason != "" {
			return nil, &ImportError{Index: i, Reason: reason}
		}
	}
	return sessions, nil
}

func validateSession(s *model.ChatSession) string {
	if s.ID == "" {
		return "missing session id"
	}
	for j, m := range s.Messages {
		if m.ID == "" {
			return fmt.Sprintf("message %d has no id", j)
		}
		if !m.Role.Valid() {
			return fmt.Sprintf("message %d has unknown role %q", j, m.Role)
		}
	}
	return ""
}

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter writes a single session as a one-element collection, so
// the file can be passed straight to import.
type JSONExporter struct{}

func NewJSONExporter() *JSONExporter {
	return &JSONExporter{}
}

func (e *JSONExporter) Export(s *model.ChatSession) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	return Sessions([]model.ChatSession{*s})
}

func (e *JSONExporter) FileExtension() string {
	return ".json"
}

func (e *JSONExporter) MimeType() string {
	return "application/json"
}
