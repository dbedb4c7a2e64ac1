// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
)

// Reason identifies why a file was rejected.
type Reason string

const (
	ReasonTooLarge        Reason = "too_large"
	ReasonUnsupportedType Reason = "unsupported_type"
)

// Sentinel errors matched by ValidationError.Is.
var (
	ErrTooLarge        = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
)

// ValidationError is returned when a file fails validation.
// The rejected file is simply not attached.
type ValidationError struct {
	Name   string
	Reason Reason
	Size   int64
	Limit  int64
	Type   string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonTooLarge:
		return fmt.Sprintf("%s: file too large (%s, max %s)",
			e.Name, humanize.Bytes(uint64(e.Size)), humanize.Bytes(uint64(e.Limit)))
	case ReasonUnsupportedType:
		t := e.Type
		if t == "" {
			t = "unknown"
		}
		return fmt.Sprintf("%s: unsupported file type %s", e.Name, t)
	default:
		return fmt.Sprintf("%s: invalid file", e.Name)
	}
}

// Is matches ErrTooLarge and ErrUnsupportedType by reason.
func (e *ValidationError) Is(target error) bool {
	switch target {
	case ErrTooLarge:
		return e.Reason == ReasonTooLarge
	case ErrUnsupportedType:
		return e.Reason == ReasonUnsupportedType
	}
	return false
}
