// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// FileMetadata holds optional details derived from an attachment.
// Zero values mean the detail was not available.
type FileMetadata struct {
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	DurationSec float64 `json:"duration_sec,omitempty"`
	Pages       int     `json:"pages,omitempty"`
	Language    string  `json:"language,omitempty"`
	Encoding    string  `json:"encoding,omitempty"`
}

// AttachedFile is a file attached to a user message.
//
// Content is decoded text for text-like files and a base64 data URL for
// images. ExtractedText is only set when it differs from Content.
// An AttachedFile is never modified after ingestion.
type AttachedFile struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	Size          int64         `json:"size"`
	Content       string        `json:"content"`
	Thumbnail     string        `json:"thumbnail,omitempty"`
	ExtractedText string        `json:"extracted_text,omitempty"`
	Metadata      *FileMetadata `json:"metadata,omitempty"`
}

// IsImage reports whether the file has an image MIME type.
func (f AttachedFile) IsImage() bool {
	return strings.HasPrefix(f.Type, "image/")
}

// TopLevelType returns the part of the MIME type before the slash,
// or "unknown" when the type is empty.
func (f AttachedFile) TopLevelType() string {
	if f.Type == "" {
		return "unknown"
	}
	top, _, _ := strings.Cut(f.Type, "/")
	return top
}

// Text returns the text the model should see for this file.
func (f AttachedFile) Text() string {
	if f.ExtractedText != "" {
		return f.ExtractedText
	}
	return f.Content
}
