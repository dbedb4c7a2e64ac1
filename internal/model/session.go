// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// SESSION SETTINGS
// =============================================================================

// SessionSettings is the configuration snapshot taken when a session is
// created. Later config changes do not alter it.
type SessionSettings struct {
	SystemPrompt  string  `json:"system_prompt,omitempty"`
	Temperature   float64 `json:"temperature"`
	MaxTokens     int     `json:"max_tokens"`
	Model         string  `json:"model"`
	AutoSave      bool    `json:"auto_save"`
	Notifications bool    `json:"notifications"`
}

// Clone returns a copy of the settings.
func (s *SessionSettings) Clone() *SessionSettings {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// ChatSession is one conversation thread.
type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Organization
	Tags       []string `json:"tags,omitempty"`
	Category   string   `json:"category,omitempty"`
	IsArchived bool     `json:"is_archived,omitempty"`
	IsFavorite bool     `json:"is_favorite,omitempty"`

	Settings   *SessionSettings   `json:"settings,omitempty"`
	Statistics *SessionStatistics `json:"statistics,omitempty"`
}

// Clone creates a deep copy of the session.
func (s ChatSession) Clone() ChatSession {
	out := s
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		for i, m := range s.Messages {
			out.Messages[i] = m.Clone()
		}
	}
	if s.Tags != nil {
		out.Tags = append([]string(nil), s.Tags...)
	}
	out.Settings = s.Settings.Clone()
	out.Statistics = s.Statistics.Clone()
	return out
}

// MessageIndex returns the position of the message with the given ID, or -1.
func (s ChatSession) MessageIndex(id string) int {
	for i := range s.Messages {
		if s.Messages[i].ID == id {
			return i
		}
	}
	return -1
}

// HasAttachments reports whether any message carries files.
func (s ChatSession) HasAttachments() bool {
	for i := range s.Messages {
		if s.Messages[i].HasAttachments() {
			return true
		}
	}
	return false
}

// AttachmentCount returns the number of files across all messages.
func (s ChatSession) AttachmentCount() int {
	n := 0
	for i := range s.Messages {
		n += len(s.Messages[i].Files)
	}
	return n
}

// LastMessage returns the most recent message, if any.
func (s ChatSession) LastMessage() (Message, bool) {
	if len(s.Messages) == 0 {
		return Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// HasTag reports whether the session carries tag.
func (s ChatSession) HasTag(tag string) bool {
	return containsString(s.Tags, tag)
}
