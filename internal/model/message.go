// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
package model

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// SENTIMENT TYPE
// =============================================================================

// Sentiment is the heuristic tone classification of a message.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// =============================================================================
// MESSAGE TYPES
// =============================================================================

// MessageMetadata describes how an assistant message was produced.
type MessageMetadata struct {
	Model       string    `json:"model,omitempty"`
	Temperature float64   `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	TopP        float64   `json:"top_p,omitempty"`
	Cost        float64   `json:"cost,omitempty"`
	Language    string    `json:"language,omitempty"`
	Sentiment   Sentiment `json:"sentiment,omitempty"`
	Topics      []string  `json:"topics,omitempty"`
}

// Clone returns a deep copy of the metadata.
func (m *MessageMetadata) Clone() *MessageMetadata {
	if m == nil {
		return nil
	}
	c := *m
	if m.Topics != nil {
		c.Topics = append([]string(nil), m.Topics...)
	}
	return &c
}

// Reaction is an emoji reaction with the users that contributed to it.
type Reaction struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users,omitempty"`
}

// Message represents a single turn in a session.
//
// Messages are treated as values: Edited, WithReaction and WithMetadata
// return a modified copy and leave the receiver untouched.
type Message struct {
	// Identity
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Timestamp time.Time `json:"timestamp"`

	// Content
	Content string         `json:"content"`
	Files   []AttachedFile `json:"files,omitempty"`

	Metadata  *MessageMetadata `json:"metadata,omitempty"`
	Reactions []Reaction       `json:"reactions,omitempty"`

	// Edit tracking. OriginalContent is captured on the first edit only.
	IsEdited        bool   `json:"is_edited,omitempty"`
	OriginalContent string `json:"original_content,omitempty"`

	Tokens           int   `json:"tokens,omitempty"`
	ProcessingTimeMs int64 `json:"processing_time_ms,omitempty"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        NewID("msg"),
		Role:      role,
		Content:   content,
		Timestamp: Now(),
	}
}

// NewUserMessage creates a new user message carrying the given attachments.
func NewUserMessage(content string, files []AttachedFile) Message {
	msg := NewMessage(RoleUser, content)
	if len(files) > 0 {
		msg.Files = append([]AttachedFile(nil), files...)
	}
	return msg
}

// NewAssistantMessage creates a completed assistant message.
func NewAssistantMessage(content string, meta *MessageMetadata, tokens int, processing time.Duration) Message {
	msg := NewMessage(RoleAssistant, content)
	msg.Metadata = meta.Clone()
	msg.Tokens = tokens
	msg.ProcessingTimeMs = processing.Milliseconds()
	return msg
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// =============================================================================
// MESSAGE METHODS
// =============================================================================

// Edited returns a copy with the new content. The pre-edit text is kept in
// OriginalContent the first time only.
func (m Message) Edited(content string) Message {
	out := m.Clone()
	if !out.IsEdited {
		out.OriginalContent = m.Content
		out.IsEdited = true
	}
	out.Content = content
	return out
}

// WithReaction returns a copy with the emoji reaction counted once more.
func (m Message) WithReaction(emoji, user string) Message {
	out := m.Clone()
	for i := range out.Reactions {
		r := &out.Reactions[i]
		if r.Emoji != emoji {
			continue
		}
		r.Count++
		if user != "" && !containsString(r.Users, user) {
			r.Users = append(r.Users, user)
		}
		return out
	}

	r := Reaction{Emoji: emoji, Count: 1}
	if user != "" {
		r.Users = []string{user}
	}
	out.Reactions = append(out.Reactions, r)
	return out
}

// WithMetadata returns a copy carrying meta.
func (m Message) WithMetadata(meta *MessageMetadata) Message {
	out := m.Clone()
	out.Metadata = meta.Clone()
	return out
}

// HasAttachments reports whether the message carries any files.
func (m Message) HasAttachments() bool {
	return len(m.Files) > 0
}

// Sentiment returns the detected sentiment, or "" when none was recorded.
func (m Message) Sentiment() Sentiment {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.Sentiment
}

// Preview returns a truncated preview of the message content.
// Uses rune-based truncation to handle Unicode correctly.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen {
		return m.Content
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}

// EstimateTokens gives a rough estimate of token count.
// Uses the approximation of ~4 characters per token.
func (m Message) EstimateTokens() int {
	return EstimateTokens(m.Content)
}

// Clone creates a deep copy of the message. Attached files are shared
// because they are immutable once created.
func (m Message) Clone() Message {
	out := m
	if m.Files != nil {
		out.Files = append([]AttachedFile(nil), m.Files...)
	}
	out.Metadata = m.Metadata.Clone()
	if m.Reactions != nil {
		out.Reactions = make([]Reaction, len(m.Reactions))
		for i, r := range m.Reactions {
			out.Reactions[i] = r
			if r.Users != nil {
				out.Reactions[i].Users = append([]string(nil), r.Users...)
			}
		}
	}
	return out
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// EstimateTokens estimates the token count of text at ~4 characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// NewID returns a unique identifier with the given prefix.
func NewID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// Now returns the current time in UTC without a monotonic clock reading,
// so values survive a JSON round trip unchanged.
func Now() time.Time {
	return time.Now().UTC()
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
