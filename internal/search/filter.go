// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// FILTER SPEC
// =============================================================================

// Spec holds the filter dimensions. Zero values are unset. All set
// dimensions must match (AND).
type Spec struct {
	// Query matches title or any message content, case-insensitively.
	Query string

	// From and To bound CreatedAt, both inclusive.
	From time.Time
	To   time.Time

	// Tags matches sessions sharing at least one tag.
	Tags []string

	// Category must equal the session category exactly.
	Category string

	// Role requires at least one message with this role.
	Role model.Role

	// HasAttachments requires (true) or forbids (false) attachments.
	HasAttachments *bool

	// Sentiment requires at least one message with this sentiment.
	Sentiment model.Sentiment
}

// IsEmpty reports whether no dimension is set.
func (s Spec) IsEmpty() bool {
	return s.Query == "" &&
		s.From.IsZero() &&
		s.To.IsZero() &&
		len(s.Tags) == 0 &&
		s.Category == "" &&
		s.Role == "" &&
		s.HasAttachments == nil &&
		s.Sentiment == ""
}

// Bool returns a pointer to b, for Spec.HasAttachments.
func Bool(b bool) *bool {
	return &b
}

// =============================================================================
// FILTER
// =============================================================================

// Filter returns the sessions matching spec in their original order. An
// empty spec returns sessions itself.
func Filter(sessions []model.ChatSession, spec Spec) []model.ChatSession {
	if spec.IsEmpty() {
		return sessions
	}

	m := newMatcher(spec.Query)
	out := make([]model.ChatSession, 0, len(sessions))
	for i := range sessions {
		if spec.matches(&sessions[i], m) {
			out = append(out, sessions[i])
		}
	}
	return out
}

func (s Spec) matches(cs *model.ChatSession, m *matcher) bool {
	if s.Query != "" && !m.session(cs) {
		return false
	}
	if !s.From.IsZero() && cs.CreatedAt.Before(s.From) {
		return false
	}
	if !s.To.IsZero() && cs.CreatedAt.After(s.To) {
		return false
	}
	if len(s.Tags) > 0 && !sharesTag(cs.Tags, s.Tags) {
		return false
	}
	if s.Category != "" && cs.Category != s.Category {
		return false
	}
	if s.Role != "" && !anyMessage(cs, func(msg *model.Message) bool { return msg.Role == s.Role }) {
		return false
	}
	if s.HasAttachments != nil && cs.HasAttachments() != *s.HasAttachments {
		return false
	}
	if s.Sentiment != "" && !anyMessage(cs, func(msg *model.Message) bool { return msg.Sentiment() == s.Sentiment }) {
		return false
	}
	return true
}

func sharesTag(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func anyMessage(cs *model.ChatSession, pred func(*model.Message) bool) bool {
	for i := range cs.Messages {
		if pred(&cs.Messages[i]) {
			return true
		}
	}
	return false
}

// =============================================================================
// MESSAGE SEARCH
// =============================================================================

// Hit is a matching message. Session points into the slice passed to
// SearchMessages.
type Hit struct {
	Session *model.ChatSession
	Message model.Message
}

// SearchMessages returns every message whose content contains query,
// case-insensitively, in session order then message order. An empty query
// matches every message.
func SearchMessages(sessions []model.ChatSession, query string) []Hit {
	m := newMatcher(query)
	var hits []Hit
	for i := range sessions {
		cs := &sessions[i]
		for j := range cs.Messages {
			if m.text(cs.Messages[j].Content) {
				hits = append(hits, Hit{Session: cs, Message: cs.Messages[j]})
			}
		}
	}
	return hits
}

// =============================================================================
// MATCHING
// =============================================================================

// matcher does Unicode case-folded substring matching. A Caser is not
// safe for concurrent use, so each call gets its own.
type matcher struct {
	fold   cases.Caser
	needle string
}

func newMatcher(query string) *matcher {
	m := &matcher{fold: cases.Fold()}
	m.needle = m.fold.String(query)
	return m
}

func (m *matcher) text(s string) bool {
	return strings.Contains(m.fold.String(s), m.needle)
}

func (m *matcher) session(cs *model.ChatSession) bool {
	if m.text(cs.Title) {
		return true
	}
	return anyMessage(cs, func(msg *model.Message) bool { return m.text(msg.Content) })
}
