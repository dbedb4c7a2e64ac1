// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// EVENTS
// =============================================================================

// EventKind names the mutation that produced an Event.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventUpdated  EventKind = "updated"
	EventDeleted  EventKind = "deleted"
	EventImported EventKind = "imported"
	EventReplaced EventKind = "replaced"
)

// Event is delivered to subscribers after a mutation commits. SessionID is
// empty for collection-wide changes.
type Event struct {
	Kind      EventKind
	SessionID string
}

// =============================================================================
// STORE
// =============================================================================

// DefaultUserID is recorded on reactions made by the local user.
const DefaultUserID = "local"

// Options configures a Store.
type Options struct {
	// Locale picks the default title language (BCP 47, e.g. "es-MX").
	Locale string

	// UserID is recorded on reactions. Default: DefaultUserID.
	UserID string
}

// Store holds sessions newest first. It is safe for concurrent use.
// Returned sessions are deep copies.
type Store struct {
	mu       sync.RWMutex
	sessions []model.ChatSession
	locale   string
	userID   string
	now      func() time.Time

	// version increments on every commit; Save uses it to tell whether
	// the collection changed while it was writing.
	version      uint64
	savedVersion uint64

	// saveMu orders snapshot-then-write so an older snapshot never lands
	// after a newer one.
	saveMu sync.Mutex

	subMu     sync.Mutex
	subs      map[int]func(Event)
	nextSubID int
}

// NewStore creates an empty store.
func NewStore(opts Options) *Store {
	if opts.UserID == "" {
		opts.UserID = DefaultUserID
	}
	return &Store{
		locale: opts.Locale,
		userID: opts.UserID,
		now:    model.Now,
		subs:   make(map[int]func(Event)),
	}
}

// SetLocale changes the language of titles for sessions created later.
func (s *Store) SetLocale(locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locale = locale
}

// =============================================================================
// SUBSCRIPTIONS
// =============================================================================

// Subscribe registers fn to run after every committed mutation. Listeners
// run on the mutating goroutine, outside the store lock, so they may read
// the store. The returned function removes the listener.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn

	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) emit(ev Event) {
	s.subMu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// =============================================================================
// READS
// =============================================================================

// Get returns a copy of the session with the given ID.
func (s *Store) Get(id string) (model.ChatSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexLocked(id)
	if i < 0 {
		return model.ChatSession{}, false
	}
	return s.sessions[i].Clone(), true
}

// List returns copies of all sessions, newest first.
func (s *Store) List() []model.ChatSession {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ChatSession, len(s.sessions))
	for i := range s.sessions {
		out[i] = s.sessions[i].Clone()
	}
	return out
}

// Len returns the number of sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// IsDirty reports whether there are changes not yet written by Save.
func (s *Store) IsDirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version != s.savedVersion
}

func (s *Store) indexLocked(id string) int {
	for i := range s.sessions {
		if s.sessions[i].ID == id {
			return i
		}
	}
	return -1
}

// =============================================================================
// MUTATION CORE
// =============================================================================

// update applies fn to a copy of the session and commits it only if fn
// returns true. UpdatedAt is bumped on commit.
func (s *Store) update(id string, fn func(*model.ChatSession) bool) (model.ChatSession, bool) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		log.Debug().Str("session", id).Msg("mutation on missing session ignored")
		return model.ChatSession{}, false
	}

	next := s.sessions[i].Clone()
	if !fn(&next) {
		s.mu.Unlock()
		return model.ChatSession{}, false
	}
	next.UpdatedAt = s.now()
	s.sessions[i] = next
	s.version++
	out := next.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdated, SessionID: id})
	return out, true
}

// updateMessage applies fn to one message of a session and recomputes the
// session statistics.
func (s *Store) updateMessage(id, messageID string, fn func(model.Message) model.Message) (model.ChatSession, bool) {
	return s.update(id, func(cs *model.ChatSession) bool {
		j := cs.MessageIndex(messageID)
		if j < 0 {
			return false
		}
		cs.Messages[j] = fn(cs.Messages[j])
		cs.Statistics = model.RecomputeStatistics(cs.Messages)
		return true
	})
}

// =============================================================================
// SESSION LIFECYCLE
// =============================================================================

// CreateSession adds a new empty session at the front. settings is copied,
// so later changes to the caller's defaults do not reach this session.
func (s *Store) CreateSession(settings *model.SessionSettings) model.ChatSession {
	s.mu.Lock()
	now := s.now()
	cs := model.ChatSession{
		ID:         model.NewID("session"),
		Title:      DefaultTitle(s.locale),
		Messages:   []model.Message{},
		CreatedAt:  now,
		UpdatedAt:  now,
		Settings:   settings.Clone(),
		Statistics: model.RecomputeStatistics(nil),
	}
	s.sessions = append([]model.ChatSession{cs}, s.sessions...)
	s.version++
	out := cs.Clone()
	s.mu.Unlock()

	log.Debug().Str("session", cs.ID).Msg("session created")
	s.emit(Event{Kind: EventCreated, SessionID: cs.ID})
	return out
}

// DeleteSession removes a session. It returns the ID of the session that
// should be selected next: the one that moved into the deleted position
// (the next older session), else the new last session, else "" when the
// collection is now empty.
func (s *Store) DeleteSession(id string) (nextID string, ok bool) {
	s.mu.Lock()
	i := s.indexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return "", false
	}

	s.sessions = append(s.sessions[:i:i], s.sessions[i+1:]...)
	switch {
	case i < len(s.sessions):
		nextID = s.sessions[i].ID
	case len(s.sessions) > 0:
		nextID = s.sessions[len(s.sessions)-1].ID
	}
	s.version++
	s.mu.Unlock()

	log.Debug().Str("session", id).Str("next", nextID).Msg("session deleted")
	s.emit(Event{Kind: EventDeleted, SessionID: id})
	return nextID, true
}

// Prepend adds sessions in front of the existing ones, keeping their
// order. A session whose ID is already taken gets a fresh ID. Statistics
// are recomputed from each session's messages. It returns the IDs as
// stored.
func (s *Store) Prepend(sessions []model.ChatSession) []string {
	if len(sessions) == 0 {
		return nil
	}

	s.mu.Lock()
	taken := make(map[string]bool, len(s.sessions)+len(sessions))
	for i := range s.sessions {
		taken[s.sessions[i].ID] = true
	}

	incoming := make([]model.ChatSession, len(sessions))
	ids := make([]string, len(sessions))
	for i := range sessions {
		cs := sessions[i].Clone()
		if cs.ID == "" || taken[cs.ID] {
			cs.ID = model.NewID("session")
		}
		taken[cs.ID] = true
		if cs.Messages == nil {
			cs.Messages = []model.Message{}
		}
		cs.Statistics = model.RecomputeStatistics(cs.Messages)
		incoming[i] = cs
		ids[i] = cs.ID
	}

	s.sessions = append(incoming, s.sessions...)
	s.version++
	s.mu.Unlock()

	log.Info().Int("count", len(ids)).Msg("sessions imported")
	s.emit(Event{Kind: EventImported})
	return ids
}

// Replace swaps in a whole collection, as loaded from storage. The store
// is considered clean afterwards.
func (s *Store) Replace(sessions []model.ChatSession) {
	next := make([]model.ChatSession, len(sessions))
	for i := range sessions {
		next[i] = sessions[i].Clone()
	}

	s.mu.Lock()
	s.sessions = next
	s.version++
	s.savedVersion = s.version
	s.mu.Unlock()

	s.emit(Event{Kind: EventReplaced})
}

// =============================================================================
// MESSAGES
// =============================================================================

// AppendUserMessage adds a user message. The first message of a session
// that still has its placeholder title renames it from the text. Blank
// text without files is rejected.
func (s *Store) AppendUserMessage(id, text string, files []model.AttachedFile) (model.ChatSession, bool) {
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		return model.ChatSession{}, false
	}

	return s.update(id, func(cs *model.ChatSession) bool {
		first := len(cs.Messages) == 0
		cs.Messages = append(cs.Messages, model.NewUserMessage(text, files))
		if first && IsDefaultTitle(cs.Title) {
			if title := TitleFromText(text); title != "" {
				cs.Title = title
			}
		}
		cs.Statistics = model.RecomputeStatistics(cs.Messages)
		return true
	})
}

// AppendAssistantMessage adds a completed reply and recomputes statistics.
func (s *Store) AppendAssistantMessage(id, content string, meta *model.MessageMetadata, tokens int, processing time.Duration) (model.ChatSession, bool) {
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.Messages = append(cs.Messages, model.NewAssistantMessage(content, meta, tokens, processing))
		cs.Statistics = model.RecomputeStatistics(cs.Messages)
		return true
	})
}

// AppendSystemMessage adds a system notice, such as a failed request.
func (s *Store) AppendSystemMessage(id, text string) (model.ChatSession, bool) {
	if strings.TrimSpace(text) == "" {
		return model.ChatSession{}, false
	}
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.Messages = append(cs.Messages, model.NewSystemMessage(text))
		cs.Statistics = model.RecomputeStatistics(cs.Messages)
		return true
	})
}

// EditMessage replaces a message's content. OriginalContent keeps the text
// from before the first edit.
func (s *Store) EditMessage(id, messageID, text string) (model.ChatSession, bool) {
	if strings.TrimSpace(text) == "" {
		return model.ChatSession{}, false
	}
	return s.updateMessage(id, messageID, func(m model.Message) model.Message {
		return m.Edited(text)
	})
}

// React counts an emoji reaction on a message from the store's user.
func (s *Store) React(id, messageID, emoji string) (model.ChatSession, bool) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return model.ChatSession{}, false
	}
	return s.updateMessage(id, messageID, func(m model.Message) model.Message {
		return m.WithReaction(emoji, s.userID)
	})
}

// =============================================================================
// SESSION FIELDS
// =============================================================================

func (s *Store) ToggleFavorite(id string) (model.ChatSession, bool) {
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.IsFavorite = !cs.IsFavorite
		return true
	})
}

func (s *Store) ToggleArchive(id string) (model.ChatSession, bool) {
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.IsArchived = !cs.IsArchived
		return true
	})
}

// Rename sets the title. Blank titles are rejected.
func (s *Store) Rename(id, title string) (model.ChatSession, bool) {
	title = strings.TrimSpace(title)
	if title == "" {
		return model.ChatSession{}, false
	}
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.Title = title
		return true
	})
}

// SetTags replaces the tag set. Tags are trimmed and deduplicated; an
// empty list clears them.
func (s *Store) SetTags(id string, tags []string) (model.ChatSession, bool) {
	clean := normalizeTags(tags)
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.Tags = clean
		return true
	})
}

// SetCategory sets the category label; "" clears it.
func (s *Store) SetCategory(id, category string) (model.ChatSession, bool) {
	category = strings.TrimSpace(category)
	return s.update(id, func(cs *model.ChatSession) bool {
		cs.Category = category
		return true
	})
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
