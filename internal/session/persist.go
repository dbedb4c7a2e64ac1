// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/storage"
)

// StorageKey is the key the collection is stored under.
const StorageKey = "chat-sessions"

// Load replaces the collection with the one stored in kv. A missing key
// leaves an empty store. A payload that fails to parse is reported and
// the store is left unchanged.
func (s *Store) Load(ctx context.Context, kv storage.KV) error {
	data, err := kv.Get(ctx, StorageKey)
	if errors.Is(err, storage.ErrNotFound) {
		s.Replace(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}

	sessions, err := export.ParseSessions(data)
	if err != nil {
		return fmt.Errorf("load sessions: %w", err)
	}
	s.Replace(sessions)

	log.Debug().Int("sessions", len(sessions)).Msg("sessions loaded")
	return nil
}

// Save writes the collection to kv. Concurrent saves run one at a time.
// The store stays dirty if it changed while the write was in progress.
func (s *Store) Save(ctx context.Context, kv storage.KV) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	version := s.version
	snapshot := make([]model.ChatSession, len(s.sessions))
	for i := range s.sessions {
		snapshot[i] = s.sessions[i].Clone()
	}
	s.mu.RUnlock()

	data, err := export.Sessions(snapshot)
	if err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}
	if err := kv.Set(ctx, StorageKey, data); err != nil {
		return fmt.Errorf("save sessions: %w", err)
	}

	s.mu.Lock()
	if version > s.savedVersion {
		s.savedVersion = version
	}
	s.mu.Unlock()

	log.Debug().Int("sessions", len(snapshot)).Int("bytes", len(data)).Msg("sessions saved")
	return nil
}
