// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the collection of chat sessions and applies every
// mutation to it.
//
// Sessions are kept newest first. Each mutation clones the target session,
// applies and validates the change on the copy, and only then swaps it in,
// so a rejected change leaves nothing half-applied. Operations on an ID
// that no longer exists are no-ops reporting ok=false; a delete racing an
// in-flight reply is expected, not an error.
//
// # Key Types
//
//   - Store: The session collection and its mutations
//   - Event: Change notification delivered to subscribers
//   - Autosaver: Debounced persistence of a Store to a storage.KV
//
// # Usage
//
//	store := session.NewStore(session.Options{Locale: "de-DE"})
//	s := store.CreateSession(defaults)
//	store.AppendUserMessage(s.ID, "Hello there", nil)
//
//	unsubscribe := store.Subscribe(func(ev session.Event) {
//	    log.Debug().Str("session", ev.SessionID).Msg(string(ev.Kind))
//	})
//	defer unsubscribe()
//
// # Statistics
//
// SessionStatistics is recomputed from the message list after every change
// to it, never patched incrementally.
package session
