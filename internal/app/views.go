// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/analytics"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/search"
)

// =============================================================================
// DERIVED VIEWS
// =============================================================================

// Sessions lists sessions newest first. Archived sessions are left out
// unless includeArchived is set.
func (a *App) Sessions(includeArchived bool) []model.ChatSession {
	all := a.store.List()
	if includeArchived {
		return all
	}
	out := make([]model.ChatSession, 0, len(all))
	for _, s := range all {
		if !s.IsArchived {
			out = append(out, s)
		}
	}
	return out
}

// Search filters the whole collection, archived sessions included.
func (a *App) Search(spec search.Spec) []model.ChatSession {
	return search.Filter(a.store.List(), spec)
}

// SearchMessages returns every message matching query.
func (a *App) SearchMessages(query string) []search.Hit {
	return search.SearchMessages(a.store.List(), query)
}

// Analytics aggregates the whole collection.
func (a *App) Analytics() analytics.Analytics {
	return analytics.Aggregate(a.store.List())
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

// ExportAll renders every session as a JSON array.
func (a *App) ExportAll() ([]byte, error) {
	return export.Sessions(a.store.List())
}

// Import parses a JSON array of sessions and prepends them. Malformed
// input returns an *export.ImportError and leaves the collection as it
// was. It returns the stored session IDs.
func (a *App) Import(data []byte) ([]string, error) {
	sessions, err := export.ParseSessions(data)
	if err != nil {
		return nil, err
	}
	ids := a.store.Prepend(sessions)
	log.Info().Int("count", len(ids)).Msg("import complete")
	return ids, nil
}

// ExportSession writes one session to dir in the given format ("md",
// "html" or "json") and returns the path written.
func (a *App) ExportSession(id, format, dir string) (string, error) {
	cs, ok := a.store.Get(id)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	opts := export.DefaultOptions()
	if dir != "" {
		opts.OutputDir = dir
	}
	exporter, err := export.ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	return export.ExportToFile(&cs, exporter, opts)
}
