// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export converts chat sessions to files and back.
//
// The JSON form is lossless and is the import format: Sessions writes a
// collection, ParseSessions reads one back or fails with an *ImportError
// without returning partial data. Markdown and HTML are one-way renderings
// of a single session for sharing.
//
// # Key Types
//
//   - Exporter: Renders one session to a format
//   - Options: Metadata and timestamp toggles, output directory
//   - ImportError: Describes why an import payload was rejected
//
// # Usage
//
// Export and re-import a collection:
//
//	data, err := export.Sessions(store.List())
//	sessions, err := export.ParseSessions(data)
//
// Write one session as Markdown:
//
//	exp, _ := export.ForFormat("md", nil)
//	path, err := export.ExportToFile(&session, exp, nil)
package export
