// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chat sessions and messages.
//
// This package defines the core domain types shared by the session store,
// the completion client and the derived views (search, analytics).
//
// # Key Types
//
//   - ChatSession: A conversation thread with settings snapshot and statistics
//   - Message: Single turn with role, content, attachments and metadata
//   - AttachedFile: Immutable file payload owned by a message
//   - SessionStatistics: Derived totals, always recomputed from the messages
//   - ModelInfo: Information about a completion model (ID, cost)
//
// # Usage
//
// Messages are values. Edits and reactions return a new value that the
// owning session substitutes at the same position:
//
//	msg := model.NewUserMessage("Hello!", nil)
//	edited := msg.Edited("Hello there!")
//	fmt.Println(edited.OriginalContent) // "Hello!"
//
// Statistics are a pure function of the message sequence:
//
//	stats := model.RecomputeStatistics(session.Messages)
package model
