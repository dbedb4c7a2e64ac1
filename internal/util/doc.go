// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across rigchat.
//
//   - AtomicWriteFile: crash-safe file replacement with fsync
//   - TruncateRunes, TruncateWidth, PadWidth: display-safe string shaping
//
// # Usage
//
//	err := util.AtomicWriteFile(path, data, 0o600)
//	cell := util.PadWidth(util.TruncateWidth(title, 40), 40)
package util
