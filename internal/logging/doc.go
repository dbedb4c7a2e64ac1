// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the global zerolog logger.
//
// Terminals get zerolog's console writer, pipes get JSON lines, and the
// interactive REPL sends everything to a daily rotated file so log output
// never interleaves with the conversation.
//
// # Usage
//
//	closer, err := logging.Setup(logging.Options{Level: cfg.Logging.Level})
//	if err != nil {
//	    return err
//	}
//	defer closer.Close()
//
//	log.Info().Str("model", id).Msg("session started")
package logging
