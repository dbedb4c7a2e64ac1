// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the key-value persistence used by rigchat.
//
// The session collection is stored as one JSON blob under a single key, so
// every backend only needs Get, Set and Delete.
//
// # Key Types
//
//   - KV: The persistence interface
//   - FileKV: One file per key in a directory, written atomically
//   - SQLiteKV: A single-table SQLite database (pure Go driver)
//   - RedisKV: Keys in a Redis instance under a prefix
//   - MemoryKV: In-process map, used for tests and --ephemeral runs
//   - Sealed: Wraps another KV and encrypts values with AES-256-GCM
//
// # Usage
//
//	kv, err := storage.Open(ctx, storage.Options{Backend: "file", Path: dir})
//	if err != nil {
//	    return err
//	}
//	defer storage.Close(kv)
//
//	data, err := kv.Get(ctx, "chat-sessions")
//	if errors.Is(err, storage.ErrNotFound) {
//	    // first run
//	}
//
// # Storage Location
//
// The file backend defaults to ~/.rigchat/data/ with one <key>.json file
// per key.
package storage
