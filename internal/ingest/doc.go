// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ingest turns user-supplied files into model.AttachedFile values.
//
// Validation runs before anything is read: the declared size is checked
// against the limit, then the type must be text-like, an image, or one of a
// few structured formats (JSON, XML, YAML, TOML, shell, SQL, JavaScript).
// Accepted images become base64 data URLs with a small JPEG thumbnail.
// Everything else is decoded to UTF-8 text. Thumbnails and metadata are best
// effort; when they fail the file is still attached without them.
//
// # Key Types
//
//   - Ingestor: validates and converts files
//   - FileInput: a named, sized source of bytes
//   - ValidationError: rejection carrying a Reason
//
// # Usage
//
//	in := ingest.New(ingest.Options{Compress: true})
//	input, err := ingest.FromPath("notes.py")
//	file, err := in.Ingest(ctx, input, ingest.DefaultMaxSize)
package ingest
