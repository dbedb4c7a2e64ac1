// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analysis derives cheap heuristic metadata from completion text.
//
// Nothing here is a language model. Each pass is a deterministic function
// over fixed lookup tables:
// Language compares Latin and Cyrillic letter counts,
// Sentiment matches positive and negative keyword lists,
// Topics matches a topic-to-keyword dictionary.
//
// # Key Types
//
//   - Analyzer: interface implemented by the heuristic passes
//   - Heuristic: the default Analyzer
//   - Result: language, sentiment and topics for one text
//
// # Usage
//
//	res := analysis.Default.Analyze(content)
//	cost := analysis.EstimateCost(cfg.Model, tokens)
package analysis
