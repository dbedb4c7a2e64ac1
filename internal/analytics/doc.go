// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package analytics derives usage statistics across all sessions.
//
// Aggregate is a pure fold over the collection; callers recompute it after
// every change rather than updating a running total. Costs are summed with
// shopspring/decimal so many small per-message costs add up exactly.
//
// # Key Types
//
//   - Analytics: Totals, averages and histograms for a collection
//   - TopicCount: One entry of the ranked topic list
//
// # Usage
//
//	a := analytics.Aggregate(store.List())
//	fmt.Printf("%d messages, $%.4f\n", a.TotalMessages, a.TotalCost)
package analytics
