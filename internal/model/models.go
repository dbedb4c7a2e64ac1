// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strings"
)

// =============================================================================
// MODEL INFO TYPE
// =============================================================================

// ModelInfo describes a completion model known to the client.
type ModelInfo struct {
	// ID is the model identifier used in API calls
	ID string `json:"id"`

	// Name is the human-readable display name
	Name string `json:"name"`

	// CostPer1K is the blended price per 1000 tokens in dollars
	CostPer1K float64 `json:"cost_per_1k"`

	// ContextWindow is the maximum context size in tokens
	ContextWindow int `json:"context_window"`

	Description string `json:"description"`
}

// DefaultModel is the model used when none is configured.
const DefaultModel = "llama3.1-8b"

// DefaultCostPer1K is charged for models missing from the registry.
const DefaultCostPer1K = 0.0005

// =============================================================================
// MODEL REGISTRY
// =============================================================================

// Models is the built-in registry, in display order. It doubles as the
// fallback list when the provider's model listing is unavailable.
var Models = []ModelInfo{
	{
		ID:            "llama3.1-8b",
		Name:          "Llama 3.1 8B",
		CostPer1K:     0.0001,
		ContextWindow: 8192,
		Description:   "Fast and cheap for everyday questions",
	},
	{
		ID:            "llama-3.3-70b",
		Name:          "Llama 3.3 70B",
		CostPer1K:     0.0006,
		ContextWindow: 65536,
		Description:   "Strong general purpose model",
	},
	{
		ID:            "qwen-3-32b",
		Name:          "Qwen 3 32B",
		CostPer1K:     0.0004,
		ContextWindow: 65536,
		Description:   "Good at code and reasoning",
	},
	{
		ID:            "llama-4-scout-17b-16e-instruct",
		Name:          "Llama 4 Scout",
		CostPer1K:     0.00065,
		ContextWindow: 32768,
		Description:   "Mixture of experts, long answers",
	},
}

// =============================================================================
// MODEL INFO METHODS
// =============================================================================

// CostString returns a formatted cost string.
func (m ModelInfo) CostString() string {
	if m.CostPer1K == 0 {
		return "Free"
	}
	if m.CostPer1K < 0.001 {
		return fmt.Sprintf("$%.5f/1K", m.CostPer1K)
	}
	return fmt.Sprintf("$%.4f/1K", m.CostPer1K)
}

// ContextString returns a formatted context window string.
func (m ModelInfo) ContextString() string {
	if m.ContextWindow >= 1000000 {
		return fmt.Sprintf("%.1fM tokens", float64(m.ContextWindow)/1000000)
	}
	if m.ContextWindow >= 1000 {
		return fmt.Sprintf("%dK tokens", m.ContextWindow/1000)
	}
	return fmt.Sprintf("%d tokens", m.ContextWindow)
}

// =============================================================================
// MODEL LOOKUP FUNCTIONS
// =============================================================================

// GetModelInfo looks up a model by exact ID, then case-insensitively.
func GetModelInfo(id string) (ModelInfo, bool) {
	for _, info := range Models {
		if info.ID == id {
			return info, true
		}
	}
	for _, info := range Models {
		if strings.EqualFold(info.ID, id) {
			return info, true
		}
	}
	return ModelInfo{}, false
}

// CostPer1K returns the price for a model, falling back to DefaultCostPer1K.
func CostPer1K(id string) float64 {
	if info, ok := GetModelInfo(id); ok {
		return info.CostPer1K
	}
	return DefaultCostPer1K
}

// FallbackModelIDs returns the IDs of the built-in registry in order.
func FallbackModelIDs() []string {
	ids := make([]string, len(Models))
	for i, info := range Models {
		ids[i] = info.ID
	}
	return ids
}
