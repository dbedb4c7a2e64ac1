// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"github.com/shopspring/decimal"

	"github.com/jeranaias/rigchat/internal/model"
)

var thousand = decimal.NewFromInt(1000)

// EstimateCost returns the dollar cost of tokens on the given model.
// Unknown models are charged model.DefaultCostPer1K.
func EstimateCost(modelID string, tokens int) float64 {
	if tokens <= 0 {
		return 0
	}
	rate := decimal.NewFromFloat(model.CostPer1K(modelID))
	return decimal.NewFromInt(int64(tokens)).Mul(rate).Div(thousand).InexactFloat64()
}
