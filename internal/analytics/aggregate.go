// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analytics

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jeranaias/rigchat/internal/model"
)

// TopTopicsLimit caps Analytics.TopTopics.
const TopTopicsLimit = 10

// DateLayout keys DailyActivity (ISO calendar date, UTC).
const DateLayout = "2006-01-02"

// =============================================================================
// TYPES
// =============================================================================

// TopicCount is a topic and how many messages carried it.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// AttachmentStats counts attachments by MIME top-level type ("image",
// "text", ...).
type AttachmentStats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// Analytics summarizes a session collection.
type Analytics struct {
	TotalSessions int     `json:"total_sessions"`
	TotalMessages int     `json:"total_messages"`
	TotalTokens   int     `json:"total_tokens"`
	TotalCost     float64 `json:"total_cost"`

	// Per-session averages; 0 for an empty collection.
	AverageTokens float64 `json:"average_tokens"`
	AverageCost   float64 `json:"average_cost"`

	// DailyActivity counts sessions by creation date.
	DailyActivity map[string]int `json:"daily_activity"`

	// ModelUsage counts messages by the model in their metadata.
	ModelUsage map[string]int `json:"model_usage"`

	Sentiment model.SentimentDistribution `json:"sentiment"`

	// TopTopics ranks topics by message count, ties in first-seen order.
	TopTopics []TopicCount `json:"top_topics"`

	// AverageProcessingTimeMs covers messages that report a duration.
	AverageProcessingTimeMs float64 `json:"average_processing_time_ms"`

	Attachments AttachmentStats `json:"attachments"`
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate computes Analytics from scratch.
func Aggregate(sessions []model.ChatSession) Analytics {
	a := Analytics{
		TotalSessions: len(sessions),
		DailyActivity: make(map[string]int),
		ModelUsage:    make(map[string]int),
		Attachments:   AttachmentStats{ByType: make(map[string]int)},
	}

	cost := decimal.Zero
	var processingSum int64
	var processingCount int

	topics := make(map[string]int)
	var topicOrder []string

	for i := range sessions {
		cs := &sessions[i]
		a.DailyActivity[cs.CreatedAt.UTC().Format(DateLayout)]++
		a.TotalMessages += len(cs.Messages)

		for j := range cs.Messages {
			m := &cs.Messages[j]
			a.TotalTokens += m.Tokens

			if m.ProcessingTimeMs > 0 {
				processingSum += m.ProcessingTimeMs
				processingCount++
			}

			for _, f := range m.Files {
				a.Attachments.Total++
				a.Attachments.ByType[f.TopLevelType()]++
			}

			meta := m.Metadata
			if meta == nil {
				continue
			}
			cost = cost.Add(decimal.NewFromFloat(meta.Cost))
			if meta.Model != "" {
				a.ModelUsage[meta.Model]++
			}
			a.Sentiment.Add(meta.Sentiment)
			for _, topic := range meta.Topics {
				if _, seen := topics[topic]; !seen {
					topicOrder = append(topicOrder, topic)
				}
				topics[topic]++
			}
		}
	}

	a.TotalCost = cost.InexactFloat64()
	if n := len(sessions); n > 0 {
		a.AverageTokens = float64(a.TotalTokens) / float64(n)
		a.AverageCost = cost.Div(decimal.NewFromInt(int64(n))).InexactFloat64()
	}
	if processingCount > 0 {
		a.AverageProcessingTimeMs = float64(processingSum) / float64(processingCount)
	}
	a.TopTopics = rankTopics(topics, topicOrder)

	return a
}

// rankTopics sorts by count, keeping first-seen order for ties.
func rankTopics(counts map[string]int, order []string) []TopicCount {
	ranked := make([]TopicCount, len(order))
	for i, topic := range order {
		ranked[i] = TopicCount{Topic: topic, Count: counts[topic]}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Count > ranked[j].Count
	})
	if len(ranked) > TopTopicsLimit {
		ranked = ranked[:TopTopicsLimit]
	}
	return ranked
}
