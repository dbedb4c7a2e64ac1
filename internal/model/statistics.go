// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "github.com/shopspring/decimal"

// SentimentDistribution counts messages per sentiment class.
type SentimentDistribution struct {
	Positive int `json:"positive"`
	Negative int `json:"negative"`
	Neutral  int `json:"neutral"`
}

// Add counts one message with sentiment s. Messages without a
// classification are ignored.
func (d *SentimentDistribution) Add(s Sentiment) {
	switch s {
	case SentimentPositive:
		d.Positive++
	case SentimentNegative:
		d.Negative++
	case SentimentNeutral:
		d.Neutral++
	}
}

// Total returns the number of classified messages.
func (d SentimentDistribution) Total() int {
	return d.Positive + d.Negative + d.Neutral
}

// SessionStatistics is derived from a session's messages and is never
// edited by hand.
type SessionStatistics struct {
	TotalMessages           int                   `json:"total_messages"`
	TotalTokens             int                   `json:"total_tokens"`
	TotalCost               float64               `json:"total_cost"`
	AverageProcessingTimeMs float64               `json:"average_processing_time_ms"`
	TopTopics               []string              `json:"top_topics,omitempty"`
	SentimentDistribution   SentimentDistribution `json:"sentiment_distribution"`
}

// Clone returns a deep copy of the statistics.
func (s *SessionStatistics) Clone() *SessionStatistics {
	if s == nil {
		return nil
	}
	c := *s
	if s.TopTopics != nil {
		c.TopTopics = append([]string(nil), s.TopTopics...)
	}
	return &c
}

// RecomputeStatistics derives statistics from a message sequence.
// It depends on nothing but its input.
func RecomputeStatistics(messages []Message) *SessionStatistics {
	stats := &SessionStatistics{TotalMessages: len(messages)}

	cost := decimal.Zero
	var processingSum int64
	var processingCount int

	for i := range messages {
		m := &messages[i]
		stats.TotalTokens += m.Tokens
		if m.ProcessingTimeMs > 0 {
			processingSum += m.ProcessingTimeMs
			processingCount++
		}
		if m.Metadata == nil {
			continue
		}
		cost = cost.Add(decimal.NewFromFloat(m.Metadata.Cost))
		stats.SentimentDistribution.Add(m.Metadata.Sentiment)
	}

	stats.TotalCost = cost.InexactFloat64()
	if processingCount > 0 {
		stats.AverageProcessingTimeMs = float64(processingSum) / float64(processingCount)
	}

	for i := len(messages) - 1; i >= 0; i-- {
		m := &messages[i]
		if m.Role == RoleAssistant && m.Metadata != nil {
			if len(m.Metadata.Topics) > 0 {
				stats.TopTopics = append([]string(nil), m.Metadata.Topics...)
			}
			break
		}
	}

	return stats
}
