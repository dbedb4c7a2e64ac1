// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jeranaias/rigchat/internal/model"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"Hello there", "en"},
		{"Привет, как дела?", "ru"},
		{"", "en"},
		{"12345 !!!", "en"},
		{"Go это язык", "ru"},
	}

	for _, tc := range tests {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectLanguage(tc.text))
		})
	}
}

func TestClassifySentiment(t *testing.T) {
	tests := []struct {
		name string
		text string
		want model.Sentiment
	}{
		{"positive", "This is great, thanks!", model.SentimentPositive},
		{"negative", "Sorry, that is wrong", model.SentimentNegative},
		{"no hits", "The sky is blue", model.SentimentNeutral},
		{"tie", "good but broken", model.SentimentNeutral},
		{"case insensitive", "EXCELLENT", model.SentimentPositive},
		{"russian", "Отлично, спасибо", model.SentimentPositive},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifySentiment(tc.text))
		})
	}
}

func TestExtractTopics(t *testing.T) {
	assert.Nil(t, ExtractTopics("hello there"))

	// Order follows the dictionary, not the text.
	got := ExtractTopics("Write an essay about a SQL database function")
	assert.Equal(t, []string{"programming", "data", "writing"}, got)
}

func TestHeuristic_Analyze(t *testing.T) {
	res := Default.Analyze("Great question about the code!")

	assert.Equal(t, "en", res.Language)
	assert.Equal(t, model.SentimentPositive, res.Sentiment)
	assert.Equal(t, []string{"programming"}, res.Topics)
}

func TestTopicNames(t *testing.T) {
	names := TopicNames()
	assert.Len(t, names, 10)
	assert.Equal(t, "programming", names[0])
}

func TestEstimateCost(t *testing.T) {
	assert.InDelta(t, 0.0001, EstimateCost("llama3.1-8b", 1000), 1e-12)
	assert.InDelta(t, 0.0012, EstimateCost("llama-3.3-70b", 2000), 1e-12)
	assert.InDelta(t, 0.0005, EstimateCost("unknown", 1000), 1e-12)
	assert.Equal(t, 0.0, EstimateCost("llama3.1-8b", 0))
}
