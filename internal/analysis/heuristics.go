// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package analysis

import (
	"strings"
	"unicode"

	"github.com/jeranaias/rigchat/internal/model"
)

// ============================================================================
// ANALYZER
// ============================================================================

// Result is the heuristic metadata for one piece of text.
type Result struct {
	Language  string
	Sentiment model.Sentiment
	Topics    []string
}

// Analyzer derives heuristic metadata from text.
type Analyzer interface {
	Analyze(text string) Result
}

// Heuristic is the keyword and character-class Analyzer.
type Heuristic struct{}

// Default is the analyzer used when none is injected.
var Default Analyzer = Heuristic{}

// Analyze runs the language, sentiment and topic passes.
func (Heuristic) Analyze(text string) Result {
	return Result{
		Language:  DetectLanguage(text),
		Sentiment: ClassifySentiment(text),
		Topics:    ExtractTopics(text),
	}
}

// ============================================================================
// LANGUAGE
// ============================================================================

// DetectLanguage returns "ru" when Cyrillic letters outnumber Latin ones
// and "en" otherwise.
func DetectLanguage(text string) string {
	var latin, cyrillic int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyrillic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	if cyrillic > latin {
		return "ru"
	}
	return "en"
}

// ============================================================================
// SENTIMENT
// ============================================================================

var positiveWords = []string{
	"good", "great", "excellent", "awesome", "happy", "thanks", "thank you",
	"perfect", "love", "wonderful", "glad", "helpful", "nice", "success",
	"хорошо", "отлично", "спасибо", "прекрасно", "рад",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "error", "fail", "wrong", "problem", "sorry",
	"unfortunately", "broken", "hate", "issue", "cannot", "can't",
	"плохо", "ошибка", "проблема", "к сожалению", "нельзя",
}

// ClassifySentiment counts positive and negative keyword hits.
// Ties, including no hits, are neutral.
func ClassifySentiment(text string) model.Sentiment {
	lower := strings.ToLower(text)
	pos := countHits(lower, positiveWords)
	neg := countHits(lower, negativeWords)

	switch {
	case pos > neg:
		return model.SentimentPositive
	case neg > pos:
		return model.SentimentNegative
	default:
		return model.SentimentNeutral
	}
}

func countHits(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

// ============================================================================
// TOPICS
// ============================================================================

type topic struct {
	name     string
	keywords []string
}

// topics is ordered; ExtractTopics reports matches in this order.
var topics = []topic{
	{"programming", []string{"code", "function", "programming", "algorithm", "variable", "compile", "код", "программ"}},
	{"data", []string{"database", "sql", "dataset", "query", "json", "данные", "база данных"}},
	{"web", []string{"html", "css", "javascript", "browser", "http", "website", "сайт"}},
	{"ai", []string{"machine learning", "neural", "model", "ai ", "llm", "нейросет"}},
	{"science", []string{"physics", "chemistry", "biology", "experiment", "наука"}},
	{"math", []string{"equation", "math", "calculate", "formula", "математ"}},
	{"business", []string{"market", "business", "revenue", "customer", "startup", "бизнес"}},
	{"health", []string{"health", "medical", "exercise", "diet", "здоров"}},
	{"education", []string{"learn", "study", "course", "teach", "school", "обучен"}},
	{"writing", []string{"essay", "story", "write", "article", "poem", "текст"}},
}

// ExtractTopics returns every topic with at least one keyword present in
// text, in dictionary order. It returns nil when nothing matches.
func ExtractTopics(text string) []string {
	lower := strings.ToLower(text)
	var out []string
	for _, t := range topics {
		for _, kw := range t.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, t.name)
				break
			}
		}
	}
	return out
}

// TopicNames returns the known topic labels in dictionary order.
func TopicNames() []string {
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = t.name
	}
	return names
}
