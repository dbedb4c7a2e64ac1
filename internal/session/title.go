// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strings"

	"golang.org/x/text/language"
)

// TitleWords is how many words of the first message become the title.
const TitleWords = 6

var (
	titleLanguages = []language.Tag{
		language.English,
		language.Spanish,
		language.French,
		language.German,
		language.Russian,
	}

	// Indexed like titleLanguages.
	defaultTitles = []string{
		"New chat",
		"Nuevo chat",
		"Nouvelle discussion",
		"Neuer Chat",
		"Новый чат",
	}

	titleMatcher = language.NewMatcher(titleLanguages)
)

// DefaultTitle returns the placeholder title for a locale such as "fr" or
// "de-AT". Unknown or empty locales get English.
func DefaultTitle(locale string) string {
	if locale == "" {
		return defaultTitles[0]
	}
	_, index := language.MatchStrings(titleMatcher, locale)
	return defaultTitles[index]
}

// IsDefaultTitle reports whether title is a placeholder in any locale.
func IsDefaultTitle(title string) bool {
	for _, t := range defaultTitles {
		if title == t {
			return true
		}
	}
	return false
}

// TitleFromText builds a title from the first TitleWords words of text,
// adding "..." when more words follow. It returns "" for blank text.
func TitleFromText(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}
	if len(words) <= TitleWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:TitleWords], " ") + "..."
}
