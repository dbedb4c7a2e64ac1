// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/rigchat/internal/model"
)

const dateLayout = "2006-01-02"

// Parse reads a search line into a Spec. Words of the form key:value set
// dimensions; everything else becomes the free-text query.
//
//	tag:go tag:ai      any of the tags
//	category:work      exact category
//	role:assistant     has a message with the role
//	has:file, no:file  attachment presence
//	sentiment:negative has a message with the sentiment
//	from:2025-01-01    created on or after (UTC day start)
//	to:2025-01-31      created on or before (UTC day end)
func Parse(line string) (Spec, error) {
	var spec Spec
	var words []string

	for _, word := range strings.Fields(line) {
		key, value, ok := strings.Cut(word, ":")
		if !ok || value == "" {
			words = append(words, word)
			continue
		}

		switch strings.ToLower(key) {
		case "tag":
			spec.Tags = append(spec.Tags, value)
		case "category":
			spec.Category = value
		case "role":
			role := model.Role(strings.ToLower(value))
			if !role.Valid() {
				return Spec{}, fmt.Errorf("unknown role %q", value)
			}
			spec.Role = role
		case "has", "no":
			if value != "file" && value != "files" {
				return Spec{}, fmt.Errorf("unknown filter %q", word)
			}
			spec.HasAttachments = Bool(strings.ToLower(key) == "has")
		case "sentiment":
			s := model.Sentiment(strings.ToLower(value))
			switch s {
			case model.SentimentPositive, model.SentimentNegative, model.SentimentNeutral:
				spec.Sentiment = s
			default:
				return Spec{}, fmt.Errorf("unknown sentiment %q", value)
			}
		case "from":
			t, err := time.Parse(dateLayout, value)
			if err != nil {
				return Spec{}, fmt.Errorf("invalid from date %q: %w", value, err)
			}
			spec.From = t
		case "to":
			t, err := time.Parse(dateLayout, value)
			if err != nil {
				return Spec{}, fmt.Errorf("invalid to date %q: %w", value, err)
			}
			spec.To = t.Add(24*time.Hour - time.Nanosecond)
		default:
			words = append(words, word)
		}
	}

	spec.Query = strings.Join(words, " ")
	return spec, nil
}
