// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter renders a session as Markdown with YAML front matter.
type MarkdownExporter struct {
	options *Options
}

func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

type frontMatter struct {
	Title     string   `yaml:"title"`
	Model     string   `yaml:"model,omitempty"`
	Date      string   `yaml:"date"`
	Updated   string   `yaml:"updated"`
	Messages  int      `yaml:"messages"`
	Tokens    int      `yaml:"tokens,omitempty"`
	Cost      float64  `yaml:"cost,omitempty"`
	Tags      []string `yaml:"tags,omitempty"`
	Category  string   `yaml:"category,omitempty"`
	Generator string   `yaml:"generator"`
}

// Export converts a session to Markdown.
func (e *MarkdownExporter) Export(s *model.ChatSession) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if len(s.Messages) == 0 {
		return nil, ErrEmptySession
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		fm := frontMatter{
			Title:     s.Title,
			Model:     sessionModel(s),
			Date:      s.CreatedAt.Format(time.RFC3339),
			Updated:   s.UpdatedAt.Format(time.RFC3339),
			Messages:  len(s.Messages),
			Tags:      s.Tags,
			Category:  s.Category,
			Generator: "rigchat",
		}
		if s.Statistics != nil {
			fm.Tokens = s.Statistics.TotalTokens
			fm.Cost = s.Statistics.TotalCost
		}
		out, err := yaml.Marshal(fm)
		if err != nil {
			return nil, fmt.Errorf("front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(out)
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(s.Title))

	for i := range s.Messages {
		msg := &s.Messages[i]

		if e.options.IncludeTimestamps {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", msg.Role.DisplayName(), formatShortTimestamp(msg.Timestamp))
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", msg.Role.DisplayName())
		}

		sb.WriteString(strings.TrimSpace(msg.Content))
		sb.WriteString("\n\n")

		if msg.IsEdited {
			sb.WriteString("<sub>(edited)</sub>\n\n")
		}

		for _, f := range msg.Files {
			fmt.Fprintf(&sb, "- Attachment: `%s` (%s, %s)\n", f.Name, f.Type, humanize.Bytes(uint64(f.Size)))
		}
		if len(msg.Files) > 0 {
			sb.WriteString("\n")
		}

		if len(msg.Reactions) > 0 {
			var rs []string
			for _, r := range msg.Reactions {
				rs = append(rs, fmt.Sprintf("%s %d", r.Emoji, r.Count))
			}
			sb.WriteString(strings.Join(rs, "  "))
			sb.WriteString("\n\n")
		}

		if msg.Role == model.RoleAssistant && e.options.IncludeMetadata {
			if stats := messageStats(msg); len(stats) > 0 {
				fmt.Fprintf(&sb, "<sub>%s</sub>\n\n", strings.Join(stats, " | "))
			}
		}

		if i < len(s.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}

	return []byte(sb.String()), nil
}

func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// escapeMarkdown escapes characters that would break a heading.
func escapeMarkdown(s string) string {
	return strings.NewReplacer(
		"#", `\#`,
		"*", `\*`,
		"_", `\_`,
		"[", `\[`,
		"]", `\]`,
	).Replace(s)
}
