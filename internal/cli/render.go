// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"

	"github.com/jeranaias/rigchat/internal/analytics"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/search"
	"github.com/jeranaias/rigchat/internal/util"
)

// =============================================================================
// MARKDOWN
// =============================================================================

var (
	markdownOnce     sync.Once
	markdownRenderer *glamour.TermRenderer
)

// renderMarkdown renders assistant content for a terminal. The raw content
// is returned when the renderer is unavailable or fails.
func renderMarkdown(content string) string {
	markdownOnce.Do(func() {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(GetTerminalWidth()-4),
		)
		if err == nil {
			markdownRenderer = r
		}
	})
	if markdownRenderer == nil {
		return content
	}
	rendered, err := markdownRenderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// SESSIONS
// =============================================================================

const titleWidth = 36

// writeSessionTable prints one numbered row per session. The selected
// session is marked with "*".
func writeSessionTable(w io.Writer, sessions []model.ChatSession, selectedID string) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No sessions."))
		return
	}
	for i, s := range sessions {
		marker := " "
		if s.ID == selectedID {
			marker = "*"
		}
		flags := ""
		if s.IsFavorite {
			flags += "★"
		}
		if s.IsArchived {
			flags += " [archived]"
		}
		title := util.PadWidth(util.TruncateWidth(util.OneLine(s.Title), titleWidth), titleWidth)
		fmt.Fprintf(w, "%s %3d  %s  %4d msgs  %-16s %s\n",
			marker, i+1,
			ValueStyle.Render(title),
			len(s.Messages),
			DimStyle.Render(humanize.Time(s.UpdatedAt)),
			HighlightStyle.Render(strings.TrimSpace(flags)),
		)
		if len(s.Tags) > 0 || s.Category != "" {
			var meta []string
			if s.Category != "" {
				meta = append(meta, "category:"+s.Category)
			}
			for _, t := range s.Tags {
				meta = append(meta, "#"+t)
			}
			fmt.Fprintf(w, "       %s\n", DimStyle.Render(strings.Join(meta, " ")))
		}
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

// writeMessage prints a message with a numbered role header. Assistant
// content is rendered as markdown when markdown is set.
func writeMessage(w io.Writer, index int, m model.Message, markdown bool) {
	header := fmt.Sprintf("[%d] %s", index, m.Role)
	if m.IsEdited {
		header += " (edited)"
	}
	fmt.Fprintln(w, RoleStyle(m.Role).Render(header))

	for _, f := range m.Files {
		fmt.Fprintf(w, "  %s %s (%s, %s)\n", DimStyle.Render("📎"), f.Name, f.Type, humanize.Bytes(uint64(f.Size)))
	}

	if markdown && m.Role == model.RoleAssistant {
		fmt.Fprint(w, renderMarkdown(m.Content))
	} else {
		fmt.Fprintln(w, WrapText(m.Content, 0))
	}

	if len(m.Reactions) > 0 {
		parts := make([]string, 0, len(m.Reactions))
		for _, r := range m.Reactions {
			parts = append(parts, fmt.Sprintf("%s %d", r.Emoji, r.Count))
		}
		fmt.Fprintln(w, DimStyle.Render(strings.Join(parts, "  ")))
	}
}

// writeHits prints message-level search results.
func writeHits(w io.Writer, hits []search.Hit) {
	if len(hits) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No matches."))
		return
	}
	for _, h := range hits {
		fmt.Fprintf(w, "%s  %s  %s\n",
			InfoStyle.Render(util.TruncateWidth(util.OneLine(h.Session.Title), 24)),
			RoleStyle(h.Message.Role).Render(string(h.Message.Role)),
			util.TruncateWidth(util.OneLine(h.Message.Content), 60),
		)
	}
}

// =============================================================================
// ANALYTICS
// =============================================================================

func writeAnalytics(w io.Writer, a analytics.Analytics) {
	fmt.Fprintln(w, TitleStyle.Render("Usage"))
	fmt.Fprintln(w, RenderLabel("Sessions", humanize.Comma(int64(a.TotalSessions))))
	fmt.Fprintln(w, RenderLabel("Messages", humanize.Comma(int64(a.TotalMessages))))
	fmt.Fprintln(w, RenderLabel("Tokens", humanize.Comma(int64(a.TotalTokens))))
	fmt.Fprintln(w, RenderLabel("Cost", fmt.Sprintf("$%.4f", a.TotalCost)))
	fmt.Fprintln(w, RenderLabel("Avg tokens/session", fmt.Sprintf("%.1f", a.AverageTokens)))
	fmt.Fprintln(w, RenderLabel("Avg response", fmt.Sprintf("%.0f ms", a.AverageProcessingTimeMs)))
	fmt.Fprintln(w, RenderLabel("Attachments", humanize.Comma(int64(a.Attachments.Total))))

	s := a.Sentiment
	fmt.Fprintln(w, RenderLabel("Sentiment", fmt.Sprintf("+%d / -%d / =%d", s.Positive, s.Negative, s.Neutral)))

	if len(a.ModelUsage) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SectionStyle.Render("Models"))
		for _, k := range sortedKeys(a.ModelUsage) {
			fmt.Fprintln(w, RenderLabel(k, humanize.Comma(int64(a.ModelUsage[k]))))
		}
	}

	if len(a.TopTopics) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, SectionStyle.Render("Top topics"))
		for _, t := range a.TopTopics {
			fmt.Fprintln(w, RenderLabel(t.Topic, fmt.Sprint(t.Count)))
		}
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// =============================================================================
// JSON
// =============================================================================

// writeJSON prints v as indented JSON inside the standard envelope.
func writeJSON(w io.Writer, command string, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]interface{}{
		"success": true,
		"command": command,
		"data":    v,
	})
}
