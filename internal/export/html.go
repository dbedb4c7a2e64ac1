// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter renders a session as a standalone HTML page. Fenced code
// blocks are syntax highlighted with inline styles so the page needs no
// external assets.
type HTMLExporter struct {
	options   *Options
	style     *chroma.Style
	formatter *chromahtml.Formatter
}

// CodeStyle is the chroma style used for code blocks.
const CodeStyle = "github-dark"

func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &HTMLExporter{
		options:   opts,
		style:     styles.Get(CodeStyle),
		formatter: chromahtml.New(chromahtml.WithClasses(false), chromahtml.TabWidth(4)),
	}
}

func (e *HTMLExporter) Export(s *model.ChatSession) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if len(s.Messages) == 0 {
		return nil, ErrEmptySession
	}

	var sb strings.Builder
	title := html.EscapeString(s.Title)

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"rigchat\">\n")
	fmt.Fprintf(&sb, "    <meta name=\"date\" content=\"%s\">\n", s.CreatedAt.Format(time.RFC3339))
	sb.WriteString(pageCSS)
	sb.WriteString("</head>\n<body>\n    <div class=\"container\">\n")

	if e.options.IncludeMetadata {
		sb.WriteString("        <header class=\"header\">\n")
		fmt.Fprintf(&sb, "            <h1>%s</h1>\n", title)
		sb.WriteString("            <div class=\"metadata\">\n")
		if m := sessionModel(s); m != "" {
			fmt.Fprintf(&sb, "                <span><strong>Model:</strong> %s</span>\n", html.EscapeString(m))
		}
		fmt.Fprintf(&sb, "                <span><strong>Created:</strong> %s</span>\n", formatTimestamp(s.CreatedAt))
		fmt.Fprintf(&sb, "                <span><strong>Messages:</strong> %d</span>\n", len(s.Messages))
		if s.Statistics != nil && s.Statistics.TotalTokens > 0 {
			fmt.Fprintf(&sb, "                <span><strong>Tokens:</strong> %d</span>\n", s.Statistics.TotalTokens)
		}
		sb.WriteString("            </div>\n        </header>\n")
	}

	sb.WriteString("        <main class=\"conversation\">\n")
	for i := range s.Messages {
		e.renderMessage(&sb, &s.Messages[i])
	}
	sb.WriteString("        </main>\n")

	sb.WriteString("    </div>\n</body>\n</html>\n")
	return []byte(sb.String()), nil
}

func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

// =============================================================================
// RENDERING
// =============================================================================

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg *model.Message) {
	fmt.Fprintf(sb, "            <div class=\"message %s-message\">\n", msg.Role)
	sb.WriteString("                <div class=\"message-header\">\n")
	fmt.Fprintf(sb, "                    <span class=\"role-label\">%s</span>\n", msg.Role.DisplayName())
	if e.options.IncludeTimestamps {
		fmt.Fprintf(sb, "                    <span class=\"timestamp\">%s</span>\n", formatShortTimestamp(msg.Timestamp))
	}
	sb.WriteString("                </div>\n")

	sb.WriteString("                <div class=\"message-content\">\n")
	sb.WriteString(e.formatContent(msg.Content))
	sb.WriteString("\n                </div>\n")

	for _, f := range msg.Files {
		if f.IsImage() && f.Thumbnail != "" {
			fmt.Fprintf(sb, "                <img class=\"thumb\" src=\"%s\" alt=\"%s\">\n",
				html.EscapeString(f.Thumbnail), html.EscapeString(f.Name))
		} else {
			fmt.Fprintf(sb, "                <div class=\"attachment\">%s</div>\n", html.EscapeString(f.Name))
		}
	}

	if msg.Role == model.RoleAssistant && e.options.IncludeMetadata {
		if stats := messageStats(msg); len(stats) > 0 {
			fmt.Fprintf(sb, "                <div class=\"message-stats\">%s</div>\n",
				html.EscapeString(strings.Join(stats, " | ")))
		}
	}

	sb.WriteString("            </div>\n")
}

var (
	codeFence  = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\n(.*?)```")
	inlineCode = regexp.MustCompile("`([^`\n]+)`")
)

// formatContent escapes prose into paragraphs and highlights fenced code.
func (e *HTMLExporter) formatContent(content string) string {
	var out strings.Builder
	last := 0
	for _, m := range codeFence.FindAllStringSubmatchIndex(content, -1) {
		out.WriteString(paragraphs(content[last:m[0]]))
		lang := content[m[2]:m[3]]
		code := content[m[4]:m[5]]
		out.WriteString(e.highlight(lang, code))
		last = m[1]
	}
	out.WriteString(paragraphs(content[last:]))
	return out.String()
}

// highlight renders a code block, falling back to an escaped <pre> when
// chroma fails.
func (e *HTMLExporter) highlight(lang, code string) string {
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	label := ""
	if lang != "" {
		label = fmt.Sprintf("<div class=\"code-lang\">%s</div>", html.EscapeString(lang))
	}

	var buf strings.Builder
	it, err := lexer.Tokenise(nil, code)
	if err == nil {
		err = e.formatter.Format(&buf, e.style, it)
	}
	if err != nil {
		return fmt.Sprintf("<div class=\"code-block\">%s<pre><code>%s</code></pre></div>\n",
			label, html.EscapeString(code))
	}
	return fmt.Sprintf("<div class=\"code-block\">%s%s</div>\n", label, buf.String())
}

// paragraphs turns blank-line separated text into <p> elements.
func paragraphs(text string) string {
	var out strings.Builder
	for _, block := range strings.Split(strings.TrimSpace(text), "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		escaped := html.EscapeString(block)
		escaped = inlineCode.ReplaceAllString(escaped, "<code class=\"inline-code\">$1</code>")
		escaped = strings.ReplaceAll(escaped, "\n", "<br>\n")
		fmt.Fprintf(&out, "<p>%s</p>\n", escaped)
	}
	return out.String()
}

const pageCSS = `    <style>
        body { margin: 0; font-family: -apple-system, "Segoe UI", Roboto, sans-serif; background: #0d1117; color: #e6edf3; line-height: 1.6; }
        .container { max-width: 900px; margin: 0 auto; padding: 2rem 1rem; }
        .header { border-bottom: 1px solid #30363d; margin-bottom: 1.5rem; }
        .header h1 { margin: 0 0 0.5rem; font-size: 1.6rem; }
        .metadata { display: flex; flex-wrap: wrap; gap: 1rem; font-size: 0.85rem; color: #8b949e; padding-bottom: 1rem; }
        .message { border: 1px solid #30363d; border-radius: 8px; padding: 0.75rem 1rem; margin-bottom: 1rem; }
        .user-message { background: #161b22; }
        .assistant-message { background: #0d1117; }
        .system-message { background: #2d1b1b; border-color: #6e2b2b; }
        .message-header { display: flex; justify-content: space-between; font-size: 0.8rem; color: #8b949e; }
        .role-label { font-weight: 600; }
        .code-block { margin: 0.75rem 0; border-radius: 6px; overflow-x: auto; }
        .code-block pre { margin: 0; padding: 0.75rem; }
        .code-lang { font-size: 0.75rem; color: #8b949e; padding: 0.25rem 0.75rem; background: #161b22; }
        .inline-code { background: #161b22; padding: 0.1rem 0.3rem; border-radius: 4px; }
        .thumb { max-width: 150px; max-height: 150px; border-radius: 4px; margin-top: 0.5rem; }
        .attachment { font-size: 0.85rem; color: #8b949e; }
        .message-stats { font-size: 0.75rem; color: #8b949e; margin-top: 0.5rem; }
    </style>
`
