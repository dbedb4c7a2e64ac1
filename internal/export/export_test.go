// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/model"
)

func fixedTime(min int) time.Time {
	return time.Date(2025, 3, 14, 9, min, 0, 0, time.UTC)
}

func sampleSessions() []model.ChatSession {
	user := model.Message{
		ID:        "msg_1",
		Role:      model.RoleUser,
		Timestamp: fixedTime(1),
		Content:   "Explain this *code*",
		Files: []model.AttachedFile{{
			ID: "file_1", Name: "main.go", Type: "text/x-go", Size: 2048,
			Content:  "package main\n",
			Metadata: &model.FileMetadata{Language: "go", Encoding: "utf-8"},
		}},
		IsEdited:        true,
		OriginalContent: "Explain this",
	}
	assistant := model.Message{
		ID:        "msg_2",
		Role:      model.RoleAssistant,
		Timestamp: fixedTime(2),
		Content:   "Here:\n\n```go\nfunc main() {}\n```\n\nUse `go run`.",
		Metadata: &model.MessageMetadata{
			Model: "llama3.1-8b", Temperature: 0.7, MaxTokens: 1024, Cost: 0.01,
			Language: "en", Sentiment: model.SentimentNeutral, Topics: []string{"programming"},
		},
		Reactions:        []model.Reaction{{Emoji: "👍", Count: 2, Users: []string{"local", "other"}}},
		Tokens:           120,
		ProcessingTimeMs: 1500,
	}

	first := model.ChatSession{
		ID:         "session_a",
		Title:      "Go code review",
		Messages:   []model.Message{user, assistant},
		CreatedAt:  fixedTime(0),
		UpdatedAt:  fixedTime(2),
		Tags:       []string{"go", "review"},
		Category:   "work",
		IsFavorite: true,
		Settings:   &model.SessionSettings{Model: "llama3.1-8b", Temperature: 0.7, MaxTokens: 1024, AutoSave: true},
	}
	first.Statistics = model.RecomputeStatistics(first.Messages)

	second := model.ChatSession{
		ID:         "session_b",
		Title:      "Empty",
		Messages:   []model.Message{},
		CreatedAt:  fixedTime(5),
		UpdatedAt:  fixedTime(5),
		IsArchived: true,
	}
	return []model.ChatSession{first, second}
}

// =============================================================================
// IMPORT / EXPORT
// =============================================================================

func TestSessions_RoundTrip(t *testing.T) {
	sessions := sampleSessions()

	data, err := Sessions(sessions)
	require.NoError(t, err)

	parsed, err := ParseSessions(data)
	require.NoError(t, err)
	assert.Equal(t, sessions, parsed)
}

func TestSessions_NilIsEmptyArray(t *testing.T) {
	data, err := Sessions(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))

	parsed, err := ParseSessions(data)
	require.NoError(t, err)
	assert.Empty(t, parsed)
}

func TestParseSessions_Errors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		index   int
		reason  string
	}{
		{"empty", "  ", -1, "empty payload"},
		{"object", `{"id":"x"}`, -1, "expected a JSON array"},
		{"malformed", `[{"id":"x"`, -1, "malformed JSON"},
		{"wrong type", `[{"id":"x","messages":"nope"}]`, -1, "wrong type"},
		{"missing id", `[{"id":"a"},{"title":"b"}]`, 1, "missing session id"},
		{"bad role", `[{"id":"a","messages":[{"id":"m","role":"robot"}]}]`, 0, "unknown role"},
		{"message id", `[{"id":"a","messages":[{"role":"user"}]}]`, 0, "has no id"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := ParseSessions([]byte(tc.payload))
			assert.Nil(t, parsed)

			var ie *ImportError
			require.True(t, errors.As(err, &ie))
			assert.Equal(t, tc.index, ie.Index)
			assert.Contains(t, ie.Error(), tc.reason)
		})
	}
}

// =============================================================================
// DOCUMENT EXPORTERS
// =============================================================================

func TestMarkdownExporter(t *testing.T) {
	s := sampleSessions()[0]

	out, err := NewMarkdownExporter(nil).Export(&s)
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\ntitle: Go code review\n"))
	assert.Contains(t, md, "model: llama3.1-8b\n")
	assert.Contains(t, md, "# Go code review\n")
	assert.Contains(t, md, "### You <sub>09:01:00</sub>")
	assert.Contains(t, md, "Explain this *code*")
	assert.Contains(t, md, "<sub>(edited)</sub>")
	assert.Contains(t, md, "- Attachment: `main.go` (text/x-go, 2.0 kB)")
	assert.Contains(t, md, "👍 2")
	assert.Contains(t, md, "Tokens: 120 | Time: 1.50s | Cost: $0.010000")
}

func TestMarkdownExporter_WithoutMetadata(t *testing.T) {
	s := sampleSessions()[0]

	out, err := NewMarkdownExporter(&Options{}).Export(&s)
	require.NoError(t, err)

	md := string(out)
	assert.True(t, strings.HasPrefix(md, "# Go code review"))
	assert.Contains(t, md, "### Assistant\n")
	assert.NotContains(t, md, "Tokens:")
}

func TestHTMLExporter(t *testing.T) {
	s := sampleSessions()[0]
	s.Title = "<script>alert(1)</script>"

	out, err := NewHTMLExporter(nil).Export(&s)
	require.NoError(t, err)
	page := string(out)

	assert.NotContains(t, page, "<script>alert(1)</script>")
	assert.Contains(t, page, "&lt;script&gt;")
	assert.Contains(t, page, `<div class="code-lang">go</div>`)
	assert.Contains(t, page, `<code class="inline-code">go run</code>`)
	assert.Contains(t, page, "Explain this *code*")
	assert.Contains(t, page, `class="message assistant-message"`)
}

func TestExporters_RejectEmptySession(t *testing.T) {
	s := sampleSessions()[1]

	_, err := NewMarkdownExporter(nil).Export(&s)
	assert.ErrorIs(t, err, ErrEmptySession)
	_, err = NewHTMLExporter(nil).Export(&s)
	assert.ErrorIs(t, err, ErrEmptySession)

	// JSON keeps empty sessions; it is the lossless format.
	_, err = NewJSONExporter().Export(&s)
	assert.NoError(t, err)
}

func TestForFormat(t *testing.T) {
	for format, ext := range map[string]string{"md": ".md", "Markdown": ".md", ".html": ".html", "json": ".json"} {
		exp, err := ForFormat(format, nil)
		require.NoError(t, err, format)
		assert.Equal(t, ext, exp.FileExtension())
	}

	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestExportToFile(t *testing.T) {
	dir := t.TempDir()
	s := sampleSessions()[0]
	s.Title = "Go: code/review?"

	path, err := ExportToFile(&s, NewJSONExporter(), &Options{OutputDir: dir})
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "chat_Go-_code-review-_"))
	assert.Equal(t, ".json", filepath.Ext(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	parsed, err := ParseSessions(data)
	require.NoError(t, err)
	require.Len(t, parsed, 1)
	assert.Equal(t, s.ID, parsed[0].ID)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"":                      "session",
		"hello world":           "hello_world",
		`a/b\c:d*e?f"g<h>i|j`:   "a-b-c-d-e-f-g-h-i-j",
		strings.Repeat("x", 80): strings.Repeat("x", 47),
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), in)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "500ms", formatDuration(500))
	assert.Equal(t, "1.50s", formatDuration(1500))
	assert.Equal(t, "2m 5s", formatDuration(125000))
}
