// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingest

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/gabriel-vasile/mimetype"
)

// =============================================================================
// FILE KINDS
// =============================================================================

type kind int

const (
	kindUnsupported kind = iota
	kindText
	kindImage
)

// specialTypes are non-text/* MIME types accepted as text.
var specialTypes = map[string]bool{
	"application/json":       true,
	"application/xml":        true,
	"application/javascript": true,
	"application/x-yaml":     true,
	"application/yaml":       true,
	"application/toml":       true,
	"application/x-sh":       true,
	"application/sql":        true,
}

// sourceLanguages maps recognized source extensions to language tags.
var sourceLanguages = map[string]string{
	".py":    "python",
	".go":    "go",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".rb":    "ruby",
	".rs":    "rust",
	".java":  "java",
	".kt":    "kotlin",
	".swift": "swift",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".hpp":   "cpp",
	".cs":    "csharp",
	".php":   "php",
	".sh":    "bash",
	".sql":   "sql",
	".html":  "html",
	".htm":   "html",
	".css":   "css",
	".json":  "json",
	".xml":   "xml",
	".yaml":  "yaml",
	".yml":   "yaml",
	".toml":  "toml",
	".md":    "markdown",
}

// plainTextExtensions are text formats without a language tag.
var plainTextExtensions = map[string]bool{
	".txt": true,
	".csv": true,
	".log": true,
	".ini": true,
	".cfg": true,
	".env": true,
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// baseType strips parameters such as charset from a MIME type.
func baseType(t string) string {
	if t == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(t)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(t))
	}
	return mt
}

// needsSniff reports whether a declared type says nothing useful.
func needsSniff(t string) bool {
	return t == "" || t == "application/octet-stream"
}

// sniffType detects the MIME type from the file contents.
func sniffType(data []byte) string {
	return baseType(mimetype.Detect(data).String())
}

func classify(mimeType, name string) kind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return kindImage
	case strings.HasPrefix(mimeType, "text/"), specialTypes[mimeType]:
		return kindText
	}
	if isTextExtension(name) {
		return kindText
	}
	return kindUnsupported
}

func isTextExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" {
		return false
	}
	if _, ok := sourceLanguages[ext]; ok {
		return true
	}
	return plainTextExtensions[ext]
}

// typeFromExtension guesses a MIME type for text files sniffed as binary
// or declared without a type.
func typeFromExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t := mime.TypeByExtension(ext); t != "" {
		return baseType(t)
	}
	if isTextExtension(name) {
		return "text/plain"
	}
	return ""
}

// SourceLanguage returns the language tag for a file name, or "".
// Known extensions win; otherwise a syntax lexer is matched by file name.
func SourceLanguage(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if lang, ok := sourceLanguages[ext]; ok {
		return lang
	}
	if l := lexers.Match(filepath.Base(name)); l != nil {
		return strings.ToLower(l.Config().Name)
	}
	return ""
}

func isHTML(mimeType, name string) bool {
	if mimeType == "text/html" || mimeType == "application/xhtml+xml" {
		return true
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".html" || ext == ".htm"
}
