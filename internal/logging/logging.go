// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

// =============================================================================
// OPTIONS
// =============================================================================

const (
	// RotationTime starts a new log file once a day.
	RotationTime = 24 * time.Hour

	// DefaultMaxAge keeps a week of rotated files.
	DefaultMaxAge = 7 * 24 * time.Hour

	// rotationSuffix is appended to File by rotatelogs.
	rotationSuffix = ".%Y%m%d"
)

// Options configure Setup.
type Options struct {
	// Level is a zerolog level name. Empty means "info".
	Level string

	// File routes output to a daily rotated file instead of Out.
	File   string
	MaxAge time.Duration

	// Out defaults to os.Stderr.
	Out io.Writer

	// Console forces human-readable output. When false, a terminal Out
	// still gets console output and anything else gets JSON.
	Console bool
}

// =============================================================================
// SETUP
// =============================================================================

// Setup configures the global zerolog logger. The returned closer releases
// the log file, if one was opened, and is never nil.
func Setup(opts Options) (io.Closer, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nopCloser{}, err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	if opts.File != "" {
		w, err := openRotating(opts.File, opts.MaxAge)
		if err != nil {
			return nopCloser{}, err
		}
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
		return w, nil
	}

	out := opts.Out
	if out == nil {
		out = os.Stderr
	}
	if opts.Console || isTerminal(out) {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return nopCloser{}, nil
}

// ParseLevel accepts zerolog level names case-insensitively. Empty means info.
func ParseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// DefaultFile returns the log path used by the interactive REPL.
func DefaultFile(dir string) string {
	return filepath.Join(dir, "logs", "rigchat.log")
}

func openRotating(path string, maxAge time.Duration) (*rotatelogs.RotateLogs, error) {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	w, err := rotatelogs.New(
		path+rotationSuffix,
		rotatelogs.WithMaxAge(maxAge),
		rotatelogs.WithRotationTime(RotationTime),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return w, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
