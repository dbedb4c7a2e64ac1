// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/app"
	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/storage"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func completionServer(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cloud.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		body, _ := json.Marshal(reply)
		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%s}}],"usage":{"total_tokens":7}}`, body)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", body)
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

type testEnv struct {
	*Env
	out *bytes.Buffer
	err *bytes.Buffer
}

func newTestEnv(t *testing.T, reply string, mutate func(*config.Config)) *testEnv {
	t.Helper()
	server := completionServer(t, reply)

	cfg := config.Default()
	cfg.Chat.AutoSaveDelayMs = 0
	if mutate != nil {
		mutate(cfg)
	}
	a, err := app.New(context.Background(), app.Options{
		Config: cfg,
		KV:     storage.NewMemoryKV(),
		Client: cloud.New(cloud.Options{APIKey: "csk-test", BaseURL: server.URL}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })

	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	return &testEnv{
		Env: &Env{App: a, Out: out, Err: errOut, In: strings.NewReader("")},
		out: out,
		err: errOut,
	}
}

func (e *testEnv) exec(t *testing.T, r *REPL, line string) {
	t.Helper()
	quit, err := r.Execute(context.Background(), line)
	require.NoError(t, err, line)
	require.False(t, quit, line)
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func TestArgParser(t *testing.T) {
	tests := []struct {
		name      string
		args      []string
		bools     []string
		wantSub   string
		wantRest  []string
		wantFlags map[string][]string
		wantBools []string
	}{
		{
			name:    "subcommand only",
			args:    []string{"show"},
			wantSub: "show",
		},
		{
			name:      "space and equals values",
			args:      []string{"export", "--format", "html", "--dir=out"},
			wantSub:   "export",
			wantFlags: map[string][]string{"format": {"html"}, "dir": {"out"}},
		},
		{
			name:      "known bool does not consume",
			args:      []string{"--json", "sessions"},
			bools:     []string{"json"},
			wantSub:   "sessions",
			wantBools: []string{"json"},
		},
		{
			name:      "repeated flag",
			args:      []string{"ask", "-f", "a.go", "-f", "b.go", "why"},
			wantSub:   "ask",
			wantRest:  []string{"why"},
			wantFlags: map[string][]string{"f": {"a.go", "b.go"}},
		},
		{
			name:     "dash is positional",
			args:     []string{"import", "-"},
			wantSub:  "import",
			wantRest: []string{"-"},
		},
		{
			name:     "double dash ends flags",
			args:     []string{"config", "set", "--", "model.temperature", "-1"},
			wantSub:  "config",
			wantRest: []string{"set", "model.temperature", "-1"},
		},
		{
			name:      "trailing flag is bool",
			args:      []string{"sessions", "--all"},
			wantSub:   "sessions",
			wantBools: []string{"all"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewArgParser(tt.args, tt.bools...)
			assert.Equal(t, tt.wantSub, p.Subcommand())
			if tt.wantRest != nil {
				assert.Equal(t, tt.wantRest, p.PositionalFrom(1))
			}
			for name, want := range tt.wantFlags {
				assert.Equal(t, want, p.Flags(name), name)
				assert.Equal(t, want[len(want)-1], p.Flag(name), name)
			}
			for _, name := range tt.wantBools {
				assert.True(t, p.BoolFlag(name), name)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		check func(t *testing.T, a Args)
	}{
		{
			name: "no arguments starts the repl",
			argv: nil,
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdREPL, a.Command)
			},
		},
		{
			name: "ask with files and model",
			argv: []string{"ask", "-f", "main.go", "--file", "go.mod", "-m", "qwen-3-32b", "explain", "this"},
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdAsk, a.Command)
				assert.Equal(t, []string{"go.mod", "main.go"}, sortedCopy(a.Files))
				assert.Equal(t, "qwen-3-32b", a.Model)
				assert.Equal(t, "explain this", a.Text())
			},
		},
		{
			name: "global json before command",
			argv: []string{"--json", "sessions", "--all"},
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdSessions, a.Command)
				assert.True(t, a.JSON)
				assert.True(t, a.All)
			},
		},
		{
			name: "search keeps filter words",
			argv: []string{"search", "tag:go", "from:2025-01-01", "--messages", "race"},
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdSearch, a.Command)
				assert.True(t, a.Messages)
				assert.Equal(t, "tag:go from:2025-01-01 race", a.Text())
			},
		},
		{
			name: "export one session",
			argv: []string{"export", "--session", "2", "--format", "html", "--dir", "/tmp/x"},
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdExport, a.Command)
				assert.Equal(t, 2, a.Session)
				assert.Equal(t, "html", a.Format)
				assert.Equal(t, "/tmp/x", a.Dir)
			},
		},
		{
			name: "alias",
			argv: []string{"ls"},
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdSessions, a.Command)
			},
		},
		{
			name: "version flag",
			argv: []string{"--version"},
			check: func(t *testing.T, a Args) {
				assert.Equal(t, CmdVersion, a.Command)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Parse(tt.argv)
			require.NoError(t, err)
			tt.check(t, args)
		})
	}
}

func sortedCopy(in []string) []string {
	out := append([]string(nil), in...)
	sort.Strings(out)
	return out
}

func TestParse_Errors(t *testing.T) {
	for _, argv := range [][]string{
		{"frobnicate"},
		{"export", "--session", "0"},
		{"export", "--session", "two"},
	} {
		_, err := Parse(argv)
		var ue *UsageError
		assert.ErrorAs(t, err, &ue, "%v", argv)
	}
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		b, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, b, s)
	}
	for _, s := range []string{"false", "no", "N", "0", "off"} {
		b, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, b, s)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

// =============================================================================
// TERMINAL
// =============================================================================

func TestWrapText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width int
		want  string
	}{
		{"fits", "short line", 20, "short line"},
		{"wraps at words", "one two three four", 9, "one two\nthree\nfour"},
		{"keeps newlines", "a b\nc d", 10, "a b\nc d"},
		{"wide runes", "日本語 日本語", 8, "日本語\n日本語"},
		{"long word", "abcdefghij k", 5, "abcdefghij\nk"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WrapText(tt.text, tt.width))
		})
	}
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"usage", &UsageError{Reason: "bad"}, ExitUsageError},
		{"missing session", wrap("export", "", fmt.Errorf("%w: x", app.ErrNoSession)), ExitNotFoundError},
		{"network", &cloud.TransportError{Err: errors.New("dial tcp: refused")}, ExitNetworkError},
		{"auth", &cloud.TransportError{Status: http.StatusUnauthorized}, ExitAuthError},
		{"no key", cloud.ErrNotConfigured, ExitAuthError},
		{"unknown model", &cloud.TransportError{Status: http.StatusNotFound}, ExitNotFoundError},
		{"server error", &cloud.TransportError{Status: http.StatusBadGateway}, ExitGeneralError},
		{"config", config.ValidateErrors{{Field: "model.temperature", Message: "must be at most 2"}}, ExitConfigError},
		{"unknown key", fmt.Errorf("%w: nope", config.ErrUnknownKey), ExitConfigError},
		{"interrupted", wrap("ask", "", context.Canceled), ExitInterrupted},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestDisplayError_JSON(t *testing.T) {
	var buf bytes.Buffer
	DisplayError(&buf, &UsageError{Reason: "missing file"}, true)

	var got map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, "missing file", got["error"])
	assert.Equal(t, float64(ExitUsageError), got["code"])
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestHandleAsk(t *testing.T) {
	env := newTestEnv(t, "Paris.", nil)
	env.Args = Args{Command: CmdAsk, Rest: []string{"capital", "of", "France?"}}
	before := env.App.Store().Len()

	require.NoError(t, Run(context.Background(), env.Env))

	assert.Contains(t, env.out.String(), "Paris.")
	assert.Equal(t, before+1, env.App.Store().Len())
	s, ok := env.App.Selected()
	require.True(t, ok)
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "capital of France?", s.Messages[0].Content)
}

func TestHandleAsk_JSONWithFile(t *testing.T) {
	env := newTestEnv(t, "It prints hello.", func(c *config.Config) { c.Model.Stream = false })
	path := filepath.Join(t.TempDir(), "hello.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))
	missing := filepath.Join(t.TempDir(), "missing.txt")

	env.Args = Args{Command: CmdAsk, JSON: true, Files: []string{path, missing}, Rest: []string{"what", "does", "it", "do"}}
	require.NoError(t, Run(context.Background(), env.Env))

	var got struct {
		Data struct {
			Content string `json:"content"`
			Tokens  int    `json:"tokens"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &got))
	assert.Equal(t, "It prints hello.", got.Data.Content)
	assert.Equal(t, 7, got.Data.Tokens)
	assert.Contains(t, env.err.String(), "missing.txt")

	s, _ := env.App.Selected()
	require.Len(t, s.Messages[0].Files, 1)
	assert.Equal(t, "hello.go", s.Messages[0].Files[0].Name)
}

func TestHandleAsk_RequiresText(t *testing.T) {
	env := newTestEnv(t, "", nil)
	env.Args = Args{Command: CmdAsk}
	err := Run(context.Background(), env.Env)
	assert.Equal(t, ExitUsageError, ExitCode(err))
}

func TestHandleExportImport(t *testing.T) {
	env := newTestEnv(t, "pong", nil)
	_, err := env.App.Send(context.Background(), "ping", nil, nil)
	require.NoError(t, err)

	file := filepath.Join(t.TempDir(), "sessions.json")
	env.Args = Args{Command: CmdExport, Rest: []string{file}}
	require.NoError(t, Run(context.Background(), env.Env))

	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "pong")

	before := env.App.Store().Len()
	env.Args = Args{Command: CmdImport, Rest: []string{"-"}}
	env.In = bytes.NewReader(data)
	require.NoError(t, Run(context.Background(), env.Env))
	assert.Equal(t, 2*before, env.App.Store().Len())
	assert.Contains(t, env.out.String(), "1 sessions")
}

func TestHandleImport_Invalid(t *testing.T) {
	env := newTestEnv(t, "", nil)
	before := env.App.Store().Len()
	env.Args = Args{Command: CmdImport, Rest: []string{"-"}}
	env.In = strings.NewReader(`{"not":"an array"}`)

	err := Run(context.Background(), env.Env)
	require.Error(t, err)
	assert.Equal(t, ExitUsageError, ExitCode(err))
	assert.Equal(t, before, env.App.Store().Len())
}

func TestHandleExport_OneSession(t *testing.T) {
	env := newTestEnv(t, "pong", nil)
	_, err := env.App.Send(context.Background(), "ping", nil, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	env.Args = Args{Command: CmdExport, Session: 1, Format: "md", Dir: dir}
	require.NoError(t, Run(context.Background(), env.Env))

	matches, err := filepath.Glob(filepath.Join(dir, "*.md"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	env.Args = Args{Command: CmdExport, Session: 9, Dir: dir}
	assert.Equal(t, ExitNotFoundError, ExitCode(Run(context.Background(), env.Env)))
}

func TestHandleSessionsAndSearch(t *testing.T) {
	env := newTestEnv(t, "use a mutex", nil)
	_, err := env.App.Send(context.Background(), "how do I fix a data race", nil, nil)
	require.NoError(t, err)
	env.App.Store().SetTags(env.App.SelectedID(), []string{"go"})

	env.Args = Args{Command: CmdSessions, JSON: true}
	require.NoError(t, Run(context.Background(), env.Env))
	var listed struct {
		Data []sessionSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, []string{"go"}, listed.Data[0].Tags)

	env.out.Reset()
	env.Args = Args{Command: CmdSearch, Messages: true, Rest: []string{"mutex"}}
	require.NoError(t, Run(context.Background(), env.Env))
	assert.Contains(t, env.out.String(), "use a mutex")

	env.out.Reset()
	env.Args = Args{Command: CmdSearch, JSON: true, Rest: []string{"tag:rust"}}
	require.NoError(t, Run(context.Background(), env.Env))
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &listed))
	assert.Empty(t, listed.Data)

	env.Args = Args{Command: CmdSearch, Rest: []string{"role:robot"}}
	assert.Equal(t, ExitUsageError, ExitCode(Run(context.Background(), env.Env)))
}

func TestHandleStats_JSON(t *testing.T) {
	env := newTestEnv(t, "fine", nil)
	_, err := env.App.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)

	env.Args = Args{Command: CmdStats, JSON: true}
	require.NoError(t, Run(context.Background(), env.Env))

	var got struct {
		Data struct {
			TotalSessions int `json:"total_sessions"`
			TotalMessages int `json:"total_messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(env.out.Bytes(), &got))
	assert.Equal(t, 1, got.Data.TotalSessions)
	assert.Equal(t, 2, got.Data.TotalMessages)
}

func TestHandleConfig(t *testing.T) {
	env := newTestEnv(t, "", func(c *config.Config) { c.API.Key = "csk-secret" })
	env.ConfigPath = filepath.Join(t.TempDir(), "config.toml")

	env.Args = Args{Command: CmdConfig, Rest: []string{"set", "model.temperature", "0.3"}}
	require.NoError(t, Run(context.Background(), env.Env))
	assert.InDelta(t, 0.3, env.App.Config().Model.Temperature, 1e-9)

	data, err := os.ReadFile(env.ConfigPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "temperature = 0.3")

	env.out.Reset()
	env.Args = Args{Command: CmdConfig, Rest: []string{"get", "api.key"}}
	require.NoError(t, Run(context.Background(), env.Env))
	assert.Equal(t, "********\n", env.out.String())

	env.Args = Args{Command: CmdConfig, Rest: []string{"set", "model.temperature", "9"}}
	err = Run(context.Background(), env.Env)
	assert.Equal(t, ExitConfigError, ExitCode(err))
	assert.InDelta(t, 0.3, env.App.Config().Model.Temperature, 1e-9)

	env.Args = Args{Command: CmdConfig, Rest: []string{"get", "model.nope"}}
	assert.Equal(t, ExitConfigError, ExitCode(Run(context.Background(), env.Env)))
}

// =============================================================================
// REPL
// =============================================================================

func TestREPL_SendAndEdit(t *testing.T) {
	env := newTestEnv(t, "hi there", nil)
	r := NewREPL(env.Env)

	env.exec(t, r, "hello")
	assert.Contains(t, env.out.String(), "hi there")

	env.exec(t, r, "/edit 1 hello again")
	env.exec(t, r, "/react 2 👍")

	s, _ := env.App.Selected()
	require.Len(t, s.Messages, 2)
	assert.Equal(t, "hello again", s.Messages[0].Content)
	assert.True(t, s.Messages[0].IsEdited)
	require.Len(t, s.Messages[1].Reactions, 1)
	assert.Equal(t, "👍", s.Messages[1].Reactions[0].Emoji)

	env.out.Reset()
	env.exec(t, r, "/history")
	assert.Contains(t, env.out.String(), "hello again")
	assert.Contains(t, env.out.String(), "hi there")
}

func TestREPL_SessionCommands(t *testing.T) {
	env := newTestEnv(t, "ok", nil)
	r := NewREPL(env.Env)
	first := env.App.SelectedID()

	env.exec(t, r, "/rename Planning notes")
	env.exec(t, r, "/tag go, ai #go")
	env.exec(t, r, "/category work")
	env.exec(t, r, "/fav")

	s, _ := env.App.Selected()
	assert.Equal(t, "Planning notes", s.Title)
	assert.Equal(t, []string{"go", "ai"}, s.Tags)
	assert.Equal(t, "work", s.Category)
	assert.True(t, s.IsFavorite)

	env.exec(t, r, "/new")
	second := env.App.SelectedID()
	assert.NotEqual(t, first, second)

	env.out.Reset()
	env.exec(t, r, "/list")
	assert.Contains(t, env.out.String(), "Planning notes")

	env.exec(t, r, "/switch 2")
	assert.Equal(t, first, env.App.SelectedID())

	env.exec(t, r, "/archive")
	s, _ = env.App.Selected()
	assert.True(t, s.IsArchived)

	env.exec(t, r, "/delete")
	assert.Equal(t, second, env.App.SelectedID())
	_, ok := env.App.Store().Get(first)
	assert.False(t, ok)
}

func TestREPL_AttachQueuesForNextMessage(t *testing.T) {
	env := newTestEnv(t, "looks fine", nil)
	r := NewREPL(env.Env)

	path := filepath.Join(t.TempDir(), "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("# Notes\n"), 0644))

	env.exec(t, r, "/attach "+path)
	require.Len(t, r.pending, 1)

	env.exec(t, r, "review this")
	assert.Empty(t, r.pending)

	s, _ := env.App.Selected()
	require.Len(t, s.Messages[0].Files, 1)
	assert.Equal(t, "notes.md", s.Messages[0].Files[0].Name)
}

func TestREPL_Errors(t *testing.T) {
	env := newTestEnv(t, "ok", nil)
	r := NewREPL(env.Env)

	tests := []struct {
		line string
		code int
	}{
		{"/bogus", ExitUsageError},
		{"/switch 0", ExitUsageError},
		{"/switch 5", ExitNotFoundError},
		{"/edit 3 text", ExitNotFoundError},
		{"/edit x text", ExitUsageError},
		{"/rename", ExitUsageError},
		{"/export", ExitUsageError},
	}
	for _, tt := range tests {
		quit, err := r.Execute(context.Background(), tt.line)
		assert.False(t, quit, tt.line)
		assert.Equal(t, tt.code, ExitCode(err), tt.line)
	}
}

func TestREPL_Quit(t *testing.T) {
	env := newTestEnv(t, "", nil)
	r := NewREPL(env.Env)

	for _, line := range []string{"/quit", "/exit", "exit", "QUIT"} {
		quit, err := r.Execute(context.Background(), line)
		require.NoError(t, err)
		assert.True(t, quit, line)
	}
	quit, err := r.Execute(context.Background(), "   ")
	require.NoError(t, err)
	assert.False(t, quit)
}

func TestREPL_InterruptWithoutSend(t *testing.T) {
	env := newTestEnv(t, "", nil)
	assert.False(t, NewREPL(env.Env).Interrupt())
}
