// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/export"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/search"
	"github.com/jeranaias/rigchat/internal/storage"
)

// replyFunc computes the assistant reply from the request.
type replyFunc func(req cloud.ChatRequest) string

// completionServer answers both streamed and buffered requests.
func completionServer(t *testing.T, reply replyFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cloud.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		content := reply(req)
		body, _ := json.Marshal(content)

		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"role":"assistant","content":%s}}],"usage":{"total_tokens":10}}`, body)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%s}}]}\n\n", body)
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T, serverURL string, mutate func(*config.Config)) (*App, storage.KV) {
	t.Helper()
	cfg := config.Default()
	cfg.Chat.AutoSaveDelayMs = 0
	if mutate != nil {
		mutate(cfg)
	}
	kv := storage.NewMemoryKV()
	a, err := New(context.Background(), Options{
		Config: cfg,
		KV:     kv,
		Client: cloud.New(cloud.Options{APIKey: "csk-test", BaseURL: serverURL}),
	})
	require.NoError(t, err)
	t.Cleanup(func() { a.Close(context.Background()) })
	return a, kv
}

func echo(text string) replyFunc {
	return func(cloud.ChatRequest) string { return text }
}

// =============================================================================
// LIFECYCLE TESTS
// =============================================================================

func TestNew_CreatesFirstSession(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:0", nil)

	require.Equal(t, 1, a.Store().Len())
	cs, ok := a.Selected()
	require.True(t, ok)
	assert.Equal(t, "New chat", cs.Title)
	require.NotNil(t, cs.Settings)
	assert.Equal(t, model.DefaultModel, cs.Settings.Model)
}

func TestNew_LoadsPersistedSessions(t *testing.T) {
	server := completionServer(t, echo("hi there"))
	a, kv := newTestApp(t, server.URL, nil)

	_, err := a.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)
	id := a.SelectedID()
	require.NoError(t, a.Close(context.Background()))

	b, err := New(context.Background(), Options{Config: config.Default(), KV: kv})
	require.NoError(t, err)
	defer b.Close(context.Background())

	assert.Equal(t, id, b.SelectedID())
	cs, _ := b.Selected()
	require.Len(t, cs.Messages, 2)
	assert.Equal(t, "hi there", cs.Messages[1].Content)
}

func TestNew_CorruptStorage(t *testing.T) {
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(context.Background(), "chat-sessions", []byte("{not json")))

	_, err := New(context.Background(), Options{KV: kv})
	var ie *export.ImportError
	assert.True(t, errors.As(err, &ie))
}

// =============================================================================
// SEND TESTS
// =============================================================================

func TestSend_Streaming(t *testing.T) {
	server := completionServer(t, echo("Hello"))
	a, _ := newTestApp(t, server.URL, nil)

	var chunks []string
	reply, err := a.Send(context.Background(), "Write a haiku about Go channels", nil, func(d string) {
		chunks = append(chunks, d)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Hello"}, chunks)
	assert.Equal(t, model.RoleAssistant, reply.Role)
	assert.Equal(t, "Hello", reply.Content)
	require.NotNil(t, reply.Metadata)

	cs, _ := a.Selected()
	require.Len(t, cs.Messages, 2)
	assert.Equal(t, model.RoleUser, cs.Messages[0].Role)
	assert.Equal(t, "Write a haiku about Go channels", cs.Title)
	assert.Equal(t, 2, cs.Statistics.TotalMessages)
}

func TestSend_Buffered(t *testing.T) {
	server := completionServer(t, func(req cloud.ChatRequest) string {
		assert.False(t, req.Stream)
		return "buffered reply"
	})
	a, _ := newTestApp(t, server.URL, func(c *config.Config) { c.Model.Stream = false })

	var chunks []string
	reply, err := a.Send(context.Background(), "hi", nil, func(d string) { chunks = append(chunks, d) })
	require.NoError(t, err)
	assert.Equal(t, "buffered reply", reply.Content)
	assert.Equal(t, 10, reply.Tokens)
	assert.Equal(t, []string{"buffered reply"}, chunks)
}

func TestSend_FailureAppendsSystemMessage(t *testing.T) {
	var mu sync.Mutex
	fail := true
	var lastRoles []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req cloud.ChatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		lastRoles = nil
		for _, m := range req.Messages {
			lastRoles = append(lastRoles, m.Role)
		}
		if fail {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"error":{"message":"Wrong API Key"}}`)
			return
		}
		io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`)
	}))
	defer server.Close()

	a, _ := newTestApp(t, server.URL, func(c *config.Config) { c.Model.Stream = false })

	_, err := a.Send(context.Background(), "first", nil, nil)
	assert.ErrorIs(t, err, cloud.ErrAuthFailed)

	cs, _ := a.Selected()
	require.Len(t, cs.Messages, 2)
	assert.Equal(t, model.RoleSystem, cs.Messages[1].Role)
	assert.Equal(t, "Error: Wrong API Key", cs.Messages[1].Content)

	mu.Lock()
	fail = false
	mu.Unlock()

	_, err = a.Send(context.Background(), "second", nil, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"user", "user"}, lastRoles)
}

func TestSend_CancelledAppendsNothingMore(t *testing.T) {
	server := completionServer(t, echo("never"))
	a, _ := newTestApp(t, server.URL, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.Send(ctx, "hello", nil, nil)
	assert.ErrorIs(t, err, context.Canceled)

	cs, _ := a.Selected()
	require.Len(t, cs.Messages, 1)
	assert.Equal(t, model.RoleUser, cs.Messages[0].Role)
}

func TestSend_Rejects(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:0", nil)

	_, err := a.Send(context.Background(), "   ", nil, nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = a.SendTo(context.Background(), "session_missing", "hi", nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSend_ConcurrentSameSessionStaysPaired(t *testing.T) {
	// The reply is the number of messages the server saw, so each reply
	// shows which history its request carried.
	server := completionServer(t, func(req cloud.ChatRequest) string {
		time.Sleep(30 * time.Millisecond)
		return fmt.Sprint(len(req.Messages))
	})
	a, _ := newTestApp(t, server.URL, nil)
	id := a.SelectedID()

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, text := range []string{"one", "two"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, err := a.SendTo(context.Background(), id, text, nil, nil)
			errs <- err
		}(text)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	cs, _ := a.Store().Get(id)
	require.Len(t, cs.Messages, 4)
	roles := []model.Role{cs.Messages[0].Role, cs.Messages[1].Role, cs.Messages[2].Role, cs.Messages[3].Role}
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}, roles)
	assert.Equal(t, "1", cs.Messages[1].Content)
	assert.Equal(t, "3", cs.Messages[3].Content)
	assert.ElementsMatch(t, []string{"one", "two"}, []string{cs.Messages[0].Content, cs.Messages[2].Content})
	assert.Zero(t, a.pendingSendLocks())
}

func TestSend_LocksReleasedAfterDelete(t *testing.T) {
	server := completionServer(t, echo("ok"))
	a, _ := newTestApp(t, server.URL, nil)

	for i := 0; i < 3; i++ {
		id := a.NewSession().ID
		_, err := a.SendTo(context.Background(), id, "hi", nil, nil)
		require.NoError(t, err)
		require.NoError(t, a.DeleteSession(id))
	}
	_, err := a.SendTo(context.Background(), "session_missing", "hi", nil, nil)
	assert.ErrorIs(t, err, ErrNoSession)

	assert.Zero(t, a.pendingSendLocks())
}

func TestSend_DifferentSessionsRunIndependently(t *testing.T) {
	server := completionServer(t, echo("ok"))
	a, _ := newTestApp(t, server.URL, nil)
	first := a.SelectedID()
	second := a.NewSession().ID

	var wg sync.WaitGroup
	for _, id := range []string{first, second} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := a.SendTo(context.Background(), id, "hi", nil, nil)
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	for _, id := range []string{first, second} {
		cs, _ := a.Store().Get(id)
		assert.Len(t, cs.Messages, 2)
	}
}

// =============================================================================
// SELECTION TESTS
// =============================================================================

func TestDeleteSession_SelectsNeighbour(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:0", nil)
	oldest := a.SelectedID()
	middle := a.NewSession().ID
	newest := a.NewSession().ID

	require.NoError(t, a.Select(middle))
	require.NoError(t, a.DeleteSession(middle))
	assert.Equal(t, oldest, a.SelectedID())

	require.NoError(t, a.DeleteSession(newest))
	assert.Equal(t, oldest, a.SelectedID())

	require.NoError(t, a.DeleteSession(oldest))
	assert.Equal(t, 1, a.Store().Len())
	assert.NotEqual(t, oldest, a.SelectedID())
	_, ok := a.Selected()
	assert.True(t, ok)

	assert.ErrorIs(t, a.DeleteSession("session_missing"), ErrNoSession)
	assert.ErrorIs(t, a.Select("session_missing"), ErrNoSession)
}

func TestApplyConfig_NewSessionsOnly(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:0", nil)
	before, _ := a.Selected()

	cfg := a.Config()
	cfg.Model.ID = "qwen-3-32b"
	cfg.Chat.Locale = "es"
	a.ApplyConfig(cfg)

	unchanged, _ := a.Store().Get(before.ID)
	assert.Equal(t, model.DefaultModel, unchanged.Settings.Model)

	fresh := a.NewSession()
	assert.Equal(t, "qwen-3-32b", fresh.Settings.Model)
	assert.Equal(t, "Nuevo chat", fresh.Title)
	assert.Equal(t, "qwen-3-32b", a.Config().Model.ID)
}

func TestApplyConfig_PersistsPreferences(t *testing.T) {
	a, kv := newTestApp(t, "http://127.0.0.1:0", nil)

	cfg := a.Config()
	cfg.Model.ID = "qwen-3-32b"
	cfg.Chat.Locale = "es"
	a.ApplyConfig(cfg)
	require.NoError(t, a.Close(context.Background()))

	b, err := New(context.Background(), Options{Config: config.Default(), KV: kv})
	require.NoError(t, err)
	defer b.Close(context.Background())

	assert.Equal(t, "qwen-3-32b", b.Config().Model.ID)
	assert.Equal(t, "Nuevo chat", b.NewSession().Title)
}

func TestSessions_HidesArchived(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:0", nil)
	archived := a.SelectedID()
	a.NewSession()
	_, ok := a.Store().ToggleArchive(archived)
	require.True(t, ok)

	assert.Len(t, a.Sessions(false), 1)
	assert.Len(t, a.Sessions(true), 2)
}

// =============================================================================
// VIEW AND IMPORT TESTS
// =============================================================================

func TestViews(t *testing.T) {
	server := completionServer(t, echo("Goroutines are cheap."))
	a, _ := newTestApp(t, server.URL, nil)

	_, err := a.Send(context.Background(), "Tell me about goroutines", nil, nil)
	require.NoError(t, err)

	assert.Len(t, a.Search(search.Spec{Query: "GOROUTINES"}), 1)
	assert.Len(t, a.SearchMessages("cheap"), 1)

	stats := a.Analytics()
	assert.Equal(t, 1, stats.TotalSessions)
	assert.Equal(t, 2, stats.TotalMessages)
}

func TestImportExport(t *testing.T) {
	server := completionServer(t, echo("reply"))
	a, _ := newTestApp(t, server.URL, nil)
	_, err := a.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)

	data, err := a.ExportAll()
	require.NoError(t, err)

	b, _ := newTestApp(t, server.URL, nil)
	ids, err := b.Import(data)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, 2, b.Store().Len())

	imported, ok := b.Store().Get(ids[0])
	require.True(t, ok)
	assert.Len(t, imported.Messages, 2)

	_, err = b.Import([]byte(`{"id":"x"}`))
	var ie *export.ImportError
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 2, b.Store().Len())
}

func TestExportSession(t *testing.T) {
	server := completionServer(t, echo("reply"))
	a, _ := newTestApp(t, server.URL, nil)
	_, err := a.Send(context.Background(), "hello", nil, nil)
	require.NoError(t, err)

	dir := t.TempDir()
	path, err := a.ExportSession(a.SelectedID(), "md", dir)
	require.NoError(t, err)
	assert.Equal(t, dir, filepath.Dir(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "reply")

	_, err = a.ExportSession(a.SelectedID(), "pdf", dir)
	assert.Error(t, err)
}

func TestAttach(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:0", nil)
	dir := t.TempDir()
	src := filepath.Join(dir, "main.py")
	require.NoError(t, os.WriteFile(src, []byte("print('hi')\n"), 0600))

	files, rejected := a.Attach(context.Background(), []string{src, filepath.Join(dir, "missing.txt")})
	require.Len(t, files, 1)
	assert.Equal(t, "main.py", files[0].Name)
	require.NotNil(t, files[0].Metadata)
	assert.Equal(t, "python", files[0].Metadata.Language)
	require.Len(t, rejected, 1)
}
