// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/ingest"
	"github.com/jeranaias/rigchat/internal/model"
)

// ErrEmptyMessage is returned by Send for blank text with no files.
var ErrEmptyMessage = errors.New("message is empty")

// =============================================================================
// SENDING
// =============================================================================

// Send sends text and files to the selected session. See SendTo.
func (a *App) Send(ctx context.Context, text string, files []model.AttachedFile, onChunk func(string)) (model.Message, error) {
	return a.SendTo(ctx, a.SelectedID(), text, files, onChunk)
}

// SendTo appends a user message to session id, requests a completion and
// appends the reply. onChunk receives streamed deltas, or the whole reply
// once in buffered mode, and may be nil.
//
// Sends to one session are serialized from the user append to the reply
// append, so each exchange stays contiguous and exchanges land in the
// order they acquired the session.
//
// When the request fails, a system message describing the error is
// appended and the error returned. A cancelled ctx appends nothing further.
func (a *App) SendTo(ctx context.Context, id, text string, files []model.AttachedFile, onChunk func(string)) (model.Message, error) {
	if strings.TrimSpace(text) == "" && len(files) == 0 {
		return model.Message{}, ErrEmptyMessage
	}

	unlock := a.lockSession(id)
	defer unlock()

	cs, ok := a.store.AppendUserMessage(id, text, files)
	if !ok {
		return model.Message{}, fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	a.mu.RLock()
	client := a.client
	params := a.cfg.Params(cs.Settings)
	stream := a.cfg.Model.Stream
	a.mu.RUnlock()

	start := time.Now()
	completion, err := complete(ctx, client, requestHistory(cs.Messages), params, stream, onChunk)
	if err != nil {
		if ctx.Err() != nil {
			log.Debug().Str("session", id).Msg("send abandoned")
			return model.Message{}, ctx.Err()
		}
		log.Warn().Err(err).Str("session", id).Msg("completion failed")
		a.store.AppendSystemMessage(id, "Error: "+errorText(err))
		return model.Message{}, err
	}

	updated, ok := a.store.AppendAssistantMessage(id, completion.Content, completion.Metadata, completion.Tokens, time.Since(start))
	if !ok {
		// Deleted while the request was in flight.
		return model.Message{}, fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	reply, _ := updated.LastMessage()
	return reply, nil
}

func complete(ctx context.Context, client *cloud.Client, history []model.Message, p cloud.Params, stream bool, onChunk func(string)) (*cloud.Completion, error) {
	if !stream {
		c, err := client.Send(ctx, history, p)
		if err != nil {
			return nil, err
		}
		if onChunk != nil && c.Content != "" {
			onChunk(c.Content)
		}
		return c, nil
	}

	var final *cloud.Completion
	err := client.SendStreaming(ctx, history, p, onChunk, func(c *cloud.Completion) { final = c })
	if err != nil {
		return nil, err
	}
	return final, nil
}

// requestHistory drops system notices; they describe local failures and
// are not part of the conversation.
func requestHistory(messages []model.Message) []model.Message {
	out := make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != model.RoleSystem {
			out = append(out, m)
		}
	}
	return out
}

func errorText(err error) string {
	var te *cloud.TransportError
	if errors.As(err, &te) && te.Message != "" {
		return te.Message
	}
	return err.Error()
}

// sendLock is shared by the sends waiting on one session. The entry is
// dropped when the last of them releases it.
type sendLock struct {
	mu   sync.Mutex
	refs int
}

// lockSession blocks until no other send holds id and returns the release
// function.
func (a *App) lockSession(id string) func() {
	a.locksMu.Lock()
	l, ok := a.sendLocks[id]
	if !ok {
		l = &sendLock{}
		a.sendLocks[id] = l
	}
	l.refs++
	a.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		a.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(a.sendLocks, id)
		}
		a.locksMu.Unlock()
	}
}

// pendingSendLocks reports how many sessions have sends in flight or waiting.
func (a *App) pendingSendLocks() int {
	a.locksMu.Lock()
	defer a.locksMu.Unlock()
	return len(a.sendLocks)
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attach ingests files from disk using the configured size limit.
// Accepted files keep the order of paths. Unreadable paths are rejected
// before any file is ingested.
func (a *App) Attach(ctx context.Context, paths []string) ([]model.AttachedFile, []ingest.Rejection) {
	a.mu.RLock()
	in := a.ingestor
	limit := a.cfg.MaxFileSize()
	a.mu.RUnlock()

	var (
		inputs     []ingest.FileInput
		rejections []ingest.Rejection
	)
	for _, p := range paths {
		input, err := ingest.FromPath(p)
		if err != nil {
			rejections = append(rejections, ingest.Rejection{Name: p, Err: err})
			continue
		}
		inputs = append(inputs, input)
	}

	files, rejected := in.IngestAll(ctx, inputs, limit)
	return files, append(rejections, rejected...)
}

// Models lists the provider's models, or the built-in list when the
// provider cannot be reached.
func (a *App) Models(ctx context.Context) []string {
	return a.Client().ModelsOrFallback(ctx)
}
