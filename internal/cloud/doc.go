// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud implements the chat-completions client.
//
// The client speaks the OpenAI-compatible wire format used by Cerebras and
// similar providers: bearer auth, POST /chat/completions for buffered and
// server-sent-event streaming replies, and GET /models for model listing.
// Completed replies are annotated with a cost estimate and heuristic
// language, sentiment and topic metadata from the analysis package.
//
// # Key Types
//
//   - Client: completion client with rate limiting and a model cache
//   - Params: per-request sampling parameters and system prompt
//   - Completion: final content, token count and metadata of a reply
//   - StreamEvent: one delta or the terminal event of a streamed reply
//   - TransportError: non-2xx status or network failure
//
// # Usage
//
//	client := cloud.New(cloud.Options{APIKey: key})
//	err := client.SendStreaming(ctx, session.Messages, params,
//	    func(delta string) { fmt.Print(delta) },
//	    func(c *cloud.Completion) { store.AppendAssistantMessage(id, c.Content, c.Metadata, c.Duration) },
//	)
//
// The client never retries. Callers decide what to do with a failure.
// API keys are never logged; KeyFingerprint gives a stable identifier.
package cloud
