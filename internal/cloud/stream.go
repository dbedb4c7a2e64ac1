// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/model"
)

// =============================================================================
// STREAMING CONSTANTS
// =============================================================================

// MaxLineSize is the longest SSE line accepted. Longer lines are skipped.
const MaxLineSize = 64 * 1024

const (
	dataPrefix   = "data:"
	doneSentinel = "[DONE]"
)

// =============================================================================
// STREAMING TYPES
// =============================================================================

// StreamChunk is one JSON frame of a streamed response.
type StreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
			Role    string `json:"role,omitempty"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Usage *usage `json:"usage,omitempty"`
}

// GetContent returns the content from the first choice's delta.
func (c *StreamChunk) GetContent() string {
	if len(c.Choices) > 0 {
		return c.Choices[0].Delta.Content
	}
	return ""
}

// StreamEvent is delivered on the channel returned by Stream.
//
// Delta events carry a text fragment. Exactly one terminal event ends the
// stream: Completion is set on success, Err on failure.
type StreamEvent struct {
	Delta      string
	Completion *Completion
	Err        error
}

// Terminal reports whether this is the final event.
func (e StreamEvent) Terminal() bool {
	return e.Completion != nil || e.Err != nil
}

// =============================================================================
// STREAMING COMPLETION
// =============================================================================

// Stream starts a streaming completion. Request failures (non-2xx status,
// network errors) are returned directly. Once the response has started,
// deltas arrive on the channel in wire order, followed by one terminal
// event. The channel is then closed.
//
// A "data: [DONE]" line or end of body both finish the stream normally.
// Frames that are not valid JSON are skipped.
func (c *Client) Stream(ctx context.Context, history []model.Message, p Params) (<-chan StreamEvent, error) {
	start := time.Now()

	resp, err := c.post(ctx, c.streamHTTP, c.newChatRequest(history, p, true))
	if err != nil {
		return nil, err
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		content, tokens, err := readStream(ctx, resp.Body, events)
		if err != nil {
			if ctx.Err() != nil {
				err = ctx.Err()
			} else {
				err = &TransportError{Status: resp.StatusCode, Message: "stream interrupted", Err: err}
			}
			sendTerminal(ctx, events, StreamEvent{Err: err})
			return
		}

		completion := c.complete(content, tokens, p, time.Since(start))
		log.Debug().
			Str("model", p.modelID()).
			Int("tokens", completion.Tokens).
			Dur("duration", completion.Duration).
			Msg("stream complete")

		sendTerminal(ctx, events, StreamEvent{Completion: completion})
	}()

	return events, nil
}

// sendTerminal delivers the final event, waiting for the consumer to make
// room. It gives up only once ctx is done and the buffer is still full.
func sendTerminal(ctx context.Context, events chan<- StreamEvent, ev StreamEvent) {
	select {
	case events <- ev:
		return
	default:
	}
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}

// readStream consumes SSE lines, forwarding each delta. It returns the
// accumulated content and the provider's token count, if it sent one.
func readStream(ctx context.Context, body io.Reader, events chan<- StreamEvent) (string, int, error) {
	reader := bufio.NewReader(body)
	var full strings.Builder
	tokens := 0
	skipped := 0

	for {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}

		// ReadString keeps partial lines buffered until the newline arrives.
		line, readErr := reader.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return "", 0, readErr
		}

		data, ok := frameData(line)
		if ok {
			if data == doneSentinel {
				break
			}

			var chunk StreamChunk
			if err := json.Unmarshal([]byte(data), &chunk); err != nil {
				skipped++
				log.Debug().Err(&ParseError{Frame: data, Err: err}).Msg("skipping stream frame")
			} else {
				if chunk.Usage != nil && chunk.Usage.TotalTokens > 0 {
					tokens = chunk.Usage.TotalTokens
				}
				if delta := chunk.GetContent(); delta != "" {
					full.WriteString(delta)
					select {
					case events <- StreamEvent{Delta: delta}:
					case <-ctx.Done():
						return "", 0, ctx.Err()
					}
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
	}

	if skipped > 0 {
		log.Debug().Int("skipped", skipped).Msg("stream had malformed frames")
	}
	return full.String(), tokens, nil
}

// frameData extracts the payload of a "data:" line. Comments, other SSE
// fields, blank lines and oversized lines report ok=false.
func frameData(line string) (string, bool) {
	if len(line) > MaxLineSize {
		return "", false
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, dataPrefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(dataPrefix):]), true
}

// =============================================================================
// CALLBACK FORM
// =============================================================================

// SendStreaming streams a completion through callbacks. onChunk receives
// each delta in order. onComplete fires at most once, after the last
// onChunk, and only on success. Either callback may be nil.
func (c *Client) SendStreaming(
	ctx context.Context,
	history []model.Message,
	p Params,
	onChunk func(delta string),
	onComplete func(*Completion),
) error {
	events, err := c.Stream(ctx, history, p)
	if err != nil {
		return err
	}

	for ev := range events {
		switch {
		case ev.Err != nil:
			return ev.Err
		case ev.Completion != nil:
			if onComplete != nil {
				onComplete(ev.Completion)
			}
			return nil
		default:
			if onChunk != nil {
				onChunk(ev.Delta)
			}
		}
	}

	// Closed without a terminal event: the context was cancelled.
	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.New("stream ended without completion")
}
