// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jeranaias/rigchat/internal/analysis"
	"github.com/jeranaias/rigchat/internal/model"
)

// Configuration constants for the completion API.
const (
	// DefaultBaseURL is the Cerebras inference endpoint.
	DefaultBaseURL = "https://api.cerebras.ai/v1"

	// DefaultTimeout bounds buffered requests. Streams are bounded by ctx.
	DefaultTimeout = 60 * time.Second

	// DefaultModelsTTL is how long a model listing is reused.
	DefaultModelsTTL = 10 * time.Minute

	// MaxResponseSize is the maximum allowed buffered response body size.
	MaxResponseSize = 10 * 1024 * 1024
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// ChatMessage is one message in provider format.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /chat/completions.
type ChatRequest struct {
	Model            string        `json:"model"`
	Messages         []ChatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
	Stream           bool          `json:"stream"`
}

// usage is the token accounting block of a response.
type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a buffered completion response.
type ChatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      ChatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage usage `json:"usage"`
}

// GetContent returns the content of the first choice, or empty string if none.
func (r *ChatResponse) GetContent() string {
	if len(r.Choices) > 0 {
		return r.Choices[0].Message.Content
	}
	return ""
}

type modelsResponse struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

// =============================================================================
// REQUEST PARAMETERS AND RESULT
// =============================================================================

// Params are the per-request settings, usually the global configuration
// overlaid with the session's settings snapshot.
type Params struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	TopP             float64
	FrequencyPenalty float64
	PresencePenalty  float64
	SystemPrompt     string

	// MaxHistoryLength keeps only the most recent messages. Zero keeps all.
	MaxHistoryLength int
}

func (p Params) modelID() string {
	if p.Model == "" {
		return model.DefaultModel
	}
	return p.Model
}

// Completion is a finished reply.
type Completion struct {
	Content  string
	Tokens   int
	Metadata *model.MessageMetadata
	Duration time.Duration
}

// =============================================================================
// CLIENT
// =============================================================================

// Options configure a Client.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration

	// RequestsPerMinute paces outgoing requests. Zero disables pacing.
	RequestsPerMinute int

	ModelsTTL time.Duration

	// Analyzer annotates completed replies. Defaults to analysis.Default.
	Analyzer analysis.Analyzer

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to an OpenAI-compatible chat-completions API.
// It is safe for concurrent use.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	streamHTTP *http.Client
	limiter    *rate.Limiter
	analyzer   analysis.Analyzer
	models     *modelsCache
}

// New creates a client. A missing API key is allowed; requests then fail
// with ErrNotConfigured.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ModelsTTL <= 0 {
		opts.ModelsTTL = DefaultModelsTTL
	}
	if opts.Analyzer == nil {
		opts.Analyzer = analysis.Default
	}

	base := opts.HTTPClient
	if base == nil {
		base = &http.Client{Transport: http.DefaultTransport}
	}
	buffered := *base
	buffered.Timeout = opts.Timeout
	streaming := *base
	streaming.Timeout = 0

	limit := rate.Inf
	burst := 1
	if opts.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(opts.RequestsPerMinute))
		burst = opts.RequestsPerMinute
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    strings.TrimSuffix(opts.BaseURL, "/"),
		httpClient: &buffered,
		streamHTTP: &streaming,
		limiter:    rate.NewLimiter(limit, burst),
		analyzer:   opts.Analyzer,
		models:     newModelsCache(opts.ModelsTTL),
	}
}

// IsConfigured returns true if the client has an API key configured.
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// KeyFingerprint returns a short SHA-256 fingerprint of the API key for
// logs and display. The key itself is never exposed.
func (c *Client) KeyFingerprint() string {
	if c.apiKey == "" {
		return "none"
	}
	h := sha256.Sum256([]byte(c.apiKey))
	return hex.EncodeToString(h[:4])
}

// =============================================================================
// MESSAGE ASSEMBLY
// =============================================================================

// BuildMessages converts session history into provider messages.
// The system prompt, when set, comes first. Attachments are rendered inline
// after the message text between BEGIN/END FILE markers.
func BuildMessages(history []model.Message, p Params) []ChatMessage {
	if p.MaxHistoryLength > 0 && len(history) > p.MaxHistoryLength {
		history = history[len(history)-p.MaxHistoryLength:]
	}

	out := make([]ChatMessage, 0, len(history)+1)
	if strings.TrimSpace(p.SystemPrompt) != "" {
		out = append(out, ChatMessage{Role: string(model.RoleSystem), Content: p.SystemPrompt})
	}
	for _, m := range history {
		out = append(out, ChatMessage{Role: string(m.Role), Content: renderContent(m)})
	}
	return out
}

func renderContent(m model.Message) string {
	if len(m.Files) == 0 {
		return m.Content
	}
	var b strings.Builder
	b.WriteString(m.Content)
	for _, f := range m.Files {
		fmt.Fprintf(&b, "\n\n--- BEGIN FILE: %s (%s, %s) ---\n", f.Name, f.Type, humanize.Bytes(uint64(f.Size)))
		b.WriteString(f.Text())
		fmt.Fprintf(&b, "\n--- END FILE: %s ---", f.Name)
	}
	return b.String()
}

// =============================================================================
// BUFFERED COMPLETION
// =============================================================================

// Send performs one buffered completion request.
func (c *Client) Send(ctx context.Context, history []model.Message, p Params) (*Completion, error) {
	start := time.Now()

	req := c.newChatRequest(history, p, false)
	resp, err := c.post(ctx, c.httpClient, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "failed to parse response", Err: err}
	}

	content := chatResp.GetContent()
	completion := c.complete(content, chatResp.Usage.TotalTokens, p, time.Since(start))

	log.Debug().
		Str("model", p.modelID()).
		Int("tokens", completion.Tokens).
		Dur("duration", completion.Duration).
		Msg("completion received")
	return completion, nil
}

// complete builds the final result with cost and heuristic metadata.
func (c *Client) complete(content string, tokens int, p Params, d time.Duration) *Completion {
	if tokens <= 0 {
		tokens = model.EstimateTokens(content)
	}
	res := c.analyzer.Analyze(content)
	return &Completion{
		Content: content,
		Tokens:  tokens,
		Metadata: &model.MessageMetadata{
			Model:       p.modelID(),
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			TopP:        p.TopP,
			Cost:        analysis.EstimateCost(p.modelID(), tokens),
			Language:    res.Language,
			Sentiment:   res.Sentiment,
			Topics:      res.Topics,
		},
		Duration: d,
	}
}

func (c *Client) newChatRequest(history []model.Message, p Params, stream bool) ChatRequest {
	return ChatRequest{
		Model:            p.modelID(),
		Messages:         BuildMessages(history, p),
		Temperature:      p.Temperature,
		MaxTokens:        p.MaxTokens,
		TopP:             p.TopP,
		FrequencyPenalty: p.FrequencyPenalty,
		PresencePenalty:  p.PresencePenalty,
		Stream:           stream,
	}
}

// =============================================================================
// HTTP PLUMBING
// =============================================================================

// post sends a chat request and returns the response for 2xx statuses.
// Anything else is converted into a *TransportError and the body closed.
func (c *Client) post(ctx context.Context, hc *http.Client, reqBody ChatRequest) (*http.Response, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Message: "rate limiter", Err: err}
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)
	if reqBody.Stream {
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("Cache-Control", "no-cache")
	}

	log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Str("model", reqBody.Model).
		Bool("stream", reqBody.Stream).
		Int("messages", len(reqBody.Messages)).
		Str("key", c.KeyFingerprint()).
		Msg("api request")

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, &TransportError{Message: "request failed", Err: err}
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("api response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := readResponse(resp)
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "rigchat/1.0")
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("response exceeded maximum size of %d bytes", MaxResponseSize)
	}
	return body, nil
}
