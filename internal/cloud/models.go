// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/model"
)

// modelsCache holds the last successful model listing for ttl.
type modelsCache struct {
	mu       sync.RWMutex
	ids      []string
	cachedAt time.Time
	ttl      time.Duration
	now      func() time.Time
}

func newModelsCache(ttl time.Duration) *modelsCache {
	return &modelsCache{ttl: ttl, now: time.Now}
}

func (c *modelsCache) get() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.ids == nil || c.now().Sub(c.cachedAt) > c.ttl {
		return nil
	}
	return append([]string(nil), c.ids...)
}

func (c *modelsCache) set(ids []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append([]string(nil), ids...)
	c.cachedAt = c.now()
}

// ListModels returns the model IDs offered by the provider. A listing is
// reused until the cache TTL expires.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if ids := c.models.get(); ids != nil {
		return ids, nil
	}
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Message: "rate limiter", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	body, err := readResponse(resp)
	if err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "failed to read response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var modelsResp modelsResponse
	if err := json.Unmarshal(body, &modelsResp); err != nil {
		return nil, &TransportError{Status: resp.StatusCode, Message: "failed to parse models response", Err: err}
	}

	ids := make([]string, 0, len(modelsResp.Data))
	for _, m := range modelsResp.Data {
		if m.ID != "" {
			ids = append(ids, m.ID)
		}
	}
	c.models.set(ids)
	return ids, nil
}

// ModelsOrFallback returns the provider's models, or the built-in list when
// listing fails or comes back empty.
func (c *Client) ModelsOrFallback(ctx context.Context) []string {
	ids, err := c.ListModels(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("model listing failed, using built-in list")
		return model.FallbackModelIDs()
	}
	if len(ids) == 0 {
		return model.FallbackModelIDs()
	}
	return ids
}
