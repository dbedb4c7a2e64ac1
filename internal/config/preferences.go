// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/rigchat/internal/storage"
)

// PreferencesKey is the storage key the preference snapshot lives under.
const PreferencesKey = "chat-config"

// Preferences is the part of the config kept next to the sessions in
// storage. Credentials and storage settings are never part of it.
type Preferences struct {
	Version string      `json:"version"`
	Model   ModelConfig `json:"model"`
	Chat    ChatConfig  `json:"chat"`
}

// Preferences returns the snapshot of c that is persisted to storage.
func (c *Config) Preferences() Preferences {
	return Preferences{
		Version: CurrentVersion,
		Model:   c.Model,
		Chat:    c.Chat,
	}
}

// ApplyPreferences replaces the model and chat sections with p. Environment
// overrides still win. On validation failure c is left unchanged.
func (c *Config) ApplyPreferences(p Preferences) error {
	next := c.Clone()
	next.Model = p.Model
	next.Chat = p.Chat
	if err := next.finish(); err != nil {
		return err
	}
	c.Model = next.Model
	c.Chat = next.Chat
	return nil
}

// LoadPreferences reads the snapshot from kv. The bool is false when none
// has been saved yet.
func LoadPreferences(ctx context.Context, kv storage.KV) (Preferences, bool, error) {
	data, err := kv.Get(ctx, PreferencesKey)
	if errors.Is(err, storage.ErrNotFound) {
		return Preferences{}, false, nil
	}
	if err != nil {
		return Preferences{}, false, fmt.Errorf("load preferences: %w", err)
	}

	var p Preferences
	if err := json.Unmarshal(data, &p); err != nil {
		return Preferences{}, false, fmt.Errorf("decode preferences: %w", err)
	}
	return p, true, nil
}

// SavePreferences writes the snapshot of c to kv.
func SavePreferences(ctx context.Context, kv storage.KV, c *Config) error {
	data, err := json.Marshal(c.Preferences())
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	if err := kv.Set(ctx, PreferencesKey, data); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
