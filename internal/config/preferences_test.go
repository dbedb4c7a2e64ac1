// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/rigchat/internal/storage"
)

func TestPreferences_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()

	_, ok, err := LoadPreferences(ctx, kv)
	require.NoError(t, err)
	assert.False(t, ok)

	cfg := Default()
	cfg.API.Key = "csk-secret"
	cfg.Model.ID = "qwen-3-32b"
	cfg.Model.Temperature = 0.2
	cfg.Chat.Locale = "es"
	require.NoError(t, SavePreferences(ctx, kv, cfg))

	raw, err := kv.Get(ctx, PreferencesKey)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "csk-secret")

	p, ok, err := LoadPreferences(ctx, kv)
	require.NoError(t, err)
	require.True(t, ok)

	fresh := Default()
	require.NoError(t, fresh.ApplyPreferences(p))
	assert.Equal(t, "qwen-3-32b", fresh.Model.ID)
	assert.Equal(t, 0.2, fresh.Model.Temperature)
	assert.Equal(t, "es", fresh.Chat.Locale)
	assert.Empty(t, fresh.API.Key)
}

func TestApplyPreferences_EnvWins(t *testing.T) {
	t.Setenv("RIGCHAT_MODEL_ID", "llama3.1-8b")

	p := Default().Preferences()
	p.Model.ID = "qwen-3-32b"

	cfg := Default()
	require.NoError(t, cfg.ApplyPreferences(p))
	assert.Equal(t, "llama3.1-8b", cfg.Model.ID)
}

func TestApplyPreferences_InvalidLeavesConfig(t *testing.T) {
	p := Default().Preferences()
	p.Model.Temperature = 9

	cfg := Default()
	before := cfg.Model
	err := cfg.ApplyPreferences(p)
	require.Error(t, err)
	assert.Equal(t, before, cfg.Model)
}

func TestLoadPreferences_Corrupt(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryKV()
	require.NoError(t, kv.Set(ctx, PreferencesKey, []byte("{not json")))

	_, ok, err := LoadPreferences(ctx, kv)
	assert.Error(t, err)
	assert.False(t, ok)
}
