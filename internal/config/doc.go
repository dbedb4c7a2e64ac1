// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads, validates and saves rigchat configuration.
//
// Configuration is read from the first of these files found in
// ~/.rigchat (or $RIGCHAT_HOME):
//
//   - config.toml
//   - config.json
//   - config.yaml
//
// Missing files fall back to Default. RIGCHAT_* environment variables are
// applied on top, for example RIGCHAT_API_KEY, RIGCHAT_MODEL_ID or
// RIGCHAT_STORAGE_BACKEND. The storage passphrase is only accepted from
// RIGCHAT_STORAGE_PASSPHRASE and is never written back.
//
// # Key Types
//
//   - Config: The full configuration, one section per concern
//   - ValidationError / ValidateErrors: Field-level validation failures
//   - Preferences: Model and chat sections persisted with the sessions
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := cloud.New(cfg.ClientOptions())
//
//	// Dot-key access for "rigchat config set"
//	if err := cfg.Set("model.temperature", "0.2"); err != nil {
//	    return err
//	}
//	return cfg.Save()
//
// # Hot Reload
//
// Watch reloads the file on change. Reloaded values apply to sessions
// created afterwards; existing sessions keep their settings snapshot.
//
// # Stored Preferences
//
// SavePreferences writes the model and chat sections to the storage
// backend under PreferencesKey. When no config file exists the app restores
// them from there on startup, so /model changes survive a restart.
package config
