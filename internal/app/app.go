// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/cloud"
	"github.com/jeranaias/rigchat/internal/config"
	"github.com/jeranaias/rigchat/internal/ingest"
	"github.com/jeranaias/rigchat/internal/model"
	"github.com/jeranaias/rigchat/internal/session"
	"github.com/jeranaias/rigchat/internal/storage"
)

// ErrNoSession is returned when an operation names a session that does
// not exist.
var ErrNoSession = errors.New("no such session")

const preferencesTimeout = 5 * time.Second

// =============================================================================
// APP
// =============================================================================

// Options wire an App. Nil dependencies are built from Config.
type Options struct {
	Config *config.Config

	// KV overrides the backend selected by Config.Storage. The App does
	// not close a KV it was given.
	KV storage.KV

	Client   *cloud.Client
	Ingestor *ingest.Ingestor
}

// App owns the session store, the completion client, the ingestor and
// the storage backend, plus the currently selected session. It is safe
// for concurrent use.
type App struct {
	mu       sync.RWMutex
	cfg      *config.Config
	client   *cloud.Client
	ingestor *ingest.Ingestor
	selected string

	store     *session.Store
	kv        storage.KV
	ownsKV    bool
	autosaver *session.Autosaver

	locksMu   sync.Mutex
	sendLocks map[string]*sendLock
}

// New opens storage, loads persisted sessions and selects the newest one,
// creating a session when none exist.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	a := &App{
		cfg:       cfg.Clone(),
		client:    opts.Client,
		ingestor:  opts.Ingestor,
		kv:        opts.KV,
		sendLocks: make(map[string]*sendLock),
	}
	if a.client == nil {
		a.client = cloud.New(cfg.ClientOptions())
	}
	if a.ingestor == nil {
		a.ingestor = ingest.New(cfg.IngestOptions())
	}

	if a.kv == nil {
		kv, err := openKV(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.kv = kv
		a.ownsKV = true
	}

	a.syncPreferences(ctx)
	cfg = a.cfg

	a.store = session.NewStore(session.Options{Locale: cfg.Chat.Locale})
	if err := a.store.Load(ctx, a.kv); err != nil {
		a.closeKV()
		return nil, err
	}

	a.autosaver = session.NewAutosaver(a.store, a.kv, cfg.AutoSaveDelay())
	a.autosaver.SetEnabled(cfg.Chat.AutoSave)

	if sessions := a.store.List(); len(sessions) > 0 {
		a.selected = sessions[0].ID
	} else {
		a.selected = a.store.CreateSession(cfg.SessionSettings()).ID
	}

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Int("sessions", a.store.Len()).
		Str("api_key", a.client.KeyFingerprint()).
		Msg("app ready")
	return a, nil
}

// openKV opens the configured backend, sealing it when encryption is on.
func openKV(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	kv, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	if !cfg.Storage.Encrypt {
		return kv, nil
	}
	sealed, err := storage.NewSealed(ctx, kv, cfg.Storage.Passphrase)
	if err != nil {
		storage.Close(kv)
		return nil, fmt.Errorf("open sealed storage: %w", err)
	}
	return sealed, nil
}

// syncPreferences reconciles the config with the snapshot in storage. A
// config file is authoritative and refreshes the snapshot; without one the
// stored snapshot restores the last model and chat settings.
func (a *App) syncPreferences(ctx context.Context) {
	if a.cfg.Path() != "" {
		if err := config.SavePreferences(ctx, a.kv, a.cfg); err != nil {
			log.Warn().Err(err).Msg("failed to store preferences")
		}
		return
	}

	p, ok, err := config.LoadPreferences(ctx, a.kv)
	if err != nil {
		log.Warn().Err(err).Msg("ignoring stored preferences")
		return
	}
	if !ok {
		return
	}
	if err := a.cfg.ApplyPreferences(p); err != nil {
		log.Warn().Err(err).Msg("ignoring invalid stored preferences")
		return
	}
	log.Debug().Str("model", a.cfg.Model.ID).Msg("restored stored preferences")
}

// Close flushes unsaved changes and releases storage.
func (a *App) Close(ctx context.Context) error {
	err := a.autosaver.Close(ctx)
	if cerr := a.closeKV(); err == nil {
		err = cerr
	}
	return err
}

func (a *App) closeKV() error {
	if !a.ownsKV {
		return nil
	}
	return storage.Close(a.kv)
}

// Save writes the session collection now, regardless of autosave.
func (a *App) Save(ctx context.Context) error {
	return a.autosaver.Flush(ctx)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// Store returns the session store.
func (a *App) Store() *session.Store { return a.store }

// Config returns a copy of the current configuration.
func (a *App) Config() *config.Config {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Clone()
}

// Client returns the current completion client.
func (a *App) Client() *cloud.Client {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.client
}

// AutosaveError reports the most recent autosave failure, if any.
func (a *App) AutosaveError() error {
	return a.autosaver.LastError()
}

// =============================================================================
// SELECTION
// =============================================================================

// SelectedID returns the selected session ID.
func (a *App) SelectedID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.selected
}

// Selected returns a copy of the selected session.
func (a *App) Selected() (model.ChatSession, bool) {
	return a.store.Get(a.SelectedID())
}

// Select makes id the selected session.
func (a *App) Select(id string) error {
	if _, ok := a.store.Get(id); !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}
	a.mu.Lock()
	a.selected = id
	a.mu.Unlock()
	return nil
}

// NewSession creates a session from the current config and selects it.
func (a *App) NewSession() model.ChatSession {
	a.mu.Lock()
	defer a.mu.Unlock()
	cs := a.store.CreateSession(a.cfg.SessionSettings())
	a.selected = cs.ID
	return cs
}

// DeleteSession removes a session. When it was selected, the store's
// suggested neighbour is selected instead, or a fresh session when none
// remain.
func (a *App) DeleteSession(id string) error {
	next, ok := a.store.DeleteSession(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoSession, id)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selected != id {
		return nil
	}
	if next == "" {
		next = a.store.CreateSession(a.cfg.SessionSettings()).ID
	}
	a.selected = next
	return nil
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// ApplyConfig swaps in a new configuration. Sessions that already exist
// keep their settings snapshot; the new defaults apply to sessions
// created afterwards and to request parameters the snapshot does not
// carry.
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	old := a.cfg
	a.cfg = cfg.Clone()
	if old.ClientOptions() != cfg.ClientOptions() {
		a.client = cloud.New(cfg.ClientOptions())
	}
	if old.IngestOptions() != cfg.IngestOptions() {
		a.ingestor = ingest.New(cfg.IngestOptions())
	}
	a.mu.Unlock()

	a.store.SetLocale(cfg.Chat.Locale)
	a.autosaver.SetEnabled(cfg.Chat.AutoSave)

	ctx, cancel := context.WithTimeout(context.Background(), preferencesTimeout)
	defer cancel()
	if err := config.SavePreferences(ctx, a.kv, cfg); err != nil {
		log.Warn().Err(err).Msg("failed to store preferences")
	}
	log.Info().Str("model", cfg.Model.ID).Msg("config applied")
}

// WatchConfig reloads the config file on change until ctx is done. It
// returns immediately when the config did not come from a file.
func (a *App) WatchConfig(ctx context.Context) error {
	path := a.Config().Path()
	if path == "" {
		return nil
	}
	return config.Watch(ctx, path, 0, a.ApplyConfig)
}
