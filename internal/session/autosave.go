// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jeranaias/rigchat/internal/storage"
)

// DefaultAutosaveDelay batches bursts of changes, such as an import
// followed by a rename, into one write.
const DefaultAutosaveDelay = 500 * time.Millisecond

// Autosaver writes a Store to a KV after it changes. Writes are debounced
// by Delay; a zero Delay saves synchronously inside the change listener.
type Autosaver struct {
	store *Store
	kv    storage.KV
	delay time.Duration

	mu          sync.Mutex
	enabled     bool
	timer       *time.Timer
	lastSave    time.Time
	lastErr     error
	unsubscribe func()

	// onSave is called after each attempt; tests use it to synchronize.
	onSave func(error)
}

// NewAutosaver subscribes to store. Call Close to stop it.
func NewAutosaver(store *Store, kv storage.KV, delay time.Duration) *Autosaver {
	a := &Autosaver{
		store:   store,
		kv:      kv,
		delay:   delay,
		enabled: true,
	}
	a.unsubscribe = store.Subscribe(func(Event) { a.schedule() })
	return a
}

// SetEnabled turns saving on or off. Turning it on flushes pending
// changes.
func (a *Autosaver) SetEnabled(enabled bool) {
	a.mu.Lock()
	wasEnabled := a.enabled
	a.enabled = enabled
	if !enabled && a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if enabled && !wasEnabled {
		a.schedule()
	}
}

// Enabled reports whether saving is on.
func (a *Autosaver) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

// LastError returns the error from the most recent save attempt.
func (a *Autosaver) LastError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}

// LastSave returns when the store was last written successfully.
func (a *Autosaver) LastSave() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastSave
}

func (a *Autosaver) schedule() {
	a.mu.Lock()
	if !a.enabled || !a.store.IsDirty() {
		a.mu.Unlock()
		return
	}
	if a.delay <= 0 {
		a.mu.Unlock()
		a.save(context.Background())
		return
	}
	if a.timer == nil {
		a.timer = time.AfterFunc(a.delay, func() {
			a.mu.Lock()
			a.timer = nil
			a.mu.Unlock()
			a.save(context.Background())
		})
	}
	a.mu.Unlock()
}

func (a *Autosaver) save(ctx context.Context) error {
	err := a.store.Save(ctx, a.kv)
	if err != nil {
		log.Error().Err(err).Msg("autosave failed")
	}

	a.mu.Lock()
	a.lastErr = err
	if err == nil {
		a.lastSave = time.Now()
	}
	onSave := a.onSave
	a.mu.Unlock()

	if onSave != nil {
		onSave(err)
	}
	return err
}

// Flush saves immediately if there are unsaved changes, regardless of
// whether autosave is enabled.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if !a.store.IsDirty() {
		return nil
	}
	return a.save(ctx)
}

// Close stops listening and flushes pending changes.
func (a *Autosaver) Close(ctx context.Context) error {
	a.unsubscribe()
	return a.Flush(ctx)
}
