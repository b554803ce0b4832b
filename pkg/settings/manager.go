// Package settings keeps the user-facing detector settings: persisted as a
// single JSON record, merged over defaults on load, and broadcast to
// subscribers on every change so running components pick updates up without
// polling.
package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-pkgz/lgr"

	"github.com/slopscope/slopscope/pkg/domain"
	"github.com/slopscope/slopscope/pkg/repository"
)

// Store persists the settings record
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Manager owns the in-memory settings snapshot and its persistence.
// Reads never touch the store, the snapshot is loaded once and kept current
// by Save.
type Manager struct {
	store     Store
	persisted bool

	mu      sync.RWMutex
	current domain.Settings

	subMu sync.Mutex
	subs  []chan domain.Settings
}

// NewManager loads the persisted settings merged over defaults. A missing or
// corrupt record falls back to defaults; corruption is logged, not fatal.
func NewManager(ctx context.Context, store Store) (*Manager, error) {
	raw, err := store.Get(ctx, repository.SettingsKey)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	merged, err := domain.MergeSettings([]byte(raw))
	if err != nil {
		lgr.Printf("[WARN] corrupt settings record, using defaults: %v", err)
	}

	return &Manager{store: store, current: merged, persisted: raw != ""}, nil
}

// SeedModel sets the selected model on a fresh install only. Once a settings
// record has been persisted the user's selection wins over configuration.
func (m *Manager) SeedModel(ctx context.Context, model string) error {
	if model == "" || m.persisted {
		return nil
	}
	m.mu.Lock()
	m.current.SelectedModel = model
	m.mu.Unlock()
	m.persisted = true

	if _, err := m.Save(ctx, nil); err != nil {
		return fmt.Errorf("seed model: %w", err)
	}
	return nil
}

// Current returns the settings snapshot
func (m *Manager) Current() domain.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Save merges a partial update over the current snapshot, persists the
// result and notifies subscribers. Unknown fields in the update are ignored.
func (m *Manager) Save(ctx context.Context, partial []byte) (domain.Settings, error) {
	m.mu.Lock()

	// overlay the partial update on the current record, not on defaults
	merged := m.current
	if len(partial) > 0 {
		var err error
		if merged, err = mergeOver(merged, partial); err != nil {
			m.mu.Unlock()
			return domain.Settings{}, fmt.Errorf("merge settings update: %w", err)
		}
	}

	toStore, err := json.Marshal(merged)
	if err != nil {
		m.mu.Unlock()
		return domain.Settings{}, fmt.Errorf("marshal settings: %w", err)
	}
	if err := m.store.Set(ctx, repository.SettingsKey, string(toStore)); err != nil {
		m.mu.Unlock()
		return domain.Settings{}, fmt.Errorf("persist settings: %w", err)
	}

	m.current = merged
	m.mu.Unlock()

	m.broadcast(merged)
	return merged, nil
}

// Reset restores defaults, persists them and notifies subscribers
func (m *Manager) Reset(ctx context.Context) (domain.Settings, error) {
	defaults := domain.DefaultSettings()

	toStore, err := json.Marshal(defaults)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("marshal default settings: %w", err)
	}

	m.mu.Lock()
	if err := m.store.Set(ctx, repository.SettingsKey, string(toStore)); err != nil {
		m.mu.Unlock()
		return domain.Settings{}, fmt.Errorf("persist default settings: %w", err)
	}
	m.current = defaults
	m.mu.Unlock()

	m.broadcast(defaults)
	return defaults, nil
}

// Subscribe returns a channel receiving every settings change after the
// call. The channel is buffered; a subscriber that stops draining loses
// updates instead of blocking Save.
func (m *Manager) Subscribe() <-chan domain.Settings {
	ch := make(chan domain.Settings, 8)
	m.subMu.Lock()
	m.subs = append(m.subs, ch)
	m.subMu.Unlock()
	return ch
}

func (m *Manager) broadcast(s domain.Settings) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			lgr.Printf("[WARN] settings subscriber not draining, update dropped")
		}
	}
}

// mergeOver applies a partial JSON update on top of a full settings record
func mergeOver(base domain.Settings, partial []byte) (domain.Settings, error) {
	baseJSON, err := json.Marshal(base)
	if err != nil {
		return base, err
	}
	var combined map[string]json.RawMessage
	if err := json.Unmarshal(baseJSON, &combined); err != nil {
		return base, err
	}
	var update map[string]json.RawMessage
	if err := json.Unmarshal(partial, &update); err != nil {
		return base, err
	}
	for k, v := range update {
		combined[k] = v
	}
	combinedJSON, err := json.Marshal(combined)
	if err != nil {
		return base, err
	}
	return domain.MergeSettings(combinedJSON)
}
