// Package settings holds the engine's tunables and persists them in a durable
// store.
package settings

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/pschleger/workflow-canvas-sub000/logging"
	"github.com/pschleger/workflow-canvas-sub000/storage"
)

const (
	// StorageKey is where the record lives in the durable store.
	StorageKey = "app-config"

	DefaultMaxDepth = 50
)

type Settings struct {
	History History `json:"history"`
	UI      UI      `json:"ui"`
}

type History struct {
	MaxDepth int `json:"maxDepth"`
}

// UI carries editor-only preferences the engine itself ignores.
type UI struct {
	DarkMode bool `json:"darkMode"`
}

// Patch is a partial update. Nil sections and fields keep their current value.
type Patch struct {
	History *HistoryPatch `json:"history,omitempty"`
	UI      *UIPatch      `json:"ui,omitempty"`
}

type HistoryPatch struct {
	MaxDepth *int `json:"maxDepth,omitempty"`
}

type UIPatch struct {
	DarkMode *bool `json:"darkMode,omitempty"`
}

// Defaults returns the factory settings.
func Defaults() Settings {
	return Settings{
		History: History{MaxDepth: DefaultMaxDepth},
		UI:      UI{DarkMode: false},
	}
}

// Provider serves the current settings and writes every change through to
// the store. Storage failures are logged and swallowed: the in-memory value
// stays authoritative.
type Provider struct {
	mu      sync.RWMutex
	store   storage.Store
	logger  logging.Logger
	current Settings
}

type Option func(*Provider)

func WithLogger(logger logging.Logger) Option {
	return func(p *Provider) {
		p.logger = logging.Normalize(logger)
	}
}

// NewProvider builds a provider holding defaults. Call Init to load the
// persisted record. A nil store keeps settings in memory only.
func NewProvider(store storage.Store, opts ...Option) *Provider {
	p := &Provider{
		store:   store,
		logger:  logging.Nop(),
		current: Defaults(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Init loads the persisted record. A missing or corrupt record silently
// yields defaults.
func (p *Provider) Init(ctx context.Context) {
	loaded := p.load(ctx)
	p.mu.Lock()
	p.current = loaded
	p.mu.Unlock()
}

// Get returns a copy of the current settings.
func (p *Provider) Get() Settings {
	if p == nil {
		return Defaults()
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current
}

// MaxDepth is the bound on retained timeline entries.
func (p *Provider) MaxDepth() int {
	return p.Get().History.MaxDepth
}

// Update merges patch into the current settings section by section and
// persists the result.
func (p *Provider) Update(ctx context.Context, patch Patch) Settings {
	p.mu.Lock()
	next := sanitize(apply(p.current, patch))
	p.current = next
	p.mu.Unlock()

	p.persist(ctx, next)
	return next
}

// ResetToDefaults restores and persists the factory settings.
func (p *Provider) ResetToDefaults(ctx context.Context) Settings {
	defaults := Defaults()
	p.mu.Lock()
	p.current = defaults
	p.mu.Unlock()

	p.persist(ctx, defaults)
	return defaults
}

func apply(base Settings, patch Patch) Settings {
	out := base
	if patch.History != nil {
		if patch.History.MaxDepth != nil {
			out.History.MaxDepth = *patch.History.MaxDepth
		}
	}
	if patch.UI != nil {
		if patch.UI.DarkMode != nil {
			out.UI.DarkMode = *patch.UI.DarkMode
		}
	}
	return out
}

func sanitize(s Settings) Settings {
	if s.History.MaxDepth <= 0 {
		s.History.MaxDepth = DefaultMaxDepth
	}
	return s
}

func (p *Provider) load(ctx context.Context) Settings {
	if p.store == nil {
		return Defaults()
	}
	raw, ok, err := p.store.Get(ctx, StorageKey)
	if err != nil {
		p.logger.Warn("settings: load failed, using defaults: %v", err)
		return Defaults()
	}
	if !ok {
		return Defaults()
	}

	// start from defaults so sections missing from the record keep them
	loaded := Defaults()
	if err := json.Unmarshal(raw, &loaded); err != nil {
		p.logger.Warn("settings: corrupt record, using defaults: %v", err)
		return Defaults()
	}
	return sanitize(loaded)
}

func (p *Provider) persist(ctx context.Context, s Settings) {
	if p.store == nil {
		return
	}
	payload, err := json.Marshal(s)
	if err != nil {
		p.logger.Error("settings: encode failed: %v", err)
		return
	}
	if err := p.store.Set(ctx, StorageKey, payload); err != nil {
		logging.WithError(logging.WithFields(p.logger, map[string]any{"key": StorageKey}), err).Warn("settings: persist failed, keeping in-memory value: %v", err)
	}
}
