package character

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// Manager is a read-through cache in front of a Store.
type Manager struct {
	store Store

	mu    sync.RWMutex
	cache map[string]*domain.Character
}

// NewManager creates a manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{
		store: store,
		cache: make(map[string]*domain.Character),
	}
}

// Load returns the named character or nil. Store failures are logged and
// reported as not found.
func (m *Manager) Load(ctx context.Context, name string) *domain.Character {
	m.mu.RLock()
	c, ok := m.cache[name]
	m.mu.RUnlock()
	if ok {
		return c
	}
	return m.Reload(ctx, name)
}

// Reload bypasses the cache and refreshes it from the store.
func (m *Manager) Reload(ctx context.Context, name string) *domain.Character {
	c, err := m.store.Load(ctx, name)
	if err != nil {
		slog.Warn("failed to load character", "name", name, "err", err)
		return nil
	}
	if c == nil {
		return nil
	}

	m.mu.Lock()
	m.cache[name] = c
	m.mu.Unlock()
	return c
}

// Save persists c and caches it on success.
func (m *Manager) Save(ctx context.Context, c *domain.Character) error {
	if err := ValidateName(c.Name); err != nil {
		return err
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	if err := m.store.Save(ctx, c); err != nil {
		return fmt.Errorf("failed to save character %s: %w", c.Name, err)
	}

	m.mu.Lock()
	m.cache[c.Name] = c
	m.mu.Unlock()
	return nil
}

// Update stamps UpdatedAt and saves c.
func (m *Manager) Update(ctx context.Context, c *domain.Character) error {
	c.UpdatedAt = time.Now()
	return m.Save(ctx, c)
}

// List returns the names of all stored characters.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	names, err := m.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list characters: %w", err)
	}
	return names, nil
}

// Delete removes the character from the store and the cache.
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	ok, err := m.store.Delete(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete character %s: %w", name, err)
	}
	if ok {
		m.mu.Lock()
		delete(m.cache, name)
		m.mu.Unlock()
	}
	return ok, nil
}

// ClearCache drops every cached character.
func (m *Manager) ClearCache() {
	m.mu.Lock()
	m.cache = make(map[string]*domain.Character)
	m.mu.Unlock()
}
