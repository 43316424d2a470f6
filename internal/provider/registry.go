package provider

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/xiaot623/gogo/persona/internal/config"
	"github.com/xiaot623/gogo/persona/internal/domain"
)

// Registry maps provider names to providers.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	defaultName string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider. The first registered provider becomes the default.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	if r.defaultName == "" {
		r.defaultName = p.Name()
	}
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// SetDefault selects the default provider; the name must be registered.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	r.defaultName = name
	return nil
}

// Default returns the default provider, if any.
func (r *Registry) Default() (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[r.defaultName]
	return p, ok
}

// Names returns registered provider names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Infos describes every registered provider.
func (r *Registry) Infos() []domain.ProviderInfo {
	names := r.Names()
	infos := make([]domain.ProviderInfo, 0, len(names))
	for _, name := range names {
		if p, ok := r.Get(name); ok {
			infos = append(infos, domain.ProviderInfo{Name: name, Models: p.SupportedModels()})
		}
	}
	return infos
}

// NewFromConfig registers every provider with credentials in cfg. The mock
// provider is always available; in mock mode every preset is backed by the
// mock wire client as well.
func NewFromConfig(cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()
	timeout := cfg.LLMTimeout()
	mock := cfg.MockMode()

	presets := []struct {
		name, baseURL, apiKey, model string
		enabled                      bool
	}{
		{"openai", "", cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIAPIKey != ""},
		{"deepseek", "", cfg.DeepSeekAPIKey, "", cfg.DeepSeekAPIKey != ""},
		{"aliyun", "", cfg.AliyunAPIKey, "", cfg.AliyunAPIKey != ""},
		{"litellm", cfg.LiteLLMURL, cfg.LiteLLMAPIKey, cfg.LiteLLMModel, cfg.LiteLLMURL != ""},
	}
	for _, ps := range presets {
		if !ps.enabled && !mock {
			continue
		}
		p, err := NewFromPreset(ps.name, ps.baseURL, ps.apiKey, ps.model, timeout, mock)
		if err != nil {
			return nil, err
		}
		reg.Register(p)
		slog.Info("provider registered", "provider", ps.name, "mock", mock)
	}

	if cfg.GeminiAPIKey != "" && !mock {
		reg.Register(NewGemini("", cfg.GeminiAPIKey, cfg.GeminiModel, timeout))
		slog.Info("provider registered", "provider", "google")
	}

	reg.Register(NewMock())

	if cfg.DefaultProvider != "" {
		if err := reg.SetDefault(cfg.DefaultProvider); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
