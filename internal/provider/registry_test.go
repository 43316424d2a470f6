package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/persona/internal/config"
	"github.com/xiaot623/gogo/persona/internal/domain"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Default()
	assert.False(t, ok)

	reg.Register(NewMock())
	reg.Register(NewOpenAICompatible("alpha", "a-1", nil, nil))

	p, ok := reg.Default()
	require.True(t, ok)
	assert.Equal(t, "mock", p.Name())

	assert.Equal(t, []string{"alpha", "mock"}, reg.Names())
	require.NoError(t, reg.SetDefault("alpha"))
	p, _ = reg.Default()
	assert.Equal(t, "alpha", p.Name())

	assert.ErrorIs(t, reg.SetDefault("nope"), domain.ErrProviderNotFound)

	infos := reg.Infos()
	require.Len(t, infos, 2)
	assert.Equal(t, domain.ProviderInfo{Name: "alpha", Models: []string{"a-1"}}, infos[0])
}

func TestNewFromConfig(t *testing.T) {
	reg, err := NewFromConfig(&config.Config{OpenAIAPIKey: "k", OpenAIModel: "gpt-4o", GeminiAPIKey: "g", LLMTimeoutMs: 1000})
	require.NoError(t, err)
	assert.Equal(t, []string{"google", "mock", "openai"}, reg.Names())

	p, ok := reg.Default()
	require.True(t, ok)
	assert.Equal(t, "openai", p.Name())
}

func TestNewFromConfigMockMode(t *testing.T) {
	reg, err := NewFromConfig(&config.Config{Mode: "mock", DefaultProvider: "deepseek", LLMTimeoutMs: 1000})
	require.NoError(t, err)
	assert.Equal(t, []string{"aliyun", "deepseek", "litellm", "mock", "openai"}, reg.Names())
	p, _ := reg.Default()
	assert.Equal(t, "deepseek", p.Name())
}

func TestNewFromConfigUnknownDefault(t *testing.T) {
	_, err := NewFromConfig(&config.Config{DefaultProvider: "nope"})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}
