package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/persona/internal/adapter/llm"
	"github.com/xiaot623/gogo/persona/internal/domain"
)

// Preset describes a known OpenAI-compatible endpoint.
type Preset struct {
	BaseURL string
	Model   string
	Models  []string
}

// Presets for the OpenAI-compatible backends.
var Presets = map[string]Preset{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o",
		Models:  []string{"gpt-4o", "gpt-4o-mini", "gpt-3.5-turbo"},
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
		Models:  []string{"deepseek-chat", "deepseek-reasoner"},
	},
	"aliyun": {
		BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1",
		Model:   "qwen-turbo",
		Models:  []string{"qwen-turbo", "qwen-plus", "qwen-max", "qwen2.5-72b-instruct"},
	},
	"litellm": {
		BaseURL: "http://localhost:4000/v1",
		Model:   "gpt-4o-mini",
	},
}

// OpenAICompatible speaks the OpenAI chat completions protocol. The system
// text travels as a leading system message, so history is never folded.
type OpenAICompatible struct {
	name   string
	model  string
	models []string
	client llm.LLMClient
}

var _ Provider = (*OpenAICompatible)(nil)

// NewOpenAICompatible creates a provider over an existing wire client.
func NewOpenAICompatible(name, model string, models []string, client llm.LLMClient) *OpenAICompatible {
	if len(models) == 0 && model != "" {
		models = []string{model}
	}
	return &OpenAICompatible{name: name, model: model, models: models, client: client}
}

// NewFromPreset builds a provider for one of Presets. Empty baseURL or model
// fall back to the preset values.
func NewFromPreset(name, baseURL, apiKey, model string, timeout time.Duration, mock bool) (*OpenAICompatible, error) {
	preset, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrProviderNotFound, name)
	}
	if baseURL == "" {
		baseURL = preset.BaseURL
	}
	if model == "" {
		model = preset.Model
	}
	return NewOpenAICompatible(name, model, preset.Models, llm.NewLLMClient(baseURL, apiKey, timeout, mock)), nil
}

// NewMock returns an offline provider backed by llm.MockClient.
func NewMock() *OpenAICompatible {
	return NewOpenAICompatible("mock", "mock-model", nil, llm.NewMockClient())
}

// Name returns the provider name.
func (p *OpenAICompatible) Name() string { return p.name }

// SupportedModels returns a copy of the known models.
func (p *OpenAICompatible) SupportedModels() []string {
	return append([]string(nil), p.models...)
}

// ResolveHistory returns history unchanged.
func (p *OpenAICompatible) ResolveHistory(_ string, history []domain.Message) []domain.Message {
	return history
}

// ChatCompletion implements Provider.
func (p *OpenAICompatible) ChatCompletion(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(system, history, opts))
	if err != nil {
		return "", callError(p.name, OpChatCompletion, err)
	}
	content := resp.FirstContent()
	if content == "" {
		return EmptyResponseText, nil
	}
	return content, nil
}

// ChatCompletionStream implements Provider.
func (p *OpenAICompatible) ChatCompletionStream(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions, fn StreamFunc) error {
	guard := &streamGuard{fn: fn}
	_, err := p.client.CreateChatCompletionStream(ctx, p.buildRequest(system, history, opts), func(chunk *llm.StreamChunk) error {
		return guard.emit(chunk.DeltaContent())
	})
	return guard.result(p.name, err)
}

func (p *OpenAICompatible) buildRequest(system string, history []domain.Message, opts domain.CompletionOptions) *llm.ChatCompletionRequest {
	params := resolveParams(opts, p.model)

	messages := make([]llm.ChatMessage, 0, len(history)+1)
	if system != "" {
		messages = append(messages, llm.ChatMessage{Role: string(domain.RoleSystem), Content: system})
	}
	for _, m := range history {
		messages = append(messages, llm.ChatMessage{Role: string(m.Role), Content: m.Content})
	}

	return &llm.ChatCompletionRequest{
		Model:       params.model,
		Messages:    messages,
		MaxTokens:   &params.maxTokens,
		Temperature: &params.temperature,
		TopP:        &params.topP,
		ExtraBody:   opts.ExtraBody,
	}
}
