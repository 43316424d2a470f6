// Package provider adapts chat backends to a common completion contract.
package provider

import (
	"context"
	"strings"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// Operation names reported in domain.ProviderCallError.
const (
	OpChatCompletion       = "chat_completion"
	OpChatCompletionStream = "chat_completion_stream"
)

// Defaults applied when CompletionOptions leaves a field unset.
const (
	DefaultMaxTokens   = 1024
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
)

// EmptyResponseText is returned when a backend answers without any content.
const EmptyResponseText = "Sorry, no valid response was received."

// StreamFunc receives each non-empty fragment of a streamed completion.
// Returning an error stops the stream; the provider returns that error unchanged.
type StreamFunc func(fragment string) error

// Provider is a chat backend.
type Provider interface {
	// Name returns the registry name of the provider.
	Name() string
	// SupportedModels lists the models the provider knows about.
	SupportedModels() []string
	// ResolveHistory reshapes history before a call. Providers with a native
	// system channel return history unchanged; others fold system into it.
	ResolveHistory(system string, history []domain.Message) []domain.Message
	// ChatCompletion returns the full response text.
	ChatCompletion(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions) (string, error)
	// ChatCompletionStream calls fn once per fragment and returns nil only
	// after the backend signalled a complete response.
	ChatCompletionStream(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions, fn StreamFunc) error
}

// FoldSystem prepends system to the first user message, separated by a blank line.
// The folded message is tagged so repeated calls leave history unchanged. The
// input slice is never modified.
func FoldSystem(system string, history []domain.Message) []domain.Message {
	out := domain.CloneMessages(history)
	if strings.TrimSpace(system) == "" {
		return out
	}
	for _, m := range out {
		if m.Folded() {
			return out
		}
	}
	for i := range out {
		if out[i].Role != domain.RoleUser {
			continue
		}
		out[i].Content = system + "\n\n" + out[i].Content
		if out[i].Metadata == nil {
			out[i].Metadata = make(map[string]any, 1)
		}
		out[i].Metadata[domain.MetadataSystemFolded] = true
		break
	}
	return out
}

type callParams struct {
	model       string
	maxTokens   int
	temperature float64
	topP        float64
}

func resolveParams(opts domain.CompletionOptions, defaultModel string) callParams {
	p := callParams{
		model:       defaultModel,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		topP:        DefaultTopP,
	}
	if opts.Model != "" {
		p.model = opts.Model
	}
	if opts.MaxTokens != nil {
		p.maxTokens = *opts.MaxTokens
	}
	if opts.Temperature != nil {
		p.temperature = *opts.Temperature
	}
	if opts.TopP != nil {
		p.topP = *opts.TopP
	}
	return p
}

func callError(name, op string, err error) error {
	return &domain.ProviderCallError{Provider: name, Op: op, Err: err}
}

// streamGuard remembers an error returned by the consumer so it can be told
// apart from transport failures.
type streamGuard struct {
	fn        StreamFunc
	err       error
	fragments int
}

func (g *streamGuard) emit(fragment string) error {
	if fragment == "" {
		return nil
	}
	g.fragments++
	if err := g.fn(fragment); err != nil {
		g.err = err
		return err
	}
	return nil
}

// result maps a backend error to the value returned by ChatCompletionStream.
func (g *streamGuard) result(name string, err error) error {
	if err == nil {
		return nil
	}
	if g.err != nil {
		return g.err
	}
	return callError(name, OpChatCompletionStream, err)
}
