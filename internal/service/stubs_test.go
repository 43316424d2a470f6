package service

import (
	"context"
	"errors"
	"strconv"
	"sync"

	"github.com/xiaot623/gogo/persona/internal/domain"
	"github.com/xiaot623/gogo/persona/internal/provider"
)

type mapLoader map[string]*domain.Character

func (m mapLoader) Load(_ context.Context, name string) *domain.Character {
	return m[name]
}

// lengthProvider answers with the number of history messages it received.
type lengthProvider struct {
	mu      sync.Mutex
	systems []string
	calls   [][]domain.Message
}

func (p *lengthProvider) Name() string              { return "length" }
func (p *lengthProvider) SupportedModels() []string { return []string{"length-1"} }
func (p *lengthProvider) ResolveHistory(_ string, h []domain.Message) []domain.Message {
	return h
}

func (p *lengthProvider) ChatCompletion(_ context.Context, system string, history []domain.Message, _ domain.CompletionOptions) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systems = append(p.systems, system)
	p.calls = append(p.calls, history)
	return strconv.Itoa(len(history)), nil
}

func (p *lengthProvider) ChatCompletionStream(ctx context.Context, system string, history []domain.Message, opts domain.CompletionOptions, fn provider.StreamFunc) error {
	out, _ := p.ChatCompletion(ctx, system, history, opts)
	return fn(out)
}

var errBackendDown = errors.New("backend down")

// failingProvider fails every call.
type failingProvider struct{}

func (failingProvider) Name() string              { return "failing" }
func (failingProvider) SupportedModels() []string { return nil }
func (failingProvider) ResolveHistory(_ string, h []domain.Message) []domain.Message {
	return h
}

func (failingProvider) ChatCompletion(context.Context, string, []domain.Message, domain.CompletionOptions) (string, error) {
	return "", &domain.ProviderCallError{Provider: "failing", Op: provider.OpChatCompletion, Err: errBackendDown}
}

func (failingProvider) ChatCompletionStream(context.Context, string, []domain.Message, domain.CompletionOptions, provider.StreamFunc) error {
	return &domain.ProviderCallError{Provider: "failing", Op: provider.OpChatCompletionStream, Err: errBackendDown}
}

// scriptedProvider streams fragments and optionally fails after them.
type scriptedProvider struct {
	fragments []string
	err       error

	mu       sync.Mutex
	stopErr  error
	fold     bool
	received [][]domain.Message
}

func (p *scriptedProvider) Name() string              { return "scripted" }
func (p *scriptedProvider) SupportedModels() []string { return nil }
func (p *scriptedProvider) ResolveHistory(system string, h []domain.Message) []domain.Message {
	if p.fold {
		return provider.FoldSystem(system, h)
	}
	return h
}

func (p *scriptedProvider) ChatCompletion(_ context.Context, _ string, history []domain.Message, _ domain.CompletionOptions) (string, error) {
	p.mu.Lock()
	p.received = append(p.received, history)
	p.mu.Unlock()
	if p.err != nil {
		return "", &domain.ProviderCallError{Provider: p.Name(), Op: provider.OpChatCompletion, Err: p.err}
	}
	out := ""
	for _, f := range p.fragments {
		out += f
	}
	return out, nil
}

func (p *scriptedProvider) ChatCompletionStream(_ context.Context, _ string, history []domain.Message, _ domain.CompletionOptions, fn provider.StreamFunc) error {
	p.mu.Lock()
	p.received = append(p.received, history)
	p.mu.Unlock()
	for _, f := range p.fragments {
		if err := fn(f); err != nil {
			p.mu.Lock()
			p.stopErr = err
			p.mu.Unlock()
			return err
		}
	}
	if p.err != nil {
		return &domain.ProviderCallError{Provider: p.Name(), Op: provider.OpChatCompletionStream, Err: p.err}
	}
	return nil
}

// plainErrorProvider fails with errors that carry no provider context.
type plainErrorProvider struct{}

func (plainErrorProvider) Name() string              { return "plain" }
func (plainErrorProvider) SupportedModels() []string { return nil }
func (plainErrorProvider) ResolveHistory(_ string, h []domain.Message) []domain.Message {
	return h
}

func (plainErrorProvider) ChatCompletion(context.Context, string, []domain.Message, domain.CompletionOptions) (string, error) {
	return "", errBackendDown
}

func (plainErrorProvider) ChatCompletionStream(context.Context, string, []domain.Message, domain.CompletionOptions, provider.StreamFunc) error {
	return errBackendDown
}
