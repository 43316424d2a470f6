// Package llm provides clients for OpenAI-compatible chat completion APIs.
package llm

import "context"

// LLMClient defines the interface for chat completion calls.
type LLMClient interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// CreateChatCompletionStream sends a streaming chat completion request.
	// The callback is called for each chunk received; a callback error stops the stream
	// and is returned unchanged.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error)
}

// Ensure Client implements LLMClient interface.
var _ LLMClient = (*Client)(nil)
