package llm

import (
	"log/slog"
	"time"
)

// NewLLMClient creates a real client, or a MockClient when mock is set.
func NewLLMClient(baseURL, apiKey string, timeout time.Duration, mock bool) LLMClient {
	if mock {
		slog.Info("mock mode enabled, using mock LLM client", "base_url", baseURL)
		return NewMockClient()
	}
	return NewClient(baseURL, apiKey, timeout)
}
