package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// MockChunkSize is the maximum number of bytes per mock stream chunk.
const MockChunkSize = 10

const mockEchoLimit = 100

// personaPattern picks the persona name out of prompts like "You are Luna, ...".
var personaPattern = regexp.MustCompile(`(?i)\byou are ([^.,;:!?\n]+)`)

// MockClient answers offline and in character: the reply names the persona
// found in the system prompt and quotes the latest user message.
type MockClient struct{}

// NewMockClient creates a new mock LLM client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

var _ LLMClient = (*MockClient)(nil)

// CreateChatCompletion returns the whole mock reply at once.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	reply := mockReply(req.Messages)
	return &ChatCompletionResponse{
		ID:      mockCompletionID(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{{
			Message:      &ChatMessage{Role: "assistant", Content: reply},
			FinishReason: "stop",
		}},
		Usage: estimateUsage(req.Messages, reply),
	}, nil
}

// CreateChatCompletionStream sends the mock reply in chunks of at most
// MockChunkSize bytes, never splitting a rune.
func (m *MockClient) CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest, callback StreamCallback) (*Usage, error) {
	reply := mockReply(req.Messages)
	id := mockCompletionID()
	created := time.Now().Unix()

	parts := chunkRunes(reply, MockChunkSize)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		choice := Choice{Delta: &ChatMessage{Role: "assistant", Content: part}}
		if i == len(parts)-1 {
			choice.FinishReason = "stop"
		}
		chunk := &StreamChunk{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   req.Model,
			Choices: []Choice{choice},
		}
		if err := callback(chunk); err != nil {
			return nil, err
		}
	}
	return estimateUsage(req.Messages, reply), nil
}

func mockCompletionID() string {
	return fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano())
}

// mockReply builds the deterministic reply for a conversation.
func mockReply(messages []ChatMessage) string {
	persona := ""
	for _, msg := range messages {
		if msg.Role != "system" {
			continue
		}
		if match := personaPattern.FindStringSubmatch(msg.Content); match != nil {
			persona = strings.TrimSpace(match[1])
			break
		}
	}

	input := ""
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			input = messages[i].Content
			break
		}
	}

	switch {
	case input == "" && persona == "":
		return "[MOCK] Nothing to reply to."
	case input == "":
		return fmt.Sprintf("[MOCK] %s has nothing to reply to.", persona)
	case persona == "":
		return fmt.Sprintf("[MOCK] Received your message: %q.", clip(input, mockEchoLimit))
	}
	return fmt.Sprintf("[MOCK] %s received your message: %q.", persona, clip(input, mockEchoLimit))
}

// estimateUsage counts roughly four bytes per token.
func estimateUsage(messages []ChatMessage, reply string) *Usage {
	prompt := 0
	for _, msg := range messages {
		prompt += len(msg.Content) / 4
	}
	completion := len(reply) / 4
	return &Usage{PromptTokens: prompt, CompletionTokens: completion, TotalTokens: prompt + completion}
}

// chunkRunes splits s into pieces of at most size bytes on rune boundaries.
func chunkRunes(s string, size int) []string {
	if s == "" {
		return []string{""}
	}
	var out []string
	for len(s) > 0 {
		end := 0
		for end < len(s) {
			_, w := utf8.DecodeRuneInString(s[end:])
			if end+w > size && end > 0 {
				break
			}
			end += w
		}
		out = append(out, s[:end])
		s = s[end:]
	}
	return out
}

func clip(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
