package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

func TestFoldSystem(t *testing.T) {
	history := []domain.Message{
		domain.NewMessage(domain.RoleAssistant, "greeting"),
		domain.NewMessage(domain.RoleUser, "hi"),
		domain.NewMessage(domain.RoleUser, "again"),
	}

	folded := FoldSystem("be nice", history)
	assert.Equal(t, "greeting", folded[0].Content)
	assert.Equal(t, "be nice\n\nhi", folded[1].Content)
	assert.True(t, folded[1].Folded())
	assert.Equal(t, "again", folded[2].Content)
	assert.Equal(t, history[1].ID, folded[1].ID)

	// input untouched
	assert.Equal(t, "hi", history[1].Content)
	assert.False(t, history[1].Folded())

	// second pass is a no-op
	again := FoldSystem("be nice", folded)
	assert.Equal(t, folded, again)
}

func TestFoldSystemNoUserMessage(t *testing.T) {
	history := []domain.Message{domain.NewMessage(domain.RoleAssistant, "hello")}
	assert.Equal(t, history, FoldSystem("sys", history))
	assert.Nil(t, FoldSystem("sys", nil))
}

func TestFoldSystemEmptySystem(t *testing.T) {
	history := []domain.Message{domain.NewMessage(domain.RoleUser, "hi")}
	out := FoldSystem("  ", history)
	assert.Equal(t, "hi", out[0].Content)
	assert.False(t, out[0].Folded())
}

func TestResolveParams(t *testing.T) {
	p := resolveParams(domain.CompletionOptions{}, "m1")
	assert.Equal(t, callParams{model: "m1", maxTokens: 1024, temperature: 0.7, topP: 1.0}, p)

	maxTokens, temp, topP := 10, 0.1, 0.5
	p = resolveParams(domain.CompletionOptions{Model: "m2", MaxTokens: &maxTokens, Temperature: &temp, TopP: &topP}, "m1")
	assert.Equal(t, callParams{model: "m2", maxTokens: 10, temperature: 0.1, topP: 0.5}, p)
}
