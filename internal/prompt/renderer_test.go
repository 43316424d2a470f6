package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

func TestRenderWithoutPlaceholdersIsIdentity(t *testing.T) {
	r := NewRenderer()
	for _, s := range []string{"", "hello", "a { b } c", "{single}", "unterminated }} {{"} {
		assert.Equal(t, s, r.Render(s, nil, "Ann", nil))
	}
}

func TestRenderCharacterVariables(t *testing.T) {
	r := NewRenderer()
	c := &domain.Character{Name: "Luna", Description: "a night owl"}

	got := r.Render("{{character}} ({{character_description}}) greets {{ user }}", c, "Ann", nil)
	assert.Equal(t, "Luna (a night owl) greets Ann", got)
}

func TestRenderDefaults(t *testing.T) {
	r := NewRenderer()
	assert.Equal(t, "Assistant talks to User", r.Render("{{character}} talks to {{user}}", nil, "", nil))
}

func TestRenderLeavesUnknownVerbatim(t *testing.T) {
	r := NewRenderer()
	assert.Equal(t, "hi {{nobody}} and {{}}", r.Render("hi {{nobody}} and {{}}", nil, "Ann", nil))
}

func TestRenderPrecedence(t *testing.T) {
	r := NewRenderer()
	r.SetVariable("user", "global-user")
	r.SetVariable("mood", "calm")
	r.SetVariable("place", "home")
	c := &domain.Character{Name: "Luna"}

	got := r.Render("{{user}}/{{mood}}/{{place}}/{{character}}", c, "Ann", map[string]string{
		"mood":      "excited",
		"character": "Override",
	})
	assert.Equal(t, "Ann/excited/home/Override", got)
}

func TestRenderIsIdempotentWhenResolved(t *testing.T) {
	r := NewRenderer()
	c := &domain.Character{Name: "Luna", Description: "owl"}
	vars := map[string]string{"topic": "stars"}

	once := r.Render("{{user}} asks {{character}} about {{topic}}", c, "Ann", vars)
	twice := r.Render(once, c, "Ann", vars)
	assert.Equal(t, once, twice)
}

func TestRenderSystem(t *testing.T) {
	r := NewRenderer()
	c := &domain.Character{Name: "Luna", SystemPrompt: "You are {{character}}, helping {{user}}."}

	assert.Equal(t, "You are Luna, helping Ann.", r.RenderSystem(c, "Ann", nil))
	assert.Equal(t, "", r.RenderSystem(nil, "Ann", nil))
}

func TestVariablesReturnsCopy(t *testing.T) {
	r := NewRenderer()
	r.SetVariable("a", "1")
	vars := r.Variables()
	vars["a"] = "2"
	assert.Equal(t, "1", r.Variables()["a"])
}
