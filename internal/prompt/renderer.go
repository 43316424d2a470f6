// Package prompt renders {{var}} templates for user input and character system prompts.
package prompt

import (
	"io"
	"strings"
	"sync"

	"github.com/valyala/fasttemplate"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

const (
	startTag = "{{"
	endTag   = "}}"

	// DefaultUserName is used when a turn carries no user name.
	DefaultUserName = "User"
	// DefaultCharacterLabel fills {{character}} when no character is bound.
	DefaultCharacterLabel = "Assistant"
)

// Renderer substitutes {{name}} placeholders. Unknown placeholders are left verbatim.
//
// Variables resolve with precedence: per-call vars, then the user and character
// derived vars, then the global table set through SetVariable.
type Renderer struct {
	mu      sync.RWMutex
	globals map[string]string
}

// NewRenderer creates a renderer with an empty global variable table.
func NewRenderer() *Renderer {
	return &Renderer{globals: make(map[string]string)}
}

// SetVariable sets a global default variable.
func (r *Renderer) SetVariable(key, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.globals[strings.TrimSpace(key)] = value
}

// Variables returns a copy of the global variable table.
func (r *Renderer) Variables() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.globals))
	for k, v := range r.globals {
		out[k] = v
	}
	return out
}

// Render fills template using the variable table built for character and userName.
func (r *Renderer) Render(template string, character *domain.Character, userName string, vars map[string]string) string {
	if !strings.Contains(template, startTag) {
		return template
	}
	table := r.table(character, userName, vars)
	return Fill(template, table)
}

// RenderSystem renders the character's system prompt.
func (r *Renderer) RenderSystem(character *domain.Character, userName string, vars map[string]string) string {
	if character == nil {
		return ""
	}
	return r.Render(character.SystemPrompt, character, userName, vars)
}

func (r *Renderer) table(character *domain.Character, userName string, vars map[string]string) map[string]string {
	r.mu.RLock()
	table := make(map[string]string, len(r.globals)+len(vars)+4)
	for k, v := range r.globals {
		table[k] = v
	}
	r.mu.RUnlock()

	if userName == "" {
		userName = DefaultUserName
	}
	table["user"] = userName
	if character != nil {
		table["character"] = character.Name
		table["character_name"] = character.Name
		table["character_description"] = character.Description
	} else {
		table["character"] = DefaultCharacterLabel
	}

	for k, v := range vars {
		table[strings.TrimSpace(k)] = v
	}
	return table
}

// Fill substitutes {{name}} placeholders from table; surrounding whitespace in a
// name is ignored and unresolved placeholders are written back unchanged.
func Fill(template string, table map[string]string) string {
	return fasttemplate.ExecuteFuncString(template, startTag, endTag, func(w io.Writer, tag string) (int, error) {
		if v, ok := table[strings.TrimSpace(tag)]; ok {
			return io.WriteString(w, v)
		}
		return io.WriteString(w, startTag+tag+endTag)
	})
}
