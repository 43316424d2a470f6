package domain

import "time"

// ExampleDialog is one scripted exchange used to seed a character's history.
type ExampleDialog struct {
	UserMessage       string `json:"user_message" yaml:"user_message"`
	CharacterResponse string `json:"character_response" yaml:"character_response"`
}

// Character is a persona definition. Name is its unique key.
type Character struct {
	Name           string          `json:"name" yaml:"name"`
	Description    string          `json:"description" yaml:"description"`
	SystemPrompt   string          `json:"system_prompt" yaml:"system_prompt"`
	ExampleDialogs []ExampleDialog `json:"example_dialogs" yaml:"example_dialogs"`
	Metadata       map[string]any  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}
