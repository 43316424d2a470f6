// Package character loads persona definitions and turns their example dialogs into seed history.
package character

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

// ErrInvalidName is returned for names that cannot be used as a storage key.
var ErrInvalidName = errors.New("invalid character name")

// Store persists characters by name.
type Store interface {
	// Load returns the character, or (nil, nil) when it does not exist.
	Load(ctx context.Context, name string) (*domain.Character, error)
	Save(ctx context.Context, c *domain.Character) error
	List(ctx context.Context) ([]string, error)
	// Delete reports whether a character was removed.
	Delete(ctx context.Context, name string) (bool, error)
}

// ValidateName rejects empty names and names that would escape a storage directory.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ExampleHistory expands c's example dialogs into alternating user/assistant messages, verbatim.
func ExampleHistory(c *domain.Character) []domain.Message {
	if c == nil {
		return nil
	}
	history := make([]domain.Message, 0, 2*len(c.ExampleDialogs))
	for _, d := range c.ExampleDialogs {
		history = append(history,
			domain.Message{ID: domain.NewMessageID(), Role: domain.RoleUser, Content: d.UserMessage},
			domain.Message{ID: domain.NewMessageID(), Role: domain.RoleAssistant, Content: d.CharacterResponse},
		)
	}
	return history
}
