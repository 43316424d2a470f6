package character

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

type countingStore struct {
	chars map[string]*domain.Character
	loads int
	err   error
}

func (s *countingStore) Load(_ context.Context, name string) (*domain.Character, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.chars[name], nil
}

func (s *countingStore) Save(_ context.Context, c *domain.Character) error {
	if s.err != nil {
		return s.err
	}
	s.chars[c.Name] = c
	return nil
}

func (s *countingStore) List(_ context.Context) ([]string, error) {
	var names []string
	for n := range s.chars {
		names = append(names, n)
	}
	return names, s.err
}

func (s *countingStore) Delete(_ context.Context, name string) (bool, error) {
	if _, ok := s.chars[name]; !ok {
		return false, s.err
	}
	delete(s.chars, name)
	return true, nil
}

func TestManagerLoadIsReadThrough(t *testing.T) {
	store := &countingStore{chars: map[string]*domain.Character{"Luna": {Name: "Luna"}}}
	m := NewManager(store)
	ctx := context.Background()

	first := m.Load(ctx, "Luna")
	second := m.Load(ctx, "Luna")
	require.NotNil(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, 1, store.loads)

	m.ClearCache()
	m.Load(ctx, "Luna")
	assert.Equal(t, 2, store.loads)
}

func TestManagerMissDoesNotCache(t *testing.T) {
	store := &countingStore{chars: map[string]*domain.Character{}}
	m := NewManager(store)

	assert.Nil(t, m.Load(context.Background(), "ghost"))
	assert.Nil(t, m.Load(context.Background(), "ghost"))
	assert.Equal(t, 2, store.loads)
}

func TestManagerStoreErrorIsNotFound(t *testing.T) {
	store := &countingStore{err: errors.New("disk on fire")}
	m := NewManager(store)
	assert.Nil(t, m.Load(context.Background(), "Luna"))
}

func TestManagerSaveUpdateDelete(t *testing.T) {
	store := &countingStore{chars: map[string]*domain.Character{}}
	m := NewManager(store)
	ctx := context.Background()

	c := &domain.Character{Name: "Luna"}
	require.NoError(t, m.Save(ctx, c))
	assert.False(t, c.CreatedAt.IsZero())
	assert.Same(t, c, m.Load(ctx, "Luna"))
	assert.Equal(t, 0, store.loads)

	before := c.UpdatedAt
	require.NoError(t, m.Update(ctx, c))
	assert.False(t, c.UpdatedAt.Before(before))

	ok, err := m.Delete(ctx, "Luna")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, m.Load(ctx, "Luna"))
}

func TestManagerSaveRejectsInvalidName(t *testing.T) {
	m := NewManager(&countingStore{chars: map[string]*domain.Character{}})
	assert.ErrorIs(t, m.Save(context.Background(), &domain.Character{Name: ""}), ErrInvalidName)
}

func TestExampleHistory(t *testing.T) {
	c := &domain.Character{ExampleDialogs: []domain.ExampleDialog{
		{UserMessage: "u1", CharacterResponse: "a1"},
		{UserMessage: "u2", CharacterResponse: "a2"},
	}}

	history := ExampleHistory(c)
	require.Len(t, history, 4)
	want := []struct {
		role    domain.Role
		content string
	}{
		{domain.RoleUser, "u1"}, {domain.RoleAssistant, "a1"},
		{domain.RoleUser, "u2"}, {domain.RoleAssistant, "a2"},
	}
	seen := map[string]bool{}
	for i, w := range want {
		assert.Equal(t, w.role, history[i].Role)
		assert.Equal(t, w.content, history[i].Content)
		assert.NotEmpty(t, history[i].ID)
		assert.False(t, seen[history[i].ID])
		seen[history[i].ID] = true
	}

	assert.Empty(t, ExampleHistory(&domain.Character{Name: "empty"}))
	assert.Nil(t, ExampleHistory(nil))
}
