package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/gogo/persona/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreCharacters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	now := time.Now().UTC().Truncate(time.Second)
	c := &domain.Character{
		Name:         "Luna",
		Description:  "a night owl",
		SystemPrompt: "You are {{character}}.",
		ExampleDialogs: []domain.ExampleDialog{
			{UserMessage: "hi", CharacterResponse: "hello"},
		},
		Metadata:  map[string]any{"language": "en"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Save(ctx, c))

	got, err := store.Load(ctx, "Luna")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, c.Description, got.Description)
	assert.Equal(t, c.ExampleDialogs, got.ExampleDialogs)
	assert.Equal(t, "en", got.Metadata["language"])
	assert.True(t, got.CreatedAt.Equal(now))

	c.Description = "an early bird"
	c.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Save(ctx, c))
	got, err = store.Load(ctx, "Luna")
	require.NoError(t, err)
	assert.Equal(t, "an early bird", got.Description)

	require.NoError(t, store.Save(ctx, &domain.Character{Name: "Atlas", CreatedAt: now, UpdatedAt: now}))
	names, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Atlas", "Luna"}, names)

	ok, err := store.Delete(ctx, "Luna")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Delete(ctx, "Luna")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStoreLoadMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.Load(context.Background(), "nobody")
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStoreEvents(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	ts := time.Now().UnixMilli()
	events := []*domain.Event{
		{EventID: "e1", SessionID: "s1", Ts: ts, Type: domain.EventTypeTurnStarted, Payload: json.RawMessage(`{"turn_id":"t1"}`)},
		{EventID: "e2", SessionID: "s1", Ts: ts, Type: domain.EventTypeLLMCallStarted},
		{EventID: "e3", SessionID: "s1", Ts: ts + 5, Type: domain.EventTypeTurnCompleted},
		{EventID: "e4", SessionID: "s2", Ts: ts, Type: domain.EventTypeTurnStarted},
	}
	for _, e := range events {
		require.NoError(t, store.CreateEvent(ctx, e))
	}

	got, err := store.GetEvents(ctx, "s1", 0, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"e1", "e2", "e3"}, []string{got[0].EventID, got[1].EventID, got[2].EventID})
	assert.JSONEq(t, `{"turn_id":"t1"}`, string(got[0].Payload))
	assert.Nil(t, got[1].Payload)

	got, err = store.GetEvents(ctx, "s1", ts, nil, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e3", got[0].EventID)

	got, err = store.GetEvents(ctx, "s1", 0, []string{string(domain.EventTypeLLMCallStarted)}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e2", got[0].EventID)

	got, err = store.GetEvents(ctx, "s1", 0, nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
