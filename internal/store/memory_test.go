package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/deckhand/internal/card"
)

func TestMemoryStore_CreateAssignsMetadata(t *testing.T) {
	s := NewMemoryStore()
	s.Actor = "user-1"
	ctx := context.Background()

	id, err := s.Create(ctx, "cards", map[string]any{card.FieldTitle: "Goblin"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	doc, ok := s.Get("cards", id)
	require.True(t, ok)
	require.Equal(t, "Goblin", doc.Fields[card.FieldTitle])
	require.Equal(t, "user-1", doc.Fields[card.KeyCreatedBy])
	require.Equal(t, "user-1", doc.Fields[card.KeyModifiedBy])
	require.IsType(t, time.Time{}, doc.Fields[card.KeyCreatedAt])
	require.Equal(t, true, doc.Fields[card.KeyVisible])
}

func TestMemoryStore_RejectsReservedKeys(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "cards", map[string]any{card.KeyCreatedBy: "forged"})
	require.Error(t, err)
	require.Equal(t, KindInvalid, Kind(err))

	err = s.Update(ctx, "cards", "some-id", map[string]any{card.KeyModifiedAt: time.Now()})
	require.Error(t, err)
	require.Equal(t, KindInvalid, Kind(err))

	creates, updates := s.Writes()
	require.Zero(t, creates)
	require.Zero(t, updates)
}

func TestMemoryStore_UpdateMergesAndRestamps(t *testing.T) {
	s := NewMemoryStore()
	s.Actor = "user-1"
	ctx := context.Background()

	id, err := s.Create(ctx, "cards", map[string]any{
		card.FieldTitle: "Goblin",
		card.FieldType:  "creature",
	})
	require.NoError(t, err)

	s.Actor = "user-2"
	err = s.Update(ctx, "cards", id, map[string]any{card.FieldTitle: "Goblin Chief"})
	require.NoError(t, err)

	doc, ok := s.Get("cards", id)
	require.True(t, ok)
	require.Equal(t, "Goblin Chief", doc.Fields[card.FieldTitle])
	require.Equal(t, "creature", doc.Fields[card.FieldType], "untouched fields survive")
	require.Equal(t, "user-1", doc.Fields[card.KeyCreatedBy])
	require.Equal(t, "user-2", doc.Fields[card.KeyModifiedBy])
}

func TestMemoryStore_UpdateMissingDocument(t *testing.T) {
	s := NewMemoryStore()
	err := s.Update(context.Background(), "cards", "nope", map[string]any{card.FieldTitle: "x"})
	require.Error(t, err)
}

func TestMemoryStore_QueryFiltersByField(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	_, err := s.Create(ctx, "cards", map[string]any{card.FieldType: "creature", card.FieldSubtype: "goblin"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "cards", map[string]any{card.FieldType: "creature", card.FieldSubtype: "elf"})
	require.NoError(t, err)
	_, err = s.Create(ctx, "cards", map[string]any{card.FieldType: "spell", card.FieldSubtype: "instant"})
	require.NoError(t, err)

	docs, err := s.Query(ctx, "cards", card.FieldType, "creature")
	require.NoError(t, err)
	require.Len(t, docs, 2)

	all, err := s.Query(ctx, "cards", "", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
}

func TestMemoryStore_FailNextIsOneShot(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.FailNext = &Error{Kind: KindUnavailable}

	_, err := s.Create(ctx, "cards", map[string]any{card.FieldTitle: "x"})
	require.Error(t, err)
	require.Equal(t, KindUnavailable, Kind(err))

	_, err = s.Create(ctx, "cards", map[string]any{card.FieldTitle: "x"})
	require.NoError(t, err, "injected failure clears after one use")
}

func TestMemoryStore_DelayRespectsContext(t *testing.T) {
	s := NewMemoryStore()
	s.Delay = 500 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := s.Create(ctx, "cards", map[string]any{card.FieldTitle: "x"})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 400*time.Millisecond)
}
