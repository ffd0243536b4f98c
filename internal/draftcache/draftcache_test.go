package draftcache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/deckhand/internal/card"
)

func openCache(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "state", "drafts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCache_PutGetRoundTrip(t *testing.T) {
	c := openCache(t)

	d := card.Draft{
		Title:       "Goblin Raider",
		CardType:    "creature",
		Subtype:     "goblin",
		Description: "Attacks each turn if able.",
		Tags:        []string{"red", "aggro"},
	}
	require.NoError(t, c.Put("card-1", d))

	got, ok := c.Get("card-1")
	require.True(t, ok)
	require.Equal(t, d, got)
}

func TestCache_GetMissing(t *testing.T) {
	c := openCache(t)
	_, ok := c.Get("nope")
	require.False(t, ok)
}

func TestCache_PutReplaces(t *testing.T) {
	c := openCache(t)

	require.NoError(t, c.Put(NewCardKey, card.Draft{Title: "v1"}))
	require.NoError(t, c.Put(NewCardKey, card.Draft{Title: "v2"}))

	got, ok := c.Get(NewCardKey)
	require.True(t, ok)
	require.Equal(t, "v2", got.Title)
}

func TestCache_DeleteIsIdempotent(t *testing.T) {
	c := openCache(t)

	require.NoError(t, c.Put("card-1", card.Draft{Title: "x"}))
	require.NoError(t, c.Delete("card-1"))
	_, ok := c.Get("card-1")
	require.False(t, ok)

	require.NoError(t, c.Delete("card-1"), "deleting a missing draft is not an error")
}

func TestCache_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "drafts.db")

	c, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, c.Put(NewCardKey, card.Draft{Title: "persisted"}))
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()

	got, ok := c.Get(NewCardKey)
	require.True(t, ok)
	require.Equal(t, "persisted", got.Title)
}
