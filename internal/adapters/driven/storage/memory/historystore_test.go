package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func TestHistoryStore_ListHistory_NewestFirst(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()

	for _, q := range []string{"one", "two", "three"} {
		require.NoError(t, store.AppendHistory(ctx, &domain.SearchHistoryEntry{OwnerID: "u1", Query: q}))
	}
	require.NoError(t, store.AppendHistory(ctx, &domain.SearchHistoryEntry{OwnerID: "u2", Query: "other"}))

	got, err := store.ListHistory(ctx, "u1", 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "three", got[0].Query)
	assert.Equal(t, "two", got[1].Query)
}

func TestHistoryStore_SavedSearches(t *testing.T) {
	store := NewHistoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveSearch(ctx, &domain.SavedSearch{ID: "s1", OwnerID: "u1", Name: "zeta", Query: "z"}))
	require.NoError(t, store.SaveSearch(ctx, &domain.SavedSearch{ID: "s2", OwnerID: "u1", Name: "alpha", Query: "a"}))
	require.NoError(t, store.SaveSearch(ctx, &domain.SavedSearch{ID: "s3", OwnerID: "u2", Name: "beta", Query: "b"}))

	list, err := store.ListSavedSearches(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)

	got, err := store.GetSavedSearch(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "z", got.Query)

	require.NoError(t, store.DeleteSavedSearch(ctx, "s1"))
	_, err = store.GetSavedSearch(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
