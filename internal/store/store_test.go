package store_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handsomefox/upcoming-watchlist/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := st.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return st
}

func makeEntry(t *testing.T, tmdbID int64, title, releaseDate string, genreIDs []int64) *store.CatalogEntry {
	t.Helper()

	entry := &store.CatalogEntry{
		TMDBID:    tmdbID,
		Title:     title,
		MediaType: store.MediaTypeMovie,
	}
	if releaseDate != "" {
		entry.ReleaseDate = sql.Null[string]{Valid: true, V: releaseDate}
	}
	require.NoError(t, entry.SetGenreIDs(genreIDs))
	return entry
}

func TestUpsertEntryGetOrCreate(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, created, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "2024-03-01", []int64{878}))
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotZero(t, id1)

	// Second upsert with different data must not touch the existing row.
	id2, created, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Renamed", "2030-01-01", []int64{1}))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, id1, id2)

	entries, err := st.ListEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Dune Two", entries[0].Title)
	assert.Equal(t, "2024-03-01", entries[0].ReleaseDate.V)

	ids, err := entries[0].GenreIDs()
	require.NoError(t, err)
	assert.Equal(t, []int64{878}, ids)
}

func TestRefreshEntryOverwrites(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Old Title", "2024-03-01", nil))
	require.NoError(t, err)

	require.NoError(t, st.RefreshEntry(ctx, makeEntry(t, 100, "New Title", "2024-04-01", []int64{18})))

	entry, err := st.GetEntryByTMDBID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "New Title", entry.Title)
	assert.Equal(t, "2024-04-01", entry.ReleaseDate.V)

	err = st.RefreshEntry(ctx, makeEntry(t, 999, "Missing", "", nil))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCatalogLookups(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)

	entry, err := st.GetEntry(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(100), entry.TMDBID)

	_, err = st.GetEntry(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = st.GetEntryByTMDBID(ctx, 12345)
	assert.ErrorIs(t, err, store.ErrNotFound)

	has, err := st.HasTMDBID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, has)

	has, err = st.HasTMDBID(ctx, 12345)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestAddToWatchlistIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)

	require.NoError(t, st.AddToWatchlist(ctx, id))
	require.NoError(t, st.AddToWatchlist(ctx, id))

	rows, err := st.ListWatchlist(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, id, rows[0].CatalogID)
	assert.False(t, rows[0].Watched)
}

func TestAddToWatchlistRequiresCatalogEntry(t *testing.T) {
	st := newTestStore(t)

	err := st.AddToWatchlist(context.Background(), 42)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleWatchedSymmetry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)
	require.NoError(t, st.AddToWatchlist(ctx, id))

	require.NoError(t, st.ToggleWatched(ctx, id))
	rows, err := st.ListWatchlist(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].Watched)

	require.NoError(t, st.ToggleWatched(ctx, id))
	rows, err = st.ListWatchlist(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].Watched)
}

func TestToggleWatchedMissingEntry(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)

	// On the catalog but not on the watchlist.
	err = st.ToggleWatched(ctx, id)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRemoveFromWatchlist(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)
	require.NoError(t, st.AddToWatchlist(ctx, id))

	require.NoError(t, st.RemoveFromWatchlist(ctx, id))

	membership, err := st.MembershipSet(ctx)
	require.NoError(t, err)
	assert.NotContains(t, membership, id)

	// Removing again is a no-op.
	require.NoError(t, st.RemoveFromWatchlist(ctx, id))
}

func TestDeleteEntryCascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)
	require.NoError(t, st.AddToWatchlist(ctx, id))

	require.NoError(t, st.DeleteEntry(ctx, id))

	rows, err := st.ListWatchlist(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	membership, err := st.MembershipSet(ctx)
	require.NoError(t, err)
	assert.Empty(t, membership)
}

func TestMembershipSet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)
	id2, _, err := st.UpsertEntry(ctx, makeEntry(t, 200, "Moana Two", "", nil))
	require.NoError(t, err)

	require.NoError(t, st.AddToWatchlist(ctx, id1))

	membership, err := st.MembershipSet(ctx)
	require.NoError(t, err)
	assert.True(t, membership[id1])
	assert.False(t, membership[id2])
}

func TestListRecentlyReleasedOrdering(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, _, err := st.UpsertEntry(ctx, makeEntry(t, 1, "Oldest", "2020-01-01", nil))
	require.NoError(t, err)
	_, _, err = st.UpsertEntry(ctx, makeEntry(t, 2, "Newest", "2025-06-15", nil))
	require.NoError(t, err)
	_, _, err = st.UpsertEntry(ctx, makeEntry(t, 3, "Middle", "2023-03-03", nil))
	require.NoError(t, err)
	_, _, err = st.UpsertEntry(ctx, makeEntry(t, 4, "Undated", "", nil))
	require.NoError(t, err)

	entries, err := st.ListRecentlyReleased(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "Newest", entries[0].Title)
	assert.Equal(t, "Middle", entries[1].Title)
	assert.Equal(t, "Oldest", entries[2].Title)
	assert.Equal(t, "Undated", entries[3].Title)

	limited, err := st.ListRecentlyReleased(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, "Newest", limited[0].Title)
}

func TestListWatchlistJoinsEntriesInInsertionOrder(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	id1, _, err := st.UpsertEntry(ctx, makeEntry(t, 100, "Dune Two", "", nil))
	require.NoError(t, err)
	id2, _, err := st.UpsertEntry(ctx, makeEntry(t, 200, "Moana Two", "", nil))
	require.NoError(t, err)

	require.NoError(t, st.AddToWatchlist(ctx, id2))
	require.NoError(t, st.AddToWatchlist(ctx, id1))

	rows, err := st.ListWatchlist(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.NotNil(t, rows[0].Entry)
	require.NotNil(t, rows[1].Entry)
	assert.Equal(t, "Moana Two", rows[0].Entry.Title)
	assert.Equal(t, "Dune Two", rows[1].Entry.Title)
}

func TestCastRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	entry := makeEntry(t, 100, "Dune Two", "", nil)
	cast := []store.CastMember{
		{Name: "Timothee Chalamet", Character: "Paul Atreides"},
		{Name: "Zendaya", Character: "Chani"},
	}
	require.NoError(t, entry.SetCast(cast))

	id, _, err := st.UpsertEntry(ctx, entry)
	require.NoError(t, err)

	stored, err := st.GetEntry(ctx, id)
	require.NoError(t, err)

	got, err := stored.Cast()
	require.NoError(t, err)
	assert.Equal(t, cast, got)
}
