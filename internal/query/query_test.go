package query_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/handsomefox/upcoming-watchlist/internal/query"
	"github.com/handsomefox/upcoming-watchlist/internal/store"
)

var taxonomy = map[int64]string{
	16:    "Animation",
	878:   "Science Fiction",
	10751: "Family",
}

func makeEntry(t *testing.T, id int64, title string, genreIDs []int64) store.CatalogEntry {
	t.Helper()

	entry := store.CatalogEntry{ID: id, TMDBID: id, Title: title, MediaType: store.MediaTypeMovie}
	require.NoError(t, entry.SetGenreIDs(genreIDs))
	return entry
}

func catalog(t *testing.T) []store.CatalogEntry {
	t.Helper()

	return []store.CatalogEntry{
		makeEntry(t, 1, "Dune Two", []int64{878}),
		makeEntry(t, 2, "Moana Two", []int64{16, 10751}),
		makeEntry(t, 3, "Duneside Story", nil),
	}
}

func TestSearchCaseInsensitiveSubstring(t *testing.T) {
	got := query.Search("dune", catalog(t))
	require.Len(t, got, 2)
	assert.Equal(t, "Dune Two", got[0].Title)
	assert.Equal(t, "Duneside Story", got[1].Title)

	got = query.Search("MOANA", catalog(t))
	require.Len(t, got, 1)
	assert.Equal(t, "Moana Two", got[0].Title)
}

func TestSearchEmptyQueryPassesThrough(t *testing.T) {
	entries := catalog(t)
	assert.Equal(t, entries, query.Search("", entries))
	assert.Equal(t, entries, query.Search("   ", entries))
}

func TestSearchNoMatches(t *testing.T) {
	assert.Empty(t, query.Search("oppenheimer", catalog(t)))
}

func TestFilterByGenre(t *testing.T) {
	got := query.FilterByGenre(catalog(t), "Science Fiction", taxonomy)
	require.Len(t, got, 1)
	assert.Equal(t, "Dune Two", got[0].Title)

	got = query.FilterByGenre(catalog(t), "Family", taxonomy)
	require.Len(t, got, 1)
	assert.Equal(t, "Moana Two", got[0].Title)
}

func TestFilterByGenreAllSentinel(t *testing.T) {
	entries := catalog(t)
	assert.Equal(t, entries, query.FilterByGenre(entries, query.GenreAll, taxonomy))
	assert.Equal(t, entries, query.FilterByGenre(entries, "", taxonomy))
}

func TestFilterByGenreUnknownName(t *testing.T) {
	assert.Empty(t, query.FilterByGenre(catalog(t), "Western", taxonomy))
}
