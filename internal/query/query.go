// Package query implements the read-side filtering used to drive listings.
package query

import (
	"context"
	"strings"

	"github.com/handsomefox/upcoming-watchlist/internal/store"
)

// GenreAll is the sentinel genre filter value that passes everything through.
const GenreAll = "All"

// Search returns the entries whose title contains the query,
// case-insensitively, preserving the scope's order. An empty query returns
// the scope unchanged.
func Search(q string, entries []store.CatalogEntry) []store.CatalogEntry {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return entries
	}

	out := make([]store.CatalogEntry, 0, len(entries))
	for _, e := range entries {
		if strings.Contains(strings.ToLower(e.Title), q) {
			out = append(out, e)
		}
	}
	return out
}

// FilterByGenre keeps the entries whose genre ids resolve to genreName
// through the taxonomy. GenreAll passes everything through. Entries whose
// stored genre data cannot be decoded are skipped.
func FilterByGenre(entries []store.CatalogEntry, genreName string, taxonomy map[int64]string) []store.CatalogEntry {
	if genreName == "" || genreName == GenreAll {
		return entries
	}

	out := make([]store.CatalogEntry, 0, len(entries))
	for i := range entries {
		ids, err := entries[i].GenreIDs()
		if err != nil {
			continue
		}
		for _, id := range ids {
			if taxonomy[id] == genreName {
				out = append(out, entries[i])
				break
			}
		}
	}
	return out
}

// Upcoming returns up to limit catalog entries ordered by release date
// descending. The ordering is the one the UI has always shown (most recently
// released first), not soonest-to-release.
func Upcoming(ctx context.Context, st *store.Store, limit int) ([]store.CatalogEntry, error) {
	return st.ListRecentlyReleased(ctx, limit)
}
