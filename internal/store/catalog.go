package store

import (
	"context"
	"time"
)

// UpsertEntry creates the catalog row for entry.TMDBID if it does not exist
// yet and returns the local id either way, plus whether a new row was
// created. An existing row is left untouched, so repeated syncs never clobber
// previously enriched data; use RefreshEntry for an explicit overwrite.
func (s *Store) UpsertEntry(ctx context.Context, entry *CatalogEntry) (int64, bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	// Copy to avoid mutating caller-owned object.
	e := *entry
	e.CreatedAt = now
	e.UpdatedAt = now

	res, err := s.db.NewInsert().
		Model(&e).
		Column(
			"tmdb_id",
			"title",
			"release_date",
			"overview",
			"poster_path",
			"media_type",
			"genre_ids",
			"cast_data",
			"created_at",
			"updated_at",
		).
		On("CONFLICT (tmdb_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return 0, false, err
	}

	if n, err := res.RowsAffected(); err == nil && n == 1 {
		if id, err := res.LastInsertId(); err == nil && id != 0 {
			return id, true, nil
		}
	}
	id, err := s.LocalIDByTMDBID(ctx, e.TMDBID)
	return id, false, err
}

// RefreshEntry overwrites the snapshot fields of an existing catalog row with
// freshly fetched data, keyed by tmdb_id.
func (s *Store) RefreshEntry(ctx context.Context, entry *CatalogEntry) error {
	now := time.Now().UTC().Format(time.RFC3339)

	res, err := s.db.NewUpdate().
		Table("catalog_entries").
		Set("title = ?", entry.Title).
		Set("release_date = ?", entry.ReleaseDate).
		Set("overview = ?", entry.Overview).
		Set("poster_path = ?", entry.PosterPath).
		Set("media_type = ?", entry.MediaType).
		Set("genre_ids = ?", entry.GenreData).
		Set("cast_data = ?", entry.CastData).
		Set("updated_at = ?", now).
		Where("tmdb_id = ?", entry.TMDBID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

func (s *Store) LocalIDByTMDBID(ctx context.Context, tmdbID int64) (int64, error) {
	var id int64
	err := s.db.NewSelect().
		Table("catalog_entries").
		Column("id").
		Where("tmdb_id = ?", tmdbID).
		Scan(ctx, &id)
	if err != nil {
		return 0, mapNoRows(err)
	}
	return id, nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (CatalogEntry, error) {
	var e CatalogEntry
	err := s.db.NewSelect().
		Model(&e).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	return e, mapNoRows(err)
}

func (s *Store) GetEntryByTMDBID(ctx context.Context, tmdbID int64) (CatalogEntry, error) {
	var e CatalogEntry
	err := s.db.NewSelect().
		Model(&e).
		Where("tmdb_id = ?", tmdbID).
		Limit(1).
		Scan(ctx)
	return e, mapNoRows(err)
}

// HasTMDBID is the optional-lookup variant for existence checks; a miss is
// not an error.
func (s *Store) HasTMDBID(ctx context.Context, tmdbID int64) (bool, error) {
	return s.db.NewSelect().
		Table("catalog_entries").
		Where("tmdb_id = ?", tmdbID).
		Exists(ctx)
}

// ListEntries returns every catalog row in discovery (insertion) order.
func (s *Store) ListEntries(ctx context.Context) (out []CatalogEntry, err error) {
	err = s.db.NewSelect().
		Model(&out).
		OrderExpr("id ASC").
		Scan(ctx)
	return out, err
}

// ListRecentlyReleased returns catalog rows ordered by release date
// descending; rows without a date sort last. limit <= 0 means no limit.
func (s *Store) ListRecentlyReleased(ctx context.Context, limit int) (out []CatalogEntry, err error) {
	q := s.db.NewSelect().
		Model(&out).
		OrderExpr("release_date DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err = q.Scan(ctx)
	return out, err
}

// DeleteEntry removes a catalog row; any watchlist entry referencing it goes
// with it via the FK cascade.
func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	res, err := s.db.NewDelete().
		Table("catalog_entries").
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}
