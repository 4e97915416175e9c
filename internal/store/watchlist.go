package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/uptrace/bun"
)

// AddToWatchlist puts the catalog entry with the given local id on the
// watchlist. Adding an entry that is already on the list is a no-op; adding
// one that is not in the catalog fails with ErrNotFound.
func (s *Store) AddToWatchlist(ctx context.Context, catalogID int64) error {
	return s.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().
			Table("catalog_entries").
			Where("id = ?", catalogID).
			Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		entry := &WatchlistEntry{
			CatalogID: catalogID,
			Watched:   false,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		_, err = tx.NewInsert().
			Model(entry).
			Column("catalog_id", "watched", "created_at").
			On("CONFLICT (catalog_id) DO NOTHING").
			Exec(ctx)
		return err
	})
}

// RemoveFromWatchlist drops the watchlist entry for the catalog id if one
// exists. Removing an absent entry is a no-op.
func (s *Store) RemoveFromWatchlist(ctx context.Context, catalogID int64) error {
	_, err := s.db.NewDelete().
		Table("watchlist_entries").
		Where("catalog_id = ?", catalogID).
		Exec(ctx)
	return err
}

// ToggleWatched flips the watched flag on the watchlist entry for the catalog
// id. Fails with ErrNotFound when the entry is not on the watchlist.
func (s *Store) ToggleWatched(ctx context.Context, catalogID int64) error {
	res, err := s.db.NewUpdate().
		Table("watchlist_entries").
		Set("watched = NOT watched").
		Where("catalog_id = ?", catalogID).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectRowsAffected(res)
}

// MembershipSet returns the catalog ids currently on the watchlist, for O(1)
// membership checks when rendering listings.
func (s *Store) MembershipSet(ctx context.Context) (map[int64]bool, error) {
	var ids []int64
	err := s.db.NewSelect().
		Table("watchlist_entries").
		Column("catalog_id").
		Scan(ctx, &ids)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}

// ListWatchlist returns all watchlist entries joined with their catalog rows,
// oldest-added first.
func (s *Store) ListWatchlist(ctx context.Context) (out []WatchlistEntry, err error) {
	err = s.db.NewSelect().
		Model(&out).
		Relation("Entry").
		OrderExpr("we.id ASC").
		Scan(ctx)
	return out, err
}
