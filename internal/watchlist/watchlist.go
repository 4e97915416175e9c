// Package watchlist exposes the user-facing watchlist commands.
package watchlist

import (
	"context"
	"fmt"

	"github.com/handsomefox/upcoming-watchlist/internal/store"
)

// Commands orchestrates watchlist mutations over the store. All integrity
// rules (uniqueness, FK cascade) live in the store; this layer only shapes
// the operations the UI dispatches.
type Commands struct {
	store *store.Store
}

func NewCommands(st *store.Store) *Commands {
	return &Commands{store: st}
}

// Add puts the catalog entry on the watchlist. The entry must already exist
// in the catalog: a watchlist action never creates catalog rows, so an
// unknown id fails with store.ErrNotFound. Adding twice is a no-op.
func (c *Commands) Add(ctx context.Context, catalogID int64) error {
	if err := c.store.AddToWatchlist(ctx, catalogID); err != nil {
		return fmt.Errorf("add to watchlist: %w", err)
	}
	return nil
}

// Remove takes the catalog entry off the watchlist; removing an entry that
// is not on the list is a no-op.
func (c *Commands) Remove(ctx context.Context, catalogID int64) error {
	if err := c.store.RemoveFromWatchlist(ctx, catalogID); err != nil {
		return fmt.Errorf("remove from watchlist: %w", err)
	}
	return nil
}

// ToggleWatched flips the watched flag; fails with store.ErrNotFound when the
// entry is not on the watchlist.
func (c *Commands) ToggleWatched(ctx context.Context, catalogID int64) error {
	if err := c.store.ToggleWatched(ctx, catalogID); err != nil {
		return fmt.Errorf("toggle watched: %w", err)
	}
	return nil
}
