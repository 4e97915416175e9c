// Package sync reconciles the local catalog with the remote upcoming-movies
// feed.
package sync

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sourcegraph/conc/iter"

	"github.com/handsomefox/upcoming-watchlist/internal/logger"
	"github.com/handsomefox/upcoming-watchlist/internal/store"
	"github.com/handsomefox/upcoming-watchlist/internal/tmdb"
)

// castLimit bounds how many billed cast members are persisted per title,
// matching what the detail view displays.
const castLimit = 5

// CatalogClient is the slice of the remote API the synchronizer needs.
// *tmdb.Client satisfies it.
type CatalogClient interface {
	Upcoming(ctx context.Context, page int) ([]tmdb.ListingItem, error)
	Credits(ctx context.Context, id int64) ([]tmdb.CastMember, error)
}

type Service struct {
	client CatalogClient
	store  *store.Store
	log    *slog.Logger
}

func New(client CatalogClient, st *store.Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{client: client, store: st, log: log}
}

// PageReport records the outcome of syncing one listing page.
type PageReport struct {
	Page    int   `json:"page"`
	Fetched int   `json:"fetched"`
	Created int   `json:"created"`
	Err     error `json:"-"`
}

type Report struct {
	Pages []PageReport `json:"pages"`
}

func (r *Report) TotalFetched() int {
	total := 0
	for _, p := range r.Pages {
		total += p.Fetched
	}
	return total
}

func (r *Report) TotalCreated() int {
	total := 0
	for _, p := range r.Pages {
		total += p.Created
	}
	return total
}

// Summary renders the per-page outcome, including pages that fetched nothing.
func (r *Report) Summary() string {
	parts := make([]string, 0, len(r.Pages))
	for _, p := range r.Pages {
		if p.Err != nil {
			parts = append(parts, fmt.Sprintf("page %d: fetched 0 items (%v)", p.Page, p.Err))
			continue
		}
		parts = append(parts, fmt.Sprintf("page %d: fetched %d items, %d new", p.Page, p.Fetched, p.Created))
	}
	return strings.Join(parts, "; ")
}

// Run syncs pages 1..pages of the upcoming feed into the catalog. Remote
// failures are best-effort: a failed page fetch is recorded and the remaining
// pages still run, and a failed cast fetch degrades to an empty cast list.
// Only a store failure aborts the run; the partial report is returned with
// the error.
func (s *Service) Run(ctx context.Context, pages int) (*Report, error) {
	if pages < 1 {
		pages = 1
	}

	report := &Report{}
	for page := 1; page <= pages; page++ {
		pr := s.syncPage(ctx, page)
		report.Pages = append(report.Pages, pr)
		if isStoreErr(pr.Err) {
			return report, pr.Err
		}
		if pr.Err != nil {
			continue
		}
		s.log.Info("synced page",
			slog.Int("page", page),
			slog.Int("fetched", pr.Fetched),
			slog.Int("created", pr.Created))
	}
	return report, nil
}

type storeErr struct{ err error }

func (e storeErr) Error() string { return e.err.Error() }
func (e storeErr) Unwrap() error { return e.err }

func isStoreErr(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(storeErr)
	return ok
}

func (s *Service) syncPage(ctx context.Context, page int) PageReport {
	items, err := s.client.Upcoming(ctx, page)
	if err != nil {
		s.log.Warn("page fetch failed", slog.Int("page", page), logger.Error(err))
		return PageReport{Page: page, Err: err}
	}

	// Cast fetches fan out concurrently; iter.Map keeps results in listing
	// order so upserts happen in catalog discovery order.
	casts := iter.Map(items, func(item *tmdb.ListingItem) []store.CastMember {
		cast, err := s.client.Credits(ctx, item.ID)
		if err != nil {
			s.log.Warn("cast fetch failed",
				slog.Int64("tmdb_id", item.ID),
				logger.Error(err))
			return nil
		}
		if len(cast) > castLimit {
			cast = cast[:castLimit]
		}
		out := make([]store.CastMember, 0, len(cast))
		for _, m := range cast {
			out = append(out, store.CastMember{Name: m.Name, Character: m.Character})
		}
		return out
	})

	pr := PageReport{Page: page, Fetched: len(items)}
	for i, item := range items {
		entry, err := buildEntry(item, casts[i])
		if err != nil {
			s.log.Warn("skipping malformed item",
				slog.Int64("tmdb_id", item.ID),
				logger.Error(err))
			continue
		}

		_, created, err := s.store.UpsertEntry(ctx, entry)
		if err != nil {
			pr.Err = storeErr{err: fmt.Errorf("upsert %d: %w", item.ID, err)}
			return pr
		}
		if created {
			pr.Created++
		}
	}
	return pr
}

func buildEntry(item tmdb.ListingItem, cast []store.CastMember) (*store.CatalogEntry, error) {
	entry := &store.CatalogEntry{
		TMDBID:    item.ID,
		Title:     item.DisplayTitle(),
		MediaType: store.MediaTypeMovie,
	}
	if v := strings.TrimSpace(item.Overview); v != "" {
		entry.Overview = sql.Null[string]{Valid: true, V: v}
	}
	if v := strings.TrimSpace(item.PosterPath); v != "" {
		entry.PosterPath = sql.Null[string]{Valid: true, V: v}
	}
	// A malformed date must not abort the batch; it is stored as absent.
	if date, ok := parseReleaseDate(item.ReleaseDate); ok {
		entry.ReleaseDate = sql.Null[string]{Valid: true, V: date}
	}
	if err := entry.SetGenreIDs([]int64(item.GenreIDs)); err != nil {
		return nil, err
	}
	if err := entry.SetCast(cast); err != nil {
		return nil, err
	}
	return entry, nil
}

func parseReleaseDate(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return "", false
	}
	return t.Format(time.DateOnly), true
}
