// Package handlers wires HTTP routing and API handlers over the catalog and
// watchlist core.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/handsomefox/upcoming-watchlist/internal/query"
	"github.com/handsomefox/upcoming-watchlist/internal/store"
	syncsvc "github.com/handsomefox/upcoming-watchlist/internal/sync"
	"github.com/handsomefox/upcoming-watchlist/internal/tmdb"
	"github.com/handsomefox/upcoming-watchlist/internal/watchlist"
)

const (
	genreCacheTTL        = 24 * time.Hour
	defaultUpcomingLimit = "20"
	defaultSyncPages     = "1"
)

type Handler struct {
	store     *store.Store
	tmdb      *tmdb.Client
	commands  *watchlist.Commands
	sync      *syncsvc.Service
	imageBase string
	genres    genreCache
}

type Config struct {
	Store     *store.Store
	TMDB      *tmdb.Client
	Sync      *syncsvc.Service
	ImageBase string
}

type genreCache struct {
	mu        sync.RWMutex
	taxonomy  map[int64]string
	fetchedAt time.Time
}

func New(cfg *Config) (*Handler, error) {
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.TMDB == nil {
		return nil, errors.New("tmdb client is required")
	}
	if cfg.Sync == nil {
		return nil, errors.New("sync service is required")
	}

	return &Handler{
		store:     cfg.Store,
		tmdb:      cfg.TMDB,
		commands:  watchlist.NewCommands(cfg.Store),
		sync:      cfg.Sync,
		imageBase: cfg.ImageBase,
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/catalog", func(r chi.Router) {
		r.Method(http.MethodGet, "/", Adapt(h.getCatalog))
		r.Method(http.MethodGet, "/upcoming", Adapt(h.getUpcoming))
		r.Method(http.MethodGet, "/{id}", Adapt(h.getEntry))
		r.Method(http.MethodGet, "/{id}/details", Adapt(h.getEntryDetails))
	})

	r.Route("/watchlist", func(r chi.Router) {
		r.Method(http.MethodGet, "/", Adapt(h.getWatchlist))
		r.Method(http.MethodPost, "/{id}", Adapt(h.postWatchlistAdd))
		r.Method(http.MethodDelete, "/{id}", Adapt(h.deleteWatchlistEntry))
		r.Method(http.MethodPost, "/{id}/toggle", Adapt(h.postWatchlistToggle))
	})

	r.Method(http.MethodGet, "/genres", Adapt(h.getGenres))
	r.Method(http.MethodPost, "/sync", Adapt(h.postSync))
}

type entryResponse struct {
	ID          int64              `json:"id"`
	TMDBID      int64              `json:"tmdbId"`
	Title       string             `json:"title"`
	MediaType   string             `json:"mediaType"`
	ReleaseDate *string            `json:"releaseDate,omitempty"`
	Overview    *string            `json:"overview,omitempty"`
	PosterURL   *string            `json:"posterUrl,omitempty"`
	GenreIDs    []int64            `json:"genreIds,omitempty"`
	Cast        []store.CastMember `json:"cast,omitempty"`
	OnWatchlist bool               `json:"onWatchlist"`
}

func (h *Handler) toEntryResponse(e *store.CatalogEntry, onWatchlist bool) entryResponse {
	out := entryResponse{
		ID:          e.ID,
		TMDBID:      e.TMDBID,
		Title:       e.Title,
		MediaType:   e.MediaType,
		ReleaseDate: fromSQLNull(e.ReleaseDate),
		Overview:    fromSQLNull(e.Overview),
		OnWatchlist: onWatchlist,
	}
	if e.PosterPath.Valid && e.PosterPath.V != "" {
		u := h.imageBase + e.PosterPath.V
		out.PosterURL = &u
	}
	if ids, err := e.GenreIDs(); err == nil {
		out.GenreIDs = ids
	}
	if cast, err := e.Cast(); err == nil {
		out.Cast = cast
	}
	return out
}

func (h *Handler) getCatalog(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	entries, err := h.store.ListEntries(ctx)
	if err != nil {
		return err
	}

	entries = query.Search(r.URL.Query().Get("q"), entries)

	if genre := r.URL.Query().Get("genre"); genre != "" && genre != query.GenreAll {
		taxonomy, err := h.taxonomy(ctx)
		if err != nil {
			return err
		}
		entries = query.FilterByGenre(entries, genre, taxonomy)
	}

	return h.respondEntries(ctx, w, entries)
}

func (h *Handler) getUpcoming(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	limit, err := intQuery(r, "limit", defaultUpcomingLimit)
	if err != nil || limit < 1 {
		return badRequest("bad limit")
	}

	entries, err := query.Upcoming(ctx, h.store, limit)
	if err != nil {
		return err
	}
	return h.respondEntries(ctx, w, entries)
}

func (h *Handler) respondEntries(ctx context.Context, w http.ResponseWriter, entries []store.CatalogEntry) error {
	membership, err := h.store.MembershipSet(ctx)
	if err != nil {
		return err
	}

	out := make([]entryResponse, 0, len(entries))
	for i := range entries {
		out = append(out, h.toEntryResponse(&entries[i], membership[entries[i].ID]))
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *Handler) getEntry(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}

	ctx := r.Context()
	entry, err := h.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	membership, err := h.store.MembershipSet(ctx)
	if err != nil {
		return err
	}

	writeJSON(w, http.StatusOK, h.toEntryResponse(&entry, membership[entry.ID]))
	return nil
}

type detailsResponse struct {
	Title       string   `json:"title"`
	Tagline     string   `json:"tagline,omitempty"`
	Overview    string   `json:"overview,omitempty"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	Runtime     int      `json:"runtime,omitempty"`
	Rating      float64  `json:"rating"`
	Votes       int      `json:"votes"`
	Genres      []string `json:"genres,omitempty"`
	Director    string   `json:"director,omitempty"`
	TrailerURL  string   `json:"trailerUrl,omitempty"`
	PosterURL   string   `json:"posterUrl,omitempty"`
}

// getEntryDetails proxies the live detail view (rating, runtime, trailer)
// from the remote service; none of it is persisted locally.
func (h *Handler) getEntryDetails(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}

	ctx := r.Context()
	entry, err := h.store.GetEntry(ctx, id)
	if err != nil {
		return err
	}

	detail, err := h.tmdb.Details(ctx, entry.MediaType, entry.TMDBID)
	if err != nil {
		return err
	}

	resp := detailsResponse{
		Title:       detail.Title,
		Tagline:     detail.Tagline,
		Overview:    detail.Overview,
		ReleaseDate: detail.ReleaseDate,
		Runtime:     detail.Runtime,
		Rating:      detail.VoteAverage,
		Votes:       detail.VoteCount,
		Genres:      detail.Genres,
		Director:    detail.Director,
		TrailerURL:  detail.TrailerURL,
	}
	if detail.PosterPath != "" {
		resp.PosterURL = h.imageBase + detail.PosterPath
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

type watchlistRowResponse struct {
	ID      int64         `json:"id"`
	Watched bool          `json:"watched"`
	AddedAt string        `json:"addedAt"`
	Entry   entryResponse `json:"entry"`
}

func (h *Handler) getWatchlist(w http.ResponseWriter, r *http.Request) error {
	rows, err := h.store.ListWatchlist(r.Context())
	if err != nil {
		return err
	}

	out := make([]watchlistRowResponse, 0, len(rows))
	for _, row := range rows {
		resp := watchlistRowResponse{
			ID:      row.ID,
			Watched: row.Watched,
			AddedAt: row.CreatedAt,
		}
		if row.Entry != nil {
			resp.Entry = h.toEntryResponse(row.Entry, true)
		}
		out = append(out, resp)
	}
	writeJSON(w, http.StatusOK, out)
	return nil
}

func (h *Handler) postWatchlistAdd(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}
	if err := h.commands.Add(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

func (h *Handler) deleteWatchlistEntry(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}
	if err := h.commands.Remove(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

func (h *Handler) postWatchlistToggle(w http.ResponseWriter, r *http.Request) error {
	id, err := idParam(r, "id")
	if err != nil {
		return badRequest(err.Error())
	}
	if err := h.commands.ToggleWatched(r.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusNoContent, nil)
	return nil
}

type genreResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (h *Handler) getGenres(w http.ResponseWriter, r *http.Request) error {
	taxonomy, err := h.taxonomy(r.Context())
	if err != nil {
		return err
	}

	out := make([]genreResponse, 0, len(taxonomy))
	for id, name := range taxonomy {
		out = append(out, genreResponse{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	writeJSON(w, http.StatusOK, out)
	return nil
}

type syncPageResponse struct {
	Page    int    `json:"page"`
	Fetched int    `json:"fetched"`
	Created int    `json:"created"`
	Error   string `json:"error,omitempty"`
}

type syncResponse struct {
	Summary      string             `json:"summary"`
	TotalFetched int                `json:"totalFetched"`
	TotalCreated int                `json:"totalCreated"`
	Pages        []syncPageResponse `json:"pages"`
}

func (h *Handler) postSync(w http.ResponseWriter, r *http.Request) error {
	pages, err := intQuery(r, "pages", defaultSyncPages)
	if err != nil || pages < 1 {
		return badRequest("bad pages")
	}

	report, err := h.sync.Run(r.Context(), pages)
	if err != nil {
		return err
	}

	resp := syncResponse{
		Summary:      report.Summary(),
		TotalFetched: report.TotalFetched(),
		TotalCreated: report.TotalCreated(),
	}
	for _, p := range report.Pages {
		pr := syncPageResponse{Page: p.Page, Fetched: p.Fetched, Created: p.Created}
		if p.Err != nil {
			pr.Error = p.Err.Error()
		}
		resp.Pages = append(resp.Pages, pr)
	}
	writeJSON(w, http.StatusOK, resp)
	return nil
}

// taxonomy returns the cached id→name genre mapping, refreshing it from the
// remote service when stale.
func (h *Handler) taxonomy(ctx context.Context) (map[int64]string, error) {
	h.genres.mu.RLock()
	cached := h.genres.taxonomy
	fresh := time.Since(h.genres.fetchedAt) < genreCacheTTL
	h.genres.mu.RUnlock()
	if cached != nil && fresh {
		return cached, nil
	}

	taxonomy, err := h.tmdb.GenreTaxonomy(ctx)
	if err != nil {
		if cached != nil {
			slog.Warn("genre refresh failed, serving stale taxonomy", slog.Any("err", err))
			return cached, nil
		}
		return nil, err
	}

	h.genres.mu.Lock()
	h.genres.taxonomy = taxonomy
	h.genres.fetchedAt = time.Now()
	h.genres.mu.Unlock()
	return taxonomy, nil
}
