package store

import (
	"database/sql"
	"encoding/json"

	"github.com/uptrace/bun"
)

const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// CastMember is one billed cast credit, denormalized into the catalog row at
// sync time.
type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character"`
}

// CatalogEntry is a locally persisted snapshot of one remote title. Genre ids
// and cast are stored as JSON text columns; use the accessors below rather
// than touching GenreData/CastData directly.
type CatalogEntry struct {
	bun.BaseModel `bun:"table:catalog_entries,alias:ce"`

	ID          int64            `bun:"id,pk,autoincrement"`
	TMDBID      int64            `bun:"tmdb_id,notnull"`
	Title       string           `bun:"title,notnull"`
	ReleaseDate sql.Null[string] `bun:"release_date,nullzero"`
	Overview    sql.Null[string] `bun:"overview,nullzero"`
	PosterPath  sql.Null[string] `bun:"poster_path,nullzero"`
	MediaType   string           `bun:"media_type,notnull"`
	GenreData   sql.Null[string] `bun:"genre_ids,nullzero"`
	CastData    sql.Null[string] `bun:"cast_data,nullzero"`

	CreatedAt string `bun:"created_at,notnull"`
	UpdatedAt string `bun:"updated_at,notnull"`
}

func (e *CatalogEntry) GenreIDs() ([]int64, error) {
	if !e.GenreData.Valid || e.GenreData.V == "" {
		return nil, nil
	}
	var ids []int64
	if err := json.Unmarshal([]byte(e.GenreData.V), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

func (e *CatalogEntry) SetGenreIDs(ids []int64) error {
	if ids == nil {
		e.GenreData = sql.Null[string]{}
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	e.GenreData = sql.Null[string]{Valid: true, V: string(raw)}
	return nil
}

func (e *CatalogEntry) Cast() ([]CastMember, error) {
	if !e.CastData.Valid || e.CastData.V == "" {
		return nil, nil
	}
	var cast []CastMember
	if err := json.Unmarshal([]byte(e.CastData.V), &cast); err != nil {
		return nil, err
	}
	return cast, nil
}

func (e *CatalogEntry) SetCast(cast []CastMember) error {
	if cast == nil {
		e.CastData = sql.Null[string]{}
		return nil
	}
	raw, err := json.Marshal(cast)
	if err != nil {
		return err
	}
	e.CastData = sql.Null[string]{Valid: true, V: string(raw)}
	return nil
}

// WatchlistEntry marks one catalog entry as tracked by the user. At most one
// exists per catalog entry, and it never outlives the referenced row.
type WatchlistEntry struct {
	bun.BaseModel `bun:"table:watchlist_entries,alias:we"`

	ID        int64  `bun:"id,pk,autoincrement"`
	CatalogID int64  `bun:"catalog_id,notnull"`
	Watched   bool   `bun:"watched,notnull"`
	CreatedAt string `bun:"created_at,notnull"`

	Entry *CatalogEntry `bun:"rel:belongs-to,join:catalog_id=id"`
}
