package models

import (
	"fmt"
	"time"
)

// WatchlistType is the kind of title stored in a watchlist row.
type WatchlistType string

const (
	WatchlistTypeMovie  WatchlistType = "movie"
	WatchlistTypeSeries WatchlistType = "series"
)

// Valid reports whether t is one of the known watchlist types.
func (t WatchlistType) Valid() bool {
	return t == WatchlistTypeMovie || t == WatchlistTypeSeries
}

// ParseWatchlistType converts a raw value into a WatchlistType.
func ParseWatchlistType(raw string) (WatchlistType, error) {
	t := WatchlistType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("unknown watchlist type %q", raw)
	}
	return t, nil
}

// WatchlistSort selects the ordering applied when listing a watchlist.
type WatchlistSort string

const (
	SortWatchedDesc WatchlistSort = "watched_desc" // default
	SortWatchedAsc  WatchlistSort = "watched_asc"
	SortTitleAsc    WatchlistSort = "title_asc"
)

// ParseWatchlistSort converts a raw value into a WatchlistSort.
func ParseWatchlistSort(raw string) (WatchlistSort, error) {
	switch s := WatchlistSort(raw); s {
	case SortWatchedDesc, SortWatchedAsc, SortTitleAsc:
		return s, nil
	}
	return "", fmt.Errorf("unknown watchlist sort %q", raw)
}

// WatchlistItem is a persisted record of a title the user has watched.
type WatchlistItem struct {
	ID         string        `json:"id"`
	UserID     string        `json:"user_id"`
	TMDBID     int64         `json:"tmdb_id"`
	Title      string        `json:"title"`
	Type       WatchlistType `json:"type"`
	PosterPath *string       `json:"poster_path"`
	Year       *int          `json:"year"`
	WatchedAt  time.Time     `json:"watched_at"`
	CreatedAt  time.Time     `json:"created_at"`
}

// WatchlistItemInput captures the caller-supplied fields of a new watchlist row.
// The owner is always taken from the session, so there is no user id here.
type WatchlistItemInput struct {
	TMDBID     int64         `json:"tmdb_id"`
	Title      string        `json:"title"`
	Type       WatchlistType `json:"type"`
	PosterPath *string       `json:"poster_path,omitempty"`
	Year       *int          `json:"year,omitempty"`
	WatchedAt  *time.Time    `json:"watched_at,omitempty"`
}

// WatchlistItemUpdate is a partial update. Only watched_at is mutable.
type WatchlistItemUpdate struct {
	WatchedAt *time.Time `json:"watched_at,omitempty"`
}

// WatchlistFilters describes what a watchlist fetch should request.
type WatchlistFilters struct {
	Type *WatchlistType `json:"type,omitempty"`
	Sort WatchlistSort  `json:"sort,omitempty"`
}

// WatchlistRow is the insert shape handed to the persistence layer.
type WatchlistRow struct {
	UserID     string
	TMDBID     int64
	Title      string
	Type       WatchlistType
	PosterPath *string
	Year       *int
	WatchedAt  time.Time
}
