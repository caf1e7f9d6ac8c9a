package tmdb

//go:generate mockgen -source=service.go -destination=mock_fetcher_test.go -package=tmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"reeltrack/models"
)

// Fetcher is the part of Gateway the proxy operations depend on.
type Fetcher interface {
	Configured() bool
	Fetch(ctx context.Context, path string, query url.Values, out any) error
}

var _ Fetcher = (*Gateway)(nil)

// Service turns TMDB payloads into the app's own search, show and season records.
type Service struct {
	fetcher Fetcher
}

// NewService creates a service on top of the given fetcher.
func NewService(fetcher Fetcher) *Service {
	return &Service{fetcher: fetcher}
}

type rawSearchResponse struct {
	Results json.RawMessage `json:"results"`
}

type rawSearchResult struct {
	ID           int64   `json:"id"`
	MediaType    string  `json:"media_type"`
	Title        *string `json:"title"`
	Name         *string `json:"name"`
	PosterPath   *string `json:"poster_path"`
	ReleaseDate  *string `json:"release_date"`
	FirstAirDate *string `json:"first_air_date"`
}

// SearchMulti searches movies and TV together. A blank query returns an empty
// result without contacting TMDB; person and other result kinds are dropped.
func (s *Service) SearchMulti(ctx context.Context, query string) ([]models.SearchResult, error) {
	if !s.fetcher.Configured() {
		return nil, ErrNotConfigured
	}
	if strings.TrimSpace(query) == "" {
		return []models.SearchResult{}, nil
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("include_adult", "true")
	params.Set("page", "1")

	var resp rawSearchResponse
	if err := s.fetcher.Fetch(ctx, "/search/multi", params, &resp); err != nil {
		return nil, err
	}

	var raw []rawSearchResult
	if trimmed := bytes.TrimSpace(resp.Results); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, &UpstreamError{Message: fmt.Sprintf("decode search results: %v", err)}
		}
	}

	results := make([]models.SearchResult, 0, len(raw))
	for _, r := range raw {
		if r.MediaType != "movie" && r.MediaType != "tv" {
			continue
		}
		results = append(results, models.SearchResult{
			ID:          r.ID,
			Title:       firstNonNil(r.Title, r.Name, ""),
			MediaType:   r.MediaType,
			PosterPath:  r.PosterPath,
			ReleaseDate: coalesce(r.ReleaseDate, r.FirstAirDate),
		})
	}
	return results, nil
}

type rawShow struct {
	ID               int64       `json:"id"`
	Name             string      `json:"name"`
	NumberOfSeasons  int         `json:"number_of_seasons"`
	NumberOfEpisodes int         `json:"number_of_episodes"`
	Seasons          []rawSeason `json:"seasons"`
}

type rawSeason struct {
	ID           int64   `json:"id"`
	SeasonNumber int     `json:"season_number"`
	Name         string  `json:"name"`
	EpisodeCount int     `json:"episode_count"`
	AirDate      *string `json:"air_date"`
}

// ShowDetail returns a show with its regular seasons. Season 0 ("Specials")
// and anything below it is left out.
func (s *Service) ShowDetail(ctx context.Context, id int64) (*models.ShowDetail, error) {
	var raw rawShow
	if err := s.fetcher.Fetch(ctx, fmt.Sprintf("/tv/%d", id), nil, &raw); err != nil {
		return nil, err
	}

	seasons := make([]models.SeasonSummary, 0, len(raw.Seasons))
	for _, season := range raw.Seasons {
		if season.SeasonNumber < 1 {
			continue
		}
		seasons = append(seasons, models.SeasonSummary{
			ID:           season.ID,
			SeasonNumber: season.SeasonNumber,
			Name:         season.Name,
			EpisodeCount: season.EpisodeCount,
			AirDate:      season.AirDate,
		})
	}

	return &models.ShowDetail{
		ID:               raw.ID,
		Title:            raw.Name,
		NumberOfSeasons:  raw.NumberOfSeasons,
		NumberOfEpisodes: raw.NumberOfEpisodes,
		Seasons:          seasons,
	}, nil
}

type rawSeasonDetail struct {
	SeasonNumber int          `json:"season_number"`
	Episodes     []rawEpisode `json:"episodes"`
}

type rawEpisode struct {
	ID            int64   `json:"id"`
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name"`
	Runtime       *int    `json:"runtime"`
	AirDate       *string `json:"air_date"`
}

// SeasonDetail returns the episodes of one season of a show.
func (s *Service) SeasonDetail(ctx context.Context, id int64, season int) (*models.SeasonDetail, error) {
	var raw rawSeasonDetail
	if err := s.fetcher.Fetch(ctx, fmt.Sprintf("/tv/%d/season/%d", id, season), nil, &raw); err != nil {
		return nil, err
	}

	episodes := make([]models.Episode, 0, len(raw.Episodes))
	for _, ep := range raw.Episodes {
		episodes = append(episodes, models.Episode{
			ID:            ep.ID,
			EpisodeNumber: ep.EpisodeNumber,
			Name:          ep.Name,
			Runtime:       ep.Runtime,
			AirDate:       ep.AirDate,
		})
	}

	return &models.SeasonDetail{
		SeasonNumber: raw.SeasonNumber,
		Episodes:     episodes,
	}, nil
}

func firstNonNil(a, b *string, fallback string) string {
	if a != nil {
		return *a
	}
	if b != nil {
		return *b
	}
	return fallback
}

func coalesce(a, b *string) *string {
	if a != nil {
		return a
	}
	return b
}
