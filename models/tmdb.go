package models

// SearchResult is a movie or TV hit from a multi search, reduced to one shape.
type SearchResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	MediaType   string  `json:"media_type"` // movie | tv
	PosterPath  *string `json:"poster_path"`
	ReleaseDate *string `json:"release_date"`
}

// ShowDetail summarises a TV show and its regular seasons.
type ShowDetail struct {
	ID               int64           `json:"id"`
	Title            string          `json:"title"`
	NumberOfSeasons  int             `json:"number_of_seasons"`
	NumberOfEpisodes int             `json:"number_of_episodes"`
	Seasons          []SeasonSummary `json:"seasons"`
}

type SeasonSummary struct {
	ID           int64   `json:"id"`
	SeasonNumber int     `json:"season_number"`
	Name         string  `json:"name"`
	EpisodeCount int     `json:"episode_count"`
	AirDate      *string `json:"air_date"`
}

// SeasonDetail lists the episodes of one season.
type SeasonDetail struct {
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

type Episode struct {
	ID            int64   `json:"id"`
	EpisodeNumber int     `json:"episode_number"`
	Name          string  `json:"name"`
	Runtime       *int    `json:"runtime"`
	AirDate       *string `json:"air_date"`
}
