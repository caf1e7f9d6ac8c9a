package handlers

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"reeltrack/models"
	"reeltrack/services/tmdb"
)

type tmdbService interface {
	SearchMulti(ctx context.Context, query string) ([]models.SearchResult, error)
	ShowDetail(ctx context.Context, id int64) (*models.ShowDetail, error)
	SeasonDetail(ctx context.Context, id int64, season int) (*models.SeasonDetail, error)
}

var _ tmdbService = (*tmdb.Service)(nil)

// TMDBHandler proxies search, show and season lookups to TMDB.
type TMDBHandler struct {
	Service tmdbService
}

func NewTMDBHandler(service tmdbService) *TMDBHandler {
	return &TMDBHandler{Service: service}
}

// Search handles GET /api/tmdb/search?query=.
func (h *TMDBHandler) Search(w http.ResponseWriter, r *http.Request) {
	results, err := h.Service.SearchMulti(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeTMDBError(w, "search", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// ShowDetail handles GET /api/tmdb/tv/{id}.
func (h *TMDBHandler) ShowDetail(w http.ResponseWriter, r *http.Request) {
	id, ok := parseNumericParam(mux.Vars(r)["id"])
	if !ok {
		jsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}

	show, err := h.Service.ShowDetail(r.Context(), id)
	if err != nil {
		writeTMDBError(w, "show", err)
		return
	}
	writeJSON(w, http.StatusOK, show)
}

// SeasonDetail handles GET /api/tmdb/tv/{id}/season/{season}.
func (h *TMDBHandler) SeasonDetail(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id, ok := parseNumericParam(vars["id"])
	if !ok {
		jsonError(w, "Invalid id", http.StatusBadRequest)
		return
	}
	season, ok := parseNumericParam(vars["season"])
	if !ok || season > math.MaxInt32 || season < math.MinInt32 {
		jsonError(w, "Invalid season", http.StatusBadRequest)
		return
	}

	detail, err := h.Service.SeasonDetail(r.Context(), id, int(season))
	if err != nil {
		writeTMDBError(w, "season", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// parseNumericParam accepts anything that reads as a finite number, as long
// as it is a whole one: "42", " 42 ", "42.0" and "4.2e1" all give 42.
func parseNumericParam(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, true
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func writeTMDBError(w http.ResponseWriter, op string, err error) {
	var upstream *tmdb.UpstreamError
	switch {
	case errors.Is(err, tmdb.ErrNotConfigured):
		jsonError(w, err.Error(), http.StatusInternalServerError)
	case errors.As(err, &upstream):
		log.Printf("[tmdb] %s failed: %v", op, err)
		jsonError(w, upstream.Error(), http.StatusBadGateway)
	default:
		log.Printf("[tmdb] %s failed: %v", op, err)
		jsonError(w, (&tmdb.UpstreamError{Message: err.Error()}).Error(), http.StatusBadGateway)
	}
}
