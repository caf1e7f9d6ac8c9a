package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"reeltrack/internal/auth"
	"reeltrack/models"
	"reeltrack/services/watchlist"
)

type storeRegistry interface {
	Get(sessionKey, userID string) *watchlist.Store
}

var _ storeRegistry = (*watchlist.Registry)(nil)

// WatchlistHandler exposes the caller's watchlist store over HTTP. Store
// failures are not HTTP failures: they come back in state.error with ok=false.
type WatchlistHandler struct {
	Stores storeRegistry
}

func NewWatchlistHandler(stores storeRegistry) *WatchlistHandler {
	return &WatchlistHandler{Stores: stores}
}

type watchlistResponse struct {
	OK    bool            `json:"ok"`
	State watchlist.State `json:"state"`
}

// List handles GET /api/watchlist?type=&sort=. Filters are replaced only when
// at least one of the parameters is present.
func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	store, ok := h.requireStore(w, r)
	if !ok {
		return
	}

	filters, err := parseWatchlistFilters(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	store.Fetch(r.Context(), filters)
	state := store.Snapshot()
	writeJSON(w, http.StatusOK, watchlistResponse{OK: state.Error == nil, State: state})
}

// Add handles POST /api/watchlist.
func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	store, ok := h.requireStore(w, r)
	if !ok {
		return
	}

	var body models.WatchlistItemInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	added := store.Add(r.Context(), body)
	writeJSON(w, http.StatusOK, watchlistResponse{OK: added, State: store.Snapshot()})
}

// Update handles PATCH /api/watchlist/{id}.
func (h *WatchlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	store, ok := h.requireStore(w, r)
	if !ok {
		return
	}

	var body models.WatchlistItemUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	updated := store.Update(r.Context(), mux.Vars(r)["id"], body)
	writeJSON(w, http.StatusOK, watchlistResponse{OK: updated, State: store.Snapshot()})
}

// Remove handles DELETE /api/watchlist/{id}.
func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	store, ok := h.requireStore(w, r)
	if !ok {
		return
	}

	removed := store.Remove(r.Context(), mux.Vars(r)["id"])
	writeJSON(w, http.StatusOK, watchlistResponse{OK: removed, State: store.Snapshot()})
}

func (h *WatchlistHandler) requireStore(w http.ResponseWriter, r *http.Request) (*watchlist.Store, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		jsonError(w, "authentication required", http.StatusUnauthorized)
		return nil, false
	}
	return h.Stores.Get(auth.SessionKeyFromContext(r.Context()), userID), true
}

func parseWatchlistFilters(r *http.Request) (*models.WatchlistFilters, error) {
	query := r.URL.Query()
	_, hasType := query["type"]
	_, hasSort := query["sort"]
	if !hasType && !hasSort {
		return nil, nil
	}

	filters := &models.WatchlistFilters{}
	if raw := strings.TrimSpace(query.Get("type")); raw != "" {
		t, err := models.ParseWatchlistType(raw)
		if err != nil {
			return nil, err
		}
		filters.Type = &t
	}
	if raw := strings.TrimSpace(query.Get("sort")); raw != "" {
		s, err := models.ParseWatchlistSort(raw)
		if err != nil {
			return nil, err
		}
		filters.Sort = s
	}
	return filters, nil
}
