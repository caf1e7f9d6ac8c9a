package watchlist

import (
	"context"
	"errors"
	"log"
	"sync"

	"reeltrack/internal/auth"
	"reeltrack/internal/database"
	"reeltrack/models"
)

const (
	// DuplicateItemMessage replaces the raw unique-constraint error on add.
	DuplicateItemMessage = "This title is already in your watchlist"
	// AuthRequiredMessage is reported when a write is attempted without a session.
	AuthRequiredMessage = "You must be signed in to add to your watchlist"
)

// ErrAuthRequired is the error kind behind AuthRequiredMessage.
var ErrAuthRequired = errors.New(AuthRequiredMessage)

// Table is the remote table the store reads and writes.
type Table interface {
	Select(ctx context.Context, q database.Query) ([]models.WatchlistItem, error)
	Insert(ctx context.Context, row models.WatchlistRow) (models.WatchlistItem, error)
	Update(ctx context.Context, id string, upd models.WatchlistItemUpdate) error
	Delete(ctx context.Context, id string) error
}

var _ Table = (*database.OwnedWatchlist)(nil)

// Principal reports the signed-in user for a call, if any.
type Principal func(ctx context.Context) (userID string, ok bool)

// State is what the UI renders: the current list and how it got there.
type State struct {
	Items     []models.WatchlistItem  `json:"items"`
	IsLoading bool                    `json:"isLoading"`
	Error     *string                 `json:"error"`
	Filters   models.WatchlistFilters `json:"filters"`
}

// Store holds one session's watchlist state and the operations that change it.
// Every operation finishes by overwriting the fields it owns; a fetch that
// completes after a newer fetch was issued is discarded.
type Store struct {
	table     Table
	principal Principal

	mu         sync.Mutex
	state      State
	seq        uint64 // id of the most recently issued fetch
	generation uint64 // bumped by Reset; fetches from older generations are ignored
	inflight   int
}

// NewStore creates a store. A nil principal reads the user from the request context.
func NewStore(table Table, principal Principal) *Store {
	if principal == nil {
		principal = auth.UserIDFromContext
	}
	return &Store{
		table:     table,
		principal: principal,
		state:     State{Items: []models.WatchlistItem{}},
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := State{
		Items:     append([]models.WatchlistItem(nil), s.state.Items...),
		IsLoading: s.state.IsLoading,
		Filters:   cloneFilters(s.state.Filters),
	}
	if out.Items == nil {
		out.Items = []models.WatchlistItem{}
	}
	if s.state.Error != nil {
		msg := *s.state.Error
		out.Error = &msg
	}
	return out
}

// Reset returns the store to its initial state and orphans in-flight fetches.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.generation++
	s.inflight = 0
	s.state = State{Items: []models.WatchlistItem{}}
}

// Fetch reloads the list. Non-nil filters replace the stored ones; nil reuses
// them, which is how writes refresh the current view.
func (s *Store) Fetch(ctx context.Context, filters *models.WatchlistFilters) {
	s.mu.Lock()
	if filters != nil {
		s.state.Filters = cloneFilters(*filters)
	}
	active := cloneFilters(s.state.Filters)
	s.seq++
	seq, gen := s.seq, s.generation
	s.inflight++
	s.state.IsLoading = true
	s.state.Error = nil
	s.mu.Unlock()

	items, err := s.table.Select(ctx, buildQuery(active))

	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		log.Printf("[watchlist] discarding fetch %d issued before reset", seq)
		return
	}

	s.inflight--
	if s.inflight == 0 {
		s.state.IsLoading = false
	}

	if seq != s.seq {
		log.Printf("[watchlist] discarding stale fetch %d (latest %d)", seq, s.seq)
		return
	}

	if err != nil {
		log.Printf("[watchlist] fetch failed: %v", err)
		msg := err.Error()
		s.state.Error = &msg
		s.state.Items = []models.WatchlistItem{}
		return
	}
	if items == nil {
		items = []models.WatchlistItem{}
	}
	s.state.Items = items
}

// Add inserts a title for the signed-in user and refreshes the list.
// The owner always comes from the session, never from input.
func (s *Store) Add(ctx context.Context, input models.WatchlistItemInput) bool {
	s.setError(nil)

	userID, ok := s.principal(ctx)
	if !ok {
		msg := ErrAuthRequired.Error()
		s.setError(&msg)
		return false
	}

	row := models.WatchlistRow{
		UserID:     userID,
		TMDBID:     input.TMDBID,
		Title:      input.Title,
		Type:       input.Type,
		PosterPath: input.PosterPath,
		Year:       input.Year,
	}
	if input.WatchedAt != nil {
		row.WatchedAt = *input.WatchedAt
	}

	if _, err := s.table.Insert(ctx, row); err != nil {
		msg := err.Error()
		if errors.Is(err, database.ErrDuplicate) {
			msg = DuplicateItemMessage
		}
		log.Printf("[watchlist] add tmdb=%d type=%s failed: %v", input.TMDBID, input.Type, err)
		s.setError(&msg)
		return false
	}

	s.Fetch(ctx, nil)
	return true
}

// Update changes watched_at of the row with the given id and refreshes the list.
// Ownership is left to the table's access control.
func (s *Store) Update(ctx context.Context, id string, updates models.WatchlistItemUpdate) bool {
	s.setError(nil)

	if err := s.table.Update(ctx, id, updates); err != nil {
		log.Printf("[watchlist] update id=%s failed: %v", id, err)
		msg := err.Error()
		s.setError(&msg)
		return false
	}

	s.Fetch(ctx, nil)
	return true
}

// Remove deletes the row with the given id and refreshes the list.
func (s *Store) Remove(ctx context.Context, id string) bool {
	s.setError(nil)

	if err := s.table.Delete(ctx, id); err != nil {
		log.Printf("[watchlist] remove id=%s failed: %v", id, err)
		msg := err.Error()
		s.setError(&msg)
		return false
	}

	s.Fetch(ctx, nil)
	return true
}

func (s *Store) setError(msg *string) {
	s.mu.Lock()
	s.state.Error = msg
	s.mu.Unlock()
}

// buildQuery maps filters onto a table query. Unknown or empty sorts mean
// most recently watched first.
func buildQuery(f models.WatchlistFilters) database.Query {
	q := database.Query{Type: f.Type}
	switch f.Sort {
	case models.SortWatchedAsc:
		q.Order = database.Order{Column: database.ColumnWatchedAt, Ascending: true}
	case models.SortTitleAsc:
		q.Order = database.Order{Column: database.ColumnTitle, Ascending: true}
	default:
		q.Order = database.Order{Column: database.ColumnWatchedAt, Ascending: false}
	}
	return q
}

func cloneFilters(f models.WatchlistFilters) models.WatchlistFilters {
	out := models.WatchlistFilters{Sort: f.Sort}
	if f.Type != nil {
		t := *f.Type
		out.Type = &t
	}
	return out
}
