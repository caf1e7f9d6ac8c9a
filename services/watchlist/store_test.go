package watchlist

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reeltrack/internal/auth"
	"reeltrack/internal/database"
	"reeltrack/models"
)

// fakeTable is an in-memory Table that mimics an owner-scoped remote table.
type fakeTable struct {
	mu      sync.Mutex
	owner   string
	rows    []models.WatchlistItem
	queries []database.Query
	inserts int

	selectErr error
	insertErr error
	updateErr error
	deleteErr error

	// beforeSelect runs before Select reads rows; used to hold fetches open.
	beforeSelect func(q database.Query)
}

func newFakeTable(owner string) *fakeTable {
	return &fakeTable{owner: owner}
}

func (f *fakeTable) Select(_ context.Context, q database.Query) ([]models.WatchlistItem, error) {
	if f.beforeSelect != nil {
		f.beforeSelect(q)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.selectErr != nil {
		return nil, f.selectErr
	}

	out := []models.WatchlistItem{}
	for _, row := range f.rows {
		if row.UserID != f.owner {
			continue
		}
		if q.Type != nil && row.Type != *q.Type {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		switch q.Order.Column {
		case database.ColumnTitle:
			if q.Order.Ascending {
				return out[i].Title < out[j].Title
			}
			return out[i].Title > out[j].Title
		default:
			if q.Order.Ascending {
				return out[i].WatchedAt.Before(out[j].WatchedAt)
			}
			return out[i].WatchedAt.After(out[j].WatchedAt)
		}
	})
	return out, nil
}

func (f *fakeTable) Insert(_ context.Context, row models.WatchlistRow) (models.WatchlistItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserts++
	if f.insertErr != nil {
		return models.WatchlistItem{}, f.insertErr
	}
	for _, existing := range f.rows {
		if existing.UserID == f.owner && existing.TMDBID == row.TMDBID && existing.Type == row.Type {
			return models.WatchlistItem{}, database.ErrDuplicate
		}
	}
	watched := row.WatchedAt
	if watched.IsZero() {
		watched = time.Now().UTC()
	}
	item := models.WatchlistItem{
		ID:         uuid.NewString(),
		UserID:     f.owner,
		TMDBID:     row.TMDBID,
		Title:      row.Title,
		Type:       row.Type,
		PosterPath: row.PosterPath,
		Year:       row.Year,
		WatchedAt:  watched,
		CreatedAt:  time.Now().UTC(),
	}
	f.rows = append(f.rows, item)
	return item, nil
}

func (f *fakeTable) Update(_ context.Context, id string, upd models.WatchlistItemUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if upd.WatchedAt == nil {
		return nil
	}
	for i := range f.rows {
		if f.rows[i].ID == id && f.rows[i].UserID == f.owner {
			f.rows[i].WatchedAt = *upd.WatchedAt
		}
	}
	return nil
}

func (f *fakeTable) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	kept := f.rows[:0]
	for _, row := range f.rows {
		if row.ID == id && row.UserID == f.owner {
			continue
		}
		kept = append(kept, row)
	}
	f.rows = kept
	return nil
}

func signedIn(userID string) context.Context {
	return auth.WithUserID(context.Background(), userID, "session-"+userID)
}

func ptr[T any](v T) *T { return &v }

func TestStore_InitialState(t *testing.T) {
	store := NewStore(newFakeTable("u1"), nil)
	snap := store.Snapshot()

	assert.NotNil(t, snap.Items)
	assert.Empty(t, snap.Items)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.Error)
	assert.Nil(t, snap.Filters.Type)
	assert.Empty(t, snap.Filters.Sort)
}

func TestStore_FetchAppliesFiltersAndSort(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie, WatchedAt: ptr(base)}))
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 2, Title: "Andor", Type: models.WatchlistTypeSeries, WatchedAt: ptr(base.Add(time.Hour))}))
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 3, Title: "Brazil", Type: models.WatchlistTypeMovie, WatchedAt: ptr(base.Add(2 * time.Hour))}))

	tests := []struct {
		name    string
		filters models.WatchlistFilters
		titles  []string
	}{
		{"default is most recent first", models.WatchlistFilters{}, []string{"Brazil", "Andor", "Dune"}},
		{"watched ascending", models.WatchlistFilters{Sort: models.SortWatchedAsc}, []string{"Dune", "Andor", "Brazil"}},
		{"title ascending", models.WatchlistFilters{Sort: models.SortTitleAsc}, []string{"Andor", "Brazil", "Dune"}},
		{"movies only", models.WatchlistFilters{Type: ptr(models.WatchlistTypeMovie)}, []string{"Brazil", "Dune"}},
		{"series by title", models.WatchlistFilters{Type: ptr(models.WatchlistTypeSeries), Sort: models.SortTitleAsc}, []string{"Andor"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filters := tt.filters
			store.Fetch(ctx, &filters)

			snap := store.Snapshot()
			require.Nil(t, snap.Error)
			assert.False(t, snap.IsLoading)

			var titles []string
			for _, item := range snap.Items {
				titles = append(titles, item.Title)
			}
			assert.Equal(t, tt.titles, titles)
			assert.Equal(t, tt.filters.Sort, snap.Filters.Sort)
		})
	}
}

func TestStore_FetchWithoutFiltersReusesStored(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)

	store.Fetch(context.Background(), &models.WatchlistFilters{Type: ptr(models.WatchlistTypeSeries), Sort: models.SortTitleAsc})
	store.Fetch(context.Background(), nil)

	require.Len(t, table.queries, 2)
	last := table.queries[1]
	require.NotNil(t, last.Type)
	assert.Equal(t, models.WatchlistTypeSeries, *last.Type)
	assert.Equal(t, database.Order{Column: database.ColumnTitle, Ascending: true}, last.Order)
}

func TestStore_FetchFailureClearsItems(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))
	require.Len(t, store.Snapshot().Items, 1)

	table.selectErr = errors.New("connection refused")
	store.Fetch(ctx, nil)

	snap := store.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, "connection refused", *snap.Error)
	assert.Empty(t, snap.Items)
	assert.NotNil(t, snap.Items)
	assert.False(t, snap.IsLoading)

	// A successful fetch clears the error again.
	table.selectErr = nil
	store.Fetch(ctx, nil)
	snap = store.Snapshot()
	assert.Nil(t, snap.Error)
	assert.Len(t, snap.Items, 1)
}

func TestStore_StaleFetchIsDiscarded(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 2, Title: "Andor", Type: models.WatchlistTypeSeries}))

	release := make(chan struct{})
	entered := make(chan struct{})
	table.beforeSelect = func(q database.Query) {
		if q.Type != nil && *q.Type == models.WatchlistTypeMovie {
			close(entered)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		store.Fetch(ctx, &models.WatchlistFilters{Type: ptr(models.WatchlistTypeMovie)})
	}()
	<-entered

	assert.True(t, store.Snapshot().IsLoading)

	store.Fetch(ctx, &models.WatchlistFilters{Type: ptr(models.WatchlistTypeSeries)})
	snap := store.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Andor", snap.Items[0].Title)
	assert.True(t, snap.IsLoading, "older fetch still in flight")

	close(release)
	<-done

	snap = store.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "Andor", snap.Items[0].Title)
	assert.False(t, snap.IsLoading)
}

func TestStore_AddRequiresSession(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)

	ok := store.Add(context.Background(), models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie})

	assert.False(t, ok)
	snap := store.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, AuthRequiredMessage, *snap.Error)
	assert.Zero(t, table.inserts, "no write may be issued without a session")
}

func TestStore_AddBindsOwnerFromSession(t *testing.T) {
	var seen models.WatchlistRow
	table := &recordingTable{fakeTable: newFakeTable("u1"), onInsert: func(row models.WatchlistRow) { seen = row }}
	store := NewStore(table, nil)

	require.True(t, store.Add(signedIn("u1"), models.WatchlistItemInput{TMDBID: 7, Title: "Heat", Type: models.WatchlistTypeMovie}))
	assert.Equal(t, "u1", seen.UserID)

	snap := store.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "u1", snap.Items[0].UserID)
}

func TestStore_AddDuplicateUsesFriendlyMessage(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	input := models.WatchlistItemInput{TMDBID: 603, Title: "The Matrix", Type: models.WatchlistTypeMovie}

	require.True(t, store.Add(ctx, input))
	assert.False(t, store.Add(ctx, input))

	snap := store.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, DuplicateItemMessage, *snap.Error)
	assert.Len(t, snap.Items, 1)

	// Same tmdb id with the other type is a different row.
	input.Type = models.WatchlistTypeSeries
	assert.True(t, store.Add(ctx, input))
	assert.Nil(t, store.Snapshot().Error)
	assert.Len(t, store.Snapshot().Items, 2)
}

func TestStore_AddSurfacesOtherErrors(t *testing.T) {
	table := newFakeTable("u1")
	table.insertErr = errors.New("permission denied for table watchlist")
	store := NewStore(table, nil)

	assert.False(t, store.Add(signedIn("u1"), models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))
	snap := store.Snapshot()
	require.NotNil(t, snap.Error)
	assert.Equal(t, "permission denied for table watchlist", *snap.Error)
}

func TestStore_UpdateAndRemoveRefresh(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))
	id := store.Snapshot().Items[0].ID

	when := time.Date(2020, 5, 4, 12, 0, 0, 0, time.UTC)
	require.True(t, store.Update(ctx, id, models.WatchlistItemUpdate{WatchedAt: &when}))
	assert.True(t, store.Snapshot().Items[0].WatchedAt.Equal(when))

	require.True(t, store.Remove(ctx, id))
	assert.Empty(t, store.Snapshot().Items)

	// Removing an id that no longer exists is not an error.
	assert.True(t, store.Remove(ctx, id))
	assert.Nil(t, store.Snapshot().Error)
}

func TestStore_EmptyUpdateSucceeds(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))
	before := store.Snapshot().Items[0]

	assert.True(t, store.Update(ctx, before.ID, models.WatchlistItemUpdate{}))
	assert.Equal(t, before.WatchedAt, store.Snapshot().Items[0].WatchedAt)
}

func TestStore_WriteFailuresSetError(t *testing.T) {
	table := newFakeTable("u1")
	table.updateErr = errors.New("update failed")
	table.deleteErr = errors.New("delete failed")
	store := NewStore(table, nil)
	ctx := signedIn("u1")

	assert.False(t, store.Update(ctx, "x", models.WatchlistItemUpdate{WatchedAt: ptr(time.Now())}))
	require.NotNil(t, store.Snapshot().Error)
	assert.Equal(t, "update failed", *store.Snapshot().Error)

	assert.False(t, store.Remove(ctx, "x"))
	require.NotNil(t, store.Snapshot().Error)
	assert.Equal(t, "delete failed", *store.Snapshot().Error)
	assert.Empty(t, table.queries, "failed writes do not refresh")
}

func TestStore_SnapshotIsACopy(t *testing.T) {
	store := NewStore(newFakeTable("u1"), nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))

	store.Fetch(ctx, &models.WatchlistFilters{Type: ptr(models.WatchlistTypeMovie)})
	snap := store.Snapshot()
	snap.Items[0].Title = "changed"
	*snap.Filters.Type = models.WatchlistTypeSeries

	again := store.Snapshot()
	assert.Equal(t, "Dune", again.Items[0].Title)
	assert.Equal(t, models.WatchlistTypeMovie, *again.Filters.Type)
}

func TestStore_Reset(t *testing.T) {
	store := NewStore(newFakeTable("u1"), nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))
	store.Fetch(ctx, &models.WatchlistFilters{Sort: models.SortTitleAsc})

	store.Reset()
	snap := store.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Nil(t, snap.Error)
	assert.Empty(t, snap.Filters.Sort)
	assert.False(t, snap.IsLoading)
}

func TestStore_FetchFromBeforeResetLeavesLoadingAlone(t *testing.T) {
	table := newFakeTable("u1")
	store := NewStore(table, nil)
	ctx := signedIn("u1")
	require.True(t, store.Add(ctx, models.WatchlistItemInput{TMDBID: 1, Title: "Dune", Type: models.WatchlistTypeMovie}))

	releaseOld, releaseNew := make(chan struct{}), make(chan struct{})
	enteredOld, enteredNew := make(chan struct{}), make(chan struct{})
	table.beforeSelect = func(q database.Query) {
		if q.Type != nil && *q.Type == models.WatchlistTypeMovie {
			close(enteredOld)
			<-releaseOld
			return
		}
		close(enteredNew)
		<-releaseNew
	}

	oldDone := make(chan struct{})
	go func() {
		defer close(oldDone)
		store.Fetch(ctx, &models.WatchlistFilters{Type: ptr(models.WatchlistTypeMovie)})
	}()
	<-enteredOld

	store.Reset()

	newDone := make(chan struct{})
	go func() {
		defer close(newDone)
		store.Fetch(ctx, &models.WatchlistFilters{Sort: models.SortTitleAsc})
	}()
	<-enteredNew

	close(releaseOld)
	<-oldDone

	snap := store.Snapshot()
	assert.True(t, snap.IsLoading, "fetch issued after reset is still running")
	assert.Empty(t, snap.Items)

	close(releaseNew)
	<-newDone

	snap = store.Snapshot()
	assert.False(t, snap.IsLoading)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, models.SortTitleAsc, snap.Filters.Sort)
}

func TestStore_AgainstSQLite(t *testing.T) {
	db, err := database.NewDB(database.Config{DatabasePath: t.TempDir() + "/watchlist.db"})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	alice := NewStore(db.Watchlist.ForUser("alice"), nil)
	bob := NewStore(db.Watchlist.ForUser("bob"), nil)
	input := models.WatchlistItemInput{TMDBID: 1399, Title: "Game of Thrones", Type: models.WatchlistTypeSeries}

	require.True(t, alice.Add(signedIn("alice"), input))
	require.True(t, bob.Add(signedIn("bob"), input), "same title for another user is allowed")
	assert.False(t, alice.Add(signedIn("alice"), input))
	require.NotNil(t, alice.Snapshot().Error)
	assert.Equal(t, DuplicateItemMessage, *alice.Snapshot().Error)

	aliceID := alice.Snapshot().Items[0].ID
	require.True(t, bob.Remove(signedIn("bob"), aliceID))
	alice.Fetch(signedIn("alice"), nil)
	assert.Len(t, alice.Snapshot().Items, 1, "another user's delete must not reach this row")
}

type recordingTable struct {
	*fakeTable
	onInsert func(models.WatchlistRow)
}

func (r *recordingTable) Insert(ctx context.Context, row models.WatchlistRow) (models.WatchlistItem, error) {
	r.onInsert(row)
	return r.fakeTable.Insert(ctx, row)
}
