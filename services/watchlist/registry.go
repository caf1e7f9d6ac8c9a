package watchlist

import (
	"log"
	"sync"
)

// TableFactory opens the watchlist table on behalf of one user.
type TableFactory func(userID string) Table

// Registry owns one Store per signed-in session. A store is created the first
// time a session touches its watchlist and dropped when the session ends.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*registryEntry
	tables TableFactory
}

type registryEntry struct {
	userID string
	store  *Store
}

// NewRegistry creates an empty registry.
func NewRegistry(tables TableFactory) *Registry {
	return &Registry{
		stores: make(map[string]*registryEntry),
		tables: tables,
	}
}

// Get returns the store for sessionKey, creating it for userID if needed.
func (r *Registry) Get(sessionKey, userID string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.stores[sessionKey]; ok && entry.userID == userID {
		return entry.store
	}

	store := NewStore(r.tables(userID), nil)
	r.stores[sessionKey] = &registryEntry{userID: userID, store: store}
	return store
}

// Drop resets and forgets the store for sessionKey.
func (r *Registry) Drop(sessionKey string) {
	r.mu.Lock()
	entry, ok := r.stores[sessionKey]
	delete(r.stores, sessionKey)
	r.mu.Unlock()

	if ok {
		entry.store.Reset()
		log.Printf("[watchlist] dropped store for user %s", entry.userID)
	}
}

// Len returns the number of live stores.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
