package media

import (
	"sort"
	"sync"
)

// SessionTokens are the three per-session subscriptions held for one player.
type SessionTokens struct {
	Metadata Token
	Playback Token
	Timeline Token
}

// Entry is a registry record: the session handle and the tokens needed to
// unsubscribe from it.
type Entry struct {
	Session Session
	Tokens  SessionTokens
}

// Registry maps a player id to its attached subscriptions.
// The lock is held only for the map operation itself, never across a platform call.
type Registry struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Contains reports whether playerID has an entry.
func (r *Registry) Contains(playerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[playerID]
	return ok
}

// Get returns the entry for playerID.
func (r *Registry) Get(playerID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[playerID]
	return e, ok
}

// InsertIfAbsent stores e under playerID unless an entry already exists.
// It reports whether e was stored.
func (r *Registry) InsertIfAbsent(playerID string, e Entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[playerID]; ok {
		return false
	}
	r.entries[playerID] = e
	return true
}

// Remove deletes and returns the entry for playerID. Lookup and removal are a
// single critical section, so concurrent removals of the same id see it once.
func (r *Registry) Remove(playerID string) (Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[playerID]
	if ok {
		delete(r.entries, playerID)
	}
	return e, ok
}

// PlayerIDs returns the registered ids in sorted order.
func (r *Registry) PlayerIDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Strings(ids)
	return ids
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
