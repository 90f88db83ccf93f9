package pipeline

import (
	"sort"
	"sync"
)

// Library maps document ids and content hashes to indexed handles. Handles
// are immutable: replacing or evicting one never affects a query that already
// holds it.
type Library struct {
	mu     sync.RWMutex
	byID   map[string]*Handle
	byHash map[string]*Handle
}

func NewLibrary() *Library {
	return &Library{
		byID:   make(map[string]*Handle),
		byHash: make(map[string]*Handle),
	}
}

// Add stores h unless a handle with the same content hash exists, in which
// case the existing handle is returned.
func (l *Library) Add(h *Handle) *Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, ok := l.byHash[h.Hash]; ok {
		return existing
	}
	l.byID[h.ID] = h
	l.byHash[h.Hash] = h
	return h
}

func (l *Library) Get(id string) (*Handle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.byID[id]
	return h, ok
}

func (l *Library) Lookup(hash string) (*Handle, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	h, ok := l.byHash[hash]
	return h, ok
}

// Evict drops the handle with the given id so the next IndexDocument call
// for the same content rebuilds it.
func (l *Library) Evict(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	h, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	delete(l.byHash, h.Hash)
	return true
}

// List returns all handles, oldest first.
func (l *Library) List() []*Handle {
	l.mu.RLock()
	out := make([]*Handle, 0, len(l.byID))
	for _, h := range l.byID {
		out = append(out, h)
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}
