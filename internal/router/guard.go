package router

import (
	"sync"
)

// Guard serializes work per conversation. Every mutation path for one
// conversation (message handling, choice and rating submission, close,
// sweep) locks the same entry, so a message arriving while a completion call
// is in flight queues behind it instead of racing stale state. Distinct
// conversations proceed in parallel.
type Guard struct {
	mu    sync.Mutex
	locks map[string]*guardEntry
}

type guardEntry struct {
	mu   sync.Mutex
	refs int
}

// NewGuard creates an empty guard.
func NewGuard() *Guard {
	return &Guard{locks: make(map[string]*guardEntry)}
}

// Lock acquires the serialization lock for a conversation id and returns the
// matching unlock function. Entries are reference counted so the table does
// not grow with dead conversations.
func (g *Guard) Lock(id string) func() {
	g.mu.Lock()
	entry, ok := g.locks[id]
	if !ok {
		entry = &guardEntry{}
		g.locks[id] = entry
	}
	entry.refs++
	g.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()
		g.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(g.locks, id)
		}
		g.mu.Unlock()
	}
}
