// Package state provides conversation state storage.
package state

import (
	"context"
	"sync"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// Store is the conversation state container. Get returns (nil, nil) for an
// unknown id. Implementations hold no eviction policy of their own; idle
// reclamation is owned by the session lifecycle.
type Store interface {
	Get(ctx context.Context, id string) (*model.Conversation, error)
	Put(ctx context.Context, conv *model.Conversation) error
	Delete(ctx context.Context, id string) error

	// List returns all stored conversations, for the session sweeper.
	List(ctx context.Context) ([]*model.Conversation, error)
}

// MemoryStore is the in-memory Store implementation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*model.Conversation
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*model.Conversation),
	}
}

// Get retrieves a conversation by id.
func (s *MemoryStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil, nil
	}

	// Copy out so callers never share mutable state with the map.
	cp := *conv
	cp.History = append([]model.Turn(nil), conv.History...)
	return &cp, nil
}

// Put stores a conversation, replacing any existing entry.
func (s *MemoryStore) Put(ctx context.Context, conv *model.Conversation) error {
	cp := *conv
	cp.History = append([]model.Turn(nil), conv.History...)

	s.mu.Lock()
	s.conversations[conv.ID] = &cp
	s.mu.Unlock()
	return nil
}

// Delete removes a conversation. Deleting an unknown id is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.conversations, id)
	s.mu.Unlock()
	return nil
}

// List returns all stored conversations.
func (s *MemoryStore) List(ctx context.Context) ([]*model.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		cp := *conv
		cp.History = append([]model.Turn(nil), conv.History...)
		out = append(out, &cp)
	}
	return out, nil
}
