package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// NATSStore is a Store backed by a JetStream key-value bucket, for
// deployments where conversation state must survive process restarts or be
// shared across instances.
type NATSStore struct {
	kv jetstream.KeyValue
}

// NewNATSStore creates (or binds to) the named KV bucket.
func NewNATSStore(ctx context.Context, js jetstream.JetStream, bucket string) (*NATSStore, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Live-chat conversation state",
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket: %w", err)
	}
	return &NATSStore{kv: kv}, nil
}

// Get retrieves a conversation by id.
func (s *NATSStore) Get(ctx context.Context, id string) (*model.Conversation, error) {
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	var conv model.Conversation
	if err := json.Unmarshal(entry.Value(), &conv); err != nil {
		return nil, fmt.Errorf("failed to decode conversation: %w", err)
	}
	return &conv, nil
}

// Put stores a conversation.
func (s *NATSStore) Put(ctx context.Context, conv *model.Conversation) error {
	data, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("failed to encode conversation: %w", err)
	}
	if _, err := s.kv.Put(ctx, conv.ID, data); err != nil {
		return fmt.Errorf("failed to put conversation: %w", err)
	}
	return nil
}

// Delete removes a conversation.
func (s *NATSStore) Delete(ctx context.Context, id string) error {
	if err := s.kv.Delete(ctx, id); err != nil && !errors.Is(err, jetstream.ErrKeyNotFound) {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// List returns all stored conversations.
func (s *NATSStore) List(ctx context.Context) ([]*model.Conversation, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}

	out := make([]*model.Conversation, 0, len(keys))
	for _, key := range keys {
		conv, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			out = append(out, conv)
		}
	}
	return out, nil
}
