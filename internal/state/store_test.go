package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

func sampleConversation(id string) *model.Conversation {
	now := time.Now().UTC()
	return &model.Conversation{
		ID:         id,
		TenantID:   "acme",
		CustomerID: "cust-1",
		Department: model.DepartmentGeneral,
		Step:       model.StepConversation,
		History: []model.Turn{
			{Role: model.RoleAssistant, Content: "Hi!"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, sampleConversation("c1")))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ID)
	assert.Equal(t, "acme", got.TenantID)
	require.Len(t, got.History, 1)
}

func TestMemoryStoreGetUnknownIsNilNil(t *testing.T) {
	got, err := NewMemoryStore().Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryStoreCopiesOnPutAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	conv := sampleConversation("c1")
	require.NoError(t, s.Put(ctx, conv))

	// Mutating the caller's copy after Put must not leak into the store.
	conv.Department = model.DepartmentBilling
	conv.History = append(conv.History, model.Turn{Role: model.RoleUser, Content: "hello"})

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentGeneral, got.Department)
	assert.Len(t, got.History, 1)

	// Mutating a Get result must not leak either.
	got.History[0].Content = "tampered"
	again, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Hi!", again.History[0].Content)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, sampleConversation("c1")))
	require.NoError(t, s.Delete(ctx, "c1"))

	got, err := s.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Double delete stays a no-op.
	require.NoError(t, s.Delete(ctx, "c1"))
}

func TestMemoryStoreList(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	require.NoError(t, s.Put(ctx, sampleConversation("c1")))
	require.NoError(t, s.Put(ctx, sampleConversation("c2")))

	all, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ids := map[string]bool{}
	for _, c := range all {
		ids[c.ID] = true
	}
	assert.True(t, ids["c1"] && ids["c2"])
}
