package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/livechat-platform/internal/events"
	"github.com/capitalize-ai/livechat-platform/internal/flow"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/internal/router"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
)

type managerFixture struct {
	manager  *Manager
	store    *state.MemoryStore
	recorder *events.Recorder
}

func newManagerFixture(t *testing.T, engine *flow.Engine, opts Options) *managerFixture {
	t.Helper()

	log := logger.NewNop()
	store := state.NewMemoryStore()
	recorder := &events.Recorder{}
	registry := persona.NewRegistry(log)
	m := NewManager(store, registry, engine, recorder, router.NewGuard(), opts, log)
	return &managerFixture{manager: m, store: store, recorder: recorder}
}

func TestStartAlwaysEntersAtHub(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})

	conv, err := f.manager.Start(context.Background(), "acme", "cust-1", "Dana", model.DepartmentTechnical)
	require.NoError(t, err)

	assert.Equal(t, model.DepartmentGeneral, conv.Department)
	assert.Equal(t, model.StepConversation, conv.Step)
	// The request is kept as metadata only.
	assert.Equal(t, model.DepartmentTechnical, conv.TransferredFrom)
	assert.Equal(t, "requested at start", conv.TransferReason)

	// The opening turn is the hub greeting enriched with the request.
	require.Len(t, conv.History, 1)
	assert.Equal(t, model.RoleAssistant, conv.History[0].Role)
	assert.Contains(t, conv.History[0].Content, "Hi Dana!")
	assert.Contains(t, conv.History[0].Content, "Priya")

	created := f.recorder.ByType(model.EventConversationCreated)
	require.Len(t, created, 1)
	assert.Equal(t, conv.ID, created[0].ConversationID)
	assert.Equal(t, "acme", created[0].TenantID)
}

func TestStartWithoutRequestedDepartment(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})

	conv, err := f.manager.Start(context.Background(), "acme", "cust-1", "", "")
	require.NoError(t, err)

	assert.Equal(t, model.DepartmentGeneral, conv.Department)
	assert.Empty(t, conv.TransferredFrom)
	require.Len(t, conv.History, 1)
	assert.Contains(t, conv.History[0].Content, "Maya")
}

func TestStartRequiresCustomerID(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})

	_, err := f.manager.Start(context.Background(), "acme", "", "", "")
	require.Error(t, err)
}

func TestStartResumesExistingConversation(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})

	first, err := f.manager.Start(context.Background(), "acme", "cust-1", "Dana", "")
	require.NoError(t, err)

	second, err := f.manager.Start(context.Background(), "acme", "cust-1", "Dana", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	// Only one created event for the pair.
	assert.Len(t, f.recorder.ByType(model.EventConversationCreated), 1)
}

func TestResumeSurvivesDepartmentChanges(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})
	ctx := context.Background()

	conv, err := f.manager.Start(ctx, "acme", "cust-1", "", "")
	require.NoError(t, err)

	// The conversation moved to a specialist in the meantime.
	stored, err := f.store.Get(ctx, conv.ID)
	require.NoError(t, err)
	stored.Department = model.DepartmentBilling
	require.NoError(t, f.store.Put(ctx, stored))

	resumed, err := f.manager.Resume(ctx, "cust-1")
	require.NoError(t, err)
	require.NotNil(t, resumed)
	assert.Equal(t, conv.ID, resumed.ID)
	assert.Equal(t, model.DepartmentBilling, resumed.Department)
}

func TestResumeUnknownCustomer(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})

	conv, err := f.manager.Resume(context.Background(), "stranger")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestStartWithFlowScriptOpensAtEntry(t *testing.T) {
	script := &model.FlowScript{
		Name:    "welcome",
		Enabled: true,
		Entry:   "greet",
		Steps: []model.FlowStep{
			{ID: "greet", Type: model.StepTypeMessage, Content: "Welcome aboard!", NextStep: "menu"},
			{ID: "menu", Type: model.StepTypeChoice, Content: "Pick one:", Options: []model.FlowOption{
				{Text: "Sales", Value: "sales"},
			}},
		},
	}
	engine, err := flow.NewEngine(script, logger.NewNop())
	require.NoError(t, err)

	f := newManagerFixture(t, engine, Options{})

	conv, err := f.manager.Start(context.Background(), "acme", "cust-1", "", "")
	require.NoError(t, err)

	assert.Equal(t, "menu", conv.Step)
	require.Len(t, conv.History, 1)
	assert.Contains(t, conv.History[0].Content, "Welcome aboard!")
	assert.Contains(t, conv.History[0].Content, "Pick one:")
}

func TestCloseRemovesConversation(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})
	ctx := context.Background()

	conv, err := f.manager.Start(ctx, "acme", "cust-1", "", "")
	require.NoError(t, err)

	require.NoError(t, f.manager.Close(ctx, conv.ID))

	got, err := f.store.Get(ctx, conv.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	closed := f.recorder.ByType(model.EventChatClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "closed", closed[0].Reason)

	// The customer index entry is gone, so a new start creates a fresh id.
	fresh, err := f.manager.Start(ctx, "acme", "cust-1", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
}

func TestCloseUnknownConversation(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})

	err := f.manager.Close(context.Background(), "missing")
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestSweepReclaimsOnlyIdleConversations(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})
	ctx := context.Background()

	idle, err := f.manager.Start(ctx, "acme", "cust-idle", "", "")
	require.NoError(t, err)
	fresh, err := f.manager.Start(ctx, "acme", "cust-fresh", "", "")
	require.NoError(t, err)

	// Age the idle conversation past the cutoff.
	stored, err := f.store.Get(ctx, idle.ID)
	require.NoError(t, err)
	stored.UpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.store.Put(ctx, stored))

	swept, err := f.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	gone, err := f.store.Get(ctx, idle.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	kept, err := f.store.Get(ctx, fresh.ID)
	require.NoError(t, err)
	require.NotNil(t, kept)

	closed := f.recorder.ByType(model.EventChatClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, "idle timeout", closed[0].Reason)
	assert.Equal(t, idle.ID, closed[0].ConversationID)
}

func TestSweepFreesCustomerIdentityForRestart(t *testing.T) {
	f := newManagerFixture(t, nil, Options{})
	ctx := context.Background()

	conv, err := f.manager.Start(ctx, "acme", "cust-1", "", "")
	require.NoError(t, err)

	stored, err := f.store.Get(ctx, conv.ID)
	require.NoError(t, err)
	stored.UpdatedAt = time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.store.Put(ctx, stored))

	_, err = f.manager.Sweep(ctx, 24*time.Hour)
	require.NoError(t, err)

	fresh, err := f.manager.Start(ctx, "acme", "cust-1", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, conv.ID, fresh.ID)
}
