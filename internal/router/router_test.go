package router

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/livechat-platform/internal/completion"
	"github.com/capitalize-ai/livechat-platform/internal/events"
	"github.com/capitalize-ai/livechat-platform/internal/flow"
	"github.com/capitalize-ai/livechat-platform/internal/llm"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/internal/routing"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
)

type scriptedClient struct {
	reply string
	err   error
	calls int
}

func (c *scriptedClient) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return &llm.CompletionResponse{Content: c.reply}, nil
}

func (c *scriptedClient) Name() string { return "scripted" }

type fixture struct {
	router   *Router
	store    *state.MemoryStore
	recorder *events.Recorder
	registry *persona.Registry
	client   *scriptedClient
}

type fixtureOpts struct {
	rules  []model.RoutingRule
	cfg    Config
	engine *flow.Engine
	client *scriptedClient
}

func newFixture(t *testing.T, opts fixtureOpts) *fixture {
	t.Helper()

	log := logger.NewNop()
	store := state.NewMemoryStore()
	registry := persona.NewRegistry(log)
	recorder := &events.Recorder{}

	rules := opts.rules
	if rules == nil {
		rules = routing.DefaultRules()
	}
	cfg := opts.cfg
	cfg.applyDefaults()
	keywords := routing.NewKeywordRouter(rules, cfg.TransferThreshold, registry)

	client := opts.client
	if client == nil {
		client = &scriptedClient{reply: "happy to help"}
	}
	var llmClient llm.Client = client
	if client.reply == "" && client.err == nil {
		llmClient = nil
	}
	gateway := completion.NewGateway(llmClient, registry, nil, completion.Options{}, log)

	r := New(store, registry, keywords, gateway, opts.engine, recorder, NewGuard(), cfg, log)
	return &fixture{router: r, store: store, recorder: recorder, registry: registry, client: client}
}

func (f *fixture) seed(t *testing.T, dept model.Department) *model.Conversation {
	t.Helper()
	conv := &model.Conversation{
		ID:         "conv-1",
		TenantID:   "acme",
		CustomerID: "cust-1",
		Department: dept,
		Step:       model.StepConversation,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	require.NoError(t, f.store.Put(context.Background(), conv))
	return conv
}

func TestHandleMessageUnknownConversation(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	_, err := f.router.HandleMessage(context.Background(), "missing", "hello", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrConversationNotFound)
}

func TestHubTransfersOnConfidentMatch(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, model.DepartmentGeneral)

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "my lights won't turn on", "")
	require.NoError(t, err)

	assert.True(t, res.Transferred)
	assert.Equal(t, model.DepartmentTechnical, res.Department)
	assert.True(t, res.SpecialistActive)
	assert.Contains(t, res.ResponseText, "Priya")

	conv, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentTechnical, conv.Department)
	assert.Equal(t, model.DepartmentGeneral, conv.TransferredFrom)

	transfers := f.recorder.ByType(model.EventDepartmentTransferred)
	require.Len(t, transfers, 1)
	assert.Equal(t, model.DepartmentTechnical, transfers[0].Department)
}

func TestTransferThresholdBoundary(t *testing.T) {
	rules := []model.RoutingRule{
		{Department: model.DepartmentSales, Priority: 0.69, Keywords: []string{"almost"}},
		{Department: model.DepartmentSales, Priority: 0.70, Keywords: []string{"exactly"}},
	}
	f := newFixture(t, fixtureOpts{rules: rules})
	f.seed(t, model.DepartmentGeneral)

	// Just below the gate: no transfer, menu offered instead.
	res, err := f.router.HandleMessage(context.Background(), "conv-1", "almost there", "")
	require.NoError(t, err)
	assert.False(t, res.Transferred)
	assert.Equal(t, model.DepartmentGeneral, res.Department)

	// Exactly at the gate: transfer, boundary inclusive.
	f.seed(t, model.DepartmentGeneral)
	res, err = f.router.HandleMessage(context.Background(), "conv-1", "exactly this", "")
	require.NoError(t, err)
	assert.True(t, res.Transferred)
	assert.Equal(t, model.DepartmentSales, res.Department)
}

func TestHubSuggestsMenuInMidBand(t *testing.T) {
	rules := []model.RoutingRule{
		{Department: model.DepartmentBilling, Priority: 0.5, Keywords: []string{"charge"}},
	}
	f := newFixture(t, fixtureOpts{rules: rules})
	f.seed(t, model.DepartmentGeneral)

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "a question about a charge", "")
	require.NoError(t, err)

	assert.False(t, res.Transferred)
	assert.Equal(t, "happy to help", res.ResponseText)
	require.NotEmpty(t, res.DepartmentOptions)

	conv, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.True(t, conv.AwaitingSelection)
}

func TestPendingMenuSelectionResolves(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	conv := f.seed(t, model.DepartmentGeneral)
	conv.AwaitingSelection = true
	require.NoError(t, f.store.Put(context.Background(), conv))

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "the billing one please", "")
	require.NoError(t, err)

	assert.True(t, res.Transferred)
	assert.Equal(t, model.DepartmentBilling, res.Department)

	got, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.False(t, got.AwaitingSelection)
}

func TestPendingMenuSelectionReprompts(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	conv := f.seed(t, model.DepartmentGeneral)
	conv.AwaitingSelection = true
	require.NoError(t, f.store.Put(context.Background(), conv))

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "hmm not sure", "")
	require.NoError(t, err)

	assert.False(t, res.Transferred)
	assert.Equal(t, menuPrompt, res.ResponseText)
	assert.NotEmpty(t, res.DepartmentOptions)
}

func TestHumanAgentPhraseWinsOverEverything(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, model.DepartmentTechnical)

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "I want a real person, this is broken", "")
	require.NoError(t, err)

	assert.True(t, res.NeedsHumanAgent)
	assert.False(t, res.Transferred)
	// Department unchanged even though "broken" scores for technical.
	assert.Equal(t, model.DepartmentTechnical, res.Department)
	assert.Equal(t, humanHandoffResponse, res.ResponseText)

	needed := f.recorder.ByType(model.EventHumanAgentNeeded)
	require.Len(t, needed, 1)
	assert.Equal(t, "customer request", needed[0].Reason)
}

func TestSpecialistReturnsToHub(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	conv := f.seed(t, model.DepartmentSales)
	conv.CustomerName = "Dana"
	require.NoError(t, f.store.Put(context.Background(), conv))

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "let's go back, something else entirely", "")
	require.NoError(t, err)

	assert.True(t, res.Transferred)
	assert.Equal(t, model.DepartmentGeneral, res.Department)
	assert.False(t, res.SpecialistActive)
	assert.Contains(t, res.ResponseText, "Welcome back, Dana")
}

func TestSpecialistSwitchesOnStrongSignal(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, model.DepartmentSales)

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "actually I was charged twice", "")
	require.NoError(t, err)

	assert.True(t, res.Transferred)
	assert.Equal(t, model.DepartmentBilling, res.Department)
}

func TestSpecialistKeepsConversationBelowSwitchGate(t *testing.T) {
	// 0.75 is enough to enter sales from the hub but not enough to pull a
	// conversation away from technical.
	f := newFixture(t, fixtureOpts{})
	f.seed(t, model.DepartmentTechnical)

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "I might buy another one", "")
	require.NoError(t, err)

	assert.False(t, res.Transferred)
	assert.Equal(t, model.DepartmentTechnical, res.Department)
	assert.Equal(t, "happy to help", res.ResponseText)
}

func TestCompletionFailureFallsBackToHumanAgent(t *testing.T) {
	f := newFixture(t, fixtureOpts{client: &scriptedClient{err: errors.New("provider down")}})
	f.seed(t, model.DepartmentGeneral)

	res, err := f.router.HandleMessage(context.Background(), "conv-1", "hello there", "")
	require.NoError(t, err)

	assert.True(t, res.NeedsHumanAgent)
	assert.Equal(t, fallbackResponse, res.ResponseText)

	needed := f.recorder.ByType(model.EventHumanAgentNeeded)
	require.Len(t, needed, 1)
	assert.Equal(t, "completion unavailable", needed[0].Reason)
}

func TestHistoryBounded(t *testing.T) {
	f := newFixture(t, fixtureOpts{cfg: Config{HistoryLimit: 20}})
	f.seed(t, model.DepartmentGeneral)

	for i := 0; i < 25; i++ {
		_, err := f.router.HandleMessage(context.Background(), "conv-1", fmt.Sprintf("note %d", i), "")
		require.NoError(t, err)
	}

	conv, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Len(t, conv.History, 20)

	// Newest turns survive; the assistant reply to message 24 is last.
	last := conv.History[len(conv.History)-1]
	assert.Equal(t, model.RoleAssistant, last.Role)
	prev := conv.History[len(conv.History)-2]
	assert.Equal(t, "note 24", prev.Content)
}

func TestEventsPublishAfterStatePersisted(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.seed(t, model.DepartmentGeneral)

	_, err := f.router.HandleMessage(context.Background(), "conv-1", "my lights won't turn on", "")
	require.NoError(t, err)

	evs := f.recorder.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, model.EventDepartmentTransferred, evs[0].Type)
	assert.Equal(t, "acme", evs[0].TenantID)
	assert.Equal(t, "conv-1", evs[0].ConversationID)
	assert.NotEmpty(t, evs[0].ID)
}

func TestFlowPreemptsRouting(t *testing.T) {
	script := &model.FlowScript{
		Name:  "welcome",
		Entry: "menu",
		Steps: []model.FlowStep{
			{ID: "menu", Type: model.StepTypeChoice, Content: "Pick one:", Options: []model.FlowOption{
				{Text: "Sales", Value: "sales", NextStep: "handoff"},
				{Text: "Done", Value: "done"},
			}},
			{ID: "handoff", Type: model.StepTypeAIHandoff, Department: model.DepartmentSales},
		},
	}
	engine, err := flow.NewEngine(script, logger.NewNop())
	require.NoError(t, err)

	f := newFixture(t, fixtureOpts{engine: engine})
	conv := f.seed(t, model.DepartmentGeneral)
	conv.Step = "menu"
	require.NoError(t, f.store.Put(context.Background(), conv))

	// Text that would otherwise transfer to technical stays in the flow.
	res, err := f.router.HandleMessage(context.Background(), "conv-1", "my lights won't turn on", "")
	require.NoError(t, err)
	assert.False(t, res.Transferred)
	assert.Equal(t, "Pick one:", res.ResponseText)
	require.Len(t, res.FlowOptions, 2)
}

func TestSelectChoiceTransfersViaFlow(t *testing.T) {
	script := &model.FlowScript{
		Name:  "welcome",
		Entry: "menu",
		Steps: []model.FlowStep{
			{ID: "menu", Type: model.StepTypeChoice, Content: "Pick one:", Options: []model.FlowOption{
				{Text: "Sales", Value: "sales", NextStep: "handoff"},
			}},
			{ID: "handoff", Type: model.StepTypeAIHandoff, Content: "Over to sales.", Department: model.DepartmentSales},
		},
	}
	engine, err := flow.NewEngine(script, logger.NewNop())
	require.NoError(t, err)

	f := newFixture(t, fixtureOpts{engine: engine})
	conv := f.seed(t, model.DepartmentGeneral)
	conv.Step = "menu"
	require.NoError(t, f.store.Put(context.Background(), conv))

	res, err := f.router.SelectChoice(context.Background(), "conv-1", "menu", "sales")
	require.NoError(t, err)

	assert.True(t, res.Transferred)
	assert.Equal(t, model.DepartmentSales, res.Department)
	assert.Contains(t, res.ResponseText, "Over to sales.")
	assert.Contains(t, res.ResponseText, "Victor")

	got, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentSales, got.Department)
	assert.Equal(t, model.StepConversation, got.Step)
}

func TestSelectChoiceStaleIsQuietNoOp(t *testing.T) {
	script := &model.FlowScript{
		Name:  "welcome",
		Entry: "menu",
		Steps: []model.FlowStep{
			{ID: "menu", Type: model.StepTypeChoice, Content: "Pick one:", Options: []model.FlowOption{
				{Text: "Done", Value: "done"},
			}},
		},
	}
	engine, err := flow.NewEngine(script, logger.NewNop())
	require.NoError(t, err)

	f := newFixture(t, fixtureOpts{engine: engine})
	f.seed(t, model.DepartmentGeneral)

	res, err := f.router.SelectChoice(context.Background(), "conv-1", "menu", "done")
	require.NoError(t, err)
	assert.Equal(t, model.DepartmentGeneral, res.Department)
	assert.Empty(t, res.ResponseText)
	assert.Empty(t, f.recorder.Events())

	got, err := f.store.Get(context.Background(), "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got.History)
}

func TestSubmitRatingEmitsEvent(t *testing.T) {
	script := &model.FlowScript{
		Name:  "feedback",
		Entry: "rating",
		Steps: []model.FlowStep{
			{ID: "rating", Type: model.StepTypeRating, Content: "How did we do?", Scale: 5},
		},
	}
	engine, err := flow.NewEngine(script, logger.NewNop())
	require.NoError(t, err)

	f := newFixture(t, fixtureOpts{engine: engine})
	conv := f.seed(t, model.DepartmentGeneral)
	conv.Step = "rating"
	require.NoError(t, f.store.Put(context.Background(), conv))

	res, err := f.router.SubmitRating(context.Background(), "conv-1", "rating", 4)
	require.NoError(t, err)
	assert.Contains(t, res.ResponseText, "Thanks for your feedback!")

	submitted := f.recorder.ByType(model.EventRatingSubmitted)
	require.Len(t, submitted, 1)
	assert.Equal(t, 4, submitted[0].Metadata["score"])
}

func TestFlowAgentQueueBroadcastsCustomerWaiting(t *testing.T) {
	script := &model.FlowScript{
		Name:  "welcome",
		Entry: "menu",
		Steps: []model.FlowStep{
			{ID: "menu", Type: model.StepTypeChoice, Content: "Pick one:", Options: []model.FlowOption{
				{Text: "Agent", Value: "agent", NextStep: "queue"},
			}},
			{ID: "queue", Type: model.StepTypeAgentQueue, Content: "Hold tight.", Department: model.DepartmentSupport},
		},
	}
	engine, err := flow.NewEngine(script, logger.NewNop())
	require.NoError(t, err)

	f := newFixture(t, fixtureOpts{engine: engine})
	conv := f.seed(t, model.DepartmentGeneral)
	conv.Step = "menu"
	require.NoError(t, f.store.Put(context.Background(), conv))

	res, err := f.router.SelectChoice(context.Background(), "conv-1", "menu", "agent")
	require.NoError(t, err)
	assert.True(t, res.NeedsHumanAgent)

	waiting := f.recorder.ByType(model.EventCustomerWaiting)
	require.Len(t, waiting, 1)
	assert.Equal(t, model.DepartmentSupport, waiting[0].Department)

	// Follow-up text re-acknowledges without a second broadcast.
	_, err = f.router.HandleMessage(context.Background(), "conv-1", "still there?", "")
	require.NoError(t, err)
	assert.Len(t, f.recorder.ByType(model.EventCustomerWaiting), 1)
}

func TestGuardSerializesSameConversation(t *testing.T) {
	g := NewGuard()

	unlock := g.Lock("c1")
	done := make(chan struct{})
	go func() {
		u := g.Lock("c1")
		u()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second lock acquired while first held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}
}

func TestGuardDistinctConversationsIndependent(t *testing.T) {
	g := NewGuard()

	unlock := g.Lock("c1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		u := g.Lock("c2")
		u()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different conversation blocked")
	}
}
