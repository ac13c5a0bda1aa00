// Package session owns conversation creation, reconnect matching, and idle
// reclamation.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/livechat-platform/internal/events"
	"github.com/capitalize-ai/livechat-platform/internal/flow"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/internal/router"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
	"github.com/capitalize-ai/livechat-platform/pkg/metrics"
)

// Manager creates, resumes, closes, and sweeps conversation sessions. All
// per-conversation mutations go through the same guard the router uses, so a
// sweep never races an in-flight message.
type Manager struct {
	store     state.Store
	registry  *persona.Registry
	engine    *flow.Engine
	publisher events.Publisher
	guard     *router.Guard
	logger    *logger.Logger

	idleAge       time.Duration
	sweepInterval time.Duration
	historyLimit  int

	// byCustomer maps stable customer identity to conversation id so
	// reconnects continue the same conversation rather than spawning a
	// duplicate.
	mu         sync.Mutex
	byCustomer map[string]string
}

// Options tunes a Manager.
type Options struct {
	IdleAge       time.Duration
	SweepInterval time.Duration
	HistoryLimit  int
}

// NewManager creates a session manager. engine may be nil.
func NewManager(
	store state.Store,
	registry *persona.Registry,
	engine *flow.Engine,
	publisher events.Publisher,
	guard *router.Guard,
	opts Options,
	log *logger.Logger,
) *Manager {
	if opts.IdleAge <= 0 {
		opts.IdleAge = 24 * time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = 15 * time.Minute
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Manager{
		store:         store,
		registry:      registry,
		engine:        engine,
		publisher:     publisher,
		guard:         guard,
		logger:        log,
		idleAge:       opts.IdleAge,
		sweepInterval: opts.SweepInterval,
		historyLimit:  opts.HistoryLimit,
		byCustomer:    make(map[string]string),
	}
}

// Start opens a session for a customer. An existing live conversation for
// the same customer identity is resumed instead of duplicated. New
// conversations always enter at the hub regardless of the requested
// department; the request only enriches the initial greeting.
func (m *Manager) Start(ctx context.Context, tenantID, customerID, name string, requested model.Department) (*model.Conversation, error) {
	if customerID == "" {
		return nil, fmt.Errorf("customer id is required")
	}

	if conv, err := m.Resume(ctx, customerID); err != nil {
		return nil, err
	} else if conv != nil {
		return conv, nil
	}

	now := time.Now()
	conv := &model.Conversation{
		ID:           uuid.Must(uuid.NewV7()).String(),
		TenantID:     tenantID,
		CustomerID:   customerID,
		CustomerName: name,
		Department:   model.DepartmentGeneral,
		Step:         model.StepConversation,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if requested != "" && requested != model.DepartmentGeneral && requested.Valid() {
		// Hub-and-spoke: the request never sets the initial department.
		conv.TransferredFrom = requested
		conv.TransferReason = "requested at start"
	}

	greeting := m.initialGreeting(conv, requested)
	conv.AppendTurn(model.RoleAssistant, greeting, m.historyLimit)

	unlock := m.guard.Lock(conv.ID)
	defer unlock()

	if err := m.store.Put(ctx, conv); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.byCustomer[customerID] = conv.ID
	m.mu.Unlock()

	metrics.ConversationsStarted.WithLabelValues(tenantID).Inc()
	metrics.ConversationsActive.Inc()
	m.logger.Info("conversation started",
		"conversation_id", conv.ID, "tenant_id", tenantID, "customer_id", customerID)

	m.emit(ctx, conv, model.EventConversationCreated, "")
	return conv, nil
}

// initialGreeting renders the opening assistant turn: either the flow
// script's entry chain or the hub persona's greeting, enriched with the
// requested department when one was asked for.
func (m *Manager) initialGreeting(conv *model.Conversation, requested model.Department) string {
	if m.engine != nil {
		out := m.engine.Start(conv)
		if text := out.Text(); text != "" {
			return text
		}
	}

	greeting := m.registry.GreetingFor(model.DepartmentGeneral, conv.CustomerName)
	if requested != "" && requested != model.DepartmentGeneral && requested.Valid() {
		if p, ok := m.registry.Get(requested); ok {
			greeting += " I see you're looking for " + p.Name + "'s team - tell me a bit more and I'll get you there."
		}
	}
	return greeting
}

// Resume returns the live conversation for a customer identity, or nil when
// there is none. Matching is by customer id, never by transport connection.
func (m *Manager) Resume(ctx context.Context, customerID string) (*model.Conversation, error) {
	m.mu.Lock()
	id, ok := m.byCustomer[customerID]
	m.mu.Unlock()
	if !ok {
		return nil, nil
	}

	conv, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		// Swept or closed since the index entry was written.
		m.mu.Lock()
		delete(m.byCustomer, customerID)
		m.mu.Unlock()
		return nil, nil
	}
	return conv, nil
}

// Close destroys a conversation and emits chat-closed.
func (m *Manager) Close(ctx context.Context, conversationID string) error {
	unlock := m.guard.Lock(conversationID)
	defer unlock()

	conv, err := m.store.Get(ctx, conversationID)
	if err != nil {
		return err
	}
	if conv == nil {
		return model.ErrConversationNotFound
	}

	if err := m.store.Delete(ctx, conversationID); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.byCustomer, conv.CustomerID)
	m.mu.Unlock()

	metrics.ConversationsActive.Dec()
	m.logger.Info("conversation closed", "conversation_id", conversationID)
	m.emit(ctx, conv, model.EventChatClosed, "closed")
	return nil
}

// Sweep reclaims conversations idle for longer than maxAge. The last
// activity check happens only after acquiring the per-conversation guard, so
// an in-flight message always wins over the sweeper.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) (int, error) {
	conversations, err := m.store.List(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, stale := range conversations {
		unlock := m.guard.Lock(stale.ID)

		conv, err := m.store.Get(ctx, stale.ID)
		if err != nil || conv == nil {
			unlock()
			continue
		}
		if time.Since(conv.UpdatedAt) < maxAge {
			unlock()
			continue
		}

		if err := m.store.Delete(ctx, conv.ID); err != nil {
			m.logger.Warn("failed to sweep conversation", "conversation_id", conv.ID, "error", err)
			unlock()
			continue
		}

		m.mu.Lock()
		delete(m.byCustomer, conv.CustomerID)
		m.mu.Unlock()

		metrics.ConversationsActive.Dec()
		metrics.ConversationsSwept.Inc()
		m.emit(ctx, conv, model.EventChatClosed, "idle timeout")
		swept++
		unlock()
	}

	if swept > 0 {
		m.logger.Info("idle conversations swept", "count", swept)
	}
	return swept, nil
}

// Run sweeps on the configured cadence until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx, m.idleAge); err != nil {
				m.logger.Error("session sweep failed", "error", err)
			}
		}
	}
}

func (m *Manager) emit(ctx context.Context, conv *model.Conversation, t model.EventType, reason string) {
	ev := &model.ChatEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		Type:           t,
		Department:     conv.Department,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Warn("failed to publish event",
			"event_type", t, "conversation_id", conv.ID, "error", err)
	}
}
