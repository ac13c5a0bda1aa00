// Package router implements the hub-and-spoke conversation orchestrator.
package router

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/livechat-platform/internal/completion"
	"github.com/capitalize-ai/livechat-platform/internal/events"
	"github.com/capitalize-ai/livechat-platform/internal/flow"
	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/internal/persona"
	"github.com/capitalize-ai/livechat-platform/internal/routing"
	"github.com/capitalize-ai/livechat-platform/internal/state"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
	"github.com/capitalize-ai/livechat-platform/pkg/metrics"
)

// Config holds the routing thresholds. The defaults are product tuning;
// change them through configuration, not here.
type Config struct {
	// TransferThreshold is the hub-to-specialist gate, boundary inclusive:
	// a match at exactly this confidence transfers.
	TransferThreshold float64

	// SuggestThreshold is the exclusive lower bound of the menu band. Hub
	// matches above it but below TransferThreshold get a department menu.
	SuggestThreshold float64

	// SpecialistThreshold is the specialist-to-specialist gate, boundary
	// inclusive like TransferThreshold.
	SpecialistThreshold float64

	// HistoryLimit caps the conversation history window, oldest dropped
	// first.
	HistoryLimit int
}

func (c *Config) applyDefaults() {
	if c.TransferThreshold == 0 {
		c.TransferThreshold = 0.7
	}
	if c.SuggestThreshold == 0 {
		c.SuggestThreshold = 0.4
	}
	if c.SpecialistThreshold == 0 {
		c.SpecialistThreshold = 0.8
	}
	if c.HistoryLimit == 0 {
		c.HistoryLimit = 20
	}
}

// Router decides, per inbound customer message, whether to answer via a
// scripted flow, route to a specialist persona, hand off to a human queue,
// or keep the conversation at the hub. All mutations for one conversation
// serialize on the shared Guard.
type Router struct {
	store     state.Store
	registry  *persona.Registry
	keywords  *routing.KeywordRouter
	gateway   *completion.Gateway
	engine    *flow.Engine
	publisher events.Publisher
	guard     *Guard
	cfg       Config
	logger    *logger.Logger
}

// New creates a router. engine may be nil when no flow script is configured;
// the router then falls through to AI and keyword routing directly.
func New(
	store state.Store,
	registry *persona.Registry,
	keywords *routing.KeywordRouter,
	gateway *completion.Gateway,
	engine *flow.Engine,
	publisher events.Publisher,
	guard *Guard,
	cfg Config,
	log *logger.Logger,
) *Router {
	cfg.applyDefaults()
	return &Router{
		store:     store,
		registry:  registry,
		keywords:  keywords,
		gateway:   gateway,
		engine:    engine,
		publisher: publisher,
		guard:     guard,
		cfg:       cfg,
		logger:    log,
	}
}

// Guard returns the per-conversation serialization guard, shared with the
// session lifecycle so sweeps cannot race in-flight messages.
func (r *Router) Guard() *Guard {
	return r.guard
}

// HandleMessage processes one inbound customer message. Completion provider
// failures never escape; they map to the needs-human-agent fallback so the
// transport always has something to deliver.
func (r *Router) HandleMessage(ctx context.Context, conversationID, text, customerName string) (*model.RouterResult, error) {
	unlock := r.guard.Lock(conversationID)
	defer unlock()

	conv, err := r.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, model.ErrConversationNotFound
	}
	if customerName != "" {
		conv.CustomerName = customerName
	}

	res, evs := r.route(ctx, conv, text)

	conv.AppendTurn(model.RoleUser, text, r.cfg.HistoryLimit)
	conv.AppendTurn(model.RoleAssistant, res.ResponseText, r.cfg.HistoryLimit)
	conv.UpdatedAt = time.Now()

	if err := r.store.Put(ctx, conv); err != nil {
		return nil, err
	}
	r.publish(ctx, evs)

	return res, nil
}

// route runs the decision order. It mutates conv but never persists; the
// caller writes state before events go out.
func (r *Router) route(ctx context.Context, conv *model.Conversation, text string) (*model.RouterResult, []*model.ChatEvent) {
	res := &model.RouterResult{
		Department:       conv.Department,
		SpecialistActive: conv.Specialist(),
	}

	// 1. Explicit human-agent request wins over everything, department
	// unchanged.
	if matchesPhrase(text, humanAgentPhrases) {
		res.ResponseText = humanHandoffResponse
		res.NeedsHumanAgent = true
		r.count(conv.Department, "human_agent")
		metrics.HumanEscalations.WithLabelValues(string(conv.Department), "requested").Inc()
		return res, []*model.ChatEvent{r.event(conv, model.EventHumanAgentNeeded, "customer request")}
	}

	// An active flow script step pre-empts AI routing.
	if r.engine != nil && conv.InFlow() {
		if out := r.engine.HandleText(conv, text); out != nil {
			r.count(conv.Department, "flow")
			return r.flowResult(conv, out)
		}
		// Script ran its course; fall through to free-form routing.
	}

	match := r.keywords.Route(text, conv.Department)

	if conv.Department == model.DepartmentGeneral {
		return r.routeHub(ctx, conv, text, match)
	}
	return r.routeSpecialist(ctx, conv, text, match)
}

// routeHub handles messages while the conversation sits at the main router.
func (r *Router) routeHub(ctx context.Context, conv *model.Conversation, text string, match routing.Match) (*model.RouterResult, []*model.ChatEvent) {
	// 2a. Confident specialist match: transfer outright.
	if match.Confidence >= r.cfg.TransferThreshold && match.Department != model.DepartmentGeneral {
		return r.transfer(conv, match.Department, "keyword match: "+strings.Join(match.Reasons, ", "))
	}

	// 4. A pending menu selection resolves before any hub reply.
	if conv.AwaitingSelection {
		if dept, ok := r.resolveSelection(text); ok {
			return r.transfer(conv, dept, "menu selection")
		}
		res := &model.RouterResult{
			Department:        conv.Department,
			ResponseText:      menuPrompt,
			DepartmentOptions: r.registry.SpecialistOptions(),
		}
		r.count(conv.Department, "menu")
		return res, nil
	}

	// 2b. Mid-confidence: converse, but offer the department menu.
	if match.Confidence > r.cfg.SuggestThreshold {
		reply, err := r.reply(ctx, conv, text)
		if err != nil {
			return r.fallback(conv, err)
		}
		conv.AwaitingSelection = true
		res := &model.RouterResult{
			Department:        conv.Department,
			ResponseText:      reply,
			DepartmentOptions: match.Suggestions,
		}
		r.count(conv.Department, "suggest")
		return res, nil
	}

	// 2c. Plain hub conversation.
	reply, err := r.reply(ctx, conv, text)
	if err != nil {
		return r.fallback(conv, err)
	}
	res := &model.RouterResult{
		Department:   conv.Department,
		ResponseText: reply,
	}
	r.count(conv.Department, "reply")
	return res, nil
}

// routeSpecialist handles messages while a specialist persona is active.
func (r *Router) routeSpecialist(ctx context.Context, conv *model.Conversation, text string, match routing.Match) (*model.RouterResult, []*model.ChatEvent) {
	// 3a. Customer asks for the hub back.
	if matchesPhrase(text, returnToHubPhrases) {
		return r.transferBack(conv)
	}

	// 3b. Strong signal for a different specialist.
	if match.Confidence >= r.cfg.SpecialistThreshold &&
		match.Department != conv.Department &&
		match.Department != model.DepartmentGeneral {
		return r.transfer(conv, match.Department, "keyword match: "+strings.Join(match.Reasons, ", "))
	}

	// 3c. Continue the specialized conversation.
	reply, err := r.reply(ctx, conv, text)
	if err != nil {
		return r.fallback(conv, err)
	}
	res := &model.RouterResult{
		Department:       conv.Department,
		ResponseText:     reply,
		SpecialistActive: true,
	}
	r.count(conv.Department, "reply")
	return res, nil
}

// SelectChoice applies a flow choice selection. Submissions for a step the
// conversation is not waiting on are ignored with no state change and no
// error surfaced to the customer.
func (r *Router) SelectChoice(ctx context.Context, conversationID, stepID, optionValue string) (*model.RouterResult, error) {
	unlock := r.guard.Lock(conversationID)
	defer unlock()

	conv, err := r.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, model.ErrConversationNotFound
	}

	res := &model.RouterResult{
		Department:       conv.Department,
		SpecialistActive: conv.Specialist(),
	}
	if r.engine == nil {
		return res, nil
	}

	out, applied := r.engine.SelectChoice(conv, stepID, optionValue)
	if !applied {
		return res, nil
	}

	res, evs := r.flowResult(conv, out)

	conv.AppendTurn(model.RoleUser, optionValue, r.cfg.HistoryLimit)
	if res.ResponseText != "" {
		conv.AppendTurn(model.RoleAssistant, res.ResponseText, r.cfg.HistoryLimit)
	}
	conv.UpdatedAt = time.Now()

	if err := r.store.Put(ctx, conv); err != nil {
		return nil, err
	}
	r.publish(ctx, evs)

	return res, nil
}

// SubmitRating records a customer rating for the flow step awaiting one.
func (r *Router) SubmitRating(ctx context.Context, conversationID, stepID string, score int) (*model.RouterResult, error) {
	unlock := r.guard.Lock(conversationID)
	defer unlock()

	conv, err := r.store.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, model.ErrConversationNotFound
	}

	res := &model.RouterResult{
		Department:       conv.Department,
		SpecialistActive: conv.Specialist(),
	}
	if r.engine == nil {
		return res, nil
	}

	out, applied := r.engine.SubmitRating(conv, stepID, score)
	if !applied {
		return res, nil
	}

	res, evs := r.flowResult(conv, out)
	ev := r.event(conv, model.EventRatingSubmitted, "")
	ev.Metadata = map[string]any{"step": stepID, "score": score}
	evs = append(evs, ev)

	conv.AppendTurn(model.RoleUser, strconv.Itoa(score), r.cfg.HistoryLimit)
	if res.ResponseText != "" {
		conv.AppendTurn(model.RoleAssistant, res.ResponseText, r.cfg.HistoryLimit)
	}
	conv.UpdatedAt = time.Now()

	if err := r.store.Put(ctx, conv); err != nil {
		return nil, err
	}
	r.publish(ctx, evs)

	return res, nil
}

// flowResult converts a flow outcome into a router result plus events,
// applying any ai_handoff transfer the outcome carries.
func (r *Router) flowResult(conv *model.Conversation, out *flow.Outcome) (*model.RouterResult, []*model.ChatEvent) {
	res := &model.RouterResult{
		Department:       conv.Department,
		ResponseText:     out.Text(),
		FlowOptions:      out.Options,
		RatingScale:      out.RatingScale,
		SpecialistActive: conv.Specialist(),
	}
	var evs []*model.ChatEvent

	if out.HandoffDepartment != "" {
		from := conv.Department
		conv.Department = out.HandoffDepartment
		conv.AwaitingSelection = false
		if from != out.HandoffDepartment {
			conv.TransferredFrom = from
			conv.TransferReason = "flow handoff"
			conv.LastTransferAt = time.Now()
			res.Transferred = true
			metrics.TransfersTotal.WithLabelValues(string(from), string(out.HandoffDepartment)).Inc()
			ev := r.event(conv, model.EventDepartmentTransferred, "flow handoff")
			ev.Department = out.HandoffDepartment
			evs = append(evs, ev)
		}

		greeting := r.registry.GreetingFor(out.HandoffDepartment, conv.CustomerName)
		if res.ResponseText != "" {
			res.ResponseText += "\n\n" + greeting
		} else {
			res.ResponseText = greeting
		}
		res.Department = conv.Department
		res.SpecialistActive = conv.Specialist()
	}

	if out.QueueDepartment != "" {
		res.NeedsHumanAgent = true
		metrics.HumanEscalations.WithLabelValues(string(out.QueueDepartment), "flow_queue").Inc()
		ev := r.event(conv, model.EventCustomerWaiting, "flow agent queue")
		ev.Department = out.QueueDepartment
		evs = append(evs, ev)
	}

	if len(out.Options) > 0 {
		ev := r.event(conv, model.EventFlowChoiceOffered, "")
		ev.Metadata = map[string]any{"step": out.PromptStep, "options": len(out.Options)}
		evs = append(evs, ev)
	}

	if out.RatingScale > 0 {
		ev := r.event(conv, model.EventRatingRequested, "")
		ev.Metadata = map[string]any{"step": out.PromptStep, "scale": out.RatingScale}
		evs = append(evs, ev)
	}

	return res, evs
}

// transfer moves the conversation to another department and answers with the
// destination persona's greeting. Department changes always clear the
// pending menu flag.
func (r *Router) transfer(conv *model.Conversation, to model.Department, reason string) (*model.RouterResult, []*model.ChatEvent) {
	from := conv.Department
	conv.TransferredFrom = from
	conv.TransferReason = reason
	conv.Department = to
	conv.AwaitingSelection = false
	conv.LastTransferAt = time.Now()

	res := &model.RouterResult{
		Department:       to,
		ResponseText:     r.registry.GreetingFor(to, conv.CustomerName),
		Transferred:      true,
		SpecialistActive: to != model.DepartmentGeneral,
	}

	r.count(to, "transfer")
	metrics.TransfersTotal.WithLabelValues(string(from), string(to)).Inc()
	r.logger.Info("conversation transferred",
		"conversation_id", conv.ID, "from", from, "to", to, "reason", reason)

	ev := r.event(conv, model.EventDepartmentTransferred, reason)
	ev.Department = to
	return res, []*model.ChatEvent{ev}
}

// transferBack returns a specialist conversation to the hub with a
// personalized welcome-back greeting.
func (r *Router) transferBack(conv *model.Conversation) (*model.RouterResult, []*model.ChatEvent) {
	res, evs := r.transfer(conv, model.DepartmentGeneral, "customer request")
	res.ResponseText = r.registry.WelcomeBack(conv.CustomerName)
	return res, evs
}

// reply answers via the completion gateway in the current department's
// persona, over the history window as it stood before this message.
func (r *Router) reply(ctx context.Context, conv *model.Conversation, text string) (string, error) {
	reply, _, err := r.gateway.Complete(ctx, text, conv.Department, conv.History)
	return reply, err
}

// fallback is the needs-human-agent safety net for completion failures.
func (r *Router) fallback(conv *model.Conversation, err error) (*model.RouterResult, []*model.ChatEvent) {
	r.logger.Warn("completion unavailable, escalating to human agent",
		"conversation_id", conv.ID, "department", conv.Department, "error", err)

	res := &model.RouterResult{
		Department:       conv.Department,
		ResponseText:     fallbackResponse,
		NeedsHumanAgent:  true,
		SpecialistActive: conv.Specialist(),
	}
	r.count(conv.Department, "human_agent")
	metrics.HumanEscalations.WithLabelValues(string(conv.Department), "provider_failure").Inc()
	return res, []*model.ChatEvent{r.event(conv, model.EventHumanAgentNeeded, "completion unavailable")}
}

// resolveSelection matches raw text against the specialist menu by persona
// name or department id.
func (r *Router) resolveSelection(text string) (model.Department, bool) {
	lower := strings.ToLower(text)
	for _, opt := range r.registry.SpecialistOptions() {
		if strings.Contains(lower, strings.ToLower(opt.Name)) ||
			strings.Contains(lower, string(opt.ID)) {
			return opt.ID, true
		}
	}
	return "", false
}

func (r *Router) event(conv *model.Conversation, t model.EventType, reason string) *model.ChatEvent {
	return &model.ChatEvent{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: conv.ID,
		TenantID:       conv.TenantID,
		Type:           t,
		Department:     conv.Department,
		Reason:         reason,
		CreatedAt:      time.Now(),
	}
}

func (r *Router) publish(ctx context.Context, evs []*model.ChatEvent) {
	for _, ev := range evs {
		if err := r.publisher.Publish(ctx, ev); err != nil {
			r.logger.Warn("failed to publish event",
				"event_type", ev.Type, "conversation_id", ev.ConversationID, "error", err)
		}
	}
}

func (r *Router) count(department model.Department, action string) {
	metrics.MessagesRouted.WithLabelValues(string(department), action).Inc()
}
