package model

import (
	"time"
)

// EventType represents the type of an outbound chat event.
type EventType string

const (
	EventConversationCreated   EventType = "conversation_created"
	EventDepartmentTransferred EventType = "department_transferred"
	EventHumanAgentNeeded      EventType = "human_agent_needed"
	EventCustomerWaiting       EventType = "customer_waiting"
	EventFlowChoiceOffered     EventType = "flow_choice_offered"
	EventRatingRequested       EventType = "rating_requested"
	EventRatingSubmitted       EventType = "rating_submitted"
	EventChatClosed            EventType = "chat_closed"
)

// ChatEvent is a side-channel signal emitted by the routing core. Events are
// published after the state mutation that caused them has been applied; the
// transport layer fans them out to agent listeners with no cross-event
// ordering guarantee.
type ChatEvent struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	TenantID       string         `json:"tenant_id"`
	Type           EventType      `json:"type"`
	Department     Department     `json:"department,omitempty"`
	Reason         string         `json:"reason,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	Sequence       uint64         `json:"sequence,omitempty"`
}
