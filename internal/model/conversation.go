// Package model defines data structures for the live-chat platform.
package model

import (
	"time"
)

// Department identifies a routing destination for a conversation.
type Department string

const (
	DepartmentGeneral   Department = "general"
	DepartmentSales     Department = "sales"
	DepartmentTechnical Department = "technical"
	DepartmentSupport   Department = "support"
	DepartmentBilling   Department = "billing"
)

// Departments lists all known departments in declaration order.
var Departments = []Department{
	DepartmentGeneral,
	DepartmentSales,
	DepartmentTechnical,
	DepartmentSupport,
	DepartmentBilling,
}

// Valid reports whether d is a known department.
func (d Department) Valid() bool {
	for _, known := range Departments {
		if d == known {
			return true
		}
	}
	return false
}

// Role represents the role of a turn author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Turn is a single entry in a conversation's history window.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// StepConversation is the step value of a conversation in free-form AI mode,
// as opposed to being driven by a flow script step.
const StepConversation = "conversation"

// Conversation is the per-session routing state. The id is stable across
// transport reconnects; matching on reconnect uses CustomerID.
type Conversation struct {
	ID           string `json:"id"`
	TenantID     string `json:"tenant_id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`

	Department        Department `json:"department"`
	Step              string     `json:"step"`
	AwaitingSelection bool       `json:"awaiting_selection"`

	TransferredFrom Department `json:"transferred_from,omitempty"`
	TransferReason  string     `json:"transfer_reason,omitempty"`

	History []Turn `json:"history"`

	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
	LastTransferAt time.Time `json:"last_transfer_at,omitempty"`
}

// AppendTurn appends a turn to the history, evicting the oldest entries so
// that at most limit turns are retained.
func (c *Conversation) AppendTurn(role Role, content string, limit int) {
	c.History = append(c.History, Turn{Role: role, Content: content})
	if limit > 0 && len(c.History) > limit {
		c.History = c.History[len(c.History)-limit:]
	}
}

// Specialist reports whether the conversation is currently routed away from
// the hub.
func (c *Conversation) Specialist() bool {
	return c.Department != DepartmentGeneral
}

// InFlow reports whether a flow script step is driving the conversation.
func (c *Conversation) InFlow() bool {
	return c.Step != "" && c.Step != StepConversation
}
