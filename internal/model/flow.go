package model

// StepType is the kind of a flow script step.
type StepType string

const (
	StepTypeMessage    StepType = "message"
	StepTypeChoice     StepType = "choice"
	StepTypeAIHandoff  StepType = "ai_handoff"
	StepTypeAgentQueue StepType = "agent_queue"
	StepTypeRating     StepType = "rating"
)

// Valid reports whether t is a known step type.
func (t StepType) Valid() bool {
	switch t {
	case StepTypeMessage, StepTypeChoice, StepTypeAIHandoff, StepTypeAgentQueue, StepTypeRating:
		return true
	}
	return false
}

// FlowOption is one selectable branch of a choice step.
type FlowOption struct {
	Text     string `json:"text"`
	Value    string `json:"value"`
	NextStep string `json:"next_step,omitempty"`
}

// FlowStep is one node of an operator-authored flow script.
type FlowStep struct {
	ID       string       `json:"id"`
	Type     StepType     `json:"type"`
	Content  string       `json:"content"`
	NextStep string       `json:"next_step,omitempty"`
	Options  []FlowOption `json:"options,omitempty"`

	// Department binds ai_handoff and agent_queue steps to a department.
	Department Department `json:"department,omitempty"`

	// Scale is the rating scale for rating steps.
	Scale int `json:"scale,omitempty"`
}

// FlowScript is a directed graph of steps. The graph may contain loops;
// execution never follows them synchronously beyond a bounded depth.
type FlowScript struct {
	Name    string     `json:"name"`
	Enabled bool       `json:"enabled"`
	Entry   string     `json:"entry"`
	Steps   []FlowStep `json:"steps"`
}

// Step returns the step with the given id.
func (s *FlowScript) Step(id string) (*FlowStep, bool) {
	for i := range s.Steps {
		if s.Steps[i].ID == id {
			return &s.Steps[i], true
		}
	}
	return nil, false
}
