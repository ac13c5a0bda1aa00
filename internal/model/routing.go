package model

// RoutingRule maps keyword matches to a department with a priority weight.
// A department may carry several rules at different weights; rule order is
// significant because score ties resolve to the first registered rule.
type RoutingRule struct {
	Department Department `json:"department"`
	Keywords   []string   `json:"keywords"`
	Priority   float64    `json:"priority"`
}

// RouterResult is the outcome of handling one inbound customer message. The
// transport layer delivers ResponseText to the session participants and
// raises side-channel events from the emitted event stream.
type RouterResult struct {
	ResponseText      string             `json:"response_text"`
	Department        Department         `json:"department"`
	NeedsHumanAgent   bool               `json:"needs_human_agent"`
	Transferred       bool               `json:"transferred"`
	SpecialistActive  bool               `json:"specialist_active"`
	DepartmentOptions []DepartmentOption `json:"department_options,omitempty"`
	FlowOptions       []FlowOption       `json:"flow_options,omitempty"`
	RatingScale       int                `json:"rating_scale,omitempty"`
}
