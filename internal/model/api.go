package model

// StartSessionRequest opens (or resumes) a chat session for a customer.
// Department is a hint only; new sessions always start at the hub.
type StartSessionRequest struct {
	CustomerID   string     `json:"customer_id"`
	CustomerName string     `json:"customer_name,omitempty"`
	Department   Department `json:"department,omitempty"`
}

// StartSessionResponse returns the conversation plus whether it was resumed.
type StartSessionResponse struct {
	Conversation *Conversation `json:"conversation"`
	Resumed      bool          `json:"resumed"`
}

// SendMessageRequest is an inbound customer message.
type SendMessageRequest struct {
	Content      string `json:"content"`
	CustomerName string `json:"customer_name,omitempty"`
}

// SelectChoiceRequest submits a flow choice selection.
type SelectChoiceRequest struct {
	StepID string `json:"step_id"`
	Value  string `json:"value"`
}

// SubmitRatingRequest submits a flow rating.
type SubmitRatingRequest struct {
	StepID string `json:"step_id"`
	Score  int    `json:"score"`
}

// UpsertPersonaRequest applies a partial persona update.
type UpsertPersonaRequest struct {
	PersonaUpdate
}
