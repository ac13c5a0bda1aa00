package model

// Persona is a named AI identity bound to a department. Personas are loaded
// at startup and hot-reloadable through the registry; exactly one persona
// (the hub) carries MainRouter.
type Persona struct {
	Department   Department `json:"department"`
	Name         string     `json:"name"`
	Role         string     `json:"role"`
	Style        string     `json:"style"`
	Capabilities []string   `json:"capabilities"`
	Greeting     string     `json:"greeting"`
	Description  string     `json:"description"`
	Instructions string     `json:"instructions"`
	Specialist   bool       `json:"specialist"`
	MainRouter   bool       `json:"main_router"`
}

// PersonaUpdate is a partial persona mutation applied by Registry.Upsert.
// Nil fields leave the current value untouched.
type PersonaUpdate struct {
	Name         *string   `json:"name,omitempty"`
	Role         *string   `json:"role,omitempty"`
	Style        *string   `json:"style,omitempty"`
	Capabilities *[]string `json:"capabilities,omitempty"`
	Greeting     *string   `json:"greeting,omitempty"`
	Description  *string   `json:"description,omitempty"`
	Instructions *string   `json:"instructions,omitempty"`
	Specialist   *bool     `json:"specialist,omitempty"`
	MainRouter   *bool     `json:"main_router,omitempty"`
}

// DepartmentOption is a department menu entry offered to the customer when
// the hub is not confident enough to transfer outright.
type DepartmentOption struct {
	ID          Department `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
}
