// Package persona manages the AI persona table keyed by department.
package persona

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
)

// snapshot is an immutable view of the persona table. Readers load it without
// locking; writers build a new one and swap it in whole.
type snapshot struct {
	personas map[model.Department]model.Persona
	order    []model.Department
}

// Registry holds the persona table. Reads are lock-free snapshot loads so
// hot reloads never interrupt in-flight conversations; writes serialize on a
// mutex and are validated before the swap.
type Registry struct {
	mu      sync.Mutex
	current atomic.Value // *snapshot
	logger  *logger.Logger
}

// NewRegistry creates a registry seeded with the default personas.
func NewRegistry(log *logger.Logger) *Registry {
	r, err := NewRegistryWith(DefaultPersonas(), log)
	if err != nil {
		// Defaults are validated by tests; a failure here is a programming
		// error and must surface at startup.
		panic(err)
	}
	return r
}

// NewRegistryWith creates a registry from an explicit persona list. Exactly
// one persona must carry MainRouter and every department must be valid.
func NewRegistryWith(personas []model.Persona, log *logger.Logger) (*Registry, error) {
	snap := &snapshot{personas: make(map[model.Department]model.Persona)}
	for _, p := range personas {
		if !p.Department.Valid() {
			return nil, &model.ConfigurationError{Reason: "unknown department " + string(p.Department)}
		}
		if _, dup := snap.personas[p.Department]; dup {
			return nil, &model.ConfigurationError{Reason: "duplicate persona for department " + string(p.Department)}
		}
		snap.personas[p.Department] = p
		snap.order = append(snap.order, p.Department)
	}
	if err := validate(snap); err != nil {
		return nil, err
	}

	r := &Registry{logger: log}
	r.current.Store(snap)
	return r, nil
}

func validate(snap *snapshot) error {
	mainRouters := 0
	for _, p := range snap.personas {
		if p.MainRouter {
			mainRouters++
		}
	}
	if mainRouters != 1 {
		return &model.ConfigurationError{Reason: "registry must have exactly one main router persona"}
	}
	return nil
}

func (r *Registry) load() *snapshot {
	return r.current.Load().(*snapshot)
}

// Get returns the persona for a department.
func (r *Registry) Get(department model.Department) (model.Persona, bool) {
	p, ok := r.load().personas[department]
	return p, ok
}

// List returns all personas in registration order.
func (r *Registry) List() []model.Persona {
	snap := r.load()
	out := make([]model.Persona, 0, len(snap.order))
	for _, d := range snap.order {
		out = append(out, snap.personas[d])
	}
	return out
}

// MainRouter returns the hub persona.
func (r *Registry) MainRouter() model.Persona {
	for _, p := range r.load().personas {
		if p.MainRouter {
			return p
		}
	}
	// Unreachable: validate enforces exactly one.
	return model.Persona{}
}

// Upsert applies a partial update to the persona for a department, creating
// it if absent. The mutation is rejected with a ConfigurationError, registry
// unchanged, if it would leave the table without exactly one main router.
func (r *Registry) Upsert(department model.Department, update model.PersonaUpdate) (model.Persona, error) {
	if !department.Valid() {
		return model.Persona{}, &model.ConfigurationError{Reason: "unknown department " + string(department)}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.load()
	next := &snapshot{
		personas: make(map[model.Department]model.Persona, len(old.personas)),
		order:    append([]model.Department(nil), old.order...),
	}
	for d, p := range old.personas {
		next.personas[d] = p
	}

	p, exists := next.personas[department]
	if !exists {
		p = model.Persona{Department: department, Specialist: department != model.DepartmentGeneral}
		next.order = append(next.order, department)
	}
	applyUpdate(&p, update)
	next.personas[department] = p

	if err := validate(next); err != nil {
		return model.Persona{}, err
	}

	r.current.Store(next)
	r.logger.Info("persona updated", "department", department, "name", p.Name)
	return p, nil
}

func applyUpdate(p *model.Persona, u model.PersonaUpdate) {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	if u.Style != nil {
		p.Style = *u.Style
	}
	if u.Capabilities != nil {
		p.Capabilities = append([]string(nil), (*u.Capabilities)...)
	}
	if u.Greeting != nil {
		p.Greeting = *u.Greeting
	}
	if u.Description != nil {
		p.Description = *u.Description
	}
	if u.Instructions != nil {
		p.Instructions = *u.Instructions
	}
	if u.Specialist != nil {
		p.Specialist = *u.Specialist
	}
	if u.MainRouter != nil {
		p.MainRouter = *u.MainRouter
	}
}

// GreetingFor renders the persona greeting for a department, personalizing
// the leading "Hi!" or "Hello!" token with the customer name.
func (r *Registry) GreetingFor(department model.Department, customerName string) string {
	p, ok := r.Get(department)
	if !ok {
		p = r.MainRouter()
	}
	return personalize(p.Greeting, customerName)
}

// WelcomeBack renders the hub greeting used when a customer returns from a
// specialist to the main router.
func (r *Registry) WelcomeBack(customerName string) string {
	p := r.MainRouter()
	greeting := "Welcome back"
	if customerName != "" {
		greeting += ", " + customerName
	}
	greeting += "! I'm " + p.Name + " again. What else can I help you with?"
	return greeting
}

// SpecialistOptions returns the department menu of all specialist personas,
// in registration order.
func (r *Registry) SpecialistOptions() []model.DepartmentOption {
	snap := r.load()
	var out []model.DepartmentOption
	for _, d := range snap.order {
		p := snap.personas[d]
		if !p.Specialist {
			continue
		}
		out = append(out, model.DepartmentOption{
			ID:          p.Department,
			Name:        p.Name,
			Description: p.Description,
		})
	}
	return out
}

// personalize swaps a leading "Hi!" or "Hello!" for a named salutation. The
// greeting templates are plain strings, not a template language.
func personalize(greeting, name string) string {
	if name == "" {
		return greeting
	}
	for _, token := range []string{"Hi!", "Hello!"} {
		if strings.HasPrefix(greeting, token) {
			salutation := strings.TrimSuffix(token, "!") + " " + name + "!"
			return salutation + strings.TrimPrefix(greeting, token)
		}
	}
	return greeting
}
