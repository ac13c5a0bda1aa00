package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
)

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func TestDefaultRegistryIsValid(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	main := r.MainRouter()
	assert.Equal(t, model.DepartmentGeneral, main.Department)
	assert.Equal(t, "Maya", main.Name)

	personas := r.List()
	require.Len(t, personas, len(model.Departments))
	for _, d := range model.Departments {
		_, ok := r.Get(d)
		assert.True(t, ok, "missing persona for %s", d)
	}
}

func TestUpsertUpdatesExistingPersona(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	updated, err := r.Upsert(model.DepartmentSales, model.PersonaUpdate{
		Name:     strPtr("Vera"),
		Greeting: strPtr("Hi! I'm Vera, let's talk plans."),
	})
	require.NoError(t, err)
	assert.Equal(t, "Vera", updated.Name)

	got, ok := r.Get(model.DepartmentSales)
	require.True(t, ok)
	assert.Equal(t, "Vera", got.Name)
	// Untouched fields survive a partial update.
	assert.Equal(t, "sales advisor", got.Role)
	assert.True(t, got.Specialist)
}

func TestUpsertRejectsSecondMainRouter(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	_, err := r.Upsert(model.DepartmentSales, model.PersonaUpdate{
		MainRouter: boolPtr(true),
	})
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))

	// The rejected mutation leaves the table untouched.
	got, ok := r.Get(model.DepartmentSales)
	require.True(t, ok)
	assert.False(t, got.MainRouter)
	assert.Equal(t, "Victor", got.Name)
}

func TestUpsertRejectsRemovingOnlyMainRouter(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	_, err := r.Upsert(model.DepartmentGeneral, model.PersonaUpdate{
		MainRouter: boolPtr(false),
	})
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))

	main := r.MainRouter()
	assert.Equal(t, model.DepartmentGeneral, main.Department)
}

func TestUpsertRejectsUnknownDepartment(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	_, err := r.Upsert(model.Department("lunar"), model.PersonaUpdate{Name: strPtr("Buzz")})
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))
}

func TestUpsertIsVisibleToConcurrentReaders(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	before := r.List()
	_, err := r.Upsert(model.DepartmentBilling, model.PersonaUpdate{Name: strPtr("Nora")})
	require.NoError(t, err)

	// The snapshot handed out before the write is unchanged.
	for _, p := range before {
		if p.Department == model.DepartmentBilling {
			assert.Equal(t, "Sofia", p.Name)
		}
	}

	got, ok := r.Get(model.DepartmentBilling)
	require.True(t, ok)
	assert.Equal(t, "Nora", got.Name)
}

func TestNewRegistryWithValidation(t *testing.T) {
	_, err := NewRegistryWith([]model.Persona{
		{Department: model.DepartmentGeneral, Name: "A"},
	}, logger.NewNop())
	require.Error(t, err)
	assert.True(t, model.IsConfigurationError(err))

	_, err = NewRegistryWith([]model.Persona{
		{Department: model.DepartmentGeneral, Name: "A", MainRouter: true},
		{Department: model.DepartmentGeneral, Name: "B"},
	}, logger.NewNop())
	require.Error(t, err)
}

func TestGreetingPersonalization(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	got := r.GreetingFor(model.DepartmentGeneral, "Dana")
	assert.Equal(t, "Hi Dana! I'm Maya, your guide here. How can I help you today?", got)

	anonymous := r.GreetingFor(model.DepartmentGeneral, "")
	assert.Equal(t, "Hi! I'm Maya, your guide here. How can I help you today?", anonymous)
}

func TestWelcomeBack(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	assert.Equal(t, "Welcome back, Dana! I'm Maya again. What else can I help you with?", r.WelcomeBack("Dana"))
	assert.Equal(t, "Welcome back! I'm Maya again. What else can I help you with?", r.WelcomeBack(""))
}

func TestSpecialistOptionsExcludeHub(t *testing.T) {
	r := NewRegistry(logger.NewNop())

	options := r.SpecialistOptions()
	require.Len(t, options, len(model.Departments)-1)
	for _, opt := range options {
		assert.NotEqual(t, model.DepartmentGeneral, opt.ID)
		assert.NotEmpty(t, opt.Name)
	}
}
