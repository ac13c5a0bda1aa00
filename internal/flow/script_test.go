package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

func TestParseScriptValid(t *testing.T) {
	data := []byte(`{
		"name": "welcome",
		"enabled": true,
		"entry": "greet",
		"steps": [
			{"id": "greet", "type": "message", "content": "Welcome!", "next_step": "menu"},
			{"id": "menu", "type": "choice", "content": "What do you need?", "options": [
				{"text": "Talk to sales", "value": "sales", "next_step": "handoff"},
				{"text": "Nothing", "value": "done"}
			]},
			{"id": "handoff", "type": "ai_handoff", "department": "sales"}
		]
	}`)

	script, err := ParseScript(data)
	require.NoError(t, err)
	assert.Equal(t, "welcome", script.Name)
	assert.True(t, script.Enabled)
	assert.Len(t, script.Steps, 3)

	step, ok := script.Step("menu")
	require.True(t, ok)
	assert.Equal(t, model.StepTypeChoice, step.Type)
}

func TestParseScriptRejectsBadJSON(t *testing.T) {
	_, err := ParseScript([]byte(`{not json`))
	require.Error(t, err)
}

func TestValidateStructuralFailures(t *testing.T) {
	cases := []struct {
		name   string
		script model.FlowScript
	}{
		{
			name:   "no steps",
			script: model.FlowScript{Entry: "a"},
		},
		{
			name: "empty step id",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "", Type: model.StepTypeMessage},
			}},
		},
		{
			name: "duplicate step id",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeMessage},
				{ID: "a", Type: model.StepTypeMessage},
			}},
		},
		{
			name: "unknown step type",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "a", Type: "teleport"},
			}},
		},
		{
			name: "choice without options",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeChoice, Content: "pick"},
			}},
		},
		{
			name: "choice option without value",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeChoice, Options: []model.FlowOption{{Text: "x"}}},
			}},
		},
		{
			name: "handoff to unknown department",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeAIHandoff, Department: "lunar"},
			}},
		},
		{
			name: "rating scale out of range",
			script: model.FlowScript{Entry: "a", Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeRating, Scale: 99},
			}},
		},
		{
			name: "missing entry",
			script: model.FlowScript{Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeMessage},
			}},
		},
		{
			name: "entry does not exist",
			script: model.FlowScript{Entry: "b", Steps: []model.FlowStep{
				{ID: "a", Type: model.StepTypeMessage},
			}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(&tc.script)
			require.Error(t, err)
			assert.True(t, model.IsConfigurationError(err))
		})
	}
}

func TestValidateToleratesDanglingNextStep(t *testing.T) {
	script := model.FlowScript{
		Entry: "a",
		Steps: []model.FlowStep{
			{ID: "a", Type: model.StepTypeMessage, Content: "hi", NextStep: "ghost"},
		},
	}

	require.NoError(t, Validate(&script))

	refs := DanglingRefs(&script)
	require.Len(t, refs, 1)
	assert.Equal(t, "a -> ghost", refs[0])
}

func TestDanglingRefsCoverOptions(t *testing.T) {
	script := model.FlowScript{
		Entry: "menu",
		Steps: []model.FlowStep{
			{ID: "menu", Type: model.StepTypeChoice, Options: []model.FlowOption{
				{Text: "A", Value: "a", NextStep: "missing"},
				{Text: "B", Value: "b"},
			}},
		},
	}

	refs := DanglingRefs(&script)
	require.Len(t, refs, 1)
	assert.Equal(t, "menu[a] -> missing", refs[0])
}
