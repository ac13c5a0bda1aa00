// Package flow executes operator-authored conversation scripts.
package flow

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// LoadScript reads and validates a flow script from a JSON file.
func LoadScript(path string) (*model.FlowScript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow script: %w", err)
	}
	return ParseScript(data)
}

// ParseScript decodes and validates a flow script. Structural problems fail
// here, at configuration load, rather than mid-conversation.
func ParseScript(data []byte) (*model.FlowScript, error) {
	var script model.FlowScript
	if err := json.Unmarshal(data, &script); err != nil {
		return nil, fmt.Errorf("failed to decode flow script: %w", err)
	}
	if err := Validate(&script); err != nil {
		return nil, err
	}
	return &script, nil
}

// Validate checks a script's structure: unique non-empty step ids, known
// step types, a resolvable entry step, options on choice steps, sane rating
// scales, and valid department bindings. Dangling next-step references are
// deliberately not an error here; operators hot-edit scripts and the engine
// treats an unknown reference as a logged no-op at runtime.
func Validate(script *model.FlowScript) error {
	if len(script.Steps) == 0 {
		return &model.ConfigurationError{Reason: "flow script has no steps"}
	}

	seen := make(map[string]bool, len(script.Steps))
	for i := range script.Steps {
		step := &script.Steps[i]
		if step.ID == "" {
			return &model.ConfigurationError{Reason: "flow step with empty id"}
		}
		if seen[step.ID] {
			return &model.ConfigurationError{Reason: "duplicate flow step id " + step.ID}
		}
		seen[step.ID] = true

		if !step.Type.Valid() {
			return &model.ConfigurationError{Reason: fmt.Sprintf("flow step %s has unknown type %q", step.ID, step.Type)}
		}

		switch step.Type {
		case model.StepTypeChoice:
			if len(step.Options) == 0 {
				return &model.ConfigurationError{Reason: "choice step " + step.ID + " has no options"}
			}
			for _, opt := range step.Options {
				if opt.Value == "" {
					return &model.ConfigurationError{Reason: "choice step " + step.ID + " has an option without a value"}
				}
			}
		case model.StepTypeAIHandoff, model.StepTypeAgentQueue:
			if step.Department != "" && !step.Department.Valid() {
				return &model.ConfigurationError{Reason: fmt.Sprintf("flow step %s binds unknown department %q", step.ID, step.Department)}
			}
		case model.StepTypeRating:
			if step.Scale < 0 || step.Scale > 10 {
				return &model.ConfigurationError{Reason: "rating step " + step.ID + " has an out-of-range scale"}
			}
		}
	}

	if script.Entry == "" {
		return &model.ConfigurationError{Reason: "flow script has no entry step"}
	}
	if !seen[script.Entry] {
		return &model.ConfigurationError{Reason: "flow script entry " + script.Entry + " does not exist"}
	}

	return nil
}

// DanglingRefs returns every next-step reference that does not resolve to a
// step id, for load-time warnings.
func DanglingRefs(script *model.FlowScript) []string {
	ids := make(map[string]bool, len(script.Steps))
	for _, step := range script.Steps {
		ids[step.ID] = true
	}

	var dangling []string
	for _, step := range script.Steps {
		if step.NextStep != "" && !ids[step.NextStep] {
			dangling = append(dangling, fmt.Sprintf("%s -> %s", step.ID, step.NextStep))
		}
		for _, opt := range step.Options {
			if opt.NextStep != "" && !ids[opt.NextStep] {
				dangling = append(dangling, fmt.Sprintf("%s[%s] -> %s", step.ID, opt.Value, opt.NextStep))
			}
		}
	}
	return dangling
}
