package flow

import (
	"strconv"
	"strings"

	"github.com/capitalize-ai/livechat-platform/internal/model"
	"github.com/capitalize-ai/livechat-platform/pkg/logger"
	"github.com/capitalize-ai/livechat-platform/pkg/metrics"
)

// maxAdvanceDepth bounds how many message steps auto-advance within one
// transition. Operators may author loops; each customer interaction is a
// discrete event, never a tight loop.
const maxAdvanceDepth = 16

// Outcome is the externally observable result of one flow transition. The
// conversation router turns it into a RouterResult and side-channel events.
type Outcome struct {
	Replies    []string
	Options    []model.FlowOption
	PromptStep string

	// HandoffDepartment is set when an ai_handoff step parked the
	// conversation in free-form AI mode for that department.
	HandoffDepartment model.Department

	// QueueDepartment is set when an agent_queue step asked for a
	// customer-waiting broadcast to that department's agent pool.
	QueueDepartment model.Department

	// RatingScale is set when a rating step is awaiting a score.
	RatingScale int
}

// Text joins the emitted step contents into one response body.
func (o *Outcome) Text() string {
	return strings.Join(o.Replies, "\n\n")
}

// Engine drives a conversation through a validated flow script. The engine
// mutates only the Step field of the conversation passed in; callers own
// persistence and serialization.
type Engine struct {
	script *model.FlowScript
	logger *logger.Logger
}

// NewEngine creates an engine for a validated script. Dangling step
// references are logged once here; at runtime they degrade to no-ops.
func NewEngine(script *model.FlowScript, log *logger.Logger) (*Engine, error) {
	if err := Validate(script); err != nil {
		return nil, err
	}
	for _, ref := range DanglingRefs(script) {
		log.Warn("flow script has dangling step reference", "script", script.Name, "ref", ref)
	}
	return &Engine{script: script, logger: log}, nil
}

// Script returns the engine's script.
func (e *Engine) Script() *model.FlowScript {
	return e.script
}

// Start runs the script from its entry step for a fresh conversation.
func (e *Engine) Start(conv *model.Conversation) *Outcome {
	return e.Run(conv, e.script.Entry)
}

// Run executes steps starting at stepID until the script halts for input,
// hands off, or hits the advance depth bound. An unknown step id is a logged
// no-op leaving the conversation in its last valid state.
func (e *Engine) Run(conv *model.Conversation, stepID string) *Outcome {
	out := &Outcome{}

	for depth := 0; depth < maxAdvanceDepth; depth++ {
		step, ok := e.script.Step(stepID)
		if !ok {
			e.logger.Warn("flow references unknown step",
				"conversation_id", conv.ID, "step", stepID, "error", model.ErrUnknownStep)
			return out
		}

		metrics.FlowSteps.WithLabelValues(string(step.Type)).Inc()

		switch step.Type {
		case model.StepTypeMessage:
			if step.Content != "" {
				out.Replies = append(out.Replies, step.Content)
			}
			conv.Step = step.ID
			if step.NextStep == "" {
				return out
			}
			stepID = step.NextStep

		case model.StepTypeChoice:
			if step.Content != "" {
				out.Replies = append(out.Replies, step.Content)
			}
			out.Options = step.Options
			out.PromptStep = step.ID
			conv.Step = step.ID
			return out

		case model.StepTypeAIHandoff:
			if step.Content != "" {
				out.Replies = append(out.Replies, step.Content)
			}
			dept := step.Department
			if dept == "" {
				dept = model.DepartmentGeneral
			}
			out.HandoffDepartment = dept
			conv.Step = model.StepConversation
			return out

		case model.StepTypeAgentQueue:
			if step.Content != "" {
				out.Replies = append(out.Replies, step.Content)
			}
			dept := step.Department
			if dept == "" {
				dept = conv.Department
			}
			out.QueueDepartment = dept
			conv.Step = step.ID
			return out

		case model.StepTypeRating:
			if step.Content != "" {
				out.Replies = append(out.Replies, step.Content)
			}
			scale := step.Scale
			if scale == 0 {
				scale = 5
			}
			out.RatingScale = scale
			out.PromptStep = step.ID
			conv.Step = step.ID
			return out
		}
	}

	e.logger.Warn("flow advance depth exceeded", "conversation_id", conv.ID, "step", stepID)
	return out
}

// SelectChoice applies an option selection for the step the conversation is
// currently waiting on. Stale submissions (wrong step), unknown option
// values, and options pointing at unknown steps are all ignored with no
// state change; applied reports whether the selection took effect.
func (e *Engine) SelectChoice(conv *model.Conversation, stepID, optionValue string) (out *Outcome, applied bool) {
	if conv.Step != stepID {
		e.logger.Warn("stale choice selection ignored",
			"conversation_id", conv.ID, "submitted_step", stepID, "current_step", conv.Step)
		return nil, false
	}

	step, ok := e.script.Step(stepID)
	if !ok || step.Type != model.StepTypeChoice {
		e.logger.Warn("choice selection for non-choice step ignored",
			"conversation_id", conv.ID, "step", stepID)
		return nil, false
	}

	for _, opt := range step.Options {
		if !strings.EqualFold(opt.Value, optionValue) {
			continue
		}
		if opt.NextStep == "" {
			// Terminal option: the script has run its course.
			conv.Step = model.StepConversation
			return &Outcome{}, true
		}
		if _, ok := e.script.Step(opt.NextStep); !ok {
			e.logger.Warn("choice option points at unknown step",
				"conversation_id", conv.ID, "step", stepID,
				"option", opt.Value, "next_step", opt.NextStep,
				"error", model.ErrUnknownStep)
			return nil, false
		}
		return e.Run(conv, opt.NextStep), true
	}

	e.logger.Warn("unknown choice option ignored",
		"conversation_id", conv.ID, "step", stepID, "option", optionValue)
	return nil, false
}

// HandleText processes free text arriving while a script step is active. A
// nil outcome means the script is done with this conversation and the caller
// should fall through to AI routing.
func (e *Engine) HandleText(conv *model.Conversation, text string) *Outcome {
	step, ok := e.script.Step(conv.Step)
	if !ok {
		// The conversation points at a step that no longer exists, likely a
		// hot-edited script. Release it to free-form routing.
		e.logger.Warn("conversation parked on unknown step, releasing to AI routing",
			"conversation_id", conv.ID, "step", conv.Step, "error", model.ErrUnknownStep)
		conv.Step = model.StepConversation
		return nil
	}

	switch step.Type {
	case model.StepTypeChoice:
		// Try to read the raw text as a selection before re-prompting.
		if opt, found := matchOption(step.Options, text); found {
			if out, applied := e.SelectChoice(conv, step.ID, opt.Value); applied {
				return out
			}
		}
		return &Outcome{
			Replies:    []string{step.Content},
			Options:    step.Options,
			PromptStep: step.ID,
		}

	case model.StepTypeRating:
		scale := step.Scale
		if scale == 0 {
			scale = 5
		}
		if score, err := strconv.Atoi(strings.TrimSpace(text)); err == nil && score >= 1 && score <= scale {
			out, _ := e.SubmitRating(conv, step.ID, score)
			return out
		}
		return &Outcome{
			Replies:     []string{step.Content},
			RatingScale: scale,
			PromptStep:  step.ID,
		}

	case model.StepTypeAgentQueue:
		// Still parked waiting for an agent; acknowledge without
		// re-broadcasting the customer-waiting event.
		return &Outcome{Replies: []string{step.Content}}

	default:
		// Terminal message step: the scripted part is over.
		conv.Step = model.StepConversation
		return nil
	}
}

// SubmitRating records a rating for the step the conversation is waiting on
// and advances the script. Stale or out-of-range submissions are ignored.
func (e *Engine) SubmitRating(conv *model.Conversation, stepID string, score int) (out *Outcome, applied bool) {
	if conv.Step != stepID {
		e.logger.Warn("stale rating submission ignored",
			"conversation_id", conv.ID, "submitted_step", stepID, "current_step", conv.Step)
		return nil, false
	}

	step, ok := e.script.Step(stepID)
	if !ok || step.Type != model.StepTypeRating {
		return nil, false
	}

	scale := step.Scale
	if scale == 0 {
		scale = 5
	}
	if score < 1 || score > scale {
		e.logger.Warn("out-of-range rating ignored",
			"conversation_id", conv.ID, "step", stepID, "score", score, "scale", scale)
		return nil, false
	}

	if step.NextStep == "" {
		conv.Step = model.StepConversation
		return &Outcome{Replies: []string{"Thanks for your feedback!"}}, true
	}

	next := e.Run(conv, step.NextStep)
	next.Replies = append([]string{"Thanks for your feedback!"}, next.Replies...)
	return next, true
}

func matchOption(options []model.FlowOption, text string) (model.FlowOption, bool) {
	trimmed := strings.TrimSpace(text)
	for _, opt := range options {
		if strings.EqualFold(opt.Value, trimmed) || strings.EqualFold(opt.Text, trimmed) {
			return opt, true
		}
	}
	// Accept a 1-based index, the way the options are displayed.
	if n, err := strconv.Atoi(trimmed); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return model.FlowOption{}, false
}
