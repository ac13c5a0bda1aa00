// Package routing implements keyword-based department classification.
package routing

import (
	"math"
	"strings"

	"github.com/capitalize-ai/livechat-platform/internal/model"
)

// Match is the outcome of classifying one piece of customer text.
type Match struct {
	Department  model.Department
	Score       float64
	Confidence  float64
	Reasons     []string
	Suggestions []model.DepartmentOption
}

// SuggestionSource supplies the specialist department menu attached to
// low-confidence matches from the hub.
type SuggestionSource interface {
	SpecialistOptions() []model.DepartmentOption
}

// KeywordRouter classifies free text against a static rule table. Route is a
// pure function of the table and its inputs; the router carries no state
// between calls.
type KeywordRouter struct {
	rules       []model.RoutingRule
	suggestGate float64
	suggestions SuggestionSource
}

// NewKeywordRouter creates a router over the given rules. Rule order matters:
// when two rules tie on score, the first registered one wins. suggestGate is
// the confidence below which hub conversations get a department menu.
func NewKeywordRouter(rules []model.RoutingRule, suggestGate float64, suggestions SuggestionSource) *KeywordRouter {
	return &KeywordRouter{
		rules:       rules,
		suggestGate: suggestGate,
		suggestions: suggestions,
	}
}

// Route classifies text, returning the best-scoring department. With no
// matches the result is the hub department at score zero, which from the hub
// carries the full suggestion menu.
func (r *KeywordRouter) Route(text string, current model.Department) Match {
	lower := strings.ToLower(text)

	best := Match{Department: model.DepartmentGeneral}
	for _, rule := range r.rules {
		var score float64
		var reasons []string
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				score += rule.Priority
				reasons = append(reasons, kw)
			}
		}
		// Strictly greater keeps the first registered rule on ties.
		if score > best.Score {
			best = Match{
				Department: rule.Department,
				Score:      score,
				Reasons:    reasons,
			}
		}
	}

	best.Confidence = math.Min(best.Score, 1.0)

	if best.Score < r.suggestGate && current == model.DepartmentGeneral && r.suggestions != nil {
		best.Suggestions = r.suggestions.SpecialistOptions()
	}

	return best
}
