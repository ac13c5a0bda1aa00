package router

import (
	"strings"
)

// humanAgentPhrases trigger the explicit human hand-off path. Matching is a
// lowercase substring check, first in the decision order.
var humanAgentPhrases = []string{
	"human agent",
	"real person",
	"real human",
	"representative",
	"speak to a human",
	"talk to a human",
	"speak to someone",
	"live agent",
}

// returnToHubPhrases send a specialist conversation back to the main router.
var returnToHubPhrases = []string{
	"back to general",
	"return to general",
	"main menu",
	"go back",
	"start over",
	"different department",
	"something else entirely",
}

// fallbackResponse is the universal safety net: customers always receive a
// textual response, even under total provider failure.
const fallbackResponse = "I'm sorry - we're having technical difficulties on my end. Let me connect you with a human agent who can help."

// humanHandoffResponse answers an explicit request for a person.
const humanHandoffResponse = "Of course - I'm connecting you with a human agent now. They'll see our conversation so you won't have to repeat yourself."

// menuPrompt re-offers the department menu while a selection is pending.
const menuPrompt = "I want to make sure you reach the right team. Which of these fits best?"

func matchesPhrase(text string, phrases []string) bool {
	lower := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
