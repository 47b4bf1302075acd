package reasoning

import (
	"encoding/json"
	"regexp"
	"strings"

	"specter/internal/logging"
)

// fallbackShape is the fixed decision returned when no strategy can
// recover JSON from a reply. Keyed for every request kind so any
// typed projection lands on safe defaults: no tasks, node completed,
// first candidate, goal not achieved.
const fallbackShape = `{"tasks":[],"node_updates":{"status":"completed"},"new_tasks":[],"selected_task_index":1,"goal_achieved":false,"confidence":0}`

var (
	fencedJSONPattern = regexp.MustCompile("(?s)```json\\s*(\\{.*?\\})\\s*```")
	fencedAnyPattern  = regexp.MustCompile("(?s)```\\s*(\\{.*?\\})\\s*```")
)

type strategy struct {
	name string
	fn   func(string) ([]byte, bool)
}

var strategies = []strategy{
	{"fenced_block", extractFencedJSON},
	{"brace_span", extractBraceSpan},
	{"fuzzy", extractFuzzy},
}

// Extract recovers one JSON object from oracle free text. Strategies
// are tried in order and the first that yields a syntactically valid
// object wins; when all defer, the fixed fallback shape is returned.
// The second result is false only for an empty reply. Extract itself
// never fails past that point.
func Extract(text string) ([]byte, bool) {
	if strings.TrimSpace(text) == "" {
		return nil, false
	}
	for _, s := range strategies {
		if raw, ok := s.fn(text); ok {
			logging.ReasoningDebug("recovered JSON via %s (%d bytes)", s.name, len(raw))
			return raw, true
		}
	}
	logging.ReasoningWarn("no JSON recovered from %d-char reply, using fallback shape", len(text))
	return []byte(fallbackShape), true
}

// extractFencedJSON pulls the object out of a ```json fence, or a
// bare ``` fence when no tagged one exists.
func extractFencedJSON(text string) ([]byte, bool) {
	for _, pattern := range []*regexp.Regexp{fencedJSONPattern, fencedAnyPattern} {
		if m := pattern.FindStringSubmatch(text); m != nil {
			if raw, ok := validObject(m[1]); ok {
				return raw, true
			}
		}
	}
	return nil, false
}

// extractBraceSpan takes the substring between the first '{' and the
// last '}' in the text.
func extractBraceSpan(text string) ([]byte, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, false
	}
	return validObject(text[start : end+1])
}

// extractFuzzy always defers.
// TODO: scrape description/tool_suggestion/priority fields out of
// replies that mangle the JSON syntax itself.
func extractFuzzy(string) ([]byte, bool) {
	return nil, false
}

// validObject checks the candidate substring parses as a JSON object.
// Partial or non-object parses are rejected so the next strategy gets
// its turn.
func validObject(s string) ([]byte, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, false
	}
	return []byte(s), true
}

// ParseInitialization projects an oracle reply onto an
// InitializationPlan. Unusable replies yield an empty plan; the
// controller falls back to a degenerate structure.
func ParseInitialization(text string) InitializationPlan {
	raw, ok := Extract(text)
	if !ok {
		return InitializationPlan{Analysis: "Failed to parse oracle response"}
	}
	var plan InitializationPlan
	if err := json.Unmarshal(raw, &plan); err != nil {
		logging.ReasoningWarn("initialization decode failed: %v", err)
		return InitializationPlan{Analysis: "Failed to parse oracle response"}
	}
	if plan.Analysis == "" {
		plan.Analysis = "No analysis provided"
	}
	return plan
}

// ParseNextAction projects an oracle reply onto a NextAction. The
// second result is false when the reply was empty or undecodable;
// the controller then falls back to the first prioritized candidate.
func ParseNextAction(text string) (NextAction, bool) {
	raw, ok := Extract(text)
	if !ok {
		return NextAction{}, false
	}
	var action NextAction
	if err := json.Unmarshal(raw, &action); err != nil {
		logging.ReasoningWarn("next-action decode failed: %v", err)
		return NextAction{}, false
	}
	return action, true
}

// ParseUpdate projects an oracle reply onto an UpdateDecision.
// NodeUpdates is nil when the reply carried none.
func ParseUpdate(text string) UpdateDecision {
	raw, ok := Extract(text)
	if !ok {
		return UpdateDecision{}
	}
	var update UpdateDecision
	if err := json.Unmarshal(raw, &update); err != nil {
		logging.ReasoningWarn("update decode failed: %v", err)
		return UpdateDecision{}
	}
	return update
}

// ParseGoalCheck projects an oracle reply onto a GoalCheck. Unusable
// replies read as not achieved with zero confidence, which keeps the
// loop running rather than stopping on a parsing accident.
func ParseGoalCheck(text string) GoalCheck {
	raw, ok := Extract(text)
	if !ok {
		return GoalCheck{}
	}
	var check GoalCheck
	if err := json.Unmarshal(raw, &check); err != nil {
		logging.ReasoningWarn("goal-check decode failed: %v", err)
		return GoalCheck{}
	}
	return check
}
