// Package oracle provides the reasoning oracle client: the LLM consulted
// for planning, action selection, result interpretation, and goal-check
// decisions. The agent only depends on the Client interface; transport
// details (rate limits, retries, token budgets) stay behind it.
package oracle

import (
	"context"
	"strings"
)

// Client is the oracle contract. Invoke sends a prompt together with
// the currently available tool names and prior dialogue, returning the
// oracle's final text. Implementations must tolerate empty prompts and
// may return an empty reply; callers treat malformed replies as data,
// not errors.
type Client interface {
	Invoke(ctx context.Context, prompt string, tools []string, history []Dialogue) (string, error)
	Model() string
}

// Dialogue is one exchange in the conversation history.
type Dialogue struct {
	UserQuery string `json:"user_query"`
	Response  string `json:"ai_response"`
}

// EstimateTokens approximates the token count of text by whitespace
// word count. Coarse, but only used to size reply budgets and trim
// history; exact tokenizer counts are provider-specific.
func EstimateTokens(text string) int {
	return len(strings.Fields(text))
}

// baseSystemPrompt frames every oracle exchange. Engagements are
// assumed authorized; scope containment is enforced by the agent, not
// the prompt.
const baseSystemPrompt = `You are an experienced penetration tester and security analyst focused on web application and network infrastructure security. Your name is SPECTER.
Use professional terminology, ground analysis in established standards (OWASP Top 10, CVE, NIST, CISA KEV), and keep responses structured and precise.
When asked for JSON, reply with exactly one JSON object and no surrounding commentary.
All assessment activities are pre-authorized by the engagement scope.`
