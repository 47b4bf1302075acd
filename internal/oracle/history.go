package oracle

import (
	"fmt"
	"strings"
)

// DefaultHistoryTokens bounds how much prior dialogue is replayed into
// each oracle call.
const DefaultHistoryTokens = 4000

// History is a bounded conversation log. Oldest entries are dropped
// first once the token estimate exceeds the budget; the most recent
// entry always survives.
type History struct {
	entries   []Dialogue
	maxTokens int
}

// NewHistory creates a history with the given token budget
// (DefaultHistoryTokens when <= 0).
func NewHistory(maxTokens int) *History {
	if maxTokens <= 0 {
		maxTokens = DefaultHistoryTokens
	}
	return &History{maxTokens: maxTokens}
}

// Add appends a dialogue entry and trims to budget.
func (h *History) Add(userQuery, response string) {
	h.entries = append(h.entries, Dialogue{UserQuery: userQuery, Response: response})
	h.trim()
}

// UpdateLastResponse replaces the response of the newest entry.
func (h *History) UpdateLastResponse(response string) {
	if len(h.entries) == 0 {
		return
	}
	h.entries[len(h.entries)-1].Response = response
	h.trim()
}

// Entries returns a copy of the current history window.
func (h *History) Entries() []Dialogue {
	out := make([]Dialogue, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of retained dialogues.
func (h *History) Len() int {
	return len(h.entries)
}

// Clear drops all history.
func (h *History) Clear() {
	h.entries = nil
}

// EstimateTokens returns the token estimate for the retained window.
func (h *History) EstimateTokens() int {
	total := 0
	for _, e := range h.entries {
		total += EstimateTokens(e.UserQuery) + EstimateTokens(e.Response)
	}
	return total
}

func (h *History) trim() {
	for h.EstimateTokens() > h.maxTokens && len(h.entries) > 1 {
		h.entries = h.entries[1:]
	}
}

// Export renders the history as readable text for report analysis.
// An empty history exports as "" so callers can omit the section.
func (h *History) Export() string {
	if len(h.entries) == 0 {
		return ""
	}
	var b strings.Builder
	for i, e := range h.entries {
		fmt.Fprintf(&b, "=== Dialogue %d ===\n", i+1)
		fmt.Fprintf(&b, "User: %s\n", e.UserQuery)
		if e.Response != "" {
			fmt.Fprintf(&b, "AI: %s\n", e.Response)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
