package reasoning

import (
	"specter/internal/logging"
)

// toolSentinels are tool suggestions that never need to match the
// registry: "manual" marks operator work, "generic" defers the choice.
var toolSentinels = map[string]bool{
	"manual":  true,
	"generic": true,
}

// ValidateToolSuggestions checks proposed tasks against the available
// toolset. Mismatches are logged but the list is returned unmodified:
// availability is enforced at execution time, where the oracle gets a
// chance to adapt the task to the tools that exist.
func ValidateToolSuggestions(tasks []ProposedTask, availableTools []string) []ProposedTask {
	if len(availableTools) == 0 {
		return tasks
	}

	available := make(map[string]bool, len(availableTools))
	for _, t := range availableTools {
		available[t] = true
	}

	mismatched := 0
	for _, task := range tasks {
		tool := task.ToolSuggestion
		if tool == "" || available[tool] || toolSentinels[tool] {
			continue
		}
		mismatched++
		logging.ReasoningDebug("task %q suggests unavailable tool %q", task.Description, tool)
	}
	if mismatched > 0 {
		logging.ReasoningWarn("%d task(s) reference unavailable tools, deferring to execution-time adaptation", mismatched)
	}

	return tasks
}
