package reasoning

import (
	"encoding/json"
	"fmt"
	"strings"

	"specter/internal/tree"
)

const (
	// MaxCandidatesShown bounds how many prioritized candidates the
	// next-action request presents. The controller maps the oracle's
	// 1-based selection back against the same window.
	MaxCandidatesShown = 10
	// maxOutputChars bounds the tool output embedded in an update
	// request so prompts do not grow with output size.
	maxOutputChars = 2000
)

// Adapter builds oracle requests from the current tree state. It
// holds the tree read-only; all mutation goes through the controller.
type Adapter struct {
	ptt *tree.TaskTree
}

// NewAdapter wraps a task tree.
func NewAdapter(t *tree.TaskTree) *Adapter {
	return &Adapter{ptt: t}
}

// BuildInitializationRequest asks the oracle for an initial structure
// and seed tasks for the stated goal. Structure is goal-driven; the
// oracle is told not to assume fixed phases.
func (a *Adapter) BuildInitializationRequest(goal, target string, constraints map[string]interface{}, availableTools []string) string {
	constraintsJSON, err := json.MarshalIndent(constraints, "", "  ")
	if err != nil {
		constraintsJSON = []byte("{}")
	}

	var toolInfo string
	if len(availableTools) > 0 {
		toolInfo = fmt.Sprintf(`Available Tools: %s

You must work within the capabilities of these tools. Think about what each tool can accomplish:
- Consider the full capabilities of each available tool
- Adapt your approach to work with available tools
- Be creative in how you leverage available tools`, strings.Join(availableTools, ", "))
	} else {
		toolInfo = "No tools are currently available. Design an approach that describes the security testing objectives without tool dependencies."
	}

	return fmt.Sprintf(`You are an autonomous security agent initializing a Pentesting Task Tree (PTT) for a security assessment.

ASSESSMENT CONTEXT:
Goal: %s
Target: %s
Constraints: %s

%s

TASK:
Analyze this goal and determine what structure and initial tasks are needed to accomplish it efficiently.

DO NOT assume any predefined phases or structure. Instead:
1. Analyze what the goal actually requires
2. Determine if you need phases/categories or if direct tasks are better
3. Create an appropriate initial structure
4. Define specific actionable tasks to start with

Consider:
- What does this specific goal require?
- What's the minimal viable approach?
- How can available tools be leveraged?
- What structure makes sense for THIS goal?

Provide your analysis and initial structure in JSON format:

{
    "analysis": "Your assessment of what this goal requires and approach",
    "structure": [
        {
            "type": "phase/category/direct",
            "name": "Name of organizational structure",
            "description": "What this encompasses",
            "justification": "Why this structure element is needed for this goal"
        }
    ],
    "initial_tasks": [
        {
            "description": "Specific actionable task",
            "parent": "Which structure element this belongs to, or 'root' for direct tasks",
            "tool_suggestion": "Which available tool to use, or 'manual' if no suitable tool",
            "priority": 1-10,
            "risk_level": "low/medium/high",
            "rationale": "Why this task is necessary for the goal"
        }
    ]
}

BE INTELLIGENT: If the goal is simple, don't create complex multi-phase structures. If it's complex, then structure appropriately. Let the goal drive the structure, not the other way around.`,
		goal, target, constraintsJSON, toolInfo)
}

// BuildNextActionRequest presents the top prioritized candidates and
// asks the oracle to pick one by 1-based index with a concrete
// command and tool choice.
func (a *Adapter) BuildNextActionRequest(availableTools []string) string {
	candidates := a.ptt.PrioritizeTasks(a.ptt.GetCandidateTasks())
	if len(candidates) > MaxCandidatesShown {
		candidates = candidates[:MaxCandidatesShown]
	}

	var candidateLines []string
	for i, task := range candidates {
		line := fmt.Sprintf("%d. %s", i+1, task.Description)
		if task.Priority > 0 {
			line += fmt.Sprintf(" (Priority: %d)", task.Priority)
		}
		candidateLines = append(candidateLines, line)
	}

	var toolContext string
	if len(availableTools) > 0 {
		toolContext = fmt.Sprintf(`Available Tools: %s

Think about how to leverage these tools for the selected task. Each tool has its own capabilities -
be creative and intelligent about how to accomplish penetration testing objectives with available tools.
If a tool doesn't directly support a traditional approach, consider alternative methods that achieve the same goal.`, strings.Join(availableTools, ", "))
	} else {
		toolContext = "No tools are currently available. Select tasks that can be performed manually or recommend appropriate tooling."
	}

	stats := a.ptt.GetStatistics()

	return fmt.Sprintf(`You are managing a Pentesting Task Tree (PTT) and need to select the next action.

Goal: %s
Target: %s

Current PTT State:
%s

%s

Candidate Tasks:
%s

Statistics:
- Total tasks: %d
- Completed: %d
- In Progress: %d
- Pending: %d

Select the most strategic next action and provide your response in JSON format:

{
    "selected_task_index": 1-based index from candidate list,
    "rationale": "Why this task is the best next step",
    "command": "Intelligent request that leverages available tools effectively",
    "tool": "Which available tool to use, or 'manual' if no suitable tool",
    "expected_outcome": "What we hope to discover/achieve",
    "alternative_if_blocked": "Backup task index if this fails"
}

Consider:
1. Logical progression through the penetration testing methodology
2. Task dependencies and prerequisites
3. Risk vs reward of different approaches
4. How to best utilize available tools for maximum effectiveness
5. Strategic value of each potential action

Be intelligent about tool selection - think about what each available tool can accomplish.`,
		a.ptt.Goal, a.ptt.Target, a.ptt.RenderText(), toolContext,
		strings.Join(candidateLines, "\n"),
		stats.TotalNodes,
		stats.StatusCounts[tree.StatusCompleted],
		stats.StatusCounts[tree.StatusInProgress],
		stats.StatusCounts[tree.StatusPending])
}

// BuildUpdateRequest asks the oracle to classify an executed node and
// propose follow-up tasks, given the command and its (truncated)
// output.
func (a *Adapter) BuildUpdateRequest(toolOutput, command string, node *tree.TaskNode) string {
	return fmt.Sprintf(`You are managing a Pentesting Task Tree (PTT). A task has been executed and you need to update the tree based on the results.

Current PTT State:
%s

Executed Task: %s
Command: %s
Tool Output:
%s

Based on this output, provide updates in the following JSON format:

{
    "node_updates": {
        "status": "completed/failed/vulnerable/not_vulnerable",
        "findings": "Summary of key findings from the output",
        "output_summary": "Brief technical summary"
    },
    "new_tasks": [
        {
            "description": "New task based on findings",
            "parent_phase": "Phase 1/2/3/4",
            "tool_suggestion": "Suggested tool",
            "priority": 1-10,
            "risk_level": "low/medium/high",
            "rationale": "Why this task is important"
        }
    ],
    "insights": "Any strategic insights or patterns noticed"
}

Consider:
1. What vulnerabilities or opportunities were discovered?
2. What follow-up actions are needed based on the findings?
3. Should any new attack vectors be explored?
4. Are there any security misconfigurations evident?`,
		a.ptt.RenderText(), node.Description, command, truncate(toolOutput, maxOutputChars))
}

// BuildGoalCheckRequest asks whether the primary goal is met, with a
// 0-100 confidence and supporting evidence. The request pins the
// oracle to the original goal so it does not invent new scope.
func (a *Adapter) BuildGoalCheckRequest() string {
	var completed []string
	for _, node := range a.ptt.OrderedNodes() {
		if node.Status == tree.StatusCompleted && len(node.Findings) > 0 {
			completed = append(completed, fmt.Sprintf("✓ %s: %s", node.Description, strings.Join(node.Findings, "; ")))
		}
	}
	completedContext := "No completed tasks with findings yet."
	if len(completed) > 0 {
		completedContext = strings.Join(completed, "\n")
	}

	return fmt.Sprintf(`Analyze the current Pentesting Task Tree (PTT) to determine if the PRIMARY GOAL has been achieved.

IMPORTANT: Focus ONLY on whether the specific goal stated has been accomplished. Do not suggest additional scope or activities beyond the original goal.

PRIMARY GOAL: %s
Target: %s

COMPLETED TASKS WITH FINDINGS:
%s

Current PTT State:
%s

GOAL ACHIEVEMENT CRITERIA:
- For information gathering goals, the goal is achieved when that specific information is obtained
- For vulnerability assessment goals, the goal is achieved when vulnerabilities are identified and documented
- For exploitation goals, the goal is achieved when successful exploitation is demonstrated
- For access goals, the goal is achieved when the specified access level is obtained

Provide your analysis in JSON format:

{
    "goal_achieved": true/false,
    "confidence": 0-100,
    "evidence": "Specific evidence that the PRIMARY GOAL has been met (quote actual findings)",
    "remaining_objectives": "What still needs to be done if goal not achieved (related to the ORIGINAL goal only)",
    "recommendations": "Next steps ONLY if they relate to the original goal - do not expand scope",
    "scope_warning": "Flag if any tasks seem to exceed the original goal scope"
}

Consider:
1. Has the SPECIFIC goal been demonstrably achieved?
2. Is there sufficient evidence/proof in the completed tasks?
3. Are there critical paths unexplored that are NECESSARY for the original goal?
4. Would additional testing strengthen the results for the ORIGINAL goal only?

DO NOT recommend expanding the scope beyond the original goal. If the goal is completed, mark it as achieved regardless of what other security activities could be performed.`,
		a.ptt.Goal, a.ptt.Target, completedContext, a.ptt.RenderText())
}

// StrategicSummary renders a progress overview for operators: status
// counts, per-phase completion, and the top vulnerable findings.
func (a *Adapter) StrategicSummary() string {
	stats := a.ptt.GetStatistics()

	var b strings.Builder
	fmt.Fprintf(&b, "=== PTT Strategic Summary ===\n")
	fmt.Fprintf(&b, "Goal: %s\n", a.ptt.Goal)
	fmt.Fprintf(&b, "Target: %s\n\n", a.ptt.Target)
	fmt.Fprintf(&b, "Progress Overview:\n")
	fmt.Fprintf(&b, "- Total Tasks: %d\n", stats.TotalNodes)
	fmt.Fprintf(&b, "- Completed: %d\n", stats.StatusCounts[tree.StatusCompleted])
	fmt.Fprintf(&b, "- In Progress: %d\n", stats.StatusCounts[tree.StatusInProgress])
	fmt.Fprintf(&b, "- Failed: %d\n", stats.StatusCounts[tree.StatusFailed])
	fmt.Fprintf(&b, "- Vulnerabilities Found: %d\n", stats.StatusCounts[tree.StatusVulnerable])

	b.WriteString("\nCurrent Phase Focus:\n")
	for _, node := range a.ptt.OrderedNodes() {
		if node.NodeType != tree.TypePhase {
			continue
		}
		total := len(node.ChildrenIDs)
		if total == 0 {
			continue
		}
		completed := 0
		for _, child := range a.ptt.GetChildren(node.ID) {
			if child.Status == tree.StatusCompleted {
				completed++
			}
		}
		progress := float64(completed) / float64(total) * 100
		fmt.Fprintf(&b, "- %s: %d/%d tasks (%.0f%%)\n", node.Description, completed, total, progress)
	}

	b.WriteString("\nKey Findings:\n")
	count := 0
	for _, node := range a.ptt.OrderedNodes() {
		if node.Status != tree.StatusVulnerable || len(node.Findings) == 0 {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", node.Description, truncate(strings.Join(node.Findings, "; "), 100))
		count++
		if count >= 5 {
			break
		}
	}

	return b.String()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
