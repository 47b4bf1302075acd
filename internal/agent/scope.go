package agent

import (
	"strings"

	"specter/internal/logging"
	"specter/internal/reasoning"
	"specter/internal/tree"
)

// infoKeywords mark a goal as plain information gathering. Presence of
// any of these in the goal text activates scope containment and the
// quick goal heuristic.
var infoKeywords = []string{
	"check", "identify", "determine", "find", "discover",
	"enumerate", "list", "version", "banner",
}

// expansionKeywords mark a proposed task as escalation beyond an
// information-gathering goal.
var expansionKeywords = []string{
	"exploit", "compromise", "attack", "penetrate",
	"shell", "backdoor", "privilege", "escalat",
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// filterByGoalScope drops proposed tasks whose wording escalates past
// an information-gathering goal. The plan must not silently grow an
// exploitation arm when the operator asked only to look.
func (c *Controller) filterByGoalScope(tasks []reasoning.ProposedTask) []reasoning.ProposedTask {
	goal := strings.ToLower(c.ptt.Goal)
	if !containsAny(goal, infoKeywords) {
		return tasks
	}

	kept := tasks[:0:0]
	for _, task := range tasks {
		desc := strings.ToLower(task.Description)
		if containsAny(desc, expansionKeywords) {
			logging.AgentWarn("Skipping task that exceeds goal scope: %q", task.Description)
			continue
		}
		kept = append(kept, task)
	}
	return kept
}

// quickGoalCheck is a cheap lexical pre-check run before admitting new
// tasks: for information-gathering goals, a completed node whose
// findings echo the goal's subject ("version", "banner") or whose
// description shares an info keyword with the goal suggests the goal
// is already met. A true result only suppresses task admission in the
// current step; stopping the loop stays with the full oracle check.
func (c *Controller) quickGoalCheck() bool {
	goal := strings.ToLower(c.ptt.Goal)
	if !containsAny(goal, infoKeywords) {
		return false
	}

	for _, node := range c.ptt.OrderedNodes() {
		if node.Status != tree.StatusCompleted || len(node.Findings) == 0 {
			continue
		}
		findings := strings.ToLower(strings.Join(node.Findings, "\n"))
		if strings.Contains(goal, "version") && strings.Contains(findings, "version") {
			return true
		}
		if strings.Contains(goal, "banner") && strings.Contains(findings, "banner") {
			return true
		}
		desc := strings.ToLower(node.Description)
		for _, kw := range infoKeywords {
			if strings.Contains(goal, kw) && strings.Contains(desc, kw) {
				return true
			}
		}
	}
	return false
}

// findStructureNode resolves a proposed parent reference to a phase or
// other structural node by case-insensitive substring match, falling
// back to root. Deterministic: first match in tree order wins.
func (c *Controller) findStructureNode(ref string) *tree.TaskNode {
	want := strings.ToLower(strings.TrimSpace(ref))
	if want != "" && want != "root" {
		for _, node := range c.ptt.OrderedNodes() {
			if node.NodeType == tree.TypeTask {
				continue
			}
			if strings.Contains(strings.ToLower(node.Description), want) {
				return node
			}
		}
	}
	return c.ptt.GetNode(c.ptt.RootID)
}
