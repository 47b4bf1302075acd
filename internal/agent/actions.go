package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"specter/internal/knowledge"
	"specter/internal/logging"
	"specter/internal/reasoning"
	"specter/internal/tree"
)

// pendingAction is a selected task plus the oracle's execution advice.
// A fallback selection carries the task alone.
type pendingAction struct {
	task            *tree.TaskNode
	command         string
	tool            string
	rationale       string
	expectedOutcome string
}

// selectNextAction picks the task to run this iteration. The oracle
// chooses by 1-based index from the prioritized window it was shown;
// any failure along the way (transport, empty reply, undecodable JSON,
// index outside the window) falls back to the first prioritized
// candidate with no tool or command. Selection never blocks the loop:
// nil means the frontier itself is empty.
func (c *Controller) selectNextAction(ctx context.Context) *pendingAction {
	candidates := c.ptt.GetCandidateTasks()
	if len(candidates) == 0 {
		return nil
	}
	prioritized := c.ptt.PrioritizeTasks(candidates)
	availableTools := c.availableTools()

	logging.Agent("Selecting next action from %d candidate(s)", len(prioritized))

	prompt := c.adapter.BuildNextActionRequest(availableTools)
	reply, err := c.client.Invoke(ctx, prompt, availableTools, c.history.Entries())
	if err != nil {
		logging.AgentError("Next-action query failed: %v", err)
		return &pendingAction{task: prioritized[0]}
	}

	action, ok := reasoning.ParseNextAction(reply)
	if !ok {
		logging.AgentWarn("Unusable next-action reply, falling back to top candidate")
		return &pendingAction{task: prioritized[0]}
	}

	window := len(prioritized)
	if window > reasoning.MaxCandidatesShown {
		window = reasoning.MaxCandidatesShown
	}
	idx := action.SelectedTaskIndex.Int() - 1
	if idx < 0 || idx >= window {
		logging.AgentWarn("Selected index %d outside candidate window (1-%d), falling back to top candidate",
			action.SelectedTaskIndex.Int(), window)
		return &pendingAction{task: prioritized[0]}
	}

	return &pendingAction{
		task:            prioritized[idx],
		command:         action.Command,
		tool:            action.Tool,
		rationale:       action.Rationale,
		expectedOutcome: action.ExpectedOutcome,
	}
}

// executeAction runs one task through the oracle. The node goes
// IN_PROGRESS synchronously before dispatch, and every exit path
// resolves it to a terminal status: a transport error or empty reply
// marks it FAILED with the error recorded as findings, a usable reply
// flows into the update step. The returned error reports an execution
// failure to the loop (which backs off) after the node is resolved —
// it never aborts the run.
func (c *Controller) executeAction(ctx context.Context, action *pendingAction) error {
	task := action.task
	command := action.command
	availableTools := c.availableTools()

	logging.Agent("Executing: %s", task.Description)
	if action.rationale != "" {
		logging.AgentDebug("Rationale: %s", action.rationale)
	}

	// A tool outside the registry (and not the manual sentinel) turns
	// the step into an adaptation query instead of failing it.
	if action.tool != "" && !c.toolKnown(action.tool) {
		logging.AgentWarn("Tool %q not available (have: %s), asking oracle to adapt",
			action.tool, strings.Join(availableTools, ", "))
		command = adaptationQuery(task.Description, action.tool, availableTools)
	} else if action.tool != "" {
		c.recordToolUse(action.tool)
	}

	query := command
	if query == "" {
		query = fmt.Sprintf("Perform the following task: %s", task.Description)
	}

	kbRefs, kbContext := c.consultKnowledge(ctx, query)
	if kbContext != "" {
		query = fmt.Sprintf("Based on the following knowledge base information:\n%s\n\n%s", kbContext, query)
	}

	inProgress := string(tree.StatusInProgress)
	c.ptt.UpdateNode(task.ID, tree.NodeUpdate{Status: &inProgress, KBReferences: kbRefs})

	reply, err := c.client.Invoke(ctx, query, availableTools, c.history.Entries())
	if err != nil {
		logging.AgentError("Execution failed for %q: %v", task.Description, err)
		c.failNode(task.ID, fmt.Sprintf("Execution failed: %v", err))
		return err
	}
	if reply == "" {
		logging.AgentWarn("Empty execution reply for %q", task.Description)
		c.failNode(task.ID, "Execution failed: empty oracle reply")
		return fmt.Errorf("empty oracle reply")
	}

	c.history.Add(query, reply)
	c.updateFromResults(ctx, task, reply, query)
	return nil
}

// failNode resolves a node to FAILED with the error text as findings.
func (c *Controller) failNode(id, findings string) {
	failed := string(tree.StatusFailed)
	if !c.ptt.UpdateNode(id, tree.NodeUpdate{Status: &failed, Findings: []string{findings}}) {
		logging.AgentError("Could not mark node %s failed", id)
	}
	c.emitEvent(EventTaskFailed, id, findings)
}

// updateFromResults folds an execution reply back into the tree: the
// oracle classifies the executed node and proposes follow-up tasks.
// This step is exit-path-safe — whatever goes wrong, the node leaves
// IN_PROGRESS (default COMPLETED, matching the optimistic bias of the
// original flow; a rejected status transition reads as FAILED so the
// task stays re-selectable).
func (c *Controller) updateFromResults(ctx context.Context, task *tree.TaskNode, output, command string) {
	availableTools := c.availableTools()
	prompt := c.adapter.BuildUpdateRequest(output, command, task)

	reply, err := c.client.Invoke(ctx, prompt, availableTools, c.history.Entries())
	if err != nil || reply == "" {
		logging.AgentError("Update query failed for %q (err=%v), defaulting to completed", task.Description, err)
		c.resolveCompleted(task.ID, command)
		return
	}

	decision := reasoning.ParseUpdate(reply)

	now := time.Now().Format(time.RFC3339)
	status := string(tree.StatusCompleted)
	update := tree.NodeUpdate{
		Status:          &status,
		CommandExecuted: &command,
		Timestamp:       &now,
	}
	if nu := decision.NodeUpdates; nu != nil {
		if nu.Status != "" {
			status = nu.Status
		}
		if len(nu.Findings) > 0 {
			update.Findings = []string(nu.Findings)
		}
		if nu.OutputSummary != "" {
			summary := nu.OutputSummary
			update.OutputSummary = &summary
		}
	}

	if !c.ptt.UpdateNode(task.ID, update) {
		logging.AgentWarn("Update rejected for node %s (status %q), marking failed", task.ID, status)
		c.failNode(task.ID, fmt.Sprintf("Unusable status classification: %q", status))
		return
	}
	c.emitEvent(EventTaskCompleted, task.ID, status)

	if decision.Insights != "" {
		logging.Agent("Insights: %s", decision.Insights)
	}

	c.admitNewTasks(decision.NewTasks)
}

// resolveCompleted is the update-failure fallback: the task ran and
// produced output, so it reads as completed even though the oracle
// could not classify it.
func (c *Controller) resolveCompleted(id, command string) {
	now := time.Now().Format(time.RFC3339)
	status := string(tree.StatusCompleted)
	c.ptt.UpdateNode(id, tree.NodeUpdate{
		Status:          &status,
		CommandExecuted: &command,
		Timestamp:       &now,
	})
	c.emitEvent(EventTaskCompleted, id, status)
}

// admitNewTasks attaches oracle-proposed follow-up tasks, unless the
// quick goal pre-check suggests the goal is already met, and only
// those that survive scope containment.
func (c *Controller) admitNewTasks(proposed []reasoning.ProposedTask) {
	if len(proposed) == 0 {
		return
	}
	if c.quickGoalCheck() {
		logging.Agent("Goal appears achieved, not admitting %d proposed task(s)", len(proposed))
		return
	}

	survivors := c.filterByGoalScope(proposed)
	added := 0
	for _, p := range survivors {
		if p.Description == "" {
			continue
		}
		parent := c.findStructureNode(p.ParentRef())
		if parent == nil {
			continue
		}
		node := proposedToNode(p, parent.ID)
		if err := c.ptt.AddNode(node); err != nil {
			logging.AgentWarn("Dropping proposed task %q: %v", p.Description, err)
			continue
		}
		added++
	}

	if added > 0 {
		logging.Agent("Admitted %d new goal-aligned task(s)", added)
		c.emitEvent(EventTasksAdded, "", fmt.Sprintf("%d task(s)", added))
	}
	if dropped := len(proposed) - len(survivors); dropped > 0 {
		logging.AgentWarn("Filtered out %d task(s) that exceeded goal scope", dropped)
	}
}

// checkGoal runs the full oracle goal check and latches goalAchieved
// when the verdict clears the confidence threshold. This check is the
// sole stopping authority; low confidence logs and continues.
func (c *Controller) checkGoal(ctx context.Context) {
	prompt := c.adapter.BuildGoalCheckRequest()

	reply, err := c.client.Invoke(ctx, prompt, c.availableTools(), c.history.Entries())
	if err != nil {
		logging.AgentError("Goal check failed: %v", err)
		return
	}

	check := reasoning.ParseGoalCheck(reply)
	if check.ScopeWarning != "" {
		logging.AgentWarn("Scope warning: %s", check.ScopeWarning)
	}

	switch {
	case check.GoalAchieved && check.Confidence.Int() >= goalConfidenceThreshold:
		logging.Agent("GOAL ACHIEVED (confidence %d%%): %s", check.Confidence.Int(), check.Evidence)
		c.mu.Lock()
		c.goalAchieved = true
		c.mu.Unlock()
		c.emitEvent(EventGoalCheck, "", fmt.Sprintf("achieved, confidence %d%%", check.Confidence.Int()))
	case check.GoalAchieved:
		logging.Agent("Goal possibly achieved but confidence is low (%d%%), continuing", check.Confidence.Int())
	default:
		logging.AgentDebug("Goal not yet achieved. Remaining: %s", check.RemainingObjectives)
	}
}

// consultKnowledge enriches an execution query with knowledge-base
// context. Failures are logged and ignored: the KB is an accelerant,
// never a dependency.
func (c *Controller) consultKnowledge(ctx context.Context, query string) (refs []string, kbContext string) {
	if c.kb == nil {
		return nil, ""
	}
	chunks, err := c.kb.Search(ctx, query, knowledge.DefaultSearchLimit)
	if err != nil {
		logging.AgentDebug("Knowledge search failed: %v", err)
		return nil, ""
	}
	if len(chunks) == 0 {
		return nil, ""
	}

	var sb strings.Builder
	for _, chunk := range chunks {
		refs = append(refs, fmt.Sprintf("%s#%d", chunk.Source, chunk.Seq))
		sb.WriteString(chunk.Content)
		sb.WriteString("\n")
	}
	logging.AgentDebug("Knowledge base contributed %d chunk(s)", len(chunks))
	return refs, strings.TrimSpace(sb.String())
}

// adaptationQuery asks the oracle to re-plan a task around the tools
// that actually exist.
func adaptationQuery(description, tool string, availableTools []string) string {
	toolList := strings.Join(availableTools, ", ")
	return fmt.Sprintf(`The task %q was planned to use %q but that tool is not available.

Available tools: %s

Please adapt this task to work with the available tools. How would you accomplish this objective using %s?
Be creative and think about alternative approaches that achieve the same security testing goal.`,
		description, tool, toolList, toolList)
}
