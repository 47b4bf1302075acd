package agent

import (
	"context"
	"fmt"

	"specter/internal/logging"
	"specter/internal/reasoning"
	"specter/internal/tree"
	"specter/internal/workflow"
)

// InitializeAssessment creates the tree root and asks the oracle for
// an opening structure and seed tasks. Oracle trouble of any kind
// (transport error, empty reply, unusable plan) degrades to a bare
// root with zero tasks rather than aborting: the update step generates
// tasks opportunistically, so an empty opening plan still converges.
func (c *Controller) InitializeAssessment(ctx context.Context, goal, target string, constraints map[string]interface{}) error {
	if constraints == nil {
		constraints = map[string]interface{}{}
	}
	if limit, ok := constraintInt(constraints, "iteration_limit"); ok {
		c.mu.Lock()
		c.maxIterations = limit
		c.mu.Unlock()
	}

	if _, err := c.ptt.Initialize(goal, target, constraints); err != nil {
		return err
	}

	availableTools := c.availableTools()
	logging.Agent("Initializing assessment: goal=%q target=%q tools=%d", goal, target, len(availableTools))

	plan := c.requestOpeningPlan(ctx, goal, target, constraints, availableTools)
	if len(plan.InitialTasks) == 0 {
		logging.AgentWarn("No opening tasks from oracle, relying on dynamic task generation")
		return nil
	}

	logging.Agent("Oracle approach: %s", plan.Analysis)
	c.applyPlan(plan, "llm_created")
	return nil
}

// InitializeWithWorkflow creates the tree root and seeds it from a
// predefined workflow instead of asking the oracle for a plan.
func (c *Controller) InitializeWithWorkflow(goal, target string, constraints map[string]interface{}, workflowKey string) error {
	if constraints == nil {
		constraints = map[string]interface{}{}
	}
	if limit, ok := constraintInt(constraints, "iteration_limit"); ok {
		c.mu.Lock()
		c.maxIterations = limit
		c.mu.Unlock()
	}

	wf, ok := workflow.Get(workflowKey)
	if !ok {
		return fmt.Errorf("unknown workflow %q", workflowKey)
	}
	if _, err := c.ptt.Initialize(goal, target, constraints); err != nil {
		return err
	}
	if _, err := workflow.Seed(c.ptt, wf, target); err != nil {
		return err
	}
	logging.Agent("Initialized from workflow %q: %d steps", workflowKey, len(wf.Steps))
	return nil
}

func (c *Controller) requestOpeningPlan(ctx context.Context, goal, target string, constraints map[string]interface{}, availableTools []string) reasoning.InitializationPlan {
	prompt := c.adapter.BuildInitializationRequest(goal, target, constraints, availableTools)

	reply, err := c.client.Invoke(ctx, prompt, availableTools, nil)
	if err != nil {
		logging.AgentError("Initialization query failed: %v", err)
		return reasoning.InitializationPlan{}
	}
	if reply == "" {
		logging.AgentWarn("Empty initialization reply")
		return reasoning.InitializationPlan{}
	}

	plan := reasoning.ParseInitialization(reply)
	plan.InitialTasks = reasoning.ValidateToolSuggestions(plan.InitialTasks, availableTools)
	return plan
}

// applyPlan materializes an initialization plan under the root:
// structure elements become phase-like nodes, tasks attach to their
// named structure element or to root. The provenance key tags every
// created node's attributes so reports can tell plan origins apart.
func (c *Controller) applyPlan(plan reasoning.InitializationPlan, provenance string) {
	structureIDs := make(map[string]string, len(plan.Structure))
	for _, element := range plan.Structure {
		name := element.Name
		if name == "" {
			name = "Unnamed phase"
		}
		node := tree.NewNode(name, c.ptt.RootID, structureNodeType(element.Type))
		node.Attributes["details"] = element.Description
		node.Attributes["justification"] = element.Justification
		node.Attributes[provenance] = true
		if err := c.ptt.AddNode(node); err != nil {
			logging.AgentWarn("Dropping structure element %q: %v", name, err)
			continue
		}
		structureIDs[element.Name] = node.ID
	}

	added := 0
	for _, proposed := range plan.InitialTasks {
		if proposed.Description == "" {
			continue
		}
		parentID := c.ptt.RootID
		if ref := proposed.ParentRef(); ref != "" && ref != "root" {
			if id, ok := structureIDs[ref]; ok {
				parentID = id
			}
		}
		node := proposedToNode(proposed, parentID)
		node.Attributes[provenance] = true
		if err := c.ptt.AddNode(node); err != nil {
			logging.AgentWarn("Dropping task %q: %v", proposed.Description, err)
			continue
		}
		added++
	}

	logging.Agent("Plan applied: %d structure elements, %d tasks", len(structureIDs), added)
}

// structureNodeType maps an oracle-chosen element type onto the node
// type enum. Anything organizational it invents ("category", "stage")
// lands on phase; a task-typed element would corrupt the candidate
// frontier, so it maps to phase too.
func structureNodeType(s string) tree.NodeType {
	switch tree.NodeType(s) {
	case tree.TypePhase, tree.TypeObjective, tree.TypeFinding:
		return tree.NodeType(s)
	}
	return tree.TypePhase
}

// proposedToNode builds a task node from an oracle proposal, applying
// the standing defaults (priority 5, low risk) to absent fields.
func proposedToNode(proposed reasoning.ProposedTask, parentID string) *tree.TaskNode {
	node := tree.NewTaskNode(proposed.Description, parentID)
	node.ToolUsed = proposed.ToolSuggestion
	if p := proposed.Priority.Int(); p >= 1 && p <= 10 {
		node.Priority = p
	}
	if risk, err := tree.ParseRiskLevel(proposed.RiskLevel); err == nil {
		node.RiskLevel = risk
	}
	if proposed.Rationale != "" {
		node.Attributes["rationale"] = proposed.Rationale
	}
	return node
}
