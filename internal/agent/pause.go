package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"specter/internal/logging"
	"specter/internal/tree"
)

// PauseDecision is the pause handler's verdict: continue the loop or
// end the session.
type PauseDecision int

const (
	DecisionResume PauseDecision = iota
	DecisionExit
)

// PauseHandler runs whatever interaction a pause entails (menu, TUI,
// nothing). It is called from the loop goroutine between iterations,
// so tree mutations made through the controller are safe for its
// duration.
type PauseHandler interface {
	HandlePause(ctx context.Context, c *Controller) (PauseDecision, error)
}

// PauseHandlerFunc adapts a function to PauseHandler.
type PauseHandlerFunc func(ctx context.Context, c *Controller) (PauseDecision, error)

func (f PauseHandlerFunc) HandlePause(ctx context.Context, c *Controller) (PauseDecision, error) {
	return f(ctx, c)
}

// ManualPhases are the buckets offered when the operator inserts a
// task by hand.
var ManualPhases = []string{
	"Reconnaissance",
	"Vulnerability Assessment",
	"Exploitation",
	"Post-Exploitation",
}

// RequestPause asks the loop to pause at the next iteration boundary.
// Safe to call from any goroutine (signal handlers, UI).
func (c *Controller) RequestPause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
	logging.Agent("Pause requested")
}

// Resume clears a pending pause request.
func (c *Controller) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
}

// IsPaused reports whether a pause request is pending or being served.
func (c *Controller) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// handlePause serves a pause request and returns true when the
// operator chose to end the session.
func (c *Controller) handlePause(ctx context.Context) (exit bool) {
	c.emitEvent(EventPaused, "", "awaiting operator")
	logging.Agent("Paused at iteration %d", c.Iteration())

	decision := DecisionExit
	if c.pause != nil {
		d, err := c.pause.HandlePause(ctx, c)
		if err != nil {
			logging.AgentError("Pause handler failed: %v", err)
		} else {
			decision = d
		}
	}

	c.Resume()
	if decision == DecisionExit {
		logging.Agent("Operator chose to exit")
		return true
	}
	c.emitEvent(EventResumed, "", "")
	logging.Agent("Resumed")
	return false
}

// AddManualTask inserts an operator-authored task under the named
// phase bucket, creating the bucket on first use. The task is tagged
// as a manual addition and uses the manual tool sentinel, so the oracle
// and the reports can tell it apart from plan-generated work.
func (c *Controller) AddManualTask(description, phase string, priority int, risk tree.RiskLevel) (*tree.TaskNode, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, fmt.Errorf("task description is empty")
	}
	if phase == "" {
		phase = ManualPhases[0]
	}
	if priority < 1 || priority > 10 {
		priority = 5
	}
	if risk == "" {
		risk = tree.RiskMedium
	}

	parent, err := c.findOrCreatePhase(phase)
	if err != nil {
		return nil, err
	}

	node := tree.NewTaskNode(description, parent.ID)
	node.Priority = priority
	node.RiskLevel = risk
	node.ToolUsed = SentinelManualTool
	node.Attributes["manual_addition"] = true
	node.Attributes["added_by_user"] = true
	node.Timestamp = time.Now().Format(time.RFC3339)

	if err := c.ptt.AddNode(node); err != nil {
		return nil, fmt.Errorf("add manual task: %w", err)
	}
	logging.Agent("Manual task added under %q: %q", phase, description)
	return node, nil
}

// findOrCreatePhase resolves a phase bucket by name, matching
// case-insensitively against existing phase nodes before creating a
// new one under root.
func (c *Controller) findOrCreatePhase(name string) (*tree.TaskNode, error) {
	if c.ptt.RootID == "" {
		return nil, tree.ErrNotInitialized
	}
	want := strings.ToLower(name)
	for _, node := range c.ptt.OrderedNodes() {
		if node.NodeType != tree.TypePhase {
			continue
		}
		if strings.Contains(strings.ToLower(node.Description), want) {
			return node, nil
		}
	}

	phase := tree.NewNode(name, c.ptt.RootID, tree.TypePhase)
	if err := c.ptt.AddNode(phase); err != nil {
		return nil, err
	}
	return phase, nil
}
