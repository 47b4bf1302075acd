package agent

import (
	"context"
	"fmt"
	"time"

	"specter/internal/logging"
	"specter/internal/tree"
)

// Result summarizes a finished run.
type Result struct {
	Reason         StopReason
	Iterations     int
	EffectiveLimit int
	Elapsed        time.Duration
	GoalAchieved   bool
	Statistics     tree.Statistics
	SnapshotPath   string
}

// Run drives the autonomous loop until one of the four stop reasons
// applies. The loop itself never fails: oracle and execution errors
// are absorbed per step. Run returns an error only for preconditions
// (uninitialized tree, missing oracle client, concurrent Run).
func (c *Controller) Run(ctx context.Context) (*Result, error) {
	if c.client == nil {
		return nil, fmt.Errorf("no oracle client configured")
	}
	if c.ptt.RootID == "" {
		return nil, tree.ErrNotInitialized
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return nil, fmt.Errorf("controller already running")
	}
	c.running = true
	if c.startedAt.IsZero() {
		c.startedAt = time.Now()
	}
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.running = false
		c.mu.Unlock()
	}()

	logging.Agent("Starting autonomous loop: limit=%d goal=%q", c.EffectiveLimit(), c.ptt.Goal)

	reason := c.loop(ctx)

	result := &Result{
		Reason:         reason,
		Iterations:     c.Iteration(),
		EffectiveLimit: c.EffectiveLimit(),
		Elapsed:        c.Elapsed(),
		GoalAchieved:   c.GoalAchieved(),
		Statistics:     c.ptt.GetStatistics(),
	}

	if c.snapshots != nil {
		path, err := c.SaveSnapshot()
		if err != nil {
			logging.AgentWarn("Final snapshot failed: %v", err)
		} else {
			result.SnapshotPath = path
		}
	}

	logging.Agent("Stopped: %s (%d/%d iterations, goal=%v)",
		reason, result.Iterations, result.EffectiveLimit, result.GoalAchieved)
	c.emitEvent(EventStopped, "", string(reason))
	return result, nil
}

// loop runs iterations until a stop reason applies. Pause requests and
// context cancellation are observed at iteration boundaries only,
// never mid-step.
func (c *Controller) loop(ctx context.Context) StopReason {
	for {
		if c.GoalAchieved() {
			return StopGoalAchieved
		}
		if c.Iteration() >= c.EffectiveLimit() {
			return StopIterationLimit
		}
		if ctx.Err() != nil {
			return StopOperatorExit
		}
		if c.IsPaused() {
			if c.handlePause(ctx) {
				return StopOperatorExit
			}
		}

		c.mu.Lock()
		c.iteration++
		iteration := c.iteration
		c.mu.Unlock()

		stats := c.ptt.GetStatistics()
		logging.Agent("Iteration %d/%d: %d total nodes, %d completed, %d candidates",
			iteration, c.EffectiveLimit(), stats.TotalNodes,
			stats.StatusCounts[tree.StatusCompleted], stats.CandidateTasks)
		c.emitEvent(EventIterationStart, "", "")
		c.emitProgress(stats.CandidateTasks, "")

		action := c.selectNextAction(ctx)
		if action == nil {
			logging.Agent("No viable next actions, running final goal check")
			c.checkGoal(ctx)
			if c.GoalAchieved() {
				return StopGoalAchieved
			}
			return StopNoCandidates
		}
		c.emitEvent(EventTaskSelected, action.task.ID, action.task.Description)
		c.emitProgress(stats.CandidateTasks, action.task.Description)

		execErr := c.executeAction(ctx, action)

		c.checkGoal(ctx)
		if c.GoalAchieved() {
			return StopGoalAchieved
		}

		delay := c.stepDelay
		if execErr != nil {
			delay = c.errorBackoff
		}
		if !c.sleep(ctx, delay) {
			return StopOperatorExit
		}
	}
}

// sleep waits out the inter-iteration delay, returning false when the
// context is cancelled first.
func (c *Controller) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
