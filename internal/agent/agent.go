// Package agent runs the autonomous assessment loop. The controller
// owns one task tree and one oracle conversation, and repeatedly asks
// the reasoning layer which task to run next, dispatches it, folds the
// results back into the tree, and checks whether the goal is met —
// until the goal is achieved, the iteration budget runs out, the
// operator exits from the pause menu, or no viable candidates remain.
//
// Everything runs on one logical control flow: the loop suspends only
// while awaiting the oracle, during the pause menu, and in the fixed
// inter-iteration delay. The tree is never touched from anywhere else.
package agent

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"specter/internal/knowledge"
	"specter/internal/oracle"
	"specter/internal/reasoning"
	"specter/internal/tree"
)

const (
	// unboundedIterationCap is the safety ceiling applied when the
	// operator asks for an unlimited run (max iterations 0).
	unboundedIterationCap = 500

	// manualIterationCap bounds limit changes made from the pause menu.
	manualIterationCap = 200

	// goalConfidenceThreshold is the minimum oracle confidence for a
	// goal-achieved verdict to stop the loop.
	goalConfidenceThreshold = 80

	defaultStepDelay    = 2 * time.Second
	defaultErrorBackoff = 5 * time.Second
)

// StopReason explains why the autonomous loop ended. The reasons are
// mutually exclusive; every run reports exactly one.
type StopReason string

const (
	StopGoalAchieved   StopReason = "goal achieved"
	StopIterationLimit StopReason = "iteration limit reached"
	StopOperatorExit   StopReason = "operator exit"
	StopNoCandidates   StopReason = "no viable candidates"
)

// ToolSource tells the controller which tools the current engagement
// can use. *tools.Registry satisfies it.
type ToolSource interface {
	Available() []string
	IsAvailable(name string) bool
}

// Searcher is the knowledge-base lookup consulted before task
// execution. *knowledge.Store satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]knowledge.Chunk, error)
}

// SnapshotSaver persists tree snapshots. *session.Store satisfies it.
type SnapshotSaver interface {
	SaveSnapshot(ptt *tree.TaskTree) (string, error)
}

// Config wires a Controller. Client is required; everything else is
// optional and degrades gracefully when absent.
type Config struct {
	Client    oracle.Client
	Tools     ToolSource
	Knowledge Searcher
	Snapshots SnapshotSaver

	// PauseHandler runs the interactive pause menu. Nil means a pause
	// request ends the session.
	PauseHandler PauseHandler

	// MaxIterations is the iteration budget; 0 means unbounded, capped
	// internally at unboundedIterationCap.
	MaxIterations int

	StepDelay    time.Duration
	ErrorBackoff time.Duration

	// HistoryTokens bounds the replayed oracle dialogue.
	HistoryTokens int

	// ProgressChan and EventChan receive loop telemetry. Sends never
	// block; a full channel drops the update.
	ProgressChan chan Progress
	EventChan    chan Event
}

// Controller sequences the autonomous loop.
type Controller struct {
	mu sync.RWMutex

	client    oracle.Client
	toolsrc   ToolSource
	kb        Searcher
	snapshots SnapshotSaver
	pause     PauseHandler

	ptt     *tree.TaskTree
	adapter *reasoning.Adapter
	history *oracle.History

	stepDelay    time.Duration
	errorBackoff time.Duration

	progressChan chan Progress
	eventChan    chan Event

	// Loop state, guarded by mu: the signal handler and UI read these
	// while the loop runs.
	iteration     int
	maxIterations int
	paused        bool
	goalAchieved  bool
	running       bool
	startedAt     time.Time
	toolsUsed     map[string]bool
}

// New creates a controller around an empty tree. Call
// InitializeAssessment (or InitializeWithWorkflow) before Run.
func New(cfg Config) *Controller {
	return newController(cfg, tree.New())
}

// NewFromTree creates a controller around a restored tree, picking up
// the iteration count and limit recorded in the snapshot constraints.
func NewFromTree(cfg Config, ptt *tree.TaskTree) *Controller {
	c := newController(cfg, ptt)
	if n, ok := constraintInt(ptt.Constraints, "iterations_completed"); ok && n > c.iteration {
		c.iteration = n
	}
	if limit, ok := constraintInt(ptt.Constraints, "iteration_limit"); ok && cfg.MaxIterations == 0 {
		c.maxIterations = limit
	}
	return c
}

func newController(cfg Config, ptt *tree.TaskTree) *Controller {
	stepDelay := cfg.StepDelay
	if stepDelay <= 0 {
		stepDelay = defaultStepDelay
	}
	errorBackoff := cfg.ErrorBackoff
	if errorBackoff <= 0 {
		errorBackoff = defaultErrorBackoff
	}

	return &Controller{
		client:        cfg.Client,
		toolsrc:       cfg.Tools,
		kb:            cfg.Knowledge,
		snapshots:     cfg.Snapshots,
		pause:         cfg.PauseHandler,
		ptt:           ptt,
		adapter:       reasoning.NewAdapter(ptt),
		history:       oracle.NewHistory(cfg.HistoryTokens),
		stepDelay:     stepDelay,
		errorBackoff:  errorBackoff,
		progressChan:  cfg.ProgressChan,
		eventChan:     cfg.EventChan,
		maxIterations: cfg.MaxIterations,
		toolsUsed:     make(map[string]bool),
	}
}

// Tree exposes the task tree for inspection and reporting. Mutate it
// only while the loop is suspended (pause menu) or stopped.
func (c *Controller) Tree() *tree.TaskTree { return c.ptt }

// RenderTree returns the depth-indented plan rendering.
func (c *Controller) RenderTree() string { return c.ptt.RenderText() }

// Statistics returns the aggregate tree counts.
func (c *Controller) Statistics() tree.Statistics { return c.ptt.GetStatistics() }

// StrategicSummary renders the progress narrative.
func (c *Controller) StrategicSummary() string { return c.adapter.StrategicSummary() }

// History exposes the oracle dialogue for report generation.
func (c *Controller) History() *oracle.History { return c.history }

// Iteration returns the number of completed loop iterations.
func (c *Controller) Iteration() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.iteration
}

// EffectiveLimit returns the iteration budget in force: the configured
// maximum, or the safety ceiling when unbounded.
func (c *Controller) EffectiveLimit() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.effectiveLimitLocked()
}

func (c *Controller) effectiveLimitLocked() int {
	if c.maxIterations > 0 {
		return c.maxIterations
	}
	return unboundedIterationCap
}

// GoalAchieved reports whether the full goal check has confirmed the
// goal at or above the confidence threshold.
func (c *Controller) GoalAchieved() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.goalAchieved
}

// Elapsed returns wall-clock time since the loop started.
func (c *Controller) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.startedAt.IsZero() {
		return 0
	}
	return time.Since(c.startedAt)
}

// ToolsUsed returns the distinct tool names used so far, sorted.
func (c *Controller) ToolsUsed() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.toolsUsed))
	for name := range c.toolsUsed {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Controller) recordToolUse(name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	c.toolsUsed[name] = true
	c.mu.Unlock()
}

// SetIterationLimit changes the budget mid-run, clamped below to the
// iterations already completed plus one and above to the manual cap.
// Returns the limit actually applied.
func (c *Controller) SetIterationLimit(limit int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if min := c.iteration + 1; limit < min {
		limit = min
	}
	if limit > manualIterationCap {
		limit = manualIterationCap
	}
	c.maxIterations = limit
	return limit
}

// SaveSnapshot persists the current tree, stamping the loop position
// into the constraints so a resume continues counting where this
// session stopped.
func (c *Controller) SaveSnapshot() (string, error) {
	if c.snapshots == nil {
		return "", fmt.Errorf("no snapshot store configured")
	}
	c.mu.RLock()
	iteration, limit := c.iteration, c.maxIterations
	c.mu.RUnlock()
	c.ptt.Constraints["iterations_completed"] = iteration
	c.ptt.Constraints["iteration_limit"] = limit
	return c.snapshots.SaveSnapshot(c.ptt)
}

// availableTools returns the probed-available tool names, nil when no
// registry is wired.
func (c *Controller) availableTools() []string {
	if c.toolsrc == nil {
		return nil
	}
	return c.toolsrc.Available()
}

func (c *Controller) toolKnown(name string) bool {
	if name == SentinelManualTool {
		return true
	}
	if c.toolsrc == nil {
		return false
	}
	return c.toolsrc.IsAvailable(name)
}

// SentinelManualTool marks operator-performed steps; it never needs a
// registry entry.
const SentinelManualTool = "manual"

// constraintInt reads an integer constraint, tolerating the float64
// that JSON round-trips produce.
func constraintInt(constraints map[string]interface{}, key string) (int, bool) {
	if constraints == nil {
		return 0, false
	}
	switch v := constraints[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
