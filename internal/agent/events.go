package agent

import "time"

// EventKind labels loop telemetry events.
type EventKind string

const (
	EventIterationStart EventKind = "iteration_start"
	EventTaskSelected   EventKind = "task_selected"
	EventTaskCompleted  EventKind = "task_completed"
	EventTaskFailed     EventKind = "task_failed"
	EventTasksAdded     EventKind = "tasks_added"
	EventGoalCheck      EventKind = "goal_check"
	EventPaused         EventKind = "paused"
	EventResumed        EventKind = "resumed"
	EventStopped        EventKind = "stopped"
)

// Event is a discrete loop occurrence for UIs and logs.
type Event struct {
	Kind      EventKind
	Iteration int
	NodeID    string
	Message   string
	Time      time.Time
}

// Progress is a periodic loop status sample.
type Progress struct {
	Iteration      int
	EffectiveLimit int
	Completed      int
	Candidates     int
	CurrentTask    string
	Elapsed        time.Duration
}

// emitEvent sends without blocking; slow consumers lose events rather
// than stalling the loop.
func (c *Controller) emitEvent(kind EventKind, nodeID, message string) {
	if c.eventChan == nil {
		return
	}
	ev := Event{
		Kind:      kind,
		Iteration: c.Iteration(),
		NodeID:    nodeID,
		Message:   message,
		Time:      time.Now(),
	}
	select {
	case c.eventChan <- ev:
	default:
	}
}

func (c *Controller) emitProgress(candidates int, currentTask string) {
	if c.progressChan == nil {
		return
	}
	p := Progress{
		Iteration:      c.Iteration(),
		EffectiveLimit: c.EffectiveLimit(),
		Completed:      c.ptt.CompletedCount(),
		Candidates:     candidates,
		CurrentTask:    currentTask,
		Elapsed:        c.Elapsed(),
	}
	select {
	case c.progressChan <- p:
	default:
	}
}
