// Package tree implements the Pentesting Task Tree (PTT): the mutable
// plan of objective, phase, and task nodes that tracks an assessment's
// progress. The tree is pure data and algorithms; it performs no I/O
// and is owned by a single control flow (the agent loop).
package tree

import (
	"fmt"

	"github.com/google/uuid"
)

// NodeStatus represents the execution status of a node.
type NodeStatus string

const (
	StatusPending       NodeStatus = "pending"
	StatusInProgress    NodeStatus = "in_progress"
	StatusCompleted     NodeStatus = "completed"
	StatusFailed        NodeStatus = "failed"
	StatusBlocked       NodeStatus = "blocked"
	StatusVulnerable    NodeStatus = "vulnerable"
	StatusNotVulnerable NodeStatus = "not_vulnerable"
)

// NodeType categorizes nodes. Only task nodes are ever selected for
// execution; phase and objective nodes organize the tree, finding
// nodes record confirmed results.
type NodeType string

const (
	TypeTask      NodeType = "task"
	TypePhase     NodeType = "phase"
	TypeFinding   NodeType = "finding"
	TypeObjective NodeType = "objective"
)

// RiskLevel grades how intrusive a task is against the target.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseStatus validates a stored status string.
func ParseStatus(s string) (NodeStatus, error) {
	switch NodeStatus(s) {
	case StatusPending, StatusInProgress, StatusCompleted, StatusFailed,
		StatusBlocked, StatusVulnerable, StatusNotVulnerable:
		return NodeStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// ParseNodeType validates a stored node type string.
func ParseNodeType(s string) (NodeType, error) {
	switch NodeType(s) {
	case TypeTask, TypePhase, TypeFinding, TypeObjective:
		return NodeType(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownNodeType, s)
}

// ParseRiskLevel validates a stored risk level string.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch RiskLevel(s) {
	case RiskLow, RiskMedium, RiskHigh:
		return RiskLevel(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRiskLevel, s)
}

// statusTransitions is the allowed state machine. PENDING and FAILED
// are the re-selectable statuses; COMPLETED, VULNERABLE and
// NOT_VULNERABLE are terminal. Same-status writes are always allowed.
var statusTransitions = map[NodeStatus][]NodeStatus{
	StatusPending:    {StatusInProgress, StatusBlocked, StatusCompleted, StatusFailed, StatusVulnerable, StatusNotVulnerable},
	StatusInProgress: {StatusCompleted, StatusFailed, StatusBlocked, StatusVulnerable, StatusNotVulnerable},
	StatusFailed:     {StatusInProgress, StatusBlocked},
	StatusBlocked:    {StatusPending, StatusInProgress, StatusFailed},
}

// CanTransition reports whether a status change is legal.
func CanTransition(from, to NodeStatus) bool {
	if from == to {
		return true
	}
	for _, allowed := range statusTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status permits no further transitions.
func (s NodeStatus) IsTerminal() bool {
	return len(statusTransitions[s]) == 0
}

// Selectable reports whether a node in this status may be picked for
// (re)execution.
func (s NodeStatus) Selectable() bool {
	return s == StatusPending || s == StatusFailed
}

// TaskNode is a single unit of work or organizational grouping in the
// tree. Ids are process-unique and immutable; the tree owns every node
// for the life of the session.
type TaskNode struct {
	ID          string     `json:"id"`
	Description string     `json:"description"`
	Status      NodeStatus `json:"status"`
	NodeType    NodeType   `json:"node_type"`
	ParentID    string     `json:"parent_id"`
	ChildrenIDs []string   `json:"children_ids"`

	// Execution record, populated after a run.
	ToolUsed        string   `json:"tool_used"`
	CommandExecuted string   `json:"command_executed"`
	OutputSummary   string   `json:"output_summary"`
	Findings        []string `json:"findings"`

	Priority     int       `json:"priority"` // 1-10, higher is more important
	RiskLevel    RiskLevel `json:"risk_level"`
	Timestamp    string    `json:"timestamp"`
	KBReferences []string  `json:"kb_references"`
	Dependencies []string  `json:"dependencies"`

	// Provenance and debug metadata only; core fields never live here.
	Attributes map[string]interface{} `json:"attributes"`
}

// NewTaskNode creates a task node with defaults (pending, priority 5,
// low risk).
func NewTaskNode(description, parentID string) *TaskNode {
	return &TaskNode{
		ID:          uuid.NewString(),
		Description: description,
		Status:      StatusPending,
		NodeType:    TypeTask,
		ParentID:    parentID,
		Priority:    5,
		RiskLevel:   RiskLow,
		Attributes:  map[string]interface{}{},
	}
}

// NewNode creates a node of an explicit type with defaults.
func NewNode(description, parentID string, nodeType NodeType) *TaskNode {
	n := NewTaskNode(description, parentID)
	n.NodeType = nodeType
	return n
}

// IsLeaf reports whether the node has no children.
func (n *TaskNode) IsLeaf() bool {
	return len(n.ChildrenIDs) == 0
}
