package tree

import (
	"errors"
	"fmt"
	"time"

	"specter/internal/logging"
)

var (
	ErrAlreadyInitialized = errors.New("tree already initialized")
	ErrNotInitialized     = errors.New("tree not initialized")
	ErrUnknownParent      = errors.New("parent node does not exist")
	ErrDuplicateNode      = errors.New("node id already present")
	ErrMissingParent      = errors.New("node requires a parent")
	ErrUnknownStatus      = errors.New("unknown node status")
	ErrUnknownNodeType    = errors.New("unknown node type")
	ErrUnknownRiskLevel   = errors.New("unknown risk level")
)

// TaskTree owns all nodes of one assessment session. It is not
// goroutine-safe: per the concurrency model the tree is only ever
// touched from the agent's single control flow.
type TaskTree struct {
	Nodes       map[string]*TaskNode
	RootID      string
	Goal        string
	Target      string
	Constraints map[string]interface{}
	CreatedAt   time.Time
}

// New creates an empty, uninitialized tree.
func New() *TaskTree {
	return &TaskTree{
		Nodes:       make(map[string]*TaskNode),
		Constraints: make(map[string]interface{}),
		CreatedAt:   time.Now(),
	}
}

// Initialize creates the root objective node. One-shot: a second call
// returns ErrAlreadyInitialized.
func (t *TaskTree) Initialize(goal, target string, constraints map[string]interface{}) (string, error) {
	if t.RootID != "" {
		return "", ErrAlreadyInitialized
	}

	t.Goal = goal
	t.Target = target
	if constraints != nil {
		t.Constraints = constraints
	}

	root := NewNode(fmt.Sprintf("Goal: %s", goal), "", TypeObjective)
	t.RootID = root.ID
	t.Nodes[root.ID] = root

	logging.Tree("Initialized tree: goal=%q target=%q root=%s", goal, target, root.ID)
	return root.ID, nil
}

// AddNode inserts a node and links it into its parent's children.
// A node whose parent is missing is rejected, not stored: orphans are
// surfaced to the caller instead of lingering unreachable from root.
func (t *TaskTree) AddNode(node *TaskNode) error {
	if t.RootID == "" {
		return ErrNotInitialized
	}
	if node.ParentID == "" {
		return ErrMissingParent
	}
	if _, exists := t.Nodes[node.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, node.ID)
	}
	parent, ok := t.Nodes[node.ParentID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownParent, node.ParentID)
	}

	t.Nodes[node.ID] = node
	if !contains(parent.ChildrenIDs, node.ID) {
		parent.ChildrenIDs = append(parent.ChildrenIDs, node.ID)
	}

	logging.TreeDebug("Added node %s (%s) under %s: %q", node.ID, node.NodeType, node.ParentID, node.Description)
	return nil
}

// NodeUpdate is a whitelist-based partial update. Nil/zero fields are
// left untouched; Attributes are merged, not replaced.
type NodeUpdate struct {
	Status          *string
	ToolUsed        *string
	CommandExecuted *string
	OutputSummary   *string
	Findings        []string
	Priority        *int
	RiskLevel       *string
	Timestamp       *string
	KBReferences    []string
	Attributes      map[string]interface{}
}

// UpdateNode applies a partial update to a node. Returns false when the
// id is unknown, a status or risk string is outside the enumeration, or
// the status change is an illegal transition. It never panics: updates
// must not crash a long-running session. Validation happens before any
// mutation, so a rejected update leaves the node untouched.
func (t *TaskTree) UpdateNode(id string, update NodeUpdate) bool {
	node, ok := t.Nodes[id]
	if !ok {
		logging.TreeDebug("UpdateNode: unknown node %s", id)
		return false
	}

	var newStatus NodeStatus
	if update.Status != nil {
		parsed, err := ParseStatus(*update.Status)
		if err != nil {
			logging.TreeDebug("UpdateNode %s: %v", id, err)
			return false
		}
		if !CanTransition(node.Status, parsed) {
			logging.TreeDebug("UpdateNode %s: illegal transition %s -> %s", id, node.Status, parsed)
			return false
		}
		newStatus = parsed
	}
	var newRisk RiskLevel
	if update.RiskLevel != nil {
		parsed, err := ParseRiskLevel(*update.RiskLevel)
		if err != nil {
			logging.TreeDebug("UpdateNode %s: %v", id, err)
			return false
		}
		newRisk = parsed
	}

	if update.Status != nil {
		node.Status = newStatus
	}
	if update.RiskLevel != nil {
		node.RiskLevel = newRisk
	}
	if update.ToolUsed != nil {
		node.ToolUsed = *update.ToolUsed
	}
	if update.CommandExecuted != nil {
		node.CommandExecuted = *update.CommandExecuted
	}
	if update.OutputSummary != nil {
		node.OutputSummary = *update.OutputSummary
	}
	if update.Findings != nil {
		node.Findings = update.Findings
	}
	if update.Priority != nil {
		node.Priority = *update.Priority
	}
	if update.Timestamp != nil {
		node.Timestamp = *update.Timestamp
	}
	if update.KBReferences != nil {
		node.KBReferences = update.KBReferences
	}
	if update.Attributes != nil {
		if node.Attributes == nil {
			node.Attributes = map[string]interface{}{}
		}
		for k, v := range update.Attributes {
			node.Attributes[k] = v
		}
	}

	return true
}

// SetStatus is UpdateNode restricted to the status field.
func (t *TaskTree) SetStatus(id string, status NodeStatus) bool {
	s := string(status)
	return t.UpdateNode(id, NodeUpdate{Status: &s})
}

// GetNode returns a node by id, or nil.
func (t *TaskTree) GetNode(id string) *TaskNode {
	return t.Nodes[id]
}

// GetChildren returns the resolvable children of a node.
func (t *TaskTree) GetChildren(id string) []*TaskNode {
	node, ok := t.Nodes[id]
	if !ok {
		return nil
	}
	children := make([]*TaskNode, 0, len(node.ChildrenIDs))
	for _, childID := range node.ChildrenIDs {
		if child, ok := t.Nodes[childID]; ok {
			children = append(children, child)
		}
	}
	return children
}

// LeafNodes returns all nodes without children.
func (t *TaskTree) LeafNodes() []*TaskNode {
	leaves := make([]*TaskNode, 0)
	for _, node := range t.OrderedNodes() {
		if node.IsLeaf() {
			leaves = append(leaves, node)
		}
	}
	return leaves
}

// GetCandidateTasks returns the executable frontier: leaf task nodes in
// PENDING or FAILED status whose every dependency resolves to a
// COMPLETED node. A dependency id that matches no node counts as
// unsatisfied. Recomputed from scratch each call, since completing one
// task may unblock any number of dependents.
func (t *TaskTree) GetCandidateTasks() []*TaskNode {
	candidates := make([]*TaskNode, 0)
	for _, node := range t.LeafNodes() {
		if node.NodeType != TypeTask {
			continue
		}
		if !node.Status.Selectable() {
			continue
		}
		if !t.dependenciesSatisfied(node) {
			continue
		}
		candidates = append(candidates, node)
	}
	return candidates
}

func (t *TaskTree) dependenciesSatisfied(node *TaskNode) bool {
	for _, depID := range node.Dependencies {
		dep, ok := t.Nodes[depID]
		if !ok || dep.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// Statistics is an aggregate snapshot of tree state.
type Statistics struct {
	TotalNodes     int                `json:"total_nodes"`
	StatusCounts   map[NodeStatus]int `json:"status_counts"`
	LeafNodes      int                `json:"leaf_nodes"`
	CandidateTasks int                `json:"candidate_tasks"`
}

// GetStatistics computes aggregate counts. Pure read.
func (t *TaskTree) GetStatistics() Statistics {
	counts := make(map[NodeStatus]int)
	for _, node := range t.Nodes {
		counts[node.Status]++
	}
	return Statistics{
		TotalNodes:     len(t.Nodes),
		StatusCounts:   counts,
		LeafNodes:      len(t.LeafNodes()),
		CandidateTasks: len(t.GetCandidateTasks()),
	}
}

// CompletedCount returns how many nodes are COMPLETED.
func (t *TaskTree) CompletedCount() int {
	count := 0
	for _, node := range t.Nodes {
		if node.Status == StatusCompleted {
			count++
		}
	}
	return count
}

// OrderedNodes walks the tree depth-first from root so that every
// traversal-based operation is deterministic regardless of map order.
// Nodes unreachable from root cannot exist (AddNode rejects orphans).
func (t *TaskTree) OrderedNodes() []*TaskNode {
	if t.RootID == "" {
		return nil
	}
	ordered := make([]*TaskNode, 0, len(t.Nodes))
	var walk func(id string)
	walk = func(id string) {
		node, ok := t.Nodes[id]
		if !ok {
			return
		}
		ordered = append(ordered, node)
		for _, childID := range node.ChildrenIDs {
			walk(childID)
		}
	}
	walk(t.RootID)
	return ordered
}

func contains(ids []string, id string) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
