package tree

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"specter/internal/logging"
)

var ErrCorruptSnapshot = errors.New("corrupt tree snapshot")

// snapshotDoc is the canonical on-disk form. Field names match the
// snapshot format consumed by resume and report tooling; changing them
// breaks restartability.
type snapshotDoc struct {
	Goal         string                 `json:"goal"`
	Target       string                 `json:"target"`
	Constraints  map[string]interface{} `json:"constraints"`
	RootID       string                 `json:"root_id"`
	CreationTime string                 `json:"creation_time"`
	Nodes        map[string]*TaskNode   `json:"nodes"`
}

// Snapshot serializes the full tree to canonical JSON. The snapshot
// round-trips losslessly through Load.
func (t *TaskTree) Snapshot() ([]byte, error) {
	doc := snapshotDoc{
		Goal:         t.Goal,
		Target:       t.Target,
		Constraints:  t.Constraints,
		RootID:       t.RootID,
		CreationTime: t.CreatedAt.Format(time.RFC3339Nano),
		Nodes:        t.Nodes,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tree snapshot: %w", err)
	}
	return data, nil
}

// Load reconstructs a tree from snapshot JSON. Enum fields are
// validated against their known values; a stored status, node type, or
// risk level outside the enumeration fails with a distinguishable
// error instead of being silently admitted.
func Load(data []byte) (*TaskTree, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptSnapshot, err)
	}
	if doc.RootID == "" {
		return nil, fmt.Errorf("%w: missing root_id", ErrCorruptSnapshot)
	}
	if _, ok := doc.Nodes[doc.RootID]; !ok {
		return nil, fmt.Errorf("%w: root node %s not in node map", ErrCorruptSnapshot, doc.RootID)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, doc.CreationTime)
	if err != nil {
		return nil, fmt.Errorf("%w: bad creation_time %q", ErrCorruptSnapshot, doc.CreationTime)
	}

	t := &TaskTree{
		Nodes:       doc.Nodes,
		RootID:      doc.RootID,
		Goal:        doc.Goal,
		Target:      doc.Target,
		Constraints: doc.Constraints,
		CreatedAt:   createdAt,
	}
	if t.Nodes == nil {
		t.Nodes = make(map[string]*TaskNode)
	}
	if t.Constraints == nil {
		t.Constraints = make(map[string]interface{})
	}

	if err := t.validate(); err != nil {
		return nil, err
	}

	logging.SessionDebug("Loaded tree snapshot: %d nodes, goal=%q", len(t.Nodes), t.Goal)
	return t, nil
}

// validate checks enum values and structural invariants: every node id
// keys its own entry, parent links resolve and are mirrored in
// children_ids, and parent chains reach the root without looping.
func (t *TaskTree) validate() error {
	for id, node := range t.Nodes {
		if node == nil {
			return fmt.Errorf("%w: nil node %s", ErrCorruptSnapshot, id)
		}
		if node.ID != id {
			return fmt.Errorf("%w: node key %s holds id %s", ErrCorruptSnapshot, id, node.ID)
		}
		if _, err := ParseStatus(string(node.Status)); err != nil {
			return fmt.Errorf("%w: node %s: %v", ErrCorruptSnapshot, id, err)
		}
		if _, err := ParseNodeType(string(node.NodeType)); err != nil {
			return fmt.Errorf("%w: node %s: %v", ErrCorruptSnapshot, id, err)
		}
		if _, err := ParseRiskLevel(string(node.RiskLevel)); err != nil {
			return fmt.Errorf("%w: node %s: %v", ErrCorruptSnapshot, id, err)
		}

		if id == t.RootID {
			if node.ParentID != "" {
				return fmt.Errorf("%w: root %s has parent %s", ErrCorruptSnapshot, id, node.ParentID)
			}
			continue
		}
		parent, ok := t.Nodes[node.ParentID]
		if !ok {
			return fmt.Errorf("%w: node %s references missing parent %s", ErrCorruptSnapshot, id, node.ParentID)
		}
		if !contains(parent.ChildrenIDs, id) {
			return fmt.Errorf("%w: node %s missing from children of %s", ErrCorruptSnapshot, id, node.ParentID)
		}
	}

	// Parent chains must reach root within len(Nodes) hops.
	for id := range t.Nodes {
		if !t.reachesRoot(id) {
			return fmt.Errorf("%w: node %s does not reach root", ErrCorruptSnapshot, id)
		}
	}
	return nil
}

func (t *TaskTree) reachesRoot(id string) bool {
	current := id
	for range t.Nodes {
		if current == t.RootID {
			return true
		}
		node, ok := t.Nodes[current]
		if !ok {
			return false
		}
		current = node.ParentID
	}
	return current == t.RootID
}
