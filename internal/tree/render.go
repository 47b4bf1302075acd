package tree

import (
	"fmt"
	"strings"
)

// Status symbols for the text rendering. This format is embedded into
// oracle prompts as "current plan state" and shown to operators, so it
// must stay stable and readable.
var statusSymbols = map[NodeStatus]string{
	StatusPending:       "○",
	StatusInProgress:    "◐",
	StatusCompleted:     "●",
	StatusFailed:        "✗",
	StatusBlocked:       "□",
	StatusVulnerable:    "⚠",
	StatusNotVulnerable: "✓",
}

// StatusSymbol returns the glyph for a status, "?" when unknown.
func StatusSymbol(s NodeStatus) string {
	if sym, ok := statusSymbols[s]; ok {
		return sym
	}
	return "?"
}

// RenderText renders the whole tree as a depth-indented,
// status-symbol-prefixed listing.
func (t *TaskTree) RenderText() string {
	return t.RenderSubtree(t.RootID, 0)
}

// RenderSubtree renders the subtree rooted at nodeID.
func (t *TaskTree) RenderSubtree(nodeID string, indent int) string {
	node, ok := t.Nodes[nodeID]
	if !ok {
		return ""
	}

	prefix := strings.Repeat("  ", indent)
	lines := []string{fmt.Sprintf("%s%s %s", prefix, StatusSymbol(node.Status), node.Description)}

	if len(node.Findings) > 0 {
		lines = append(lines, fmt.Sprintf("%s  → Findings: %s", prefix, strings.Join(node.Findings, "; ")))
	}
	if node.ToolUsed != "" {
		lines = append(lines, fmt.Sprintf("%s  → Tool: %s", prefix, node.ToolUsed))
	}

	for _, childID := range node.ChildrenIDs {
		if rendered := t.RenderSubtree(childID, indent+1); rendered != "" {
			lines = append(lines, rendered)
		}
	}

	return strings.Join(lines, "\n")
}
