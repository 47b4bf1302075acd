package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInitializedTree(t *testing.T) *TaskTree {
	t.Helper()
	tr := New()
	_, err := tr.Initialize("identify the running web server version", "10.0.0.5", map[string]interface{}{
		"iteration_limit": 50,
	})
	require.NoError(t, err)
	return tr
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestInitialize(t *testing.T) {
	t.Run("creates objective root", func(t *testing.T) {
		tr := New()
		rootID, err := tr.Initialize("enumerate SMB shares", "192.168.1.10", nil)
		require.NoError(t, err)

		root := tr.GetNode(rootID)
		require.NotNil(t, root)
		assert.Equal(t, TypeObjective, root.NodeType)
		assert.Equal(t, StatusPending, root.Status)
		assert.Equal(t, "Goal: enumerate SMB shares", root.Description)
		assert.Empty(t, root.ParentID)
	})

	t.Run("is one-shot", func(t *testing.T) {
		tr := newInitializedTree(t)
		_, err := tr.Initialize("second goal", "other", nil)
		assert.ErrorIs(t, err, ErrAlreadyInitialized)
	})
}

func TestAddNode(t *testing.T) {
	t.Run("links child into parent", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan common ports", tr.RootID)
		require.NoError(t, tr.AddNode(node))

		parent := tr.GetNode(tr.RootID)
		assert.Contains(t, parent.ChildrenIDs, node.ID)
		assert.Equal(t, tr.RootID, node.ParentID)
	})

	t.Run("rejects missing parent", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("orphan task", "no-such-id")
		err := tr.AddNode(node)
		assert.ErrorIs(t, err, ErrUnknownParent)
		assert.Nil(t, tr.GetNode(node.ID), "rejected node must not be stored")
	})

	t.Run("rejects empty parent", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("second root", "")
		assert.ErrorIs(t, tr.AddNode(node), ErrMissingParent)
	})

	t.Run("rejects duplicate id", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan", tr.RootID)
		require.NoError(t, tr.AddNode(node))

		dup := NewTaskNode("other", tr.RootID)
		dup.ID = node.ID
		assert.ErrorIs(t, tr.AddNode(dup), ErrDuplicateNode)
	})

	t.Run("requires initialization", func(t *testing.T) {
		tr := New()
		assert.ErrorIs(t, tr.AddNode(NewTaskNode("x", "y")), ErrNotInitialized)
	})
}

func TestBidirectionalConsistency(t *testing.T) {
	tr := newInitializedTree(t)
	phase := NewNode("Reconnaissance", tr.RootID, TypePhase)
	require.NoError(t, tr.AddNode(phase))

	for _, desc := range []string{"port scan", "service enumeration", "banner grab"} {
		require.NoError(t, tr.AddNode(NewTaskNode(desc, phase.ID)))
	}

	for _, node := range tr.Nodes {
		if node.ParentID == "" {
			continue
		}
		parent := tr.GetNode(node.ParentID)
		require.NotNil(t, parent, "parent of %s must exist", node.ID)
		assert.Contains(t, parent.ChildrenIDs, node.ID)
	}
}

func TestAcyclicity(t *testing.T) {
	tr := newInitializedTree(t)
	phase := NewNode("Recon", tr.RootID, TypePhase)
	require.NoError(t, tr.AddNode(phase))
	task := NewTaskNode("scan", phase.ID)
	require.NoError(t, tr.AddNode(task))
	deep := NewTaskNode("deep scan", task.ID)
	require.NoError(t, tr.AddNode(deep))

	// Following parent links a bounded number of times reaches root.
	for id := range tr.Nodes {
		assert.True(t, tr.reachesRoot(id), "node %s must reach root", id)
	}
}

func TestUpdateNode(t *testing.T) {
	t.Run("whitelisted fields apply", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("grab SSH banner", tr.RootID)
		require.NoError(t, tr.AddNode(node))

		ok := tr.UpdateNode(node.ID, NodeUpdate{
			Status:          strPtr("in_progress"),
			ToolUsed:        strPtr("netcat"),
			CommandExecuted: strPtr("nc 10.0.0.5 22"),
			Priority:        intPtr(8),
			RiskLevel:       strPtr("medium"),
		})
		require.True(t, ok)

		got := tr.GetNode(node.ID)
		assert.Equal(t, StatusInProgress, got.Status)
		assert.Equal(t, "netcat", got.ToolUsed)
		assert.Equal(t, "nc 10.0.0.5 22", got.CommandExecuted)
		assert.Equal(t, 8, got.Priority)
		assert.Equal(t, RiskMedium, got.RiskLevel)
	})

	t.Run("unknown id returns false", func(t *testing.T) {
		tr := newInitializedTree(t)
		assert.False(t, tr.UpdateNode("ghost", NodeUpdate{Status: strPtr("completed")}))
	})

	t.Run("unknown status string returns false without mutation", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan", tr.RootID)
		require.NoError(t, tr.AddNode(node))

		ok := tr.UpdateNode(node.ID, NodeUpdate{
			Status:   strPtr("exploded"),
			ToolUsed: strPtr("nmap"),
		})
		assert.False(t, ok)
		assert.Empty(t, tr.GetNode(node.ID).ToolUsed, "rejected update must not partially apply")
	})

	t.Run("unknown risk string returns false", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan", tr.RootID)
		require.NoError(t, tr.AddNode(node))
		assert.False(t, tr.UpdateNode(node.ID, NodeUpdate{RiskLevel: strPtr("extreme")}))
	})

	t.Run("attributes merge instead of replacing", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan", tr.RootID)
		node.Attributes["origin"] = "oracle"
		require.NoError(t, tr.AddNode(node))

		ok := tr.UpdateNode(node.ID, NodeUpdate{
			Attributes: map[string]interface{}{"manual_addition": true},
		})
		require.True(t, ok)

		got := tr.GetNode(node.ID)
		assert.Equal(t, "oracle", got.Attributes["origin"])
		assert.Equal(t, true, got.Attributes["manual_addition"])
	})
}

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to NodeStatus
		allowed  bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusBlocked, true},
		{StatusInProgress, StatusCompleted, true},
		{StatusInProgress, StatusFailed, true},
		{StatusInProgress, StatusVulnerable, true},
		{StatusInProgress, StatusPending, false},
		{StatusFailed, StatusInProgress, true},
		{StatusFailed, StatusCompleted, false},
		{StatusBlocked, StatusPending, true},
		{StatusCompleted, StatusPending, false},
		{StatusCompleted, StatusInProgress, false},
		{StatusVulnerable, StatusPending, false},
		{StatusNotVulnerable, StatusInProgress, false},
		{StatusCompleted, StatusCompleted, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}

	t.Run("terminal revert rejected via UpdateNode", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan", tr.RootID)
		require.NoError(t, tr.AddNode(node))
		require.True(t, tr.SetStatus(node.ID, StatusInProgress))
		require.True(t, tr.SetStatus(node.ID, StatusCompleted))

		assert.False(t, tr.SetStatus(node.ID, StatusPending))
		assert.Equal(t, StatusCompleted, tr.GetNode(node.ID).Status)
	})
}

func TestGetCandidateTasks(t *testing.T) {
	t.Run("dependency gating", func(t *testing.T) {
		tr := newInitializedTree(t)
		scan := NewTaskNode("port scan", tr.RootID)
		require.NoError(t, tr.AddNode(scan))

		followup := NewTaskNode("probe discovered services", tr.RootID)
		followup.Dependencies = []string{scan.ID}
		require.NoError(t, tr.AddNode(followup))

		ids := candidateIDs(tr)
		assert.Contains(t, ids, scan.ID)
		assert.NotContains(t, ids, followup.ID, "unsatisfied dependency must gate the node")

		require.True(t, tr.SetStatus(scan.ID, StatusInProgress))
		require.True(t, tr.SetStatus(scan.ID, StatusCompleted))

		ids = candidateIDs(tr)
		assert.Contains(t, ids, followup.ID, "completing the dependency unblocks the node on the next call")
		assert.NotContains(t, ids, scan.ID, "completed nodes are not re-selectable")
	})

	t.Run("missing dependency id counts unsatisfied", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("exploit check", tr.RootID)
		node.Dependencies = []string{"never-created"}
		require.NoError(t, tr.AddNode(node))

		assert.NotContains(t, candidateIDs(tr), node.ID)
	})

	t.Run("failed nodes are re-selectable", func(t *testing.T) {
		tr := newInitializedTree(t)
		node := NewTaskNode("scan", tr.RootID)
		require.NoError(t, tr.AddNode(node))
		require.True(t, tr.SetStatus(node.ID, StatusInProgress))
		require.True(t, tr.SetStatus(node.ID, StatusFailed))

		assert.Contains(t, candidateIDs(tr), node.ID)
	})

	t.Run("non-task leaves are never selected", func(t *testing.T) {
		tr := newInitializedTree(t)
		phase := NewNode("Empty Phase", tr.RootID, TypePhase)
		require.NoError(t, tr.AddNode(phase))

		assert.NotContains(t, candidateIDs(tr), phase.ID)
	})

	t.Run("non-leaf tasks are never selected", func(t *testing.T) {
		tr := newInitializedTree(t)
		parent := NewTaskNode("outer", tr.RootID)
		require.NoError(t, tr.AddNode(parent))
		child := NewTaskNode("inner", parent.ID)
		require.NoError(t, tr.AddNode(child))

		ids := candidateIDs(tr)
		assert.NotContains(t, ids, parent.ID)
		assert.Contains(t, ids, child.ID)
	})
}

func TestGetStatistics(t *testing.T) {
	tr := newInitializedTree(t)
	a := NewTaskNode("port scan", tr.RootID)
	require.NoError(t, tr.AddNode(a))
	b := NewTaskNode("service scan", tr.RootID)
	require.NoError(t, tr.AddNode(b))
	require.True(t, tr.SetStatus(a.ID, StatusInProgress))
	require.True(t, tr.SetStatus(a.ID, StatusCompleted))

	stats := tr.GetStatistics()
	assert.Equal(t, 3, stats.TotalNodes)
	assert.Equal(t, 1, stats.StatusCounts[StatusCompleted])
	assert.Equal(t, 2, stats.StatusCounts[StatusPending])
	assert.Equal(t, 2, stats.LeafNodes)
	assert.Equal(t, 1, stats.CandidateTasks)
}

func candidateIDs(tr *TaskTree) []string {
	ids := make([]string, 0)
	for _, c := range tr.GetCandidateTasks() {
		ids = append(ids, c.ID)
	}
	return ids
}
