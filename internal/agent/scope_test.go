package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specter/internal/reasoning"
	"specter/internal/tree"
)

func newScopedController(t *testing.T, goal string) *Controller {
	t.Helper()
	c := New(Config{Client: &mockOracle{}})
	_, err := c.Tree().Initialize(goal, "10.0.0.5", nil)
	require.NoError(t, err)
	return c
}

func descriptions(tasks []reasoning.ProposedTask) []string {
	out := make([]string, len(tasks))
	for i, task := range tasks {
		out[i] = task.Description
	}
	return out
}

func TestFilterByGoalScope(t *testing.T) {
	t.Run("drops escalation under an info-gathering goal", func(t *testing.T) {
		c := newScopedController(t, "identify the running web server version")

		proposed := []reasoning.ProposedTask{
			{Description: "exploit the identified vulnerability"},
			{Description: "enumerate HTTP headers"},
		}
		kept := c.filterByGoalScope(proposed)

		assert.Equal(t, []string{"enumerate HTTP headers"}, descriptions(kept))
	})

	t.Run("keeps everything for a non-info goal", func(t *testing.T) {
		c := newScopedController(t, "gain a foothold on the application server")

		proposed := []reasoning.ProposedTask{
			{Description: "exploit the file upload endpoint"},
			{Description: "enumerate HTTP headers"},
		}
		kept := c.filterByGoalScope(proposed)

		assert.Len(t, kept, 2)
	})

	t.Run("matches stem forms of escalation words", func(t *testing.T) {
		c := newScopedController(t, "check for outdated software")

		proposed := []reasoning.ProposedTask{
			{Description: "attempt privilege escalation via cron"},
			{Description: "escalating access through sudo misconfiguration"},
			{Description: "list installed package versions"},
		}
		kept := c.filterByGoalScope(proposed)

		assert.Equal(t, []string{"list installed package versions"}, descriptions(kept))
	})
}

func TestQuickGoalCheck(t *testing.T) {
	completeWithFindings := func(t *testing.T, c *Controller, desc string, findings ...string) {
		t.Helper()
		node := tree.NewTaskNode(desc, c.Tree().RootID)
		require.NoError(t, c.Tree().AddNode(node))
		status := string(tree.StatusCompleted)
		require.True(t, c.Tree().UpdateNode(node.ID, tree.NodeUpdate{
			Status:   &status,
			Findings: findings,
		}))
	}

	t.Run("banner co-occurrence", func(t *testing.T) {
		c := newScopedController(t, "determine the SSH banner of 10.0.0.5")
		completeWithFindings(t, c, "grab service banner on port 22",
			"banner: SSH-2.0-OpenSSH_8.9p1 Ubuntu")

		assert.True(t, c.quickGoalCheck())
	})

	t.Run("version co-occurrence", func(t *testing.T) {
		c := newScopedController(t, "identify the running web server version")
		completeWithFindings(t, c, "probe HTTP service",
			"Server header reports version Apache/2.4.52")

		assert.True(t, c.quickGoalCheck())
	})

	t.Run("no completed findings yet", func(t *testing.T) {
		c := newScopedController(t, "determine the SSH banner of 10.0.0.5")
		node := tree.NewTaskNode("grab service banner on port 22", c.Tree().RootID)
		require.NoError(t, c.Tree().AddNode(node))

		assert.False(t, c.quickGoalCheck())
	})

	t.Run("findings unrelated to the goal subject", func(t *testing.T) {
		c := newScopedController(t, "determine the SSH banner of 10.0.0.5")
		completeWithFindings(t, c, "probe port 80", "port 80 refused connection")

		assert.False(t, c.quickGoalCheck())
	})

	t.Run("non-info goal never short-circuits", func(t *testing.T) {
		c := newScopedController(t, "gain shell access to the host")
		completeWithFindings(t, c, "grab service banner", "banner: SSH-2.0-OpenSSH_8.9p1")

		assert.False(t, c.quickGoalCheck())
	})

	t.Run("shared info keyword between goal and task description", func(t *testing.T) {
		c := newScopedController(t, "enumerate SMB shares on the file server")
		completeWithFindings(t, c, "enumerate shares via smbclient",
			"ADMIN$, C$, and 'public' share discovered")

		assert.True(t, c.quickGoalCheck())
	})
}

func TestFindStructureNode(t *testing.T) {
	c := newScopedController(t, "identify the running web server version")
	recon := tree.NewNode("Phase 1: Reconnaissance", c.Tree().RootID, tree.TypePhase)
	require.NoError(t, c.Tree().AddNode(recon))
	vuln := tree.NewNode("Phase 2: Vulnerability Assessment", c.Tree().RootID, tree.TypePhase)
	require.NoError(t, c.Tree().AddNode(vuln))
	task := tree.NewTaskNode("Phase 2 cleanup task", vuln.ID)
	require.NoError(t, c.Tree().AddNode(task))

	t.Run("case-insensitive substring match", func(t *testing.T) {
		assert.Equal(t, recon.ID, c.findStructureNode("reconnaissance").ID)
		assert.Equal(t, vuln.ID, c.findStructureNode("Phase 2").ID)
	})

	t.Run("task nodes never match", func(t *testing.T) {
		got := c.findStructureNode("cleanup")
		assert.Equal(t, c.Tree().RootID, got.ID)
	})

	t.Run("root sentinel and misses fall back to root", func(t *testing.T) {
		assert.Equal(t, c.Tree().RootID, c.findStructureNode("root").ID)
		assert.Equal(t, c.Tree().RootID, c.findStructureNode("Exploitation").ID)
		assert.Equal(t, c.Tree().RootID, c.findStructureNode("").ID)
	})
}
