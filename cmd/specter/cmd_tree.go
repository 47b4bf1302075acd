package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"specter/cmd/specter/ui"
	"specter/internal/session"
	"specter/internal/tree"
)

var treeList bool

var treeCmd = &cobra.Command{
	Use:   "tree [snapshot]",
	Short: "Show the task tree from a saved assessment",
	Long: `Tree renders a saved task tree with per-node status, priority, and
findings. Without an argument the most recent snapshot is shown;
--list enumerates the snapshots on disk instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: showTree,
}

func init() {
	treeCmd.Flags().BoolVarP(&treeList, "list", "l", false, "list saved snapshots instead of rendering one")
}

func showTree(_ *cobra.Command, args []string) error {
	st := ui.DefaultStyles()
	snapshots := session.NewStore(cfg.Reports.Path)

	if treeList {
		return listSnapshots(snapshots, st)
	}

	ptt, path, err := loadSnapshot(snapshots, args)
	if err != nil {
		return fmt.Errorf("could not restore snapshot: %w", err)
	}

	fmt.Println(st.Title.Render("Task tree from " + path))
	fmt.Printf("Goal: %s\nTarget: %s\n\n", ptt.Goal, ptt.Target)
	fmt.Println(ptt.RenderText())

	stats := ptt.GetStatistics()
	fmt.Println(st.RenderDivider(60))
	fmt.Printf("Nodes: %d total, %d leaves, %d candidates\n",
		stats.TotalNodes, stats.LeafNodes, stats.CandidateTasks)
	for _, status := range []tree.NodeStatus{
		tree.StatusCompleted, tree.StatusVulnerable, tree.StatusNotVulnerable,
		tree.StatusFailed, tree.StatusBlocked, tree.StatusInProgress, tree.StatusPending,
	} {
		if n := stats.StatusCounts[status]; n > 0 {
			fmt.Printf("  %s %s: %d\n", tree.StatusSymbol(status), status, n)
		}
	}
	return nil
}

func listSnapshots(store *session.Store, st ui.Styles) error {
	snaps, err := store.List()
	if err != nil {
		return err
	}

	table := ui.NewTable("Saved snapshots", "SAVED", "SIZE", "PATH")
	for _, snap := range snaps {
		table.AddRow(snap.SavedAt.Format("2006-01-02 15:04:05"),
			fmt.Sprintf("%d B", snap.Size), snap.Path)
	}
	fmt.Println(table.Render(st))
	return nil
}
