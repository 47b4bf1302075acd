package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specter/cmd/specter/ui"
	"specter/internal/agent"
	"specter/internal/session"
)

var (
	resumeIterations int
	resumeReport     bool
)

var resumeCmd = &cobra.Command{
	Use:   "resume [snapshot]",
	Short: "Resume an assessment from a saved snapshot",
	Long: `Resume restores the task tree from a snapshot file and continues the
autonomous loop where it stopped. Without an argument the most recent
snapshot in the reports directory is used.`,
	Example: `  specter resume
  specter resume reports/ptt_state_20260825_143012.json -n 40`,
	Args: cobra.MaximumNArgs(1),
	RunE: resumeAssessment,
}

func init() {
	resumeCmd.Flags().IntVarP(&resumeIterations, "iterations", "n", 0, "new iteration limit (defaults to the snapshot's)")
	resumeCmd.Flags().BoolVar(&resumeReport, "report", false, "generate a Markdown report when the run ends")
}

func resumeAssessment(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st := ui.DefaultStyles()
	fmt.Println(ui.Banner(st))

	snapshots := session.NewStore(cfg.Reports.Path)
	ptt, path, err := loadSnapshot(snapshots, args)
	if err != nil {
		return fmt.Errorf("could not restore snapshot: %w", err)
	}
	fmt.Println(st.Info.Render("Restored: " + path))
	fmt.Printf("Goal: %s\nTarget: %s\n", ptt.Goal, ptt.Target)

	client, err := buildOracle(cfg)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	if watcher := startWatcher(ctx, registry); watcher != nil {
		defer watcher.Stop()
	}

	knowledgeStore, err := buildKnowledge(ctx, cfg)
	if err != nil {
		logger.Warn("Knowledge base unavailable, continuing without it", zap.Error(err))
		knowledgeStore = nil
	}
	if knowledgeStore != nil {
		defer knowledgeStore.Close()
	}

	events := make(chan agent.Event, 64)
	agentCfg := agent.Config{
		Client:       client,
		Tools:        registry,
		Snapshots:    snapshots,
		PauseHandler: ui.NewPauseMenu(),
		// Zero lets the snapshot's recorded limit stand; -n overrides it.
		MaxIterations: resumeIterations,
		StepDelay:     cfg.GetStepDelay(),
		ErrorBackoff:  cfg.GetErrorBackoff(),
		EventChan:     events,
	}
	if knowledgeStore != nil {
		agentCfg.Knowledge = knowledgeStore
	}

	ctrl := agent.NewFromTree(agentCfg, ptt)
	fmt.Println(st.Muted.Render(fmt.Sprintf("Continuing at iteration %d/%d", ctrl.Iteration(), ctrl.EffectiveLimit())))

	result, err := launchLoop(ctx, cancel, ctrl, events, st)
	if err != nil {
		return err
	}
	printResult(ctrl, result, st)

	if resumeReport {
		reportCtx, reportCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer reportCancel()
		return generateReport(reportCtx, client, ctrl.Tree(), ctrl.ToolsUsed(), ctrl.History().Export(), st)
	}
	return nil
}
