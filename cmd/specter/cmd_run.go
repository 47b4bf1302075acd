package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specter/cmd/specter/ui"
	"specter/internal/agent"
	"specter/internal/session"
	"specter/internal/workflow"
)

var (
	runGoal       string
	runTarget     string
	runIterations int
	runWorkflow   string
	runReport     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run an autonomous assessment against a target",
	Long: `Run plans an assessment task tree for the target and works through it
autonomously, selecting one task per iteration, until the goal is
achieved, the tree is exhausted, or the iteration limit is reached.

Press Ctrl+C once to pause at the next iteration boundary and open the
operator menu. Press it twice to abort.`,
	Example: `  specter run --goal "find and validate vulnerabilities" --target 10.0.0.5
  specter run -g "assess the web app" -t https://app.example.com -w web_application -n 30`,
	RunE: runAssessment,
}

func init() {
	runCmd.Flags().StringVarP(&runGoal, "goal", "g", "", "assessment objective in plain language")
	runCmd.Flags().StringVarP(&runTarget, "target", "t", "", "target host, URL, or CIDR range")
	runCmd.Flags().IntVarP(&runIterations, "iterations", "n", 0, "iteration limit (overrides config)")
	runCmd.Flags().StringVarP(&runWorkflow, "workflow", "w", "", "seed from a workflow template instead of the oracle: "+strings.Join(workflow.Keys(), ", "))
	runCmd.Flags().BoolVar(&runReport, "report", false, "generate a Markdown report when the run ends")
	_ = runCmd.MarkFlagRequired("goal")
	_ = runCmd.MarkFlagRequired("target")
}

func runAssessment(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	st := ui.DefaultStyles()
	fmt.Println(ui.Banner(st))

	client, err := buildOracle(cfg)
	if err != nil {
		return err
	}

	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return err
	}
	fmt.Println(st.Muted.Render(fmt.Sprintf("Tools: %d registered, %d available", registry.Count(), len(registry.Available()))))
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
		Client:        client,
		Tools:         registry,
		Snapshots:     session.NewStore(cfg.Reports.Path),
		PauseHandler:  ui.NewPauseMenu(),
		MaxIterations: cfg.Agent.IterationLimit,
		StepDelay:     cfg.GetStepDelay(),
		ErrorBackoff:  cfg.GetErrorBackoff(),
		EventChan:     events,
	}
	if runIterations > 0 {
		agentCfg.MaxIterations = runIterations
	}
	if knowledgeStore != nil {
		agentCfg.Knowledge = knowledgeStore
	}

	ctrl := agent.New(agentCfg)

	constraints := map[string]interface{}{}
	if runIterations > 0 {
		constraints["iteration_limit"] = runIterations
	}

	if runWorkflow != "" {
		if err := ctrl.InitializeWithWorkflow(runGoal, runTarget, constraints, runWorkflow); err != nil {
			return err
		}
		fmt.Println(st.Info.Render("Seeded from workflow: " + runWorkflow))
	} else {
		fmt.Println(st.Muted.Render("Planning opening tasks for " + runTarget + " ..."))
		if err := ctrl.InitializeAssessment(ctx, runGoal, runTarget, constraints); err != nil {
			return err
		}
	}

	result, err := launchLoop(ctx, cancel, ctrl, events, st)
	if err != nil {
		return err
	}
	printResult(ctrl, result, st)

	if runReport {
		// The loop context may already be cancelled after an abort; the
		// report gets its own deadline.
		reportCtx, reportCancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer reportCancel()
		return generateReport(reportCtx, client, ctrl.Tree(), ctrl.ToolsUsed(), ctrl.History().Export(), st)
	}
	return nil
}
