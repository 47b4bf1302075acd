package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specter/cmd/specter/ui"
	"specter/internal/oracle"
	"specter/internal/report"
	"specter/internal/session"
)

var reportCmd = &cobra.Command{
	Use:   "report [snapshot]",
	Short: "Generate a Markdown report from a saved assessment",
	Long: `Report renders a saved assessment into a professional Markdown report.
With a reachable oracle the findings are distilled from the full task
tree; without one the report covers what the tree alone records.
Without an argument the most recent snapshot is used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReportCmd,
}

func runReportCmd(cmd *cobra.Command, args []string) error {
	st := ui.DefaultStyles()

	snapshots := session.NewStore(cfg.Reports.Path)
	ptt, path, err := loadSnapshot(snapshots, args)
	if err != nil {
		return fmt.Errorf("could not restore snapshot: %w", err)
	}
	fmt.Println(st.Info.Render("Loaded: " + path))

	// A missing API key degrades to tree-only findings instead of
	// failing the command.
	var client oracle.Client
	if c, oracleErr := buildOracle(cfg); oracleErr == nil {
		client = c
	} else {
		fmt.Println(st.Warning.Render("Oracle unavailable, reporting from the tree alone"))
		logger.Debug("Report oracle unavailable", zap.Error(oracleErr))
	}

	// Snapshots carry no oracle dialogue, so the analysis works from
	// the tree alone.
	ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
	defer cancel()
	return generateReport(ctx, client, ptt, report.ToolsFromTree(ptt), "", st)
}
