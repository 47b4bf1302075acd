package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"specter/cmd/specter/ui"
	"specter/internal/agent"
	"specter/internal/config"
	"specter/internal/embedding"
	"specter/internal/knowledge"
	"specter/internal/oracle"
	"specter/internal/report"
	"specter/internal/session"
	"specter/internal/tools"
	"specter/internal/tree"
)

// buildOracle validates the reasoning oracle configuration and creates
// the client.
func buildOracle(cfg *config.Config) (*oracle.OpenAIClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration incomplete: %w", err)
	}
	return oracle.NewOpenAIClient(oracle.OpenAIConfig{
		APIKey:         cfg.LLM.APIKey,
		BaseURL:        cfg.LLM.BaseURL,
		Model:          cfg.LLM.Model,
		Timeout:        cfg.GetLLMTimeout(),
		MaxTotalTokens: cfg.LLM.MaxTotalTokens,
		ResponseBuffer: cfg.LLM.ResponseBuffer,
	}), nil
}

// buildRegistry loads the tool registry and probes availability.
func buildRegistry(ctx context.Context, cfg *config.Config) (*tools.Registry, error) {
	if err := tools.EnsureDefault(cfg.Tools.RegistryPath); err != nil {
		return nil, fmt.Errorf("failed to create tool registry: %w", err)
	}
	registry := tools.NewRegistry(cfg.Tools.RegistryPath)
	if err := registry.Load(); err != nil {
		return nil, err
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.GetProbeTimeout())
	defer cancel()
	if err := registry.Probe(probeCtx); err != nil {
		return nil, err
	}
	return registry, nil
}

// buildKnowledge opens the knowledge base, ingesting the documents
// directory when it exists. Without an embedding provider the store
// still works through keyword search.
func buildKnowledge(ctx context.Context, cfg *config.Config) (*knowledge.Store, error) {
	if cfg.Knowledge.DatabasePath == "" {
		return nil, nil
	}

	var engine embedding.Engine
	if cfg.Embedding.Provider != "" {
		eng, err := embedding.NewEngine(embedding.Config{
			Provider: cfg.Embedding.Provider,
			APIKey:   cfg.Embedding.APIKey,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			TaskType: "RETRIEVAL_DOCUMENT",
		})
		if err != nil {
			logger.Warn("Embedding engine unavailable, knowledge search degrades to keywords", zap.Error(err))
		} else {
			engine = eng
		}
	}

	store, err := knowledge.NewStore(cfg.Knowledge.DatabasePath, engine, cfg.Knowledge.ChunkSize)
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge base: %w", err)
	}

	if info, statErr := os.Stat(cfg.Knowledge.Path); statErr == nil && info.IsDir() {
		n, ingestErr := store.IngestDirectory(ctx, cfg.Knowledge.Path)
		if ingestErr != nil {
			logger.Warn("Knowledge ingestion failed", zap.Error(ingestErr))
		} else if n > 0 {
			logger.Info("Knowledge base updated", zap.Int("chunks", n))
		}
	}
	return store, nil
}

// startWatcher hot-reloads the tool registry on file changes. Returns
// nil when watching is disabled or unavailable.
func startWatcher(ctx context.Context, registry *tools.Registry) *tools.Watcher {
	if !cfg.Tools.WatchChanges {
		return nil
	}
	watcher, err := tools.NewWatcher(registry)
	if err != nil {
		logger.Warn("Registry watcher unavailable", zap.Error(err))
		return nil
	}
	if err := watcher.Start(ctx); err != nil {
		logger.Warn("Registry watcher failed to start", zap.Error(err))
		return nil
	}
	return watcher
}

// launchLoop wires signal handling and live output around the agent
// loop. The first SIGINT pauses at the next iteration boundary; the
// second aborts outright.
func launchLoop(ctx context.Context, cancel context.CancelFunc, ctrl *agent.Controller, events chan agent.Event, st ui.Styles) (*agent.Result, error) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println(st.Warning.Render("\nPause requested, finishing current step (interrupt again to abort)"))
		ctrl.RequestPause()
		<-sigCh
		fmt.Println(st.Error.Render("\nAborting"))
		cancel()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		watchEvents(events, st)
	}()

	result, err := ctrl.Run(ctx)
	close(events)
	<-done
	return result, err
}

// watchEvents prints loop activity until the channel closes. Output is
// muted while the pause menu owns the terminal.
func watchEvents(events <-chan agent.Event, st ui.Styles) {
	muted := false
	for ev := range events {
		switch ev.Kind {
		case agent.EventPaused:
			muted = true
			continue
		case agent.EventResumed:
			muted = false
			continue
		}
		if muted {
			continue
		}
		switch ev.Kind {
		case agent.EventIterationStart:
			fmt.Println(st.Muted.Render(fmt.Sprintf("── iteration %d ──", ev.Iteration)))
		case agent.EventTaskSelected:
			fmt.Println(st.Info.Render("▶ " + ev.Message))
		case agent.EventTaskCompleted:
			fmt.Println(st.Success.Render("● task " + ev.Message))
		case agent.EventTaskFailed:
			fmt.Println(st.Error.Render("✗ " + ev.Message))
		case agent.EventTasksAdded:
			fmt.Println(st.Muted.Render("+ " + ev.Message))
		case agent.EventGoalCheck:
			fmt.Println(st.Success.Render("★ goal " + ev.Message))
		case agent.EventStopped:
			fmt.Println(st.Warning.Render("■ " + ev.Message))
		}
	}
}

// printResult summarizes a finished run: outcome, statistics, findings
// tree, and where the state snapshot went.
func printResult(ctrl *agent.Controller, result *agent.Result, st ui.Styles) {
	fmt.Println()
	fmt.Println(st.RenderDivider(60))
	fmt.Println(st.Title.Render("Assessment stopped: " + string(result.Reason)))

	if result.GoalAchieved {
		fmt.Println(st.Success.Render("Goal achieved"))
	} else {
		fmt.Println(st.Warning.Render("Goal not achieved"))
	}

	fmt.Printf("Iterations: %d/%d\n", result.Iterations, result.EffectiveLimit)
	fmt.Printf("Elapsed: %s\n", result.Elapsed.Round(time.Second))

	stats := result.Statistics
	fmt.Printf("Nodes: %d total, %d completed, %d failed, %d vulnerable\n",
		stats.TotalNodes,
		stats.StatusCounts[tree.StatusCompleted],
		stats.StatusCounts[tree.StatusFailed],
		stats.StatusCounts[tree.StatusVulnerable])

	fmt.Println()
	fmt.Println(st.Title.Render("Final task tree"))
	fmt.Println(ctrl.RenderTree())

	if result.SnapshotPath != "" {
		fmt.Println()
		fmt.Println(st.Info.Render("State saved: " + result.SnapshotPath))
		fmt.Println(st.Muted.Render("Resume with: specter resume"))
	}
}

// generateReport writes the Markdown report and previews it when a
// terminal is attached. dialogue carries the run's oracle conversation
// when one exists.
func generateReport(ctx context.Context, client oracle.Client, ptt *tree.TaskTree, toolsUsed []string, dialogue string, st ui.Styles) error {
	gen := report.NewGenerator(client, cfg.Reports.Path)
	path, err := gen.Generate(ctx, ptt, toolsUsed, dialogue)
	if err != nil {
		return fmt.Errorf("report generation failed: %w", err)
	}
	fmt.Println(st.Success.Render("Report generated: " + path))

	if !stdoutIsTerminal() {
		return nil
	}
	markdown, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	rendered, err := report.Preview(string(markdown))
	if err != nil {
		logger.Debug("Report preview unavailable", zap.Error(err))
		return nil
	}
	fmt.Println(rendered)
	return nil
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

// loadSnapshot resolves an explicit snapshot path or falls back to the
// most recent one in the reports directory.
func loadSnapshot(store *session.Store, args []string) (*tree.TaskTree, string, error) {
	if len(args) > 0 {
		ptt, err := store.Load(args[0])
		return ptt, args[0], err
	}
	return store.LoadLatest()
}
