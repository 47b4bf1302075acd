package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"specter/cmd/specter/ui"
	"specter/internal/config"
	"specter/internal/logging"
)

var (
	// Global flags
	configPath string
	debug      bool

	// Loaded once in PersistentPreRunE, shared by every command.
	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "specter",
	Short: "specter - autonomous security assessment agent",
	Long: `specter is an autonomous, goal-directed security assessment agent.

Given a goal and a target it maintains an evolving plan tree, asks an
LLM reasoning oracle which task to run next, executes it, folds the
results back into the plan, and stops when the goal is judged achieved
or the iteration budget runs out.

Start an assessment with:
  specter run --goal "identify exposed services" --target 10.0.0.5`,
	Version: "0.1.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if debug {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if !cmd.Flags().Changed("config") {
			if env := os.Getenv("SPECTER_CONFIG"); env != "" {
				configPath = env
			}
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if debug {
			cfg.Logging.Debug = true
			cfg.Logging.Level = "debug"
		}

		// Category file logs complement the zap console logger; they
		// only materialize in debug mode.
		logging.Configure(cfg.Logging.Debug, cfg.Logging.Level)
		if err := logging.Initialize("."); err != nil {
			logger.Warn("Category logging unavailable", zap.Error(err))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.CloseAll()
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(ui.Banner(ui.DefaultStyles()))
		return cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "specter.yaml", "Path to the YAML configuration file (env SPECTER_CONFIG)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(toolsCmd)
	rootCmd.AddCommand(treeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
