// Package cli implements the examops command line.
package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lerlerchan/ExamOps-Orchestrator/internal/config"
	"github.com/lerlerchan/ExamOps-Orchestrator/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "examops",
	Short: "Normalize exam papers against institutional templates",
	Long: `examops rewrites the numbering, marks notation, spacing, indentation,
margins and header/footer of an exam paper to match an institutional rule set,
leaving equations, images, tables and fields untouched. Every job produces an
auditable diff report.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

var (
	envFile    string
	configPath string
	logLevel   string
	logJSON    bool
	noColor    bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "load EXAMOPS_* variables from a .env file")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug|info|warn|error|disabled)")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "write logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// setup loads the configuration, applies the global flags and stores the
// configuration and logger in the command context.
func setup(cmd *cobra.Command, _ []string) error {
	if envFile != "" {
		// Variables already set in the environment win.
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if cmd.Flags().Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if noColor {
		color.NoColor = true
	}

	lc := cfg.Log.LoggerConfig()
	lc.Output = cmd.ErrOrStderr()
	log := logger.NewLogger(lc)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = config.ContextWithConfig(ctx, cfg)
	ctx = logger.ContextWithLogger(ctx, log)
	cmd.SetContext(ctx)
	return nil
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
