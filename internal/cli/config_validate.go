package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/progress"
)

// NewConfigValidateCmd creates the config validate command for validating configuration.
func NewConfigValidateCmd() *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Loads the configuration the same way every other command does (config file,
project overlay, ROWPROMPT_* environment variables) and checks it.

This includes:
- YAML syntax of the config file
- Provider and model settings, temperature and top_p ranges
- Worker count and output column
- Progress backend settings (path, DSN or Redis address)
- Logging level and format`,
		Example: `  # Validate current configuration
  rowprompt config validate

  # Validate and show detailed information
  rowprompt config validate --verbose`,
		Annotations: map[string]string{annotationLenientConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate executes the configuration validation logic.
func runConfigValidate(cmd *cobra.Command, verbose bool) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithProjectDir(cmd.Context(), configPath, config.GetResolvedProjectDir())
	if err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	cmd.Printf("✅ Configuration is valid\n")

	if verbose {
		printVerboseDetails(cmd, cfg)
	}

	return nil
}

// printVerboseDetails prints detailed configuration information.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config) {
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Config file: %s\n", cfg.ConfigPath())
	if dir := config.GetResolvedProjectDir(); dir != "" {
		cmd.Printf("  Project directory: %s\n", dir)
	}
	cmd.Printf("  Provider: %s\n", cfg.Model.Provider)
	cmd.Printf("  Model: %s\n", cfg.Model.Name)
	cmd.Printf("  Temperature: %g\n", cfg.Model.Temperature)
	cmd.Printf("  Top P: %g\n", cfg.Model.TopP)
	cmd.Printf("  Workers: %d\n", cfg.Processing.Workers)
	cmd.Printf("  Output column: %s\n", cfg.Processing.OutputColumn)
	cmd.Printf("  Output directory: %s\n", cfg.Output.Dir)
	cmd.Printf("  Logging level: %s\n", cfg.Logging.Level)
	cmd.Printf("  Log file: %s\n", cfg.Logging.File)

	printProgressDetails(cmd, cfg.Progress)
}

// printProgressDetails prints the progress backend without secrets.
func printProgressDetails(cmd *cobra.Command, p config.ProgressConfig) {
	cmd.Printf("  Progress backend: %s\n", p.Backend)
	switch p.Backend {
	case progress.BackendRedis:
		cmd.Printf("    Redis: %s (db %d, key %s)\n", p.RedisAddr, p.RedisDB, p.RedisKey)
	case progress.BackendPostgres:
		cmd.Println("    Postgres DSN: (set)")
	default:
		cmd.Printf("    Path: %s\n", p.Path)
	}
}
