package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rshade/rowprompt/internal/config"
)

// NewConfigInitCmd creates the config init command for initializing configuration.
// When a project directory was resolved (and --global is not set), it creates
// .rowprompt/config.yaml and .gitignore there. Otherwise, it creates the global
// ~/.rowprompt/config.yaml.
func NewConfigInitCmd() *cobra.Command {
	var (
		force  bool
		global bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration file with default values",
		Long: `Creates a new configuration file with default values.

When a .rowprompt directory is found (or --project-dir is given), creates
project-local configuration at $PROJECT/.rowprompt/config.yaml with a
.gitignore that keeps progress files and outputs out of version control.
Use --global to force global configuration initialization.`,
		Example: `  # Create project-local configuration
  rowprompt config init --project-dir .

  # Create global configuration
  rowprompt config init --global

  # Create configuration, overwriting existing
  rowprompt config init --force`,
		Annotations: map[string]string{annotationLenientConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			projectDir := config.GetResolvedProjectDir()

			if projectDir != "" && !global {
				return initProjectConfig(cmd, projectDir, force)
			}

			return initGlobalConfig(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing configuration file")
	cmd.Flags().BoolVar(&global, "global", false, "force global configuration init even inside a project")

	return cmd
}

// initProjectConfig creates project-local config at projectDir/config.yaml with .gitignore.
func initProjectConfig(cmd *cobra.Command, projectDir string, force bool) error {
	configPath := filepath.Join(projectDir, "config.yaml")

	// Check if config already exists and force isn't set
	if !force {
		_, err := os.Stat(configPath)
		if err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", configPath, err)
		}
	}

	// Ensure the project .rowprompt/ directory exists
	if err := os.MkdirAll(projectDir, 0o750); err != nil {
		return fmt.Errorf("failed to create project config directory: %w", err)
	}

	// Project progress and outputs stay inside the project directory.
	cfg := config.New()
	cfg.SetConfigPath(configPath)
	cfg.Progress.Path = filepath.Join(projectDir, "processed_ids.jsonl")
	cfg.Output.Dir = filepath.Join(projectDir, "output")
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	added, err := config.EnsureGitignore(projectDir)
	if err != nil {
		return fmt.Errorf("failed to update .gitignore: %w", err)
	}

	cmd.Printf("Configuration initialized at %s\n", configPath)
	if added > 0 {
		cmd.Printf("Added %d pattern(s) to .gitignore to keep progress and outputs out of version control\n", added)
	}

	return nil
}

// initGlobalConfig creates global config at ~/.rowprompt/config.yaml.
func initGlobalConfig(cmd *cobra.Command, force bool) error {
	cfg := config.New()
	if path := config.GetGlobalConfig().ConfigPath(); path != "" {
		cfg.SetConfigPath(path)
	}

	// Check if config already exists and force isn't set
	if !force {
		if _, err := os.Stat(cfg.ConfigPath()); err == nil {
			return errors.New("configuration file already exists, use --force to overwrite")
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("cannot access config path %s: %w", cfg.ConfigPath(), err)
		}
	}

	// Save the default configuration
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	cmd.Printf("Configuration initialized successfully\n")
	cmd.Printf("Configuration file: %s\n", cfg.ConfigPath())

	return nil
}
