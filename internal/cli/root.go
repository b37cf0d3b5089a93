package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/logging"
)

// annotationLenientConfig marks commands that must run even when the
// configuration does not load, such as config init.
const annotationLenientConfig = "rowprompt/lenient-config"

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// isWriterTerminal reports whether w is a terminal. Buffers used in tests
// are never terminals.
func isWriterTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// logger is the package-level logger for CLI operations.
var logger zerolog.Logger //nolint:gochecknoglobals // Required for zerolog context integration

// NewRootCmd creates the root Cobra command for the rowprompt CLI.
// It loads configuration, wires up logging and tracing, and registers the
// run, reset, serve and config subcommands.
func NewRootCmd(ver string) *cobra.Command {
	var logResult *logging.LogPathResult

	cmd := &cobra.Command{
		Use:   "rowprompt",
		Short: "Run every row of a CSV file through a language model",
		Long: `rowprompt fills a prompt template from each CSV row, sends it to a language
model and writes the response into a new column. Completed rows are recorded
so an interrupted run resumes where it left off.`,
		Version:      ver,
		Example:      rootCmdExample,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadConfig(cmd); err != nil {
				return err
			}
			result := setupLogging(cmd)
			logResult = &result
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return cleanupLogging(cmd, logResult)
		},
	}

	cmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	cmd.PersistentFlags().String("config", "", "config file (default ~/.rowprompt/config.yaml)")
	cmd.PersistentFlags().String("project-dir", "",
		"project directory holding .rowprompt/config.yaml (default: search upwards from the working directory)")
	cmd.AddCommand(NewRunCmd(), NewResetCmd(), NewServeCmd(), newCacheCmd(), newConfigCmd())

	return cmd
}

const rootCmdExample = `  # Summarize every review in a CSV file
  rowprompt run --input reviews.csv --prompt "Summarize: {{review}}"

  # Use a prompt file and skip rows listed in ignore.txt
  rowprompt run --input data.csv --prompt-file prompt.txt --ignore ignore.txt

  # Forget which rows were already processed
  rowprompt reset

  # Serve the HTTP API
  rowprompt serve --addr :8000

  # Initialize configuration
  rowprompt config init`

// loadConfig resolves the project directory, loads .env and the layered
// configuration, and installs it as the global config.
func loadConfig(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(".env"); err != nil {
		cmd.PrintErrf("Warning: %v\n", err)
	}

	configPath, _ := cmd.Flags().GetString("config")
	projectFlag, _ := cmd.Flags().GetString("project-dir")

	wd, err := os.Getwd()
	if err != nil {
		wd = "."
	}
	projectDir := config.ResolveProjectDir(cmd.Context(), projectFlag, wd)
	config.SetResolvedProjectDir(projectDir)

	cfg, err := config.LoadWithProjectDir(cmd.Context(), configPath, projectDir)
	if err != nil {
		if _, lenient := cmd.Annotations[annotationLenientConfig]; !lenient {
			return fmt.Errorf("loading configuration: %w", err)
		}
		cfg = config.New()
		if configPath != "" {
			cfg.SetConfigPath(configPath)
		}
	}
	config.SetGlobalConfig(cfg)
	return nil
}

// newConfigCmd creates the config command group with configuration subcommands.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration management commands"}
	cmd.AddCommand(NewConfigInitCmd(), NewConfigValidateCmd())
	return cmd
}
