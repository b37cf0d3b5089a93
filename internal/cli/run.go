package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/rowprompt/internal/cache"
	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/engine"
	"github.com/rshade/rowprompt/internal/llm"
	"github.com/rshade/rowprompt/internal/output"
	"github.com/rshade/rowprompt/internal/progress"
	"github.com/rshade/rowprompt/internal/table"
)

// ErrRunInterrupted is returned when a run stops before every row was dispatched.
var ErrRunInterrupted = errors.New("run interrupted")

// runParams holds the parameters for the run command execution.
type runParams struct {
	input        string
	prompt       string
	promptFile   string
	ignoreFile   string
	output       string
	provider     string
	model        string
	systemPrompt string
	apiKey       string
	outputColumn string
	temperature  float64
	topP         float64
	workers      int
	quiet        bool
	cache        bool
}

// NewRunCmd creates the "run" subcommand that processes a CSV file.
//
// Registered flags:
//   - --input: CSV file to process (required)
//   - --prompt / --prompt-file: the template, inline or from a file
//   - --ignore: file of row identifiers to skip
//   - --output: destination CSV (default: a new file in the output directory)
//   - --provider, --model, --temperature, --top-p, --system-prompt: model overrides
//   - --workers: maximum number of rows processed concurrently
//   - --cache: reuse responses from the model response cache
func NewRunCmd() *cobra.Command {
	var params runParams

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every pending row of a CSV file",
		Long: `Fills the prompt template from each row, sends it to the model and writes
the response into the output column. Rows completed by earlier runs and rows
listed in the ignore file are skipped. Rows are written in completion order.

Placeholders use the form {{column}} and must name a CSV header.`,
		Example: `  # Inline template
  rowprompt run --input reviews.csv --prompt "Classify the sentiment of: {{review}}"

  # Template from a file, eight workers, explicit output path
  rowprompt run --input data.csv --prompt-file prompt.txt --workers 8 --output out.csv

  # Try a template without calling a model
  rowprompt run --input data.csv --prompt "{{name}}" --provider echo`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeRun(cmd, params)
		},
	}

	cmd.Flags().StringVarP(&params.input, "input", "i", "", "CSV file to process")
	cmd.Flags().StringVarP(&params.prompt, "prompt", "p", "", "prompt template with {{column}} placeholders")
	cmd.Flags().StringVar(&params.promptFile, "prompt-file", "", "file containing the prompt template")
	cmd.Flags().StringVar(&params.ignoreFile, "ignore", "", "file of row identifiers to skip")
	cmd.Flags().StringVarP(&params.output, "output", "o", "", "output CSV path (default: new file in output.dir)")
	cmd.Flags().StringVar(&params.provider, "provider", "", "model provider: openai, gemini or echo")
	cmd.Flags().StringVar(&params.model, "model", "", "model name")
	cmd.Flags().Float64Var(&params.temperature, "temperature", 0, "sampling temperature")
	cmd.Flags().Float64Var(&params.topP, "top-p", 0, "nucleus sampling cutoff")
	cmd.Flags().StringVar(&params.systemPrompt, "system-prompt", "", "system prompt sent with every row")
	cmd.Flags().StringVar(&params.apiKey, "api-key", "", "API key (default: read from the provider's environment variable)")
	cmd.Flags().StringVar(&params.outputColumn, "output-column", "", "column that receives the model output")
	cmd.Flags().IntVarP(&params.workers, "workers", "w", 0, "maximum rows processed concurrently")
	cmd.Flags().BoolVarP(&params.quiet, "quiet", "q", false, "suppress progress output")
	cmd.Flags().BoolVar(&params.cache, "cache", false, "reuse cached model responses (default: cache.enabled)")

	_ = cmd.MarkFlagRequired("input")
	cmd.MarkFlagsMutuallyExclusive("prompt", "prompt-file")
	cmd.MarkFlagsOneRequired("prompt", "prompt-file")

	return cmd
}

// executeRun loads the inputs, runs the batch and writes the artifacts.
func executeRun(cmd *cobra.Command, params runParams) error {
	ctx := cmd.Context()

	cfg, err := runConfig(cmd, params)
	if err != nil {
		return err
	}

	tmpl, err := resolveTemplate(params)
	if err != nil {
		return err
	}

	tbl, err := table.ReadCSVFile(params.input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	ignored, err := loadIgnored(params.ignoreFile)
	if err != nil {
		return err
	}

	store, err := progress.Open(ctx, cfg.Progress.StoreConfig())
	if err != nil {
		return fmt.Errorf("opening progress store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn().Ctx(ctx).Err(closeErr).Msg("failed to close progress store")
		}
	}()

	invoker, err := llm.New(ctx, cfg.Model.InvokerOptions(params.apiKey))
	if err != nil {
		return fmt.Errorf("creating model client: %w", err)
	}
	respCache, err := cfg.Cache.OpenStore()
	if err != nil {
		return fmt.Errorf("opening response cache: %w", err)
	}
	invoker = cache.Wrap(invoker, respCache, cfg.Model.Provider)

	opts := []engine.Option{
		engine.WithWorkers(cfg.Processing.Workers),
		engine.WithOutputColumn(cfg.Processing.OutputColumn),
	}
	if !params.quiet && isWriterTerminal(cmd.ErrOrStderr()) {
		opts = append(opts, engine.WithProgressCallback(newProgressPrinter(cmd.ErrOrStderr())))
	}
	orch, err := engine.NewOrchestrator(store, invoker, opts...)
	if err != nil {
		return err
	}

	logger.Info().Ctx(ctx).
		Str("input", params.input).
		Int("rows", tbl.Len()).
		Int("workers", orch.Workers()).
		Str("provider", cfg.Model.Provider).
		Str("model", cfg.Model.Name).
		Bool("cache", respCache != nil).
		Msg("starting run")

	res, err := orch.Run(ctx, tbl, tmpl, cfg.Model.Params(), ignored)
	if err != nil {
		return err
	}

	art, err := writeArtifacts(cfg, params.output, res)
	if err != nil {
		return err
	}

	if err = renderSummary(cmd.OutOrStdout(), res, art); err != nil {
		return err
	}
	if res.Cancelled {
		return fmt.Errorf("%w after %d of %d pending rows", ErrRunInterrupted, res.Processed, pendingRows(res))
	}
	return nil
}

// runConfig copies the global configuration and applies the flags the user
// set explicitly, then validates the result.
func runConfig(cmd *cobra.Command, params runParams) (*config.Config, error) {
	cfg := *config.GetGlobalConfig()
	flags := cmd.Flags()

	if flags.Changed("provider") {
		cfg.Model.Provider = params.provider
	}
	if flags.Changed("model") {
		cfg.Model.Name = params.model
	}
	if flags.Changed("temperature") {
		cfg.Model.Temperature = params.temperature
	}
	if flags.Changed("top-p") {
		cfg.Model.TopP = params.topP
	}
	if flags.Changed("system-prompt") {
		cfg.Model.SystemPrompt = params.systemPrompt
	}
	if flags.Changed("workers") {
		cfg.Processing.Workers = params.workers
	}
	if flags.Changed("output-column") {
		cfg.Processing.OutputColumn = params.outputColumn
	}
	if flags.Changed("cache") {
		cfg.Cache.Enabled = params.cache
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveTemplate returns the inline template or the content of the template file.
func resolveTemplate(params runParams) (string, error) {
	tmpl := params.prompt
	if params.promptFile != "" {
		data, err := os.ReadFile(params.promptFile)
		if err != nil {
			return "", fmt.Errorf("reading prompt file: %w", err)
		}
		tmpl = string(data)
	}
	if strings.TrimSpace(tmpl) == "" {
		return "", errors.New("prompt template is empty")
	}
	return tmpl, nil
}

// loadIgnored reads the ignore file, or returns an empty set when path is "".
func loadIgnored(path string) (table.IDSet, error) {
	if path == "" {
		return table.NewIDSet(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	ids, err := table.ParseIDList(f)
	if err != nil {
		return nil, fmt.Errorf("parsing ignore file %s: %w", path, err)
	}
	return ids, nil
}

// writeArtifacts writes to dest when given, otherwise to a new file in the
// configured output directory.
func writeArtifacts(cfg *config.Config, dest string, res *engine.Result) (output.Artifacts, error) {
	if dest != "" {
		return output.WriteTo(dest, res)
	}
	dir, err := cfg.EnsureOutputDir()
	if err != nil {
		return output.Artifacts{}, err
	}
	return output.NewWriter(dir).Write(res)
}

func pendingRows(res *engine.Result) int {
	return res.TotalRows - res.Skipped - res.Ignored
}
