package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/progress"
)

// NewResetCmd creates the "reset" subcommand that clears the progress store
// so the next run processes every row again.
func NewResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Forget which rows have been processed",
		Example: `  # Start over on the next run
  rowprompt reset`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()

			store, err := progress.Open(ctx, cfg.Progress.StoreConfig())
			if err != nil {
				return fmt.Errorf("opening progress store: %w", err)
			}
			defer store.Close()

			if err = store.Reset(ctx); err != nil {
				return fmt.Errorf("resetting progress: %w", err)
			}

			logger.Info().Ctx(ctx).Str("backend", cfg.Progress.Backend).Msg("progress reset")
			cmd.Println("Processing state has been reset")
			return nil
		},
	}
}
