package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/rowprompt/internal/cache"
	"github.com/rshade/rowprompt/internal/config"
)

// newCacheCmd creates the cache command group.
func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cache", Short: "Model response cache commands"}
	cmd.AddCommand(NewCacheStatsCmd(), NewCacheClearCmd())
	return cmd
}

// openCache opens the configured cache directory even when caching is
// disabled for runs, so its contents can still be inspected and cleared.
func openCache() (*cache.FileStore, error) {
	cfg := config.GetGlobalConfig()
	if cfg.Cache.Dir == "" {
		return nil, errors.New("cache.dir is not configured")
	}
	return cache.NewFileStore(cfg.Cache.Dir, cfg.Cache.TTL)
}

// NewCacheStatsCmd creates the "cache stats" subcommand.
func NewCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show response cache location and size",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			stats, err := store.Stats()
			if err != nil {
				return err
			}
			cfg := config.GetGlobalConfig()
			cmd.Printf("Enabled:   %t\n", cfg.Cache.Enabled)
			cmd.Printf("Directory: %s\n", store.Directory())
			cmd.Printf("TTL:       %s\n", cache.FormatDuration(store.TTL()))
			cmd.Printf("Entries:   %d\n", stats.Entries)
			cmd.Printf("Size:      %d bytes\n", stats.Bytes)
			return nil
		},
	}
}

// NewCacheClearCmd creates the "cache clear" subcommand.
func NewCacheClearCmd() *cobra.Command {
	var expiredOnly bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove cached model responses",
		Example: `  # Remove everything
  rowprompt cache clear

  # Remove only expired entries
  rowprompt cache clear --expired`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openCache()
			if err != nil {
				return err
			}
			remove := store.Clear
			if expiredOnly {
				remove = store.CleanupExpired
			}
			n, err := remove()
			if err != nil {
				return fmt.Errorf("clearing cache: %w", err)
			}
			logger.Info().Ctx(cmd.Context()).Int("removed", n).Bool("expired_only", expiredOnly).Msg("cache cleared")
			cmd.Printf("Removed %d cache entries\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVar(&expiredOnly, "expired", false, "only remove expired entries")
	return cmd
}
