package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/rowprompt/internal/api"
	"github.com/rshade/rowprompt/internal/config"
	"github.com/rshade/rowprompt/internal/output"
	"github.com/rshade/rowprompt/internal/progress"
)

// NewServeCmd creates the "serve" subcommand that exposes processing over HTTP.
func NewServeCmd() *cobra.Command {
	var (
		addr        string
		corsOrigins []string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Long: `Starts an HTTP server with the following endpoints:

  POST /process   multipart upload; returns the processed CSV
  POST /reset     clears the progress store
  GET  /healthz   liveness probe
  GET  /metrics   Prometheus metrics

The server stops gracefully on SIGINT or SIGTERM.`,
		Example: `  # Listen on the configured address (default :8000)
  rowprompt serve

  # Allow a browser front end on another origin
  rowprompt serve --addr :9000 --cors-origin http://localhost:3000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := config.GetGlobalConfig()
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("cors-origin") {
				cfg.Server.CORSOrigins = corsOrigins
			}

			store, err := progress.Open(ctx, cfg.Progress.StoreConfig())
			if err != nil {
				return fmt.Errorf("opening progress store: %w", err)
			}
			defer store.Close()

			dir, err := cfg.EnsureOutputDir()
			if err != nil {
				return err
			}

			respCache, err := cfg.Cache.OpenStore()
			if err != nil {
				return fmt.Errorf("opening response cache: %w", err)
			}

			handler := api.NewHandler(cfg, store, output.NewWriter(dir), nil).WithResponseCache(respCache)
			router := api.SetupRoutes(handler, cfg.Server.CORSOrigins)
			srv := api.NewServer(cfg.Server.Addr, router)

			logger.Info().Ctx(ctx).
				Str("addr", srv.Addr()).
				Str("output_dir", dir).
				Str("progress_backend", cfg.Progress.Backend).
				Bool("cache", respCache != nil).
				Msg("serving")
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", config.DefaultServerAddr, "listen address")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origin", nil, "allowed CORS origin (repeatable)")

	return cmd
}
