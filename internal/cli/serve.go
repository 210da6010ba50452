package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/picsum-gallery/internal/server"
	"github.com/Sternrassler/picsum-gallery/pkg/logging"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gallery HTTP service",
		Long: `Starts the gallery HTTP service.

Clients open a gallery with POST /api/galleries and page through it with
POST /api/galleries/{id}/next. Single photos and raw list pages are served
under /api/photos. Prometheus metrics are exposed on /metrics.`,
		Example: `  # Start on the configured address (default :8080)
  gallery serve

  # Start on a custom address with the Redis cache
  gallery serve --addr :3000 --redis`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.config
			if addr != "" {
				cfg.Server.Addr = addr
			}
			logger := logging.NewLogger("gallery-server")

			c, release, err := a.newClient(cmd.Context())
			if err != nil {
				return err
			}
			defer release()

			srv := server.New(server.Config{
				Addr:           cfg.Server.Addr,
				Links:          c.Links(),
				Gallery:        cfg.PaginationConfig(),
				SessionIdleTTL: cfg.Server.SessionIdleTTL,
			}, c, logger)

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- srv.Start()
			}()

			select {
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error().Err(err).Msg("Server shutdown failed")
					return err
				}
				logger.Info().Msg("Server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides server.addr)")

	return cmd
}
