package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/memdb/internal/orm/metrics"
	"github.com/conduit-lang/memdb/internal/web/server"
)

// newServeCommand creates the serve command
func newServeCommand(a *app) *cobra.Command {
	var address string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP explorer over the seeded store",
		Long: `Seed the fixture and serve a read-only JSON explorer.

Routes:
  GET /entities                      entity summaries
  GET /entities/{name}               records (filter[field], sort, include, has, offset, limit)
  GET /entities/{name}/{id}          one record (include)
  GET /metrics                       Prometheus metrics, unless server.metrics is false
  GET /healthz                       liveness`,
		Example: `  # Serve on the configured address
  memdb serve --fixture blog.yaml

  # Serve on another port
  memdb serve --address :9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.open(cmd.Context())
			if err != nil {
				return err
			}

			if address == "" {
				address = a.cfg.Server.Address
			}

			opts := []server.ExplorerOption{server.WithLogger(a.logger)}
			var collector *metrics.Collector
			if a.cfg.Server.Metrics {
				collector = metrics.New(db.Hooks(), db)
				opts = append(opts, server.WithMetrics(collector.Handler()))
			}

			config := server.DefaultConfig(server.NewExplorer(db, opts...))
			config.Address = address
			srv, err := server.New(config)
			if err != nil {
				return err
			}

			gs := server.NewGracefulShutdown(srv, &server.ShutdownConfig{
				Timeout: timeout,
				Logger:  a.logger,
			})
			if collector != nil {
				gs.RegisterHook(func(ctx context.Context) error {
					collector.Close()
					return nil
				})
			}

			a.logger.Info("explorer ready",
				zap.String("address", address),
				zap.Strings("entities", a.entities),
				zap.Bool("metrics", collector != nil),
			)
			return gs.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address (default from server.address)")
	cmd.Flags().DurationVar(&timeout, "shutdown-timeout", 10*time.Second, "Maximum time to drain connections on shutdown")
	return cmd
}

