package commands

import (
	"context"
	"time"

	"github.com/fsandov/ingestion-sdk/pkg/cache"
	"github.com/fsandov/ingestion-sdk/pkg/client"
	"github.com/fsandov/ingestion-sdk/pkg/config"
	"github.com/fsandov/ingestion-sdk/pkg/ingestion"
	"github.com/fsandov/ingestion-sdk/pkg/logs"
	"github.com/fsandov/ingestion-sdk/pkg/web"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func (c *CLI) newServeCmd() *cobra.Command {
	var (
		listen     string
		outcomeTTL time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingestion HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			config.Init(&config.AppConfig{Port: listen})
			logger := logs.NewLogger()

			gc := web.DefaultGinConfig()
			app := web.New(gc)

			store, closeStore := newOutcomeCache(ctx, logger)
			outcomes := ingestion.NewOutcomeStore(store, outcomeTTL)

			var clientOpts []client.Option
			if gc.EnableTracing {
				clientOpts = append(clientOpts, client.WithMiddleware(client.TracingMiddleware(nil)))
			}
			if gc.EnableMetrics {
				clientOpts = append(clientOpts, client.WithMiddleware(client.MetricsMiddleware(&client.MetricsConfig{
					Namespace:  "ingestion",
					Subsystem:  "client",
					Registerer: app.Registry(),
				})))
			}

			hc := ingestion.NewHTTPClient(c.ingestion, clientOpts...)
			n := ingestion.NewNotifier(c.ingestion,
				ingestion.WithClient(hc),
				ingestion.WithLogger(logger),
				ingestion.WithOutcomeStore(outcomes),
			)
			app.OnShutdown(n.Close)
			app.OnShutdown(func(context.Context) error {
				hc.Close()
				return closeStore()
			})

			web.NewIngestionHandler(n, outcomes).Register(app.GetEngine())

			logger.Info(ctx, "forwarding unknown packages", zap.String("url", n.URL()))
			return app.RunContext(ctx)
		},
	}

	cmd.Flags().StringVar(&listen, "listen-port", "", "HTTP listen port (PORT, default 8080)")
	cmd.Flags().DurationVar(&outcomeTTL, "outcome-ttl", ingestion.DefaultOutcomeTTL, "how long request outcomes stay queryable")

	return cmd
}

// newOutcomeCache uses Redis when REDIS_ADDR is set and falls back to memory otherwise.
func newOutcomeCache(ctx context.Context, logger *logs.Logger) (cache.Cache, func() error) {
	rc := cache.RedisConfigFromEnv()
	if rc.Enabled {
		c, err := cache.NewRedisCacheFromConfig(rc)
		if err == nil {
			logger.Info(ctx, "outcomes stored in redis", zap.String("addr", rc.Addr))
			return c, c.Close
		}
		logger.Warn(ctx, "redis unavailable, keeping outcomes in memory", zap.Error(err))
	}
	c := cache.NewMemoryCache()
	return c, c.Close
}
