package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/nimbuscdn/internal/config"
	"github.com/3leaps/nimbuscdn/internal/observability"
	"github.com/3leaps/nimbuscdn/internal/server"
	"github.com/3leaps/nimbuscdn/internal/server/handlers"
	"github.com/3leaps/nimbuscdn/pkg/aliyuncdn"
	"github.com/3leaps/nimbuscdn/pkg/host"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the node as an HTTP service",
	Long: `Run an HTTP server that executes the aliyunCdn node on request.

Endpoints:
  GET  /health, /health/live, /health/ready, /health/startup
  GET  /version
  GET  /metrics
  GET  /v1/nodes/aliyunCdn
  POST /v1/nodes/aliyunCdn/execute

Examples:
  nimbuscdn serve
  nimbuscdn serve --port 9000
  NIMBUSCDN_LOG_LEVEL=debug nimbuscdn serve`,
	PreRunE: func(cmd *cobra.Command, _ []string) error {
		overrides := map[string]any{}
		srv := map[string]any{}
		if cmd.Flags().Changed("host") {
			srv["host"] = serveHost
		}
		if cmd.Flags().Changed("port") {
			srv["port"] = servePort
		}
		if len(srv) > 0 {
			overrides["server"] = srv
		}
		if _, err := config.Load(cmd.Context(), flagOverrides(cmd), overrides); err != nil {
			return exitError(foundry.ExitInvalidArgument, "Invalid configuration", err)
		}
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg := config.GetConfig()
	if err := observability.InitServerLogger(BinaryName, cfg.Logging.Level); err != nil {
		return exitError(foundry.ExitInvalidArgument, "Invalid log level", err)
	}
	logger := observability.CLILogger

	resolver := credentialResolver()
	health := handlers.InitHealthManager(versionInfo.Version)
	health.RegisterChecker("signal", signalHealthChecker{})
	health.RegisterChecker("identity", identityHealthChecker{
		binaryName: BinaryName,
		envPrefix:  config.EnvPrefix,
		configName: BinaryName,
	})
	if cfg.Metrics.Enabled {
		health.RegisterChecker("metrics", metricsHealthChecker{})
	}
	health.RegisterChecker("credentials", handlers.CredentialsChecker{
		Resolver: resolver,
		Type:     aliyun.CredentialType,
	})

	nodeHandler := handlers.NewNodeHandler(
		aliyuncdn.New(aliyuncdn.WithEndpoint(cfg.Aliyun.Endpoint)),
		resolver,
		host.Config{
			Concurrency: cfg.Runner.Concurrency,
			RateLimit:   cfg.Runner.RateLimit,
			Validate:    cfg.Runner.Validate,
		},
		logger.Named("aliyunCdn"),
	)

	srv := server.New(cfg.Server.Host, cfg.Server.Port,
		server.WithNodeHandler(nodeHandler),
		server.WithMetrics(cfg.Metrics.Enabled),
		server.WithHealth(cfg.Health.Enabled),
		server.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.IdleTimeout),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	ctx := cmd.Context()
	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", zap.Error(err))
			return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
		return exitError(foundry.ExitExternalServiceUnavailable, "Shutdown failed", err)
	}
	if err := <-errCh; err != nil {
		return exitError(foundry.ExitExternalServiceUnavailable, "Server failed", err)
	}
	logger.Info("Server stopped")
	return nil
}

// signalHealthChecker reports the signal handling path. Shutdown is driven
// by context cancellation, so it is healthy while the process serves.
type signalHealthChecker struct{}

func (signalHealthChecker) CheckHealth(ctx context.Context) error {
	return nil
}

// metricsHealthChecker verifies the metrics registry can be gathered.
type metricsHealthChecker struct{}

func (metricsHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.Registry == nil {
		return errors.New("metrics registry not initialized")
	}
	if _, err := observability.Registry.Gather(); err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	return nil
}

// identityHealthChecker verifies the application identity is complete.
type identityHealthChecker struct {
	binaryName string
	envPrefix  string
	configName string
}

func (c identityHealthChecker) CheckHealth(ctx context.Context) error {
	switch {
	case c.binaryName == "":
		return errors.New("identity: missing binary name")
	case c.envPrefix == "":
		return errors.New("identity: missing env prefix")
	case c.configName == "":
		return errors.New("identity: missing config name")
	}
	return nil
}
