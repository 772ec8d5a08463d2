package cmd

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/fulmenhq/gofulmen/signals"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/config"
	errwrap "github.com/namelens/coinbridge/internal/errors"
	"github.com/namelens/coinbridge/internal/mcp"
	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/observability"
	"github.com/namelens/coinbridge/internal/server"
	"github.com/namelens/coinbridge/internal/server/handlers"
)

var (
	serverPort int
	serverHost string
)

// telemetryHealthChecker ensures telemetry system and exporter are available
type telemetryHealthChecker struct{}

func (telemetryHealthChecker) CheckHealth(ctx context.Context) error {
	if observability.TelemetrySystem == nil || observability.PrometheusExporter == nil {
		return errwrap.NewInternalError("telemetry system not initialized")
	}
	return nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the unified MCP and REST server",
	Long: `Start the HTTP server exposing both MCP endpoints (POST /mcp for Binance,
POST /mcp-coingecko for CoinGecko) and the REST facade.

Signal Handling:
  • Ctrl+C (SIGINT) or SIGTERM: Graceful shutdown
  • Ctrl+C twice within 2s: Force quit
  • SIGHUP: Reload config (logging and alpha seed file)`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := GetAppIdentity()
		namespace := identity.TelemetryNamespace()

		svc, err := buildServices(ctx, true)
		if err != nil {
			return errwrap.WrapConfigInvalid(ctx, err, "service initialization failed")
		}
		cfg := svc.cfg

		observability.InitServerLogger(serverLogOptions(cfg))

		if cfg.Metrics.Enabled {
			metricsPort := cfg.Metrics.Port
			if metricsPort == 0 {
				metricsPort = observability.DefaultMetricsPort
			}
			if err := observability.InitMetrics(namespace, metricsPort); err != nil {
				observability.ServerLogger.Error("Failed to initialize metrics", zap.Error(err))
				_ = svc.Close()
				return errwrap.WrapInternal(ctx, err, "metrics initialization failed")
			}
			metrics.SetServerStartTime(time.Now().Unix())
		}

		observability.ServerLogger.Info("Initializing server",
			zap.String("service", identity.BinaryName),
			zap.String("version", versionInfo.Version),
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.String("database", getDBPath()))

		handlers.SetAppName(identity.BinaryName)
		hm := handlers.InitHealthManager(versionInfo.Version)
		hm.RegisterChecker("store", svc.store)
		if cfg.Metrics.Enabled {
			hm.RegisterChecker("telemetry", telemetryHealthChecker{})
		}

		opts := server.OptionsFromConfig(cfg.Server)
		opts.API = &handlers.API{
			Market:       svc.market,
			Alpha:        svc.alpha,
			Gecko:        svc.gecko,
			GeckoWorkers: cfg.Workers,
			Coordinators: svc.coordinators,
		}
		opts.BinanceMCP = mcp.NewBinanceServer(svc.market, svc.alpha)
		opts.CoinGeckoMCP = mcp.NewCoinGeckoServer(svc.gecko, cfg.Workers)
		opts.AdminToken = os.Getenv(identity.EnvKey("ADMIN_TOKEN"))
		srv := server.New(opts)

		shutdownTimeout := cfg.Server.ShutdownTimeout
		if shutdownTimeout == 0 {
			shutdownTimeout = 10 * time.Second
		}

		// LIFO: the HTTP server stops first, then the store closes, then the
		// logger flushes.
		signals.OnShutdown(func(ctx context.Context) error {
			if err := observability.ServerLogger.Sync(); err != nil {
				observability.ServerLogger.Warn("Logger sync returned error (may be benign)", zap.Error(err))
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			if err := svc.Close(); err != nil {
				return errwrap.WrapDatabaseError(ctx, err, "store close failed")
			}
			return nil
		})
		signals.OnShutdown(func(ctx context.Context) error {
			observability.ServerLogger.Info("Shutting down HTTP server...")
			shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				return errwrap.WrapInternal(ctx, err, "server shutdown failed")
			}
			observability.ServerLogger.Info("HTTP server stopped gracefully")
			return nil
		})

		signals.OnReload(func(ctx context.Context) error {
			return reloadConfig(ctx, svc)
		})

		if err := signals.EnableDoubleTap(signals.DoubleTapConfig{
			Window:  2 * time.Second,
			Message: "Press Ctrl+C again within 2 seconds to force quit",
		}); err != nil {
			observability.ServerLogger.Warn("Failed to enable double-tap force quit", zap.Error(err))
		}

		errChan := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && err != http.ErrServerClosed {
				errChan <- err
			}
		}()

		go func() {
			if err := signals.Listen(ctx); err != nil {
				observability.ServerLogger.Error("Signal handler error", zap.Error(err))
				errChan <- err
			}
		}()

		if err := <-errChan; err != nil {
			return errwrap.WrapInternal(ctx, err, "server error")
		}
		return nil
	},
}

// reloadConfig re-reads the config file on SIGHUP. Logging settings and the
// alpha seed file take effect immediately; listener and coordinator settings
// need a restart.
func reloadConfig(ctx context.Context, svc *services) error {
	logger := observability.ServerLogger
	logger.Info("Received SIGHUP: reloading config")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logger.Error("Failed to reload config file",
				zap.String("file", viper.ConfigFileUsed()),
				zap.Error(err))
			return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
		}
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		return errwrap.WrapConfigInvalid(ctx, err, "config reload failed")
	}

	if cfg.Logging != svc.cfg.Logging {
		observability.InitServerLogger(serverLogOptions(cfg))
		observability.ServerLogger.Info("Logging reconfigured",
			zap.String("level", cfg.Logging.Level),
			zap.String("profile", cfg.Logging.Profile))
	}

	if cfg.Alpha.SeedFile != "" && svc.store != nil {
		result, err := svc.store.ImportSeedFile(ctx, cfg.Alpha.SeedFile)
		if err != nil {
			observability.ServerLogger.Error("Alpha seed import failed", zap.Error(err))
			return errwrap.WrapDatabaseError(ctx, err, "alpha seed import failed")
		}
		observability.ServerLogger.Info("Alpha seed imported",
			zap.Int("competitions", result.Competitions),
			zap.Int("airdrops", result.Airdrops))
	}

	svc.cfg = cfg
	observability.ServerLogger.Info("Configuration reloaded", zap.String("file", viper.ConfigFileUsed()))
	return nil
}

func serverLogOptions(cfg *config.Config) observability.ServerLogOptions {
	identity := GetAppIdentity()
	return observability.ServerLogOptions{
		Service:   identity.BinaryName,
		Level:     cfg.Logging.Level,
		Profile:   cfg.Logging.Profile,
		Namespace: identity.TelemetryNamespace(),
		Mode:      "http",
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serverHost, "host", "localhost", "server host")
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "server port")

	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}
