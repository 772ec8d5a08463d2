package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/namelens/coinbridge/internal/errors"
	"github.com/namelens/coinbridge/internal/observability"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Run self-health check",
	Long:  "Verify that the config loads, the registry database opens and the upstream clients can be built.",
	Run: func(cmd *cobra.Command, args []string) {
		log := observability.CLILogger
		log.Info("Running health check...")

		if versionInfo.Version == "" {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Version information missing", errwrap.NewInternalError("version information missing"))
			return
		}
		log.Debug("Version check passed", zap.String("version", versionInfo.Version))
		log.Info("✅ Version information available")

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		svc, err := buildServices(ctx, true)
		if err != nil {
			ExitWithCode(log, foundry.ExitConfigInvalid, "Service initialization failed", errwrap.WrapConfigInvalid(ctx, err, "service initialization failed"))
			return
		}
		defer func() { _ = svc.Close() }()
		log.Info("✅ Configuration loaded")

		if err := svc.store.CheckHealth(ctx); err != nil {
			ExitWithCode(log, foundry.ExitFailure, "Registry database unreachable", errwrap.WrapDatabaseError(ctx, err, "store ping failed"))
			return
		}
		log.Info("✅ Registry database reachable", zap.String("database", getDBPath()))

		for _, c := range svc.coordinators {
			stats := c.Stats()
			log.Info(fmt.Sprintf("✅ Coordinator %s ready (max weight %d per %s)", stats.Name, stats.MaxWeight, stats.Window))
		}

		log.Info("")
		log.Info("✅ All health checks passed")
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
