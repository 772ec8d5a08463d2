package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/mcp"
	"github.com/namelens/coinbridge/internal/metrics"
	"github.com/namelens/coinbridge/internal/observability"
)

var mcpServerName string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve MCP over stdio",
	Long: `Run an MCP server that reads JSON-RPC requests from stdin, one per line,
and writes responses to stdout. Logs go to stderr.

Servers:
  binance    spot, futures, funding, analysis and Alpha tools (default)
  coingecko  CoinGecko price, coin, search and trending tools

Example MCP client entry:
  {"command": "coinbridge", "args": ["mcp", "--server", "binance"]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		identity := GetAppIdentity()

		name := strings.ToLower(strings.TrimSpace(mcpServerName))
		if name != "binance" && name != "coingecko" {
			return fmt.Errorf("unknown MCP server %q (use binance or coingecko)", mcpServerName)
		}

		svc, err := buildServices(ctx, name == "binance")
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		observability.InitServerLogger(observability.ServerLogOptions{
			Service:   identity.BinaryName,
			Level:     svc.cfg.Logging.Level,
			Profile:   svc.cfg.Logging.Profile,
			Namespace: identity.TelemetryNamespace(),
			Mode:      "stdio",
		})

		var srv *mcp.Server
		if name == "binance" {
			srv = mcp.NewBinanceServer(svc.market, svc.alpha)
		} else {
			srv = mcp.NewCoinGeckoServer(svc.gecko, svc.cfg.Workers)
		}

		observability.ServerLogger.Info("MCP stdio server ready",
			zap.String("server", srv.Name()),
			zap.String("version", srv.Version()),
			zap.Int("tools", len(srv.Tools())))

		metrics.SetActiveSessions("stdio", 1)
		defer metrics.SetActiveSessions("stdio", 0)

		return srv.Serve(ctx, os.Stdin, os.Stdout)
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpServerName, "server", "binance", "MCP server to run: binance|coingecko")
	rootCmd.AddCommand(mcpCmd)
}
