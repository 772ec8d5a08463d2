package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/namelens/coinbridge/internal/binance"
	"github.com/namelens/coinbridge/internal/market"
	"github.com/namelens/coinbridge/internal/metrics"
)

var watchCount int

var watchCmd = &cobra.Command{
	Use:   "watch <symbol...>",
	Short: "Stream live miniTicker updates",
	Long: `Subscribe to the Binance spot miniTicker stream for each symbol and print
one line per update until interrupted.

Example:
  coinbridge watch btc eth --count 10`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd.Context())
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		symbols := make([]string, len(args))
		for i, a := range args {
			symbols[i] = market.Normalize(a)
		}

		metrics.SetActiveSessions("stream", 1)
		defer metrics.SetActiveSessions("stream", 0)

		return watchTickers(ctx, binance.NewStream(cfg.Upstream.StreamURL), symbols, watchCount, cmd.OutOrStdout())
	},
}

// watchTickers prints updates to w. A positive limit stops after that many.
func watchTickers(ctx context.Context, stream *binance.Stream, symbols []string, limit int, w io.Writer) error {
	seen := 0
	return stream.MiniTickers(ctx, symbols, func(t binance.MiniTicker) error {
		_, err := fmt.Fprintln(w, formatMiniTicker(t))
		if err != nil {
			return err
		}
		seen++
		if limit > 0 && seen >= limit {
			return binance.ErrStopStream
		}
		return nil
	})
}

func formatMiniTicker(t binance.MiniTicker) string {
	at := time.UnixMilli(t.EventTime).UTC().Format("15:04:05")
	return fmt.Sprintf("%s %-12s %s %s vol %s",
		at,
		t.Symbol,
		market.Money(t.Close.Float(), 4),
		market.Percent(t.ChangePercent()),
		market.Compact(t.QuoteVolume.Float()))
}

func init() {
	watchCmd.Flags().IntVarP(&watchCount, "count", "n", 0, "stop after this many updates (0 = until interrupted)")
	rootCmd.AddCommand(watchCmd)
}
