package cmd

import (
	"github.com/spf13/cobra"

	"github.com/namelens/coinbridge/internal/output"
)

var priceFutures bool

var priceCmd = &cobra.Command{
	Use:   "price <symbol...>",
	Short: "Show 24h tickers for one or more symbols",
	Long: `Fetch 24h tickers concurrently. Symbols without a quote asset get USDT
appended. Spot symbols that Binance does not list are looked up on Binance
Alpha.

Examples:
  coinbridge price btc eth sol
  coinbridge price BTC --futures -o json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context(), false)
		if err != nil {
			return err
		}

		fetch := svc.market.MultipleTickers
		if priceFutures {
			fetch = svc.market.FuturesMultipleTickers
		}
		entries := fetch(cmd.Context(), args)
		return emit(cmd, entries, output.TickerTable(args, entries))
	},
}

func init() {
	priceCmd.Flags().BoolVar(&priceFutures, "futures", false, "use USDT-M futures tickers")
	addOutputFlags(priceCmd)
	rootCmd.AddCommand(priceCmd)
}
