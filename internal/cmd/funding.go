package cmd

import (
	"github.com/spf13/cobra"

	"github.com/namelens/coinbridge/internal/market"
	"github.com/namelens/coinbridge/internal/output"
)

var (
	fundingRealtime  bool
	extremeThreshold float64
	extremeLimit     int
)

var fundingCmd = &cobra.Command{
	Use:   "funding <symbol>",
	Short: "Show the funding rate of a perpetual contract",
	Long: `Show the last settled funding rate with recent history, or with
--realtime the current and predicted rates from the premium index.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context(), false)
		if err != nil {
			return err
		}

		if fundingRealtime {
			rt, err := svc.market.RealtimeFundingRate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return emit(cmd, rt, output.RealtimeFundingTable(rt))
		}

		fr, err := svc.market.FundingRate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return emit(cmd, fr, output.FundingTable(fr))
	},
}

var fundingExtremeCmd = &cobra.Command{
	Use:   "extreme",
	Short: "List contracts with extreme predicted funding",
	Long: `Scan every USDT perpetual and list those whose predicted funding rate is
beyond the threshold (in percent), most extreme first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context(), false)
		if err != nil {
			return err
		}

		ef, err := svc.market.ExtremeFundingRates(cmd.Context(), extremeThreshold, extremeLimit)
		if err != nil {
			return err
		}
		return emit(cmd, ef, output.ExtremeFundingTable(ef))
	},
}

func init() {
	fundingCmd.Flags().BoolVar(&fundingRealtime, "realtime", false, "show current and predicted rates")
	addOutputFlags(fundingCmd)

	fundingExtremeCmd.Flags().Float64Var(&extremeThreshold, "threshold", market.DefaultExtremeThreshold, "threshold in percent")
	fundingExtremeCmd.Flags().IntVar(&extremeLimit, "limit", market.DefaultExtremeLimit, "maximum contracts per side")
	addOutputFlags(fundingExtremeCmd)

	fundingCmd.AddCommand(fundingExtremeCmd)
	rootCmd.AddCommand(fundingCmd)
}
