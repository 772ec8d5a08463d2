package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/namelens/coinbridge/internal/alpha"
	"github.com/namelens/coinbridge/internal/observability"
	"github.com/namelens/coinbridge/internal/output"
)

var alphaCmd = &cobra.Command{
	Use:   "alpha",
	Short: "Binance Alpha competitions and airdrops",
	Long: `Manage the Alpha competition and airdrop registry kept in the local
database. The server reads the same database, so changes made here show up
in the get_active_competitions tool without a restart.`,
}

var alphaCompetitionsCmd = &cobra.Command{
	Use:   "competitions",
	Short: "List active and recently ended trading competitions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		board, err := svc.alpha.ActiveCompetitions(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, board, output.CompetitionTable(board))
	},
}

var (
	addInput         alpha.CompetitionInput
	addTotalReward   float64
	addWinnerCount   int64
	addPerUserReward float64
)

var alphaAddCmd = &cobra.Command{
	Use:   "add <symbol> <name>",
	Short: "Add or replace a trading competition",
	Long: `Add a competition, or replace the one registered for the symbol. Times use
the layout "2006-01-02 15:04:05" in UTC+8.

Example:
  coinbridge alpha add TIMI "TIMI Trading Competition" \
    --start "2025-10-01 16:00:00" --end "2025-10-15 16:00:00" \
    --total-reward 2000000 --winners 3000`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := addInput
		in.Symbol, in.Name = args[0], args[1]
		if cmd.Flags().Changed("total-reward") {
			in.TotalReward = &addTotalReward
		}
		if cmd.Flags().Changed("winners") {
			in.WinnerCount = &addWinnerCount
		}
		if cmd.Flags().Changed("per-user-reward") {
			in.PerUserReward = &addPerUserReward
		}

		svc, err := buildServices(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		result, err := svc.alpha.AddCompetition(cmd.Context(), in)
		if err != nil {
			return err
		}
		observability.CLILogger.Info(result.Message,
			zap.String("symbol", result.Competition.Symbol),
			zap.Bool("created", result.Created))
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s (database: %s)\n", result.Message, getDBPath())
		return err
	},
}

var alphaAirdropsCmd = &cobra.Command{
	Use:   "airdrops",
	Short: "Show the live airdrop calendar",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		board, err := svc.alpha.RealtimeAirdrops(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, board, output.AirdropTable(board))
	},
}

var alphaImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import competitions and airdrops from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		result, err := svc.alpha.Import(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %d competitions, %d airdrops, %d CoinGecko ids\nDatabase: %s\n",
			result.Competitions, result.Airdrops, result.CoinGeckoIDs, getDBPath())
		return err
	},
}

func init() {
	addOutputFlags(alphaCompetitionsCmd)
	addOutputFlags(alphaAirdropsCmd)

	alphaAddCmd.Flags().StringVar(&addInput.StartTime, "start", "", "start time, 2006-01-02 15:04:05 (UTC+8)")
	alphaAddCmd.Flags().StringVar(&addInput.EndTime, "end", "", "end time, 2006-01-02 15:04:05 (UTC+8)")
	alphaAddCmd.Flags().Float64Var(&addTotalReward, "total-reward", 0, "total reward in tokens")
	alphaAddCmd.Flags().Int64Var(&addWinnerCount, "winners", 0, "number of winners")
	alphaAddCmd.Flags().Float64Var(&addPerUserReward, "per-user-reward", 0, "reward per winner in tokens")
	alphaAddCmd.Flags().StringVar(&addInput.Note, "note", "", "free-form note")
	_ = alphaAddCmd.MarkFlagRequired("start")
	_ = alphaAddCmd.MarkFlagRequired("end")

	alphaCmd.AddCommand(alphaCompetitionsCmd, alphaAddCmd, alphaAirdropsCmd, alphaImportCmd)
	rootCmd.AddCommand(alphaCmd)
}
