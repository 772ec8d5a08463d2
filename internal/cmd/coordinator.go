package cmd

import (
	"fmt"
	"strings"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"

	"github.com/namelens/coinbridge/internal/config"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	"github.com/namelens/coinbridge/internal/output"
)

var coordinatorCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Inspect the request coordinators",
}

// builtInPolicies lists the pools in a fixed order.
var builtInPolicies = []struct {
	pool     string
	policies func() coordinator.PolicyTable
}{
	{config.PoolBinance, coordinator.BinancePolicies},
	{config.PoolCoinGecko, coordinator.CoinGeckoPolicies},
	{config.PoolAlpha123, coordinator.Alpha123Policies},
}

var coordinatorPoliciesCmd = &cobra.Command{
	Use:   "policies [pool]",
	Short: "Print the cache TTL and weight of every endpoint",
	Long: `Print the policy table of each coordinator pool (binance, coingecko,
alpha123), or of one pool when named. Endpoints missing from a table are
cached for 5s with weight 1.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		want := ""
		if len(args) == 1 {
			want = strings.ToLower(strings.TrimSpace(args[0]))
		}

		payload := map[string][]coordinator.Policy{}
		tbl := &output.Table{Header: []string{"Pool", "Category", "Endpoint", "TTL", "Weight"}}
		for _, entry := range builtInPolicies {
			if want != "" && entry.pool != want {
				continue
			}
			policies := entry.policies().Entries()
			payload[entry.pool] = policies
			for _, row := range output.PolicyTable(entry.pool, policies).Rows {
				tbl.Rows = append(tbl.Rows, append([]string{entry.pool}, row...))
			}
		}

		if len(payload) == 0 {
			_, _ = fmt.Fprint(cmd.OutOrStdout(), ascii.DrawBox(fmt.Sprintf("Coordinator Policies\n\n(no pool named %q)", want), 0))
			return fmt.Errorf("unknown pool %q", want)
		}
		return emit(cmd, payload, tbl)
	},
}

func init() {
	addOutputFlags(coordinatorPoliciesCmd)
	coordinatorCmd.AddCommand(coordinatorPoliciesCmd)
	rootCmd.AddCommand(coordinatorCmd)
}
