package mcp

import (
	"context"

	"github.com/namelens/coinbridge/internal/coingecko"
)

// CoinGecko server identity.
const (
	CoinGeckoServerName    = "coingecko-mcp"
	CoinGeckoServerVersion = "1.0.0"
)

type coinIDsArgs struct {
	CoinIDs string `json:"coin_ids"`
}

type coinIDArgs struct {
	CoinID string `json:"coin_id"`
}

type queryArgs struct {
	Query string `json:"query"`
}

// CoinGeckoTools builds the CoinGecko tool registry. workers bounds the
// trend lookups made by get_price.
func CoinGeckoTools(gecko *coingecko.Client, workers int) []Tool {
	return []Tool{
		{
			Name:        "get_price",
			Description: "Get USD prices with 24h change, volume, market cap and a 7-day trend probability",
			InputSchema: schema([]string{"coin_ids"}, map[string]Property{
				"coin_ids": str("Comma separated CoinGecko ids, e.g. bitcoin,ethereum"),
			}),
			Handler: Bind(coinIDsArgs{}, func(ctx context.Context, a coinIDsArgs) (any, error) {
				return gecko.PricesWithTrend(ctx, []string{a.CoinIDs}, workers)
			}),
		},
		{
			Name:        "get_coin_data",
			Description: "Get market data for one coin",
			InputSchema: schema([]string{"coin_id"}, map[string]Property{
				"coin_id": str("CoinGecko id, e.g. bitcoin"),
			}),
			Handler: Bind(coinIDArgs{}, func(ctx context.Context, a coinIDArgs) (any, error) {
				return gecko.Coin(ctx, a.CoinID)
			}),
		},
		{
			Name:        "search_coins",
			Description: "Search coins by name or symbol",
			InputSchema: schema([]string{"query"}, map[string]Property{
				"query": str("Search query"),
			}),
			Handler: Bind(queryArgs{}, func(ctx context.Context, a queryArgs) (any, error) {
				return gecko.Search(ctx, a.Query)
			}),
		},
		{
			Name:        "get_trending",
			Description: "Get coins trending on CoinGecko in the last 24 hours",
			InputSchema: schema(nil, nil),
			Handler: NoArgs(func(ctx context.Context) (any, error) {
				return gecko.Trending(ctx)
			}),
		},
	}
}

// NewCoinGeckoServer builds the coingecko-mcp server.
func NewCoinGeckoServer(gecko *coingecko.Client, workers int) *Server {
	return NewServer(CoinGeckoServerName, CoinGeckoServerVersion, CoinGeckoTools(gecko, workers)...)
}
