package mcp

import (
	"context"

	"github.com/namelens/coinbridge/internal/alpha"
	"github.com/namelens/coinbridge/internal/market"
)

// Binance server identity.
const (
	BinanceServerName    = "binance-mcp"
	BinanceServerVersion = "1.1.0"
)

type symbolArgs struct {
	Symbol string `json:"symbol"`
}

type symbolsArgs struct {
	Symbols []string `json:"symbols"`
}

type klineArgs struct {
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
	Limit    int    `json:"limit"`
}

type seriesArgs struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
	Limit  int    `json:"limit"`
}

type keywordArgs struct {
	Keyword string `json:"keyword"`
}

type limitArgs struct {
	Limit int `json:"limit"`
}

type extremeArgs struct {
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

var (
	symbolSchema = schema([]string{"symbol"}, map[string]Property{
		"symbol": str("Trading symbol, e.g. BTC or BTCUSDT"),
	})
	klineDefaults  = klineArgs{Interval: "1h", Limit: market.DefaultKlineLimit}
	seriesDefaults = seriesArgs{Period: "1h", Limit: market.DefaultSeriesLimit}
)

func klineSchema() Schema {
	return schema([]string{"symbol"}, map[string]Property{
		"symbol":   str("Trading symbol"),
		"interval": strDefault("Kline interval: 1m, 5m, 15m, 1h, 4h, 1d, ...", "1h"),
		"limit":    integer("Number of klines", market.DefaultKlineLimit),
	})
}

func seriesSchema() Schema {
	return schema([]string{"symbol"}, map[string]Property{
		"symbol": str("Trading symbol"),
		"period": strDefault("Period: 5m, 15m, 30m, 1h, 2h, 4h, 6h, 12h, 1d", "1h"),
		"limit":  integer("Number of records", market.DefaultSeriesLimit),
	})
}

func patternSchema() Schema {
	return schema([]string{"symbol"}, map[string]Property{
		"symbol":   str("Trading symbol"),
		"interval": strDefault("Kline interval", market.DefaultPatternInterval),
	})
}

func symbolsSchema() Schema {
	return schema([]string{"symbols"}, map[string]Property{
		"symbols": {Type: "array", Description: "Trading symbols", Items: &Property{Type: "string"}},
	})
}

func keywordSchema() Schema {
	return schema([]string{"keyword"}, map[string]Property{
		"keyword": str("Search keyword"),
	})
}

func limitSchema() Schema {
	return schema(nil, map[string]Property{
		"limit": integer("Entries per side", 10),
	})
}

// symbolTool binds the common single-symbol call shape.
func symbolTool[T any](name, desc string, fn func(context.Context, string) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: symbolSchema,
		Handler: Bind(symbolArgs{}, func(ctx context.Context, a symbolArgs) (any, error) {
			return fn(ctx, a.Symbol)
		}),
	}
}

func klineTool[T any](name, desc string, fn func(context.Context, string, string, int) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: klineSchema(),
		Handler: Bind(klineDefaults, func(ctx context.Context, a klineArgs) (any, error) {
			return fn(ctx, a.Symbol, a.Interval, a.Limit)
		}),
	}
}

func seriesTool[T any](name, desc string, fn func(context.Context, string, string, int) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: seriesSchema(),
		Handler: Bind(seriesDefaults, func(ctx context.Context, a seriesArgs) (any, error) {
			return fn(ctx, a.Symbol, a.Period, a.Limit)
		}),
	}
}

func patternTool[T any](name, desc string, fn func(context.Context, string, string) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: patternSchema(),
		Handler: Bind(klineArgs{Interval: market.DefaultPatternInterval}, func(ctx context.Context, a klineArgs) (any, error) {
			return fn(ctx, a.Symbol, a.Interval)
		}),
	}
}

func limitTool[T any](name, desc string, fn func(context.Context, int) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: limitSchema(),
		Handler: Bind(limitArgs{Limit: 10}, func(ctx context.Context, a limitArgs) (any, error) {
			return fn(ctx, a.Limit)
		}),
	}
}

func noArgTool[T any](name, desc string, fn func(context.Context) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: schema(nil, nil),
		Handler: NoArgs(func(ctx context.Context) (any, error) {
			return fn(ctx)
		}),
	}
}

// BinanceTools builds the market and Alpha tool registry. A nil alpha
// service leaves the Alpha tools out.
func BinanceTools(mkt *market.Service, al *alpha.Service) []Tool {
	tools := []Tool{
		symbolTool("get_spot_price", "Get the current spot price of a symbol", mkt.SpotPrice),
		symbolTool("get_ticker_24h", "Get 24h ticker statistics (spot, falling back to Alpha and futures)", mkt.Ticker24h),
		{
			Name:        "get_multiple_tickers",
			Description: "Get 24h spot tickers for several symbols at once",
			InputSchema: symbolsSchema(),
			Handler: Bind(symbolsArgs{}, func(ctx context.Context, a symbolsArgs) (any, error) {
				return mkt.MultipleTickers(ctx, a.Symbols), nil
			}),
		},
		klineTool("get_klines", "Get spot candlestick data", mkt.Klines),
		symbolTool("comprehensive_analysis", "Technical analysis with indicators, trend and prediction (spot)", mkt.ComprehensiveAnalysis),
		patternTool("analyze_kline_patterns", "Detect candlestick patterns (spot)", mkt.KlinePatterns),
		symbolTool("analyze_market_factors", "Compare a symbol against BTC and ETH (spot)", mkt.MarketFactors),

		symbolTool("get_futures_price", "Get the current futures price", mkt.FuturesPrice),
		symbolTool("get_funding_rate", "Get the last settled funding rate and history", mkt.FundingRate),
		symbolTool("get_realtime_funding_rate", "Get the realtime and predicted funding rate", mkt.RealtimeFundingRate),
		{
			Name:        "get_extreme_funding_rates",
			Description: "Scan all perpetual contracts for extreme funding rates",
			InputSchema: schema(nil, map[string]Property{
				"threshold": {Type: "number", Description: "Absolute rate threshold in percent", Default: market.DefaultExtremeThreshold},
				"limit":     integer("Entries per side", market.DefaultExtremeLimit),
			}),
			Handler: Bind(extremeArgs{Threshold: market.DefaultExtremeThreshold, Limit: market.DefaultExtremeLimit},
				func(ctx context.Context, a extremeArgs) (any, error) {
					return mkt.ExtremeFundingRates(ctx, a.Threshold, a.Limit)
				}),
		},
		symbolTool("analyze_spot_vs_futures", "Compare spot and futures prices and the basis", mkt.SpotVsFutures),

		symbolTool("get_futures_ticker_24h", "Get 24h futures ticker statistics", mkt.FuturesTicker24h),
		klineTool("get_futures_klines", "Get futures candlestick data", mkt.FuturesKlines),
		{
			Name:        "get_futures_multiple_tickers",
			Description: "Get 24h futures tickers for several symbols at once",
			InputSchema: symbolsSchema(),
			Handler: Bind(symbolsArgs{}, func(ctx context.Context, a symbolsArgs) (any, error) {
				return mkt.FuturesMultipleTickers(ctx, a.Symbols), nil
			}),
		},
		keywordTool("search_futures_symbols", "Search futures symbols by keyword", mkt.SearchFuturesSymbols),
		limitTool("get_futures_top_gainers_losers", "Top futures gainers and losers over 24h", mkt.FuturesTopGainersLosers),

		symbolTool("get_open_interest", "Get current open interest", mkt.OpenInterest),
		seriesTool("get_open_interest_hist", "Get open interest history", mkt.OpenInterestHist),
		seriesTool("get_top_long_short_ratio", "Get the top trader long/short account ratio", mkt.TopLongShortAccountRatio),
		seriesTool("get_top_long_short_position_ratio", "Get the top trader long/short position ratio", mkt.TopLongShortPositionRatio),
		seriesTool("get_global_long_short_ratio", "Get the global long/short account ratio", mkt.GlobalLongShortRatio),
		seriesTool("get_taker_buy_sell_ratio", "Get the taker buy/sell volume ratio", mkt.TakerBuySellRatio),
		symbolTool("get_mark_price", "Get mark price, index price and funding", mkt.MarkPrice),

		symbolTool("comprehensive_analysis_futures", "Technical analysis with indicators, trend and prediction (futures)", mkt.ComprehensiveAnalysisFutures),
		patternTool("analyze_futures_kline_patterns", "Detect candlestick patterns (futures)", mkt.KlinePatternsFutures),
		symbolTool("analyze_futures_market_factors", "Compare a symbol against BTC and ETH (futures)", mkt.MarketFactorsFutures),
	}

	if al != nil {
		tools = append(tools,
			noArgTool("get_realtime_alpha_airdrops", "Realtime Alpha airdrop calendar from alpha123.uk", al.RealtimeAirdrops),
			noArgTool("get_alpha_tokens_list", "List tracked Alpha airdrop tokens with current value", al.TokensList),
			symbolTool("analyze_alpha_token", "Analyze an Alpha token with airdrop and competition context", al.AnalyzeToken),
			noArgTool("get_active_alpha_competitions", "List active and recently ended Alpha trading competitions", al.ActiveCompetitions),
			addCompetitionTool(al),
		)
	}

	tools = append(tools,
		keywordTool("search_symbols", "Search spot symbols by keyword, including Alpha tokens", mkt.SearchSymbols),
		limitTool("get_top_gainers_losers", "Top spot gainers and losers over 24h", mkt.TopGainersLosers),
	)
	return tools
}

func keywordTool[T any](name, desc string, fn func(context.Context, string) (T, error)) Tool {
	return Tool{
		Name:        name,
		Description: desc,
		InputSchema: keywordSchema(),
		Handler: Bind(keywordArgs{}, func(ctx context.Context, a keywordArgs) (any, error) {
			return fn(ctx, a.Keyword)
		}),
	}
}

func addCompetitionTool(al *alpha.Service) Tool {
	return Tool{
		Name:        "add_alpha_competition",
		Description: "Add or update an Alpha trading competition",
		InputSchema: schema([]string{"symbol", "name", "start_time", "end_time"}, map[string]Property{
			"symbol":          str("Token symbol"),
			"name":            str("Token name"),
			"start_time":      str("Start time, YYYY-MM-DD HH:MM:SS (UTC+8)"),
			"end_time":        str("End time, YYYY-MM-DD HH:MM:SS (UTC+8)"),
			"total_reward":    {Type: "integer", Description: "Total reward in tokens"},
			"winner_count":    {Type: "integer", Description: "Number of winners"},
			"per_user_reward": {Type: "integer", Description: "Reward per winner in tokens"},
			"note":            str("Free-form note"),
		}),
		Handler: Bind(alpha.CompetitionInput{}, func(ctx context.Context, in alpha.CompetitionInput) (any, error) {
			return al.AddCompetition(ctx, in)
		}),
	}
}

// NewBinanceServer builds the binance-mcp server.
func NewBinanceServer(mkt *market.Service, al *alpha.Service) *Server {
	return NewServer(BinanceServerName, BinanceServerVersion, BinanceTools(mkt, al)...)
}
