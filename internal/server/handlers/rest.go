package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/namelens/coinbridge/internal/alpha"
	"github.com/namelens/coinbridge/internal/coingecko"
	"github.com/namelens/coinbridge/internal/core/coordinator"
	apperrors "github.com/namelens/coinbridge/internal/errors"
	"github.com/namelens/coinbridge/internal/market"
	"github.com/namelens/coinbridge/internal/metrics"
)

// API serves the REST facade over the market, Alpha and CoinGecko services.
// Nil services answer 503.
type API struct {
	Market       *market.Service
	Alpha        *alpha.Service
	Gecko        *coingecko.Client
	GeckoWorkers int
	Coordinators []*coordinator.Coordinator
}

type queryError struct {
	key, value string
}

func (e *queryError) Error() string {
	return fmt.Sprintf("query parameter %s: invalid number %q", e.key, e.value)
}

func query(r *http.Request, key, def string) string {
	if v := strings.TrimSpace(r.URL.Query().Get(key)); v != "" {
		return v
	}
	return def
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &queryError{key: key, value: raw}
	}
	return v, nil
}

func queryFloat(r *http.Request, key string, def float64) (float64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &queryError{key: key, value: raw}
	}
	return v, nil
}

// respond runs fn and writes its result, mapping failures through the
// upstream error classes.
func respond(w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context) (any, error)) {
	out, err := fn(r.Context())
	metrics.RecordOperation("rest."+op, err == nil)
	if err != nil {
		respondWithFailure(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) SpotPrice(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "spot_price", func(ctx context.Context) (any, error) {
		return a.Market.SpotPrice(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) Ticker24h(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "ticker_24h", func(ctx context.Context) (any, error) {
		return a.Market.Ticker24h(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) Klines(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "klines", func(ctx context.Context) (any, error) {
		limit, err := queryInt(r, "limit", market.DefaultKlineLimit)
		if err != nil {
			return nil, err
		}
		return a.Market.Klines(ctx, query(r, "symbol", "BTC"), query(r, "interval", "1h"), limit)
	})
}

func (a *API) FuturesPrice(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "futures_price", func(ctx context.Context) (any, error) {
		return a.Market.FuturesPrice(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) Comprehensive(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "comprehensive_analysis", func(ctx context.Context) (any, error) {
		return a.Market.ComprehensiveAnalysis(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) KlinePatterns(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "kline_patterns", func(ctx context.Context) (any, error) {
		return a.Market.KlinePatterns(ctx, query(r, "symbol", "BTC"), query(r, "interval", market.DefaultPatternInterval))
	})
}

func (a *API) SpotVsFutures(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "spot_vs_futures", func(ctx context.Context) (any, error) {
		return a.Market.SpotVsFutures(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) MarketFactors(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "market_factors", func(ctx context.Context) (any, error) {
		return a.Market.MarketFactors(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) FundingRate(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "funding_rate", func(ctx context.Context) (any, error) {
		return a.Market.FundingRate(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) RealtimeFunding(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "realtime_funding_rate", func(ctx context.Context) (any, error) {
		return a.Market.RealtimeFundingRate(ctx, query(r, "symbol", "BTC"))
	})
}

func (a *API) ExtremeFunding(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "extreme_funding_rates", func(ctx context.Context) (any, error) {
		threshold, err := queryFloat(r, "threshold", market.DefaultExtremeThreshold)
		if err != nil {
			return nil, err
		}
		limit, err := queryInt(r, "limit", market.DefaultExtremeLimit)
		if err != nil {
			return nil, err
		}
		return a.Market.ExtremeFundingRates(ctx, threshold, limit)
	})
}

func (a *API) Search(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "search_symbols", func(ctx context.Context) (any, error) {
		return a.Market.SearchSymbols(ctx, query(r, "keyword", ""))
	})
}

func (a *API) TopMovers(w http.ResponseWriter, r *http.Request) {
	respond(w, r, "top_gainers_losers", func(ctx context.Context) (any, error) {
		limit, err := queryInt(r, "limit", 10)
		if err != nil {
			return nil, err
		}
		return a.Market.TopGainersLosers(ctx, limit)
	})
}

func (a *API) AlphaAirdrops(w http.ResponseWriter, r *http.Request) {
	if a.Alpha == nil {
		unavailable(w, r, "alpha service")
		return
	}
	respond(w, r, "alpha_airdrops", func(ctx context.Context) (any, error) {
		return a.Alpha.RealtimeAirdrops(ctx)
	})
}

func (a *API) AlphaTokens(w http.ResponseWriter, r *http.Request) {
	if a.Alpha == nil {
		unavailable(w, r, "alpha service")
		return
	}
	respond(w, r, "alpha_tokens", func(ctx context.Context) (any, error) {
		return a.Alpha.TokensList(ctx)
	})
}

func (a *API) AlphaAnalyze(w http.ResponseWriter, r *http.Request) {
	if a.Alpha == nil {
		unavailable(w, r, "alpha service")
		return
	}
	symbol := query(r, "symbol", "")
	if symbol == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("symbol is required"))
		return
	}
	respond(w, r, "alpha_analyze", func(ctx context.Context) (any, error) {
		return a.Alpha.AnalyzeToken(ctx, symbol)
	})
}

func (a *API) AlphaCompetitions(w http.ResponseWriter, r *http.Request) {
	if a.Alpha == nil {
		unavailable(w, r, "alpha service")
		return
	}
	respond(w, r, "alpha_competitions", func(ctx context.Context) (any, error) {
		return a.Alpha.ActiveCompetitions(ctx)
	})
}

func (a *API) GeckoPrice(w http.ResponseWriter, r *http.Request) {
	if a.Gecko == nil {
		unavailable(w, r, "coingecko client")
		return
	}
	respond(w, r, "coingecko_price", func(ctx context.Context) (any, error) {
		return a.Gecko.PricesWithTrend(ctx, []string{query(r, "coin_ids", "bitcoin")}, a.GeckoWorkers)
	})
}

func (a *API) GeckoCoin(w http.ResponseWriter, r *http.Request) {
	if a.Gecko == nil {
		unavailable(w, r, "coingecko client")
		return
	}
	respond(w, r, "coingecko_coin", func(ctx context.Context) (any, error) {
		return a.Gecko.Coin(ctx, query(r, "coin_id", "bitcoin"))
	})
}

func (a *API) GeckoSearch(w http.ResponseWriter, r *http.Request) {
	if a.Gecko == nil {
		unavailable(w, r, "coingecko client")
		return
	}
	respond(w, r, "coingecko_search", func(ctx context.Context) (any, error) {
		return a.Gecko.Search(ctx, query(r, "query", ""))
	})
}

func (a *API) GeckoTrending(w http.ResponseWriter, r *http.Request) {
	if a.Gecko == nil {
		unavailable(w, r, "coingecko client")
		return
	}
	respond(w, r, "coingecko_trending", func(ctx context.Context) (any, error) {
		return a.Gecko.Trending(ctx)
	})
}

// CoordinatorStats snapshots every registered coordinator, keyed by pool.
func (a *API) CoordinatorStats(w http.ResponseWriter, r *http.Request) {
	pools := make(map[string]coordinator.Stats, len(a.Coordinators))
	for _, c := range a.Coordinators {
		if c == nil {
			continue
		}
		stats := c.Stats()
		pools[stats.Name] = stats
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}
