package market

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/namelens/coinbridge/internal/binance"
)

// SymbolMatch is one search hit.
type SymbolMatch struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	Market     string `json:"market"`
	Name       string `json:"name,omitempty"`
	AlphaID    string `json:"alpha_id,omitempty"`
	Chain      string `json:"chain,omitempty"`
	Price      string `json:"price,omitempty"`
	Change24h  string `json:"change_24h,omitempty"`
	Note       string `json:"note,omitempty"`
}

// SearchResult lists matches for a keyword.
type SearchResult struct {
	Keyword    string        `json:"keyword"`
	Count      int           `json:"count"`
	SpotCount  *int          `json:"spot_count,omitempty"`
	AlphaCount *int          `json:"alpha_count,omitempty"`
	Symbols    []SymbolMatch `json:"symbols"`
	Note       string        `json:"note,omitempty"`
}

// Mover is one row of a gainers or losers board.
type Mover struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
	Change string `json:"change"`
	Volume string `json:"volume"`
}

// Movers is the top gainers and losers board.
type Movers struct {
	TopGainers []Mover `json:"top_gainers"`
	TopLosers  []Mover `json:"top_losers"`
	Timestamp  string  `json:"timestamp"`
	Market     string  `json:"market"`
}

// SpotFuturesAnalysis compares spot and futures prices.
type SpotFuturesAnalysis struct {
	Symbol        string          `json:"symbol"`
	SpotPrice     string          `json:"spot_price"`
	FuturesPrice  string          `json:"futures_price"`
	Premium       string          `json:"premium"`
	PremiumType   string          `json:"premium_type"`
	FundingRate   string          `json:"funding_rate"`
	AnnualFunding string          `json:"annual_funding"`
	Analysis      BasisAssessment `json:"analysis"`
}

// BasisAssessment interprets a spot/futures premium.
type BasisAssessment struct {
	MarketSentiment      string `json:"market_sentiment"`
	ArbitrageOpportunity bool   `json:"arbitrage_opportunity"`
	Suggestion           string `json:"suggestion"`
}

// MinMoverQuoteVolume filters illiquid pairs out of the movers board.
const MinMoverQuoteVolume = 1e6

const (
	maxSpotMatches    = 20
	maxAlphaMatches   = 10
	maxFuturesMatches = 30
)

// SearchSymbols finds trading USDT spot pairs whose base or symbol contains
// keyword. When spot has nothing, the Alpha token list is searched instead.
func (s *Service) SearchSymbols(ctx context.Context, keyword string) (*SearchResult, error) {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))

	var spot []SymbolMatch
	info, err := s.bn.SpotExchangeInfo(ctx)
	if err == nil {
		for _, sym := range info.Symbols {
			if sym.Status != "TRADING" || sym.QuoteAsset != "USDT" {
				continue
			}
			if strings.Contains(sym.BaseAsset, keyword) || strings.Contains(sym.Symbol, keyword) {
				spot = append(spot, SymbolMatch{
					Symbol:     sym.Symbol,
					BaseAsset:  sym.BaseAsset,
					QuoteAsset: sym.QuoteAsset,
					Market:     MarketSpot,
				})
			}
		}
	}

	var alpha []SymbolMatch
	if len(spot) == 0 {
		alpha = s.searchAlpha(ctx, keyword)
		if len(alpha) == 0 && err != nil {
			return nil, fmt.Errorf("search %s: %w", keyword, err)
		}
	}

	symbols := append(truncate(spot, maxSpotMatches), truncate(alpha, maxAlphaMatches)...)
	spotCount, alphaCount := len(spot), len(alpha)
	result := &SearchResult{
		Keyword:    keyword,
		Count:      len(symbols),
		SpotCount:  &spotCount,
		AlphaCount: &alphaCount,
		Symbols:    symbols,
	}
	if len(alpha) > 0 {
		result.Note = "nothing on spot, showing Alpha tokens"
	}
	return result, nil
}

func (s *Service) searchAlpha(ctx context.Context, keyword string) []SymbolMatch {
	tokens, err := s.bn.AlphaTokens(ctx)
	if err != nil {
		return nil
	}
	var out []SymbolMatch
	for _, t := range tokens {
		if !strings.Contains(strings.ToUpper(t.Symbol), keyword) && !strings.Contains(strings.ToUpper(t.Name), keyword) {
			continue
		}
		out = append(out, SymbolMatch{
			Symbol:     t.Symbol + "USDT",
			BaseAsset:  t.Symbol,
			QuoteAsset: "USDT",
			Market:     MarketAlpha,
			Name:       t.Name,
			AlphaID:    t.AlphaID,
			Chain:      t.ChainName,
			Price:      Money(t.Price.Float(), 6),
			Change24h:  Percent(t.PercentChange24h.Float()),
			Note:       "Binance Alpha token",
		})
	}
	return out
}

// SearchFuturesSymbols finds trading perpetual contracts matching keyword.
func (s *Service) SearchFuturesSymbols(ctx context.Context, keyword string) (*SearchResult, error) {
	keyword = strings.ToUpper(strings.TrimSpace(keyword))
	info, err := s.bn.FuturesExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("search futures %s: %w", keyword, err)
	}
	trading := info.FuturesTradingSet()

	var matches []SymbolMatch
	for _, sym := range info.Symbols {
		if _, ok := trading[sym.Symbol]; !ok {
			continue
		}
		if strings.Contains(sym.BaseAsset, keyword) || strings.Contains(sym.Symbol, keyword) {
			matches = append(matches, SymbolMatch{
				Symbol:     sym.Symbol,
				BaseAsset:  sym.BaseAsset,
				QuoteAsset: sym.QuoteAsset,
				Market:     MarketFutures,
			})
		}
	}
	return &SearchResult{
		Keyword: keyword,
		Count:   len(matches),
		Symbols: truncate(matches, maxFuturesMatches),
	}, nil
}

// TopGainersLosers ranks liquid USDT spot pairs by 24h change.
func (s *Service) TopGainersLosers(ctx context.Context, limit int) (*Movers, error) {
	tickers, err := s.bn.SpotTickers24h(ctx)
	if err != nil {
		return nil, fmt.Errorf("top movers: %w", err)
	}
	return s.movers(tickers, limit, MarketSpot, func(t binance.Ticker24h) bool {
		return strings.HasSuffix(t.Symbol, "USDT")
	}), nil
}

// FuturesTopGainersLosers ranks liquid trading perpetuals by 24h change.
func (s *Service) FuturesTopGainersLosers(ctx context.Context, limit int) (*Movers, error) {
	info, err := s.bn.FuturesExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("futures top movers: %w", err)
	}
	trading := info.FuturesTradingSet()
	tickers, err := s.bn.FuturesTickers24h(ctx)
	if err != nil {
		return nil, fmt.Errorf("futures top movers: %w", err)
	}
	return s.movers(tickers, limit, MarketFutures, func(t binance.Ticker24h) bool {
		_, ok := trading[t.Symbol]
		return ok
	}), nil
}

func (s *Service) movers(tickers []binance.Ticker24h, limit int, market string, keep func(binance.Ticker24h) bool) *Movers {
	if limit <= 0 {
		limit = 10
	}
	var pairs []binance.Ticker24h
	for _, t := range tickers {
		if keep(t) && t.QuoteVolume.Float() > MinMoverQuoteVolume {
			pairs = append(pairs, t)
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].PriceChangePercent.Float() > pairs[j].PriceChangePercent.Float()
	})

	n := min(limit, len(pairs))
	gainers := make([]Mover, 0, n)
	for _, t := range pairs[:n] {
		gainers = append(gainers, moverView(t))
	}
	losers := make([]Mover, 0, n)
	for i := len(pairs) - 1; i >= len(pairs)-n; i-- {
		losers = append(losers, moverView(pairs[i]))
	}

	return &Movers{
		TopGainers: gainers,
		TopLosers:  losers,
		Timestamp:  s.now().Format(TimeLayout),
		Market:     market,
	}
}

func moverView(t binance.Ticker24h) Mover {
	return Mover{
		Symbol: t.Symbol,
		Price:  Money(t.LastPrice.Float(), 4),
		Change: Percent(t.PriceChangePercent.Float()),
		Volume: "$" + Compact(t.QuoteVolume.Float()),
	}
}

// SpotVsFutures compares the spot and futures prices of a symbol and reports
// the predicted funding rate alongside.
func (s *Service) SpotVsFutures(ctx context.Context, symbol string) (*SpotFuturesAnalysis, error) {
	spot, err := s.SpotPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	fut, err := s.FuturesPrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if spot.Price == 0 {
		return nil, fmt.Errorf("spot price for %s is zero", Normalize(symbol))
	}

	premium := (fut.Price - spot.Price) / spot.Price * 100
	premiumType := "at par"
	switch {
	case premium > 0:
		premiumType = "futures premium"
	case premium < 0:
		premiumType = "futures discount"
	}
	sentiment := "neutral"
	switch {
	case premium > 0.1:
		sentiment = "bullish"
	case premium < -0.1:
		sentiment = "bearish"
	}
	arbitrage := math.Abs(premium) > 0.5
	suggestion := "basis is normal"
	if arbitrage {
		suggestion = "cash-and-carry arbitrage is feasible"
	}

	result := &SpotFuturesAnalysis{
		Symbol:        strings.ToUpper(strings.TrimSpace(symbol)),
		SpotPrice:     Money(spot.Price, 4),
		FuturesPrice:  Money(fut.Price, 4),
		Premium:       fmt.Sprintf("%+.4f%%", premium),
		PremiumType:   premiumType,
		FundingRate:   "N/A",
		AnnualFunding: "N/A",
		Analysis: BasisAssessment{
			MarketSentiment:      sentiment,
			ArbitrageOpportunity: arbitrage,
			Suggestion:           suggestion,
		},
	}
	if funding, ferr := s.RealtimeFundingRate(ctx, symbol); ferr == nil {
		result.FundingRate = funding.PredictedNextRateDisplay
		result.AnnualFunding = funding.PredictedAnnualRate
	}
	return result, nil
}
